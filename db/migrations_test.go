package db

import (
	"testing"

	"github.com/embervale/forumfed/domain"
	_ "modernc.org/sqlite"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	database := setupTestDB(t)
	defer database.db.Close()

	if err := database.RunMigrations(); err != nil {
		t.Fatalf("second RunMigrations call failed: %v", err)
	}

	p := &domain.Person{Username: "alice"}
	if err := database.CreateLocalPerson(p); err != nil {
		t.Fatalf("CreateLocalPerson after re-running migrations: %v", err)
	}
}

func TestMigratedSchemaEnforcesUsernameUniqueness(t *testing.T) {
	database := setupTestDB(t)
	defer database.db.Close()

	if err := database.CreateLocalPerson(&domain.Person{Username: "alice"}); err != nil {
		t.Fatalf("CreateLocalPerson: %v", err)
	}
	err := database.CreateLocalPerson(&domain.Person{Username: "alice"})
	if err == nil {
		t.Fatalf("expected a unique constraint violation on duplicate local username")
	}
	if !isUniqueViolation(err) {
		t.Fatalf("expected a unique constraint error, got: %v", err)
	}
}

func TestMigratedSchemaEnforcesRemoteActorAPIdUniqueness(t *testing.T) {
	database := setupTestDB(t)
	defer database.db.Close()

	p := &domain.Person{APId: "https://remote.example/users/bob", Domain: "remote.example",
		InboxURI: "https://remote.example/users/bob/inbox"}
	if err := database.UpsertRemotePerson(p); err != nil {
		t.Fatalf("UpsertRemotePerson: %v", err)
	}

	var count int
	if err := database.db.QueryRow(`SELECT COUNT(*) FROM persons WHERE ap_id = ?`, p.APId).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row for ap_id, got %d", count)
	}

	_, err := database.db.Exec(`INSERT INTO persons(id, local, ap_id, domain, inbox_uri) VALUES (?, 0, ?, ?, ?)`,
		"11111111-1111-1111-1111-111111111111", p.APId, "remote.example", p.InboxURI)
	if err == nil {
		t.Fatalf("expected a raw duplicate-ap_id insert to violate the unique constraint")
	}
}

func TestMigratedSchemaEnforcesSeenActivityPrimaryKey(t *testing.T) {
	database := setupTestDB(t)
	defer database.db.Close()

	first, err := database.MarkActivitySeen("https://remote.example/activities/1")
	if err != nil || !first {
		t.Fatalf("expected first MarkActivitySeen to succeed, got %v %v", first, err)
	}

	_, err = database.db.Exec(`INSERT INTO seen_activities(ap_id) VALUES (?)`, "https://remote.example/activities/1")
	if err == nil {
		t.Fatalf("expected a raw duplicate ap_id insert into seen_activities to fail")
	}
}
