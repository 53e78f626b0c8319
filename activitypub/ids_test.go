package activitypub

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

const testBase = "https://example.com"

func TestPersonIRIShapesAndDerivedIRIs(t *testing.T) {
	id := uuid.New()
	want := testBase + "/users/" + id.String()
	if got := PersonIRI(testBase, id); got != want {
		t.Errorf("PersonIRI() = %q, want %q", got, want)
	}
	if got := PersonInboxIRI(testBase, id); got != want+"/inbox" {
		t.Errorf("PersonInboxIRI() = %q, want %q", got, want+"/inbox")
	}
	if got := PersonOutboxIRI(testBase, id); got != want+"/outbox" {
		t.Errorf("PersonOutboxIRI() = %q, want %q", got, want+"/outbox")
	}
	if got := PersonFollowingIRI(testBase, id); got != want+"/following" {
		t.Errorf("PersonFollowingIRI() = %q, want %q", got, want+"/following")
	}
	if got := PersonKeyIRI(testBase, id); got != want+"#main-key" {
		t.Errorf("PersonKeyIRI() = %q, want %q", got, want+"#main-key")
	}
}

func TestCommunityIRIShapesAndDerivedIRIs(t *testing.T) {
	id := uuid.New()
	want := testBase + "/communities/" + id.String()
	if got := CommunityIRI(testBase, id); got != want {
		t.Errorf("CommunityIRI() = %q, want %q", got, want)
	}
	if got := CommunityInboxIRI(testBase, id); got != want+"/inbox" {
		t.Errorf("CommunityInboxIRI() = %q, want %q", got, want+"/inbox")
	}
	if got := CommunityOutboxIRI(testBase, id); got != want+"/outbox" {
		t.Errorf("CommunityOutboxIRI() = %q, want %q", got, want+"/outbox")
	}
	if got := CommunityFollowersIRI(testBase, id); got != want+"/followers" {
		t.Errorf("CommunityFollowersIRI() = %q, want %q", got, want+"/followers")
	}
	if got := CommunityKeyIRI(testBase, id); got != want+"#main-key" {
		t.Errorf("CommunityKeyIRI() = %q, want %q", got, want+"#main-key")
	}
}

func TestPostAndCommentIRIUseDistinctSegments(t *testing.T) {
	id := uuid.New()
	post := PostIRI(testBase, id)
	comment := CommentIRI(testBase, id)

	if !strings.Contains(post, "/posts/") {
		t.Errorf("expected PostIRI to use the posts segment, got %q", post)
	}
	if !strings.Contains(comment, "/comments/") {
		t.Errorf("expected CommentIRI to use the comments segment, got %q", comment)
	}
	if post == comment {
		t.Errorf("expected distinct IRIs for a post and comment sharing the same id")
	}
}

func TestSharedInboxIRIIsOriginScopedNotActorScoped(t *testing.T) {
	got := SharedInboxIRI(testBase)
	want := testBase + "/inbox"
	if got != want {
		t.Errorf("SharedInboxIRI() = %q, want %q", got, want)
	}
}

func TestActivityIRICoversEveryKind(t *testing.T) {
	id := uuid.New()
	kinds := []ActivityKind{
		ActivityCreate, ActivityLike, ActivityUndo,
		ActivityDelete, ActivityFollow, ActivityAccept, ActivityAnnounce,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		got := ActivityIRI(testBase, k, id)
		want := testBase + "/" + string(k) + "/" + id.String()
		if got != want {
			t.Errorf("ActivityIRI(%v) = %q, want %q", k, got, want)
		}
		seen[got] = true
	}
	if len(seen) != len(kinds) {
		t.Errorf("expected every activity kind to produce a distinct IRI for the same id")
	}
}

func TestActivityIRIIsStableAcrossCalls(t *testing.T) {
	id := uuid.New()
	first := ActivityIRI(testBase, ActivityUndo, id)
	second := ActivityIRI(testBase, ActivityUndo, id)
	if first != second {
		t.Errorf("expected ActivityIRI to be a pure function of its inputs, got %q then %q", first, second)
	}
}
