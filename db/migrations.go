package db

import (
	"database/sql"
	"log"
)

// Schema for the federation engine (§3). Tables are created with
// CREATE TABLE IF NOT EXISTS so RunMigrations is safe to call on every
// startup, following the predecessor service's migration convention.
const (
	sqlCreatePersonsTable = `CREATE TABLE IF NOT EXISTS persons(
		id TEXT NOT NULL PRIMARY KEY,
		local INTEGER NOT NULL DEFAULT 0,
		username TEXT,
		public_key_hash TEXT,
		display_name TEXT,
		summary TEXT,
		avatar_url TEXT,
		is_admin INTEGER DEFAULT 0,
		muted INTEGER DEFAULT 0,
		private_key_pem TEXT,
		public_key_pem TEXT,
		ap_id TEXT UNIQUE,
		domain TEXT,
		inbox_uri TEXT,
		shared_inbox_uri TEXT,
		last_fetched_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	sqlCreatePersonsIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_username_local ON persons(username) WHERE local = 1;
		CREATE INDEX IF NOT EXISTS idx_persons_ap_id ON persons(ap_id);
		CREATE INDEX IF NOT EXISTS idx_persons_domain ON persons(domain);
	`

	sqlCreateCommunitiesTable = `CREATE TABLE IF NOT EXISTS communities(
		id TEXT NOT NULL PRIMARY KEY,
		local INTEGER NOT NULL DEFAULT 0,
		name TEXT,
		display_name TEXT,
		summary TEXT,
		private_key_pem TEXT,
		public_key_pem TEXT,
		ap_id TEXT UNIQUE,
		domain TEXT,
		inbox_uri TEXT,
		shared_inbox_uri TEXT,
		last_fetched_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	sqlCreateCommunitiesIndices = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_communities_name_local ON communities(name) WHERE local = 1;
		CREATE INDEX IF NOT EXISTS idx_communities_ap_id ON communities(ap_id);
	`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts(
		id TEXT NOT NULL PRIMARY KEY,
		community_id TEXT NOT NULL,
		author_id TEXT,
		title TEXT,
		href TEXT,
		content_text TEXT,
		content_markdown TEXT,
		content_html TEXT,
		local INTEGER NOT NULL DEFAULT 0,
		ap_id TEXT UNIQUE,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		edited_at TIMESTAMP
	)`
	sqlCreatePostsIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_community_id ON posts(community_id);
		CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);
		CREATE INDEX IF NOT EXISTS idx_posts_ap_id ON posts(ap_id);
	`

	sqlCreateRepliesTable = `CREATE TABLE IF NOT EXISTS replies(
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL,
		parent_id TEXT,
		author_id TEXT,
		content TEXT,
		local INTEGER NOT NULL DEFAULT 0,
		ap_id TEXT UNIQUE,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		edited_at TIMESTAMP
	)`
	sqlCreateRepliesIndices = `
		CREATE INDEX IF NOT EXISTS idx_replies_post_id ON replies(post_id);
		CREATE INDEX IF NOT EXISTS idx_replies_parent_id ON replies(parent_id);
		CREATE INDEX IF NOT EXISTS idx_replies_ap_id ON replies(ap_id);
	`

	sqlCreateCommunityFollowsTable = `CREATE TABLE IF NOT EXISTS community_follows(
		id TEXT NOT NULL PRIMARY KEY,
		community_id TEXT NOT NULL,
		follower_id TEXT NOT NULL,
		accepted INTEGER NOT NULL DEFAULT 0,
		is_local INTEGER NOT NULL DEFAULT 0,
		ap_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(community_id, follower_id)
	)`
	sqlCreateCommunityFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_community_follows_community_id ON community_follows(community_id);
		CREATE INDEX IF NOT EXISTS idx_community_follows_follower_id ON community_follows(follower_id);
	`

	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes(
		id TEXT NOT NULL PRIMARY KEY,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		local INTEGER NOT NULL DEFAULT 0,
		ap_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(target_type, target_id, person_id)
	)`
	sqlCreateLikesIndices = `
		CREATE INDEX IF NOT EXISTS idx_likes_target ON likes(target_type, target_id);
	`

	sqlCreateLocalLikeUndosTable = `CREATE TABLE IF NOT EXISTS local_like_undos(
		id TEXT NOT NULL PRIMARY KEY,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		person_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(target_type, target_id, person_id)
	)`

	sqlCreateTasksTable = `CREATE TABLE IF NOT EXISTS tasks(
		id TEXT NOT NULL PRIMARY KEY,
		kind TEXT NOT NULL,
		params TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 8,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		not_before TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		latest_err TEXT
	)`
	sqlCreateTasksIndices = `
		CREATE INDEX IF NOT EXISTS idx_tasks_not_before ON tasks(not_before, created_at);
	`

	sqlCreateNotificationsTable = `CREATE TABLE IF NOT EXISTS notifications(
		id TEXT NOT NULL PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		notification_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_username TEXT,
		actor_domain TEXT,
		post_id TEXT NOT NULL,
		reply_id TEXT NOT NULL,
		reply_preview TEXT,
		read INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	sqlCreateNotificationsIndices = `
		CREATE INDEX IF NOT EXISTS idx_notifications_recipient_id ON notifications(recipient_id);
	`

	// SeenActivity is the dedup gate of §4.5 step 2; ap_id is the primary
	// key so INSERT OR IGNORE / UNIQUE-violation is itself the dedup check.
	sqlCreateSeenActivitiesTable = `CREATE TABLE IF NOT EXISTS seen_activities(
		ap_id TEXT NOT NULL PRIMARY KEY,
		received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
)

// RunMigrations creates every table the federation engine needs. Called
// from app.Initialize() before the HTTP and SSH listeners start, exactly as
// the predecessor service ran its own ActivityPub migrations first.
func (db *DB) RunMigrations() error {
	log.Println("Running federation engine migrations...")
	return db.wrapTransaction(func(tx *sql.Tx) error {
		statements := []string{
			sqlCreatePersonsTable,
			sqlCreatePersonsIndices,
			sqlCreateCommunitiesTable,
			sqlCreateCommunitiesIndices,
			sqlCreatePostsTable,
			sqlCreatePostsIndices,
			sqlCreateRepliesTable,
			sqlCreateRepliesIndices,
			sqlCreateCommunityFollowsTable,
			sqlCreateCommunityFollowsIndices,
			sqlCreateLikesTable,
			sqlCreateLikesIndices,
			sqlCreateLocalLikeUndosTable,
			sqlCreateTasksTable,
			sqlCreateTasksIndices,
			sqlCreateNotificationsTable,
			sqlCreateNotificationsIndices,
			sqlCreateSeenActivitiesTable,
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
