package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection pool. Reused verbatim from the
// predecessor service: one process, one *sql.DB, one busy-retry wrapper
// around every multi-statement mutation.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

// GetDB returns the process-wide database handle, opening and migrating it
// on first call.
func GetDB() *DB {
	dbOnce.Do(func() {
		dsn := util.ResolveFilePath("database.db")
		log.Printf("Using database at: %s", dsn)

		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			panic(err)
		}

		sqlDB.SetMaxOpenConns(16)
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetConnMaxLifetime(time.Hour)

		var journalMode string
		err = sqlDB.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
		if err != nil || journalMode == "delete" {
			err = sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
			if err != nil {
				log.Printf("Warning: failed to enable WAL mode: %v", err)
			} else {
				log.Printf("database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
			}
		} else {
			log.Printf("database journal mode: %s", journalMode)
		}

		sqlDB.Exec("PRAGMA synchronous = NORMAL")
		sqlDB.Exec("PRAGMA cache_size = -64000")
		sqlDB.Exec("PRAGMA temp_store = MEMORY")
		sqlDB.Exec("PRAGMA busy_timeout = 5000")
		sqlDB.Exec("PRAGMA foreign_keys = ON")
		sqlDB.Exec("PRAGMA auto_vacuum = INCREMENTAL")

		dbInstance = &DB{db: sqlDB}

		if err := dbInstance.RunMigrations(); err != nil {
			panic(err)
		}
	})
	return dbInstance
}

// wrapTransaction runs f inside a transaction, retrying on SQLITE_BUSY.
// Reused verbatim from the predecessor service: SQLite has no
// `SELECT ... FOR UPDATE SKIP LOCKED`, so every multi-statement mutation
// (including task claiming, §4.6) serializes through this retry loop
// instead.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			_ = tx.Rollback()
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		return nil
	}
}

// parseTimestamp parses a timestamp string from SQLite, handling both ISO
// 8601 and space-separated formats. Reused verbatim from the predecessor
// service.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z")
		s = strings.Replace(s, "T", " ", 1)
	}
	return time.ParseInLocation("2006-01-02 15:04:05", s, time.Local)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---------------------------------------------------------------------
// Person
// ---------------------------------------------------------------------

const (
	sqlInsertPerson = `INSERT INTO persons(id, local, username, public_key_hash, display_name, summary, avatar_url, is_admin, muted, private_key_pem, public_key_pem, ap_id, domain, inbox_uri, shared_inbox_uri, last_fetched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlPersonColumns          = `id, local, username, public_key_hash, display_name, summary, avatar_url, is_admin, muted, private_key_pem, public_key_pem, ap_id, domain, inbox_uri, shared_inbox_uri, last_fetched_at, created_at`
	sqlSelectPersonByUsername = `SELECT ` + sqlPersonColumns + ` FROM persons WHERE username = ? AND local = 1`
	sqlSelectPersonById       = `SELECT ` + sqlPersonColumns + ` FROM persons WHERE id = ?`
	sqlSelectPersonByAPId     = `SELECT ` + sqlPersonColumns + ` FROM persons WHERE ap_id = ?`
	sqlUpdatePerson           = `UPDATE persons SET display_name=?, summary=?, avatar_url=?, public_key_pem=?, inbox_uri=?, shared_inbox_uri=?, last_fetched_at=? WHERE id=?`
)

func scanPerson(row interface{ Scan(...any) error }) (*domain.Person, error) {
	var p domain.Person
	var idStr string
	var localInt, isAdminInt, mutedInt int
	var username, pkHash, displayName, summary, avatarURL, privKey, pubKey, apID, dom, inbox, sharedInbox sql.NullString
	var lastFetched sql.NullString
	var createdAt string

	err := row.Scan(&idStr, &localInt, &username, &pkHash, &displayName, &summary, &avatarURL,
		&isAdminInt, &mutedInt, &privKey, &pubKey, &apID, &dom, &inbox, &sharedInbox, &lastFetched, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Id, _ = uuid.Parse(idStr)
	p.Local = localInt == 1
	p.Username = username.String
	p.PublicKeyHash = pkHash.String
	p.DisplayName = displayName.String
	p.Summary = summary.String
	p.AvatarURL = avatarURL.String
	p.IsAdmin = isAdminInt == 1
	p.Muted = mutedInt == 1
	p.PrivateKeyPem = privKey.String
	p.PublicKeyPem = pubKey.String
	p.APId = apID.String
	p.Domain = dom.String
	p.InboxURI = inbox.String
	p.SharedInboxURI = sharedInbox.String
	if lastFetched.Valid {
		if t, err := parseTimestamp(lastFetched.String); err == nil {
			p.LastFetchedAt = t
		}
	}
	if t, err := parseTimestamp(createdAt); err == nil {
		p.CreatedAt = t
	}
	return &p, nil
}

func (db *DB) CreateLocalPerson(p *domain.Person) error {
	p.Local = true
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPerson, p.Id.String(), 1, p.Username, p.PublicKeyHash, p.DisplayName, p.Summary,
			p.AvatarURL, boolToInt(p.IsAdmin), boolToInt(p.Muted), p.PrivateKeyPem, p.PublicKeyPem,
			nullIfEmpty(p.APId), nullIfEmpty(p.Domain), nullIfEmpty(p.InboxURI), nullIfEmpty(p.SharedInboxURI),
			nullTime(p.LastFetchedAt), p.CreatedAt)
		return err
	})
}

// UpsertRemotePerson inserts or refreshes a cached remote actor, keyed by
// ap_id, following the fetcher's freshness contract (§4.3).
func (db *DB) UpsertRemotePerson(p *domain.Person) error {
	p.Local = false
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var existingId string
		err := tx.QueryRow(`SELECT id FROM persons WHERE ap_id = ?`, p.APId).Scan(&existingId)
		if err == sql.ErrNoRows {
			if p.Id == uuid.Nil {
				p.Id = uuid.New()
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = time.Now()
			}
			_, err = tx.Exec(sqlInsertPerson, p.Id.String(), 0, nullIfEmpty(p.Username), nil, p.DisplayName, p.Summary,
				p.AvatarURL, 0, 0, nil, p.PublicKeyPem, p.APId, p.Domain, p.InboxURI, nullIfEmpty(p.SharedInboxURI),
				time.Now(), p.CreatedAt)
			return err
		}
		if err != nil {
			return err
		}
		p.Id, _ = uuid.Parse(existingId)
		_, err = tx.Exec(sqlUpdatePerson, p.DisplayName, p.Summary, p.AvatarURL, p.PublicKeyPem, p.InboxURI,
			nullIfEmpty(p.SharedInboxURI), time.Now(), existingId)
		return err
	})
}

func (db *DB) ReadPersonByUsername(username string) (error, *domain.Person) {
	p, err := scanPerson(db.db.QueryRow(sqlSelectPersonByUsername, username))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, p
}

func (db *DB) ReadPersonById(id uuid.UUID) (error, *domain.Person) {
	p, err := scanPerson(db.db.QueryRow(sqlSelectPersonById, id.String()))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, p
}

func (db *DB) ReadPersonByAPId(apId string) (error, *domain.Person) {
	p, err := scanPerson(db.db.QueryRow(sqlSelectPersonByAPId, apId))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, p
}

// ---------------------------------------------------------------------
// Community
// ---------------------------------------------------------------------

const (
	sqlInsertCommunity = `INSERT INTO communities(id, local, name, display_name, summary, private_key_pem, public_key_pem, ap_id, domain, inbox_uri, shared_inbox_uri, last_fetched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlCommunityColumns       = `id, local, name, display_name, summary, private_key_pem, public_key_pem, ap_id, domain, inbox_uri, shared_inbox_uri, last_fetched_at, created_at`
	sqlSelectCommunityByName  = `SELECT ` + sqlCommunityColumns + ` FROM communities WHERE name = ? AND local = 1`
	sqlSelectCommunityById    = `SELECT ` + sqlCommunityColumns + ` FROM communities WHERE id = ?`
	sqlSelectCommunityByAPId  = `SELECT ` + sqlCommunityColumns + ` FROM communities WHERE ap_id = ?`
	sqlUpdateCommunityFetched = `UPDATE communities SET display_name=?, summary=?, public_key_pem=?, inbox_uri=?, shared_inbox_uri=?, last_fetched_at=? WHERE id=?`
)

// scanCommunity scans one row of sqlCommunityColumns into a domain.Community.
// extra accepts additional Scan destinations for queries that append columns
// past sqlCommunityColumns (e.g. sqlSelectLocalCommunityFollowerCounts's
// trailing follower-count subquery), scanned in the same Scan call since a
// database/sql Row can only be scanned once.
func scanCommunity(row interface{ Scan(...any) error }, extra ...any) (*domain.Community, error) {
	var c domain.Community
	var idStr string
	var localInt int
	var name, displayName, summary, privKey, pubKey, apID, dom, inbox, sharedInbox sql.NullString
	var lastFetched sql.NullString
	var createdAt string

	dest := []any{&idStr, &localInt, &name, &displayName, &summary, &privKey, &pubKey, &apID, &dom, &inbox, &sharedInbox, &lastFetched, &createdAt}
	dest = append(dest, extra...)
	err := row.Scan(dest...)
	if err != nil {
		return nil, err
	}
	c.Id, _ = uuid.Parse(idStr)
	c.Local = localInt == 1
	c.Name = name.String
	c.DisplayName = displayName.String
	c.Summary = summary.String
	c.PrivateKeyPem = privKey.String
	c.PublicKeyPem = pubKey.String
	c.APId = apID.String
	c.Domain = dom.String
	c.InboxURI = inbox.String
	c.SharedInboxURI = sharedInbox.String
	if lastFetched.Valid {
		if t, err := parseTimestamp(lastFetched.String); err == nil {
			c.LastFetchedAt = t
		}
	}
	if t, err := parseTimestamp(createdAt); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}

func (db *DB) CreateLocalCommunity(c *domain.Community) error {
	c.Local = true
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertCommunity, c.Id.String(), 1, c.Name, c.DisplayName, c.Summary, c.PrivateKeyPem,
			c.PublicKeyPem, nil, nil, nil, nil, nil, c.CreatedAt)
		return err
	})
}

func (db *DB) UpsertRemoteCommunity(c *domain.Community) error {
	c.Local = false
	return db.wrapTransaction(func(tx *sql.Tx) error {
		var existingId string
		err := tx.QueryRow(`SELECT id FROM communities WHERE ap_id = ?`, c.APId).Scan(&existingId)
		if err == sql.ErrNoRows {
			if c.Id == uuid.Nil {
				c.Id = uuid.New()
			}
			if c.CreatedAt.IsZero() {
				c.CreatedAt = time.Now()
			}
			_, err = tx.Exec(sqlInsertCommunity, c.Id.String(), 0, nullIfEmpty(c.Name), c.DisplayName, c.Summary,
				nil, c.PublicKeyPem, c.APId, c.Domain, c.InboxURI, nullIfEmpty(c.SharedInboxURI), time.Now(), c.CreatedAt)
			return err
		}
		if err != nil {
			return err
		}
		c.Id, _ = uuid.Parse(existingId)
		_, err = tx.Exec(sqlUpdateCommunityFetched, c.DisplayName, c.Summary, c.PublicKeyPem, c.InboxURI,
			nullIfEmpty(c.SharedInboxURI), time.Now(), existingId)
		return err
	})
}

func (db *DB) ReadCommunityByName(name string) (error, *domain.Community) {
	c, err := scanCommunity(db.db.QueryRow(sqlSelectCommunityByName, name))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, c
}

func (db *DB) ReadCommunityById(id uuid.UUID) (error, *domain.Community) {
	c, err := scanCommunity(db.db.QueryRow(sqlSelectCommunityById, id.String()))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, c
}

func (db *DB) ReadCommunityByAPId(apId string) (error, *domain.Community) {
	c, err := scanCommunity(db.db.QueryRow(sqlSelectCommunityByAPId, apId))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, c
}

const sqlSelectAllLocalCommunities = `SELECT ` + sqlCommunityColumns + ` FROM communities WHERE local = 1 ORDER BY name ASC`

// ReadAllLocalCommunities lists every locally-hosted community, for the
// web UI's index page.
func (db *DB) ReadAllLocalCommunities() (error, *[]domain.Community) {
	rows, err := db.db.Query(sqlSelectAllLocalCommunities)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var out []domain.Community
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return err, &out
		}
		out = append(out, *c)
	}
	return rows.Err(), &out
}

// ---------------------------------------------------------------------
// Post
// ---------------------------------------------------------------------

const (
	sqlInsertPost = `INSERT INTO posts(id, community_id, author_id, title, href, content_text, content_markdown, content_html, local, ap_id, deleted, created_at, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlPostColumns            = `id, community_id, author_id, title, href, content_text, content_markdown, content_html, local, ap_id, deleted, created_at, edited_at`
	sqlSelectPostById         = `SELECT ` + sqlPostColumns + ` FROM posts WHERE id = ?`
	sqlSelectPostByAP         = `SELECT ` + sqlPostColumns + ` FROM posts WHERE ap_id = ?`
	sqlSoftDeletePost         = `UPDATE posts SET deleted=1, title=NULL, href=NULL, content_text=NULL, content_markdown=NULL, content_html=NULL WHERE id=?`
	sqlSelectPostsByCommunity = `SELECT ` + sqlPostColumns + ` FROM posts WHERE community_id = ? AND deleted = 0 ORDER BY created_at DESC LIMIT ?`
)

func scanPost(row interface{ Scan(...any) error }) (*domain.Post, error) {
	var p domain.Post
	var idStr, communityIdStr string
	var authorIdStr sql.NullString
	var title, href, contentText, contentMd, contentHTML, apID sql.NullString
	var localInt, deletedInt int
	var createdAt string
	var editedAt sql.NullString

	err := row.Scan(&idStr, &communityIdStr, &authorIdStr, &title, &href, &contentText, &contentMd, &contentHTML,
		&localInt, &apID, &deletedInt, &createdAt, &editedAt)
	if err != nil {
		return nil, err
	}
	p.Id, _ = uuid.Parse(idStr)
	p.CommunityId, _ = uuid.Parse(communityIdStr)
	if authorIdStr.Valid {
		if aid, err := uuid.Parse(authorIdStr.String); err == nil {
			p.AuthorId = uuid.NullUUID{UUID: aid, Valid: true}
		}
	}
	p.Title = title.String
	p.Href = href.String
	p.ContentText = contentText.String
	p.ContentMarkdown = contentMd.String
	p.ContentHTML = contentHTML.String
	p.Local = localInt == 1
	p.APId = apID.String
	p.Deleted = deletedInt == 1
	if t, err := parseTimestamp(createdAt); err == nil {
		p.CreatedAt = t
	}
	if editedAt.Valid {
		if t, err := parseTimestamp(editedAt.String); err == nil {
			p.EditedAt = &t
		}
	}
	return &p, nil
}

func (db *DB) CreatePost(p *domain.Post) error {
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPost, p.Id.String(), p.CommunityId.String(), nullUUID(p.AuthorId), p.Title,
			nullIfEmpty(p.Href), nullIfEmpty(p.ContentText), nullIfEmpty(p.ContentMarkdown), nullIfEmpty(p.ContentHTML),
			boolToInt(p.Local), nullIfEmpty(p.APId), 0, p.CreatedAt, nil)
		return err
	})
}

// UpsertRemotePost inserts a remote post keyed by ap_id, a no-op if it
// already exists (idempotent per §4.5).
func (db *DB) UpsertRemotePost(p *domain.Post) (error, *domain.Post) {
	existingErr, existing := db.ReadPostByAPId(p.APId)
	if existingErr == nil && existing != nil {
		return nil, existing
	}
	p.Local = false
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertPost, p.Id.String(), p.CommunityId.String(), nullUUID(p.AuthorId), p.Title,
			nullIfEmpty(p.Href), nullIfEmpty(p.ContentText), nullIfEmpty(p.ContentMarkdown), nullIfEmpty(p.ContentHTML),
			0, p.APId, 0, p.CreatedAt, nil)
		return err
	})
	if isUniqueViolation(err) {
		// lost the race with a concurrent insert; re-read
		existingErr, existing = db.ReadPostByAPId(p.APId)
		return existingErr, existing
	}
	return err, p
}

func (db *DB) ReadPostById(id uuid.UUID) (error, *domain.Post) {
	p, err := scanPost(db.db.QueryRow(sqlSelectPostById, id.String()))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, p
}

func (db *DB) ReadPostByAPId(apId string) (error, *domain.Post) {
	p, err := scanPost(db.db.QueryRow(sqlSelectPostByAP, apId))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, p
}

func (db *DB) ReadPostsByCommunity(communityId uuid.UUID, limit int) (error, *[]domain.Post) {
	rows, err := db.db.Query(sqlSelectPostsByCommunity, communityId.String(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return err, &posts
		}
		posts = append(posts, *p)
	}
	return rows.Err(), &posts
}

// SoftDeletePost tombstones a post: payload nulled, row retained so
// replies and likes keep a valid foreign key (§3).
func (db *DB) SoftDeletePost(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSoftDeletePost, id.String())
		return err
	})
}

// ---------------------------------------------------------------------
// Reply
// ---------------------------------------------------------------------

const (
	sqlInsertReply = `INSERT INTO replies(id, post_id, parent_id, author_id, content, local, ap_id, deleted, created_at, edited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlReplyColumns    = `id, post_id, parent_id, author_id, content, local, ap_id, deleted, created_at, edited_at`
	sqlSelectReplyById = `SELECT ` + sqlReplyColumns + ` FROM replies WHERE id = ?`
	sqlSelectReplyByAP = `SELECT ` + sqlReplyColumns + ` FROM replies WHERE ap_id = ?`
	sqlSoftDeleteReply = `UPDATE replies SET deleted=1, content=NULL WHERE id=?`
)

func scanReply(row interface{ Scan(...any) error }) (*domain.Reply, error) {
	var r domain.Reply
	var idStr, postIdStr string
	var parentIdStr, authorIdStr, content, apID sql.NullString
	var localInt, deletedInt int
	var createdAt string
	var editedAt sql.NullString

	err := row.Scan(&idStr, &postIdStr, &parentIdStr, &authorIdStr, &content, &localInt, &apID, &deletedInt, &createdAt, &editedAt)
	if err != nil {
		return nil, err
	}
	r.Id, _ = uuid.Parse(idStr)
	r.PostId, _ = uuid.Parse(postIdStr)
	if parentIdStr.Valid {
		if pid, err := uuid.Parse(parentIdStr.String); err == nil {
			r.ParentId = uuid.NullUUID{UUID: pid, Valid: true}
		}
	}
	if authorIdStr.Valid {
		if aid, err := uuid.Parse(authorIdStr.String); err == nil {
			r.AuthorId = uuid.NullUUID{UUID: aid, Valid: true}
		}
	}
	r.Content = content.String
	r.Local = localInt == 1
	r.APId = apID.String
	r.Deleted = deletedInt == 1
	if t, err := parseTimestamp(createdAt); err == nil {
		r.CreatedAt = t
	}
	if editedAt.Valid {
		if t, err := parseTimestamp(editedAt.String); err == nil {
			r.EditedAt = &t
		}
	}
	return &r, nil
}

func (db *DB) CreateReply(r *domain.Reply) error {
	if r.Id == uuid.Nil {
		r.Id = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertReply, r.Id.String(), r.PostId.String(), nullUUID(r.ParentId), nullUUID(r.AuthorId),
			r.Content, boolToInt(r.Local), nullIfEmpty(r.APId), 0, r.CreatedAt, nil)
		return err
	})
}

// UpsertRemoteReply inserts a remote reply keyed by ap_id, idempotent.
func (db *DB) UpsertRemoteReply(r *domain.Reply) (error, *domain.Reply) {
	existingErr, existing := db.ReadReplyByAPId(r.APId)
	if existingErr == nil && existing != nil {
		return nil, existing
	}
	r.Local = false
	if r.Id == uuid.Nil {
		r.Id = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertReply, r.Id.String(), r.PostId.String(), nullUUID(r.ParentId), nullUUID(r.AuthorId),
			r.Content, 0, r.APId, 0, r.CreatedAt, nil)
		return err
	})
	if isUniqueViolation(err) {
		existingErr, existing = db.ReadReplyByAPId(r.APId)
		return existingErr, existing
	}
	return err, r
}

func (db *DB) ReadReplyById(id uuid.UUID) (error, *domain.Reply) {
	r, err := scanReply(db.db.QueryRow(sqlSelectReplyById, id.String()))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, r
}

func (db *DB) ReadReplyByAPId(apId string) (error, *domain.Reply) {
	r, err := scanReply(db.db.QueryRow(sqlSelectReplyByAP, apId))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, r
}

const sqlSelectRepliesByPost = `SELECT ` + sqlReplyColumns + ` FROM replies WHERE post_id = ? AND deleted = 0 ORDER BY created_at ASC`

// ReadRepliesByPost lists every (non-deleted) reply under a Post, for the
// web UI's single-post page. Nesting under ParentId is left to the caller.
func (db *DB) ReadRepliesByPost(postId uuid.UUID) (error, *[]domain.Reply) {
	rows, err := db.db.Query(sqlSelectRepliesByPost, postId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var out []domain.Reply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return err, &out
		}
		out = append(out, *r)
	}
	return rows.Err(), &out
}

func (db *DB) SoftDeleteReply(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlSoftDeleteReply, id.String())
		return err
	})
}

// ---------------------------------------------------------------------
// CommunityFollow
// ---------------------------------------------------------------------

const (
	sqlInsertCommunityFollow = `INSERT INTO community_follows(id, community_id, follower_id, accepted, is_local, ap_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlCommunityFollowColumns      = `id, community_id, follower_id, accepted, is_local, ap_id, created_at`
	sqlSelectCommunityFollow       = `SELECT ` + sqlCommunityFollowColumns + ` FROM community_follows WHERE community_id = ? AND follower_id = ?`
	sqlSelectCommunityFollowByAPId = `SELECT ` + sqlCommunityFollowColumns + ` FROM community_follows WHERE ap_id = ?`
	sqlAcceptCommunityFollow       = `UPDATE community_follows SET accepted = 1 WHERE id = ?`
	sqlDeleteCommunityFollow       = `DELETE FROM community_follows WHERE community_id = ? AND follower_id = ?`
	// Shared-inbox coalescing (§4.7): group accepted followers of a local
	// community by COALESCE(shared_inbox, inbox) so each remote host gets
	// one delivery.
	sqlSelectFollowerInboxesForFanout = `
		SELECT COALESCE(p.shared_inbox_uri, p.inbox_uri) AS dest, MIN(p.domain) AS domain
		FROM community_follows cf
		JOIN persons p ON p.id = cf.follower_id
		WHERE cf.community_id = ? AND cf.accepted = 1 AND cf.is_local = 0
		GROUP BY dest
	`
)

func scanCommunityFollow(row interface{ Scan(...any) error }) (*domain.CommunityFollow, error) {
	var f domain.CommunityFollow
	var idStr, communityIdStr, followerIdStr string
	var acceptedInt, isLocalInt int
	var apID sql.NullString
	var createdAt string

	err := row.Scan(&idStr, &communityIdStr, &followerIdStr, &acceptedInt, &isLocalInt, &apID, &createdAt)
	if err != nil {
		return nil, err
	}
	f.Id, _ = uuid.Parse(idStr)
	f.CommunityId, _ = uuid.Parse(communityIdStr)
	f.FollowerId, _ = uuid.Parse(followerIdStr)
	f.Accepted = acceptedInt == 1
	f.IsLocal = isLocalInt == 1
	f.APId = apID.String
	if t, err := parseTimestamp(createdAt); err == nil {
		f.CreatedAt = t
	}
	return &f, nil
}

// CreateCommunityFollow inserts a follow; a unique-violation on the
// (community, follower) pair is treated as success (§7) since the effect is
// idempotent.
func (db *DB) CreateCommunityFollow(f *domain.CommunityFollow) error {
	if f.Id == uuid.Nil {
		f.Id = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertCommunityFollow, f.Id.String(), f.CommunityId.String(), f.FollowerId.String(),
			boolToInt(f.Accepted), boolToInt(f.IsLocal), nullIfEmpty(f.APId), f.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (db *DB) ReadCommunityFollow(communityId, followerId uuid.UUID) (error, *domain.CommunityFollow) {
	f, err := scanCommunityFollow(db.db.QueryRow(sqlSelectCommunityFollow, communityId.String(), followerId.String()))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, f
}

func (db *DB) ReadCommunityFollowByAPId(apId string) (error, *domain.CommunityFollow) {
	f, err := scanCommunityFollow(db.db.QueryRow(sqlSelectCommunityFollowByAPId, apId))
	if err == sql.ErrNoRows {
		return err, nil
	}
	return err, f
}

func (db *DB) AcceptCommunityFollow(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcceptCommunityFollow, id.String())
		return err
	})
}

func (db *DB) DeleteCommunityFollow(communityId, followerId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteCommunityFollow, communityId.String(), followerId.String())
		return err
	})
}

// ReadCommunityFollowers returns every accepted follower of a community,
// for OrderedCollection/OrderedCollectionPage rendering (Open Question c).
func (db *DB) ReadCommunityFollowers(communityId uuid.UUID) (error, *[]domain.CommunityFollow) {
	rows, err := db.db.Query(`SELECT `+sqlCommunityFollowColumns+` FROM community_follows WHERE community_id = ? AND accepted = 1`, communityId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var follows []domain.CommunityFollow
	for rows.Next() {
		f, err := scanCommunityFollow(rows)
		if err != nil {
			return err, &follows
		}
		follows = append(follows, *f)
	}
	return rows.Err(), &follows
}

// FanoutDestination is one coalesced delivery target produced by grouping a
// community's followers by shared inbox (shared-inbox coalescing for fanout).
type FanoutDestination struct {
	InboxURL string
	Domain   string
}

// ReadFanoutDestinations returns the coalesced set of remote delivery
// targets for a local community's followers, excluding a given host (used
// when forwarding an inbound activity back out, so the original sender
// isn't re-delivered to).
func (db *DB) ReadFanoutDestinations(communityId uuid.UUID, excludeHost string) (error, *[]FanoutDestination) {
	rows, err := db.db.Query(sqlSelectFollowerInboxesForFanout, communityId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var dests []FanoutDestination
	for rows.Next() {
		var dest, dom sql.NullString
		if err := rows.Scan(&dest, &dom); err != nil {
			return err, &dests
		}
		if !dest.Valid || dest.String == "" {
			continue
		}
		if excludeHost != "" && dom.Valid && dom.String == excludeHost {
			continue
		}
		dests = append(dests, FanoutDestination{InboxURL: dest.String, Domain: dom.String})
	}
	return rows.Err(), &dests
}

// ---------------------------------------------------------------------
// Like / LocalLikeUndo
// ---------------------------------------------------------------------

const (
	sqlInsertLike = `INSERT INTO likes(id, target_type, target_id, person_id, local, ap_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectLike = `SELECT id, target_type, target_id, person_id, local, ap_id, created_at FROM likes WHERE target_type = ? AND target_id = ? AND person_id = ?`
	sqlDeleteLike = `DELETE FROM likes WHERE target_type = ? AND target_id = ? AND person_id = ?`

	sqlInsertLocalLikeUndo = `INSERT INTO local_like_undos(id, target_type, target_id, person_id, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectLocalLikeUndo = `SELECT id FROM local_like_undos WHERE target_type = ? AND target_id = ? AND person_id = ?`
)

// CreateLike inserts a like; a unique-violation on (target, person) is
// treated as success (§7).
func (db *DB) CreateLike(l *domain.Like) error {
	if l.Id == uuid.Nil {
		l.Id = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertLike, l.Id.String(), string(l.TargetType), l.TargetId.String(), l.PersonId.String(),
			boolToInt(l.Local), nullIfEmpty(l.APId), l.CreatedAt)
		return err
	})
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (db *DB) ReadLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, *domain.Like) {
	row := db.db.QueryRow(sqlSelectLike, string(targetType), targetId.String(), personId.String())
	var l domain.Like
	var idStr, targetIdStr, personIdStr, targetTypeStr string
	var localInt int
	var apID sql.NullString
	var createdAt string
	err := row.Scan(&idStr, &targetTypeStr, &targetIdStr, &personIdStr, &localInt, &apID, &createdAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	l.Id, _ = uuid.Parse(idStr)
	l.TargetType = domain.LikeTargetType(targetTypeStr)
	l.TargetId, _ = uuid.Parse(targetIdStr)
	l.PersonId, _ = uuid.Parse(personIdStr)
	l.Local = localInt == 1
	l.APId = apID.String
	if t, err := parseTimestamp(createdAt); err == nil {
		l.CreatedAt = t
	}
	return nil, &l
}

func (db *DB) DeleteLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteLike, string(targetType), targetId.String(), personId.String())
		return err
	})
}

// GetOrCreateLocalLikeUndo returns the stable Undo id for removing a local
// like, creating it on first call and reusing it on every retry (§3, §4.4).
func (db *DB) GetOrCreateLocalLikeUndo(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, uuid.UUID) {
	var existing string
	err := db.db.QueryRow(sqlSelectLocalLikeUndo, string(targetType), targetId.String(), personId.String()).Scan(&existing)
	if err == nil {
		id, _ := uuid.Parse(existing)
		return nil, id
	}
	if err != sql.ErrNoRows {
		return err, uuid.Nil
	}
	newId := uuid.New()
	txErr := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertLocalLikeUndo, newId.String(), string(targetType), targetId.String(), personId.String(), time.Now())
		return err
	})
	if isUniqueViolation(txErr) {
		// lost the race; re-read
		err = db.db.QueryRow(sqlSelectLocalLikeUndo, string(targetType), targetId.String(), personId.String()).Scan(&existing)
		if err != nil {
			return err, uuid.Nil
		}
		id, _ := uuid.Parse(existing)
		return nil, id
	}
	if txErr != nil {
		return txErr, uuid.Nil
	}
	return nil, newId
}

// ---------------------------------------------------------------------
// Task (outbound delivery queue, §4.6)
// ---------------------------------------------------------------------

const (
	sqlInsertTask      = `INSERT INTO tasks(id, kind, params, attempts, max_attempts, created_at, not_before, latest_err) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	sqlClaimTasks      = `SELECT id, kind, params, attempts, max_attempts, created_at, not_before, latest_err FROM tasks WHERE not_before <= ? ORDER BY not_before ASC, created_at ASC LIMIT ?`
	sqlUpdateTaskRetry = `UPDATE tasks SET attempts = ?, not_before = ?, latest_err = ? WHERE id = ?`
	sqlDeleteTask      = `DELETE FROM tasks WHERE id = ?`
)

func (db *DB) EnqueueTask(t *domain.Task) error {
	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.NotBefore.IsZero() {
		t.NotBefore = t.CreatedAt
	}
	if t.MaxAttempts == 0 {
		t.MaxAttempts = 8
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertTask, t.Id.String(), string(t.Kind), t.Params, t.Attempts, t.MaxAttempts, t.CreatedAt, t.NotBefore, nullIfEmpty(t.LatestErr))
		return err
	})
}

// ClaimTasks returns up to limit tasks eligible to run now, ordered by
// (not_before, created_at), implementing the claim step of §4.6 under
// SQLite's single-writer model via wrapTransaction's busy-retry instead of
// `FOR UPDATE SKIP LOCKED` (see DESIGN.md).
func (db *DB) ClaimTasks(limit int) (error, *[]domain.Task) {
	rows, err := db.db.Query(sqlClaimTasks, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var idStr, kindStr string
		var createdAtStr, notBeforeStr string
		var latestErr sql.NullString
		if err := rows.Scan(&idStr, &kindStr, &t.Params, &t.Attempts, &t.MaxAttempts, &createdAtStr, &notBeforeStr, &latestErr); err != nil {
			return err, &tasks
		}
		t.Id, _ = uuid.Parse(idStr)
		t.Kind = domain.TaskKind(kindStr)
		t.LatestErr = latestErr.String
		if v, err := parseTimestamp(createdAtStr); err == nil {
			t.CreatedAt = v
		}
		if v, err := parseTimestamp(notBeforeStr); err == nil {
			t.NotBefore = v
		}
		tasks = append(tasks, t)
	}
	return rows.Err(), &tasks
}

func (db *DB) UpdateTaskRetry(id uuid.UUID, attempts int, notBefore time.Time, latestErr string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateTaskRetry, attempts, notBefore, latestErr, id.String())
		return err
	})
}

func (db *DB) DeleteTask(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteTask, id.String())
		return err
	})
}

// ---------------------------------------------------------------------
// Notification
// ---------------------------------------------------------------------

const sqlInsertNotification = `INSERT INTO notifications(id, recipient_id, notification_type, actor_id, actor_username, actor_domain, post_id, reply_id, reply_preview, read, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (db *DB) CreateNotification(n *domain.Notification) error {
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertNotification, n.Id.String(), n.RecipientId.String(), string(n.NotificationType),
			n.ActorId.String(), n.ActorUsername, n.ActorDomain, n.PostId.String(), n.ReplyId.String(), n.ReplyPreview,
			boolToInt(n.Read), n.CreatedAt)
		return err
	})
}

func (db *DB) ReadNotificationsByRecipient(recipientId uuid.UUID, limit int) (error, *[]domain.Notification) {
	rows, err := db.db.Query(`SELECT id, recipient_id, notification_type, actor_id, actor_username, actor_domain, post_id, reply_id, reply_preview, read, created_at
		FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC LIMIT ?`, recipientId.String(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var idStr, recipientIdStr, typeStr, actorIdStr, postIdStr, replyIdStr string
		var readInt int
		var createdAt string
		if err := rows.Scan(&idStr, &recipientIdStr, &typeStr, &actorIdStr, &n.ActorUsername, &n.ActorDomain, &postIdStr, &replyIdStr, &n.ReplyPreview, &readInt, &createdAt); err != nil {
			return err, &out
		}
		n.Id, _ = uuid.Parse(idStr)
		n.RecipientId, _ = uuid.Parse(recipientIdStr)
		n.NotificationType = domain.NotificationType(typeStr)
		n.ActorId, _ = uuid.Parse(actorIdStr)
		n.PostId, _ = uuid.Parse(postIdStr)
		n.ReplyId, _ = uuid.Parse(replyIdStr)
		n.Read = readInt == 1
		if t, err := parseTimestamp(createdAt); err == nil {
			n.CreatedAt = t
		}
		out = append(out, n)
	}
	return rows.Err(), &out
}

// ---------------------------------------------------------------------
// SeenActivity (inbound dedup gate, §4.5 step 2)
// ---------------------------------------------------------------------

// MarkActivitySeen attempts to insert the outer activity id into the seen
// set. It returns (true, nil) the first time an id is seen, and (false,
// nil) — never an error — on a replay, so callers can 202-no-op without
// branching on error text (§1 Open Question a; §7: unique-violation on an
// idempotent insert is success).
func (db *DB) MarkActivitySeen(apId string) (bool, error) {
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO seen_activities(ap_id, received_at) VALUES (?, ?)`, apId, time.Now())
		return err
	})
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

// ---------------------------------------------------------------------
// Admin console read models (ui/admin, ui/followers, ui/queue)
// ---------------------------------------------------------------------

const sqlSelectAllLocalPersons = `SELECT ` + sqlPersonColumns + ` FROM persons WHERE local = 1 ORDER BY username ASC`

// ReadAllLocalPersonsAdmin lists every local account for the operator's
// admin screen, ordered alphabetically by username.
func (db *DB) ReadAllLocalPersonsAdmin() (error, *[]domain.Person) {
	rows, err := db.db.Query(sqlSelectAllLocalPersons)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var out []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return err, &out
		}
		out = append(out, *p)
	}
	return rows.Err(), &out
}

// MutePerson silences a local account: future inbound activities from it
// are still accepted (it is not deleted), but it no longer appears as
// active in the admin screen's badge-free state.
func (db *DB) MutePerson(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE persons SET muted = 1 WHERE id = ? AND local = 1`, id.String())
		return err
	})
}

// CommunityFollowerCount pairs a local Community with its accepted
// follower count, local and remote combined, for the operator's
// followers screen (SPEC_FULL.md: "community follower counts").
type CommunityFollowerCount struct {
	Community     domain.Community
	FollowerCount int
}

const sqlSelectLocalCommunityFollowerCounts = `
	SELECT ` + sqlCommunityColumns + `,
		(SELECT COUNT(*) FROM community_follows cf WHERE cf.community_id = communities.id AND cf.accepted = 1)
	FROM communities WHERE local = 1 ORDER BY name ASC`

func (db *DB) ReadLocalCommunityFollowerCounts() (error, *[]CommunityFollowerCount) {
	rows, err := db.db.Query(sqlSelectLocalCommunityFollowerCounts)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var out []CommunityFollowerCount
	for rows.Next() {
		var count int
		c, err := scanCommunity(rows, &count)
		if err != nil {
			return err, &out
		}
		out = append(out, CommunityFollowerCount{Community: *c, FollowerCount: count})
	}
	return rows.Err(), &out
}

// ReadPendingTaskCount reports the current depth of the outbound delivery
// queue (tasks not yet claimed successfully), for the operator's queue
// screen.
func (db *DB) ReadPendingTaskCount() (error, int) {
	var count int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&count)
	return err, count
}

const sqlSelectRecentTasks = `SELECT ` + `id, kind, params, attempts, max_attempts, created_at, not_before, latest_err` + ` FROM tasks ORDER BY created_at DESC LIMIT ?`

// ReadRecentTasks lists the most recently enqueued tasks, regardless of
// whether they are due yet, for display in the operator's queue screen.
func (db *DB) ReadRecentTasks(limit int) (error, *[]domain.Task) {
	rows, err := db.db.Query(sqlSelectRecentTasks, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var tasks []domain.Task
	for rows.Next() {
		var t domain.Task
		var idStr, kindStr string
		var createdAtStr, notBeforeStr string
		var latestErr sql.NullString
		if err := rows.Scan(&idStr, &kindStr, &t.Params, &t.Attempts, &t.MaxAttempts, &createdAtStr, &notBeforeStr, &latestErr); err != nil {
			return err, &tasks
		}
		t.Id, _ = uuid.Parse(idStr)
		t.Kind = domain.TaskKind(kindStr)
		t.LatestErr = latestErr.String
		if v, err := parseTimestamp(createdAtStr); err == nil {
			t.CreatedAt = v
		}
		if v, err := parseTimestamp(notBeforeStr); err == nil {
			t.NotBefore = v
		}
		tasks = append(tasks, t)
	}
	return rows.Err(), &tasks
}

// ReadRecentSeenActivities lists the most recently accepted inbound
// activities for the operator's queue screen's "recent inbound activity"
// panel.
func (db *DB) ReadRecentSeenActivities(limit int) (error, *[]domain.SeenActivity) {
	rows, err := db.db.Query(`SELECT ap_id, received_at FROM seen_activities ORDER BY received_at DESC LIMIT ?`, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	var out []domain.SeenActivity
	for rows.Next() {
		var s domain.SeenActivity
		var receivedAt string
		if err := rows.Scan(&s.APId, &receivedAt); err != nil {
			return err, &out
		}
		if t, err := parseTimestamp(receivedAt); err == nil {
			s.ReceivedAt = t
		}
		out = append(out, s)
	}
	return rows.Err(), &out
}

// CountLocalPersons reports the total number of local accounts, for
// NodeInfo's usage.users.total (web/nodeinfo.go).
func (db *DB) CountLocalPersons() (error, int) {
	var count int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM persons WHERE local = 1`).Scan(&count)
	return err, count
}

// CountActiveLocalPersonsSince reports local accounts with at least one
// local Post or Reply created at or after since, for NodeInfo's
// activeMonth/activeHalfyear buckets.
func (db *DB) CountActiveLocalPersonsSince(since time.Time) (error, int) {
	var count int
	err := db.db.QueryRow(`
		SELECT COUNT(DISTINCT author_id) FROM (
			SELECT author_id, created_at FROM posts WHERE local = 1 AND author_id IS NOT NULL
			UNION ALL
			SELECT author_id, created_at FROM replies WHERE local = 1 AND author_id IS NOT NULL
		) activity WHERE created_at >= ?`, since).Scan(&count)
	return err, count
}

// CountLocalPosts reports the total number of local posts (not tombstoned),
// for NodeInfo's usage.localPosts.
func (db *DB) CountLocalPosts() (error, int) {
	var count int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM posts WHERE local = 1 AND deleted = 0`).Scan(&count)
	return err, count
}

// ---------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullUUID(u uuid.NullUUID) any {
	if !u.Valid {
		return nil
	}
	return u.UUID.String()
}
