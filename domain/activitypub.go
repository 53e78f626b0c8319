package domain

import (
	"time"

	"github.com/google/uuid"
)

// Person is a federated actor: either a local account (username, RSA
// keypair) or a cached remote actor (ap_id, inbox, public key). The two
// halves share one table in storage, distinguished by Local; see db/db.go.
type Person struct {
	Id       uuid.UUID
	Local    bool
	Username string // unique among local persons; informational for remote

	// Local-only fields
	PublicKeyHash string // sha256 of the SSH login pubkey, reused from the predecessor service's login flow
	DisplayName   string
	Summary       string
	AvatarURL     string
	IsAdmin       bool
	Muted         bool
	PrivateKeyPem string // PKCS#8 PEM, present only for local persons

	// Shared
	PublicKeyPem string // PKIX PEM

	// Remote-only fields
	APId           string // canonical actor URL; empty for local persons
	Domain         string
	InboxURI       string
	SharedInboxURI string
	LastFetchedAt  time.Time

	CreatedAt time.Time
}

// Community is a federated forum: either hosted locally (with its own RSA
// keypair and a followers list of Persons) or cached as a remote actor.
type Community struct {
	Id          uuid.UUID
	Local       bool
	Name        string
	DisplayName string
	Summary     string

	PrivateKeyPem string
	PublicKeyPem  string

	APId           string
	Domain         string
	InboxURI       string
	SharedInboxURI string
	LastFetchedAt  time.Time

	CreatedAt time.Time
}

// Post is a top-level submission to a Community: a link (Href), a text
// body, or both. Deleted posts are tombstoned (payload nulled, row
// retained) so replies and likes keep a valid foreign key.
type Post struct {
	Id              uuid.UUID
	CommunityId     uuid.UUID
	AuthorId        uuid.NullUUID // unset once the author's account is gone, never unset on create
	Title           string
	Href            string
	ContentText     string
	ContentMarkdown string
	ContentHTML     string
	Local           bool
	APId            string // canonical object URL for remote posts
	Deleted         bool
	CreatedAt       time.Time
	EditedAt        *time.Time
}

// Reply is a threaded comment under a Post, optionally nested under another
// Reply. The parent, when set, always belongs to the same Post.
type Reply struct {
	Id        uuid.UUID
	PostId    uuid.UUID
	ParentId  uuid.NullUUID
	AuthorId  uuid.NullUUID
	Content   string
	Local     bool
	APId      string
	Deleted   bool
	CreatedAt time.Time
	EditedAt  *time.Time
}

// CommunityFollow records a Person following a Community, local or remote.
// APId is the Follow activity's id, used to build the matching Accept and
// to resolve an inbound Undo{Follow} back to the row it targets.
type CommunityFollow struct {
	Id          uuid.UUID
	CommunityId uuid.UUID
	FollowerId  uuid.UUID
	Accepted    bool
	IsLocal     bool
	APId        string
	CreatedAt   time.Time
}

// LikeTargetType distinguishes which entity a Like's target column
// addresses.
type LikeTargetType string

const (
	LikeTargetPost  LikeTargetType = "post"
	LikeTargetReply LikeTargetType = "reply"
)

// Like represents a PostLike or a ReplyLike depending on TargetType; the
// two share one table (unique on target_type, target_id, person_id)
// because their invariants and lifecycle are identical.
type Like struct {
	Id         uuid.UUID
	TargetType LikeTargetType
	TargetId   uuid.UUID
	PersonId   uuid.UUID
	Local      bool
	APId       string
	CreatedAt  time.Time
}

// LocalLikeUndo preserves the stable UUID of an Undo{Like} activity across
// delivery retries: generated once when a local like is removed, reused for
// every subsequent delivery attempt of that same Undo.
type LocalLikeUndo struct {
	Id         uuid.UUID
	TargetType LikeTargetType
	TargetId   uuid.UUID
	PersonId   uuid.UUID
	CreatedAt  time.Time
}

// TaskKind is the discriminator of the outbound delivery queue (§4.6).
type TaskKind string

const (
	TaskDeliverToInbox     TaskKind = "DeliverToInbox"
	TaskDeliverToFollowers TaskKind = "DeliverToFollowers"
	TaskFetch              TaskKind = "Fetch"
)

// Task is a row of the durable outbound delivery queue. Params holds the
// kind-specific JSON payload described in §4.6.
type Task struct {
	Id          uuid.UUID
	Kind        TaskKind
	Params      string // JSON
	Attempts    int
	MaxAttempts int
	CreatedAt   time.Time
	NotBefore   time.Time
	LatestErr   string
}

// SeenActivity is the dedup gate of §4.5 step 2 (resolves Open Question
// (a)): the outermost activity id of every accepted inbound activity, keyed
// uniquely so a unique-constraint violation on insert means "already
// processed" rather than an error.
type SeenActivity struct {
	APId       string
	ReceivedAt time.Time
}

// DeliverToInboxParams is the JSON payload of a TaskDeliverToInbox task.
type DeliverToInboxParams struct {
	InboxURL    string `json:"inbox_url"`
	SignAsKind  string `json:"sign_as_kind"` // "person" or "community"
	SignAsId    uuid.UUID `json:"sign_as_id"`
	Body        string `json:"body"`
}

// DeliverToFollowersParams is the JSON payload of a TaskDeliverToFollowers
// task.
type DeliverToFollowersParams struct {
	CommunityId uuid.UUID `json:"community_id"`
	Body        string    `json:"body"`
	ExcludeHost string    `json:"exclude_host,omitempty"`
}

// FetchParams is the JSON payload of a TaskFetch task.
type FetchParams struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}
