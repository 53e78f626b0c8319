package activitypub

import (
	"fmt"

	"github.com/google/uuid"
)

// entityKind discriminates the four addressable local entity types; mirrors
// the predecessor service's single-actor-kind `action` enum in
// web/actor.go, generalized to every entity the federation engine exposes.
type entityKind uint

const (
	kindPerson entityKind = iota
	kindCommunity
	kindPost
	kindComment
)

// ActivityKind discriminates the seven outbound activity URL shapes (§4.1).
type ActivityKind string

const (
	ActivityCreate   ActivityKind = "activities"
	ActivityLike     ActivityKind = "likes"
	ActivityUndo     ActivityKind = "undos"
	ActivityDelete   ActivityKind = "deletes"
	ActivityFollow   ActivityKind = "follows"
	ActivityAccept   ActivityKind = "accepts"
	ActivityAnnounce ActivityKind = "announces"
)

// entityIRI builds the canonical id of a local entity: {base}/{segment}/{id}.
// Pure function, no I/O — the Addressing contract of §4.1 requires id(e) be
// constant for the life of the entity, so base and id are the only inputs.
func entityIRI(base string, kind entityKind, id uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", base, segment(kind), id.String())
}

func segment(kind entityKind) string {
	switch kind {
	case kindPerson:
		return "users"
	case kindCommunity:
		return "communities"
	case kindPost:
		return "posts"
	case kindComment:
		return "comments"
	default:
		return "unknown"
	}
}

// PersonIRI returns the canonical actor URL of a local Person.
func PersonIRI(base string, id uuid.UUID) string {
	return entityIRI(base, kindPerson, id)
}

// PersonInboxIRI returns a local Person's personal inbox URL.
func PersonInboxIRI(base string, id uuid.UUID) string {
	return PersonIRI(base, id) + "/inbox"
}

// PersonOutboxIRI returns a local Person's outbox URL.
func PersonOutboxIRI(base string, id uuid.UUID) string {
	return PersonIRI(base, id) + "/outbox"
}

// PersonFollowingIRI returns a local Person's following collection URL.
func PersonFollowingIRI(base string, id uuid.UUID) string {
	return PersonIRI(base, id) + "/following"
}

// PersonKeyIRI returns the fragment-qualified public key id used as the
// `owner#main-key` keyId in outbound HTTP Signatures (§4.2).
func PersonKeyIRI(base string, id uuid.UUID) string {
	return PersonIRI(base, id) + "#main-key"
}

// CommunityIRI returns the canonical actor URL of a local Community.
func CommunityIRI(base string, id uuid.UUID) string {
	return entityIRI(base, kindCommunity, id)
}

// CommunityInboxIRI returns a local Community's inbox URL.
func CommunityInboxIRI(base string, id uuid.UUID) string {
	return CommunityIRI(base, id) + "/inbox"
}

// CommunityOutboxIRI returns a local Community's outbox URL.
func CommunityOutboxIRI(base string, id uuid.UUID) string {
	return CommunityIRI(base, id) + "/outbox"
}

// CommunityFollowersIRI returns a local Community's followers collection URL.
func CommunityFollowersIRI(base string, id uuid.UUID) string {
	return CommunityIRI(base, id) + "/followers"
}

// SharedInboxIRI returns the instance-wide shared inbox URL (one per origin,
// not per actor).
func SharedInboxIRI(base string) string {
	return base + "/inbox"
}

// CommunityKeyIRI returns the fragment-qualified public key id of a local
// Community actor.
func CommunityKeyIRI(base string, id uuid.UUID) string {
	return CommunityIRI(base, id) + "#main-key"
}

// PostIRI returns the canonical object URL of a local Post.
func PostIRI(base string, id uuid.UUID) string {
	return entityIRI(base, kindPost, id)
}

// CommentIRI returns the canonical object URL of a local Reply (comment).
func CommentIRI(base string, id uuid.UUID) string {
	return entityIRI(base, kindComment, id)
}

// ActivityIRI builds the id of a local outbound activity:
// {base}/{kind}s/{uuid}, stable across retries because the caller always
// passes the same uuid for a given logical activity (e.g. the stored
// LocalLikeUndo id).
func ActivityIRI(base string, kind ActivityKind, id uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", base, kind, id.String())
}
