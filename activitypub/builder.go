package activitypub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const activityStreamsContext = "https://www.w3.org/ns/activitystreams"

const publicAddress = "https://www.w3.org/ns/activitystreams#Public"

// mustMarshal marshals v to JSON, generalizing the predecessor's helper of
// the same name. Builder inputs are always map[string]any literals
// constructed in this file, so marshaling cannot fail in practice.
func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// BuildCreatePage builds a Create{Page} activity announcing a new local Post
// to a Community's followers (§4.4 row 1).
func BuildCreatePage(activityId, actorIRI, postIRI, communityFollowersIRI, title, href, contentHTML string, published time.Time) string {
	page := map[string]any{
		"id":           postIRI,
		"type":         "Page",
		"attributedTo": actorIRI,
		"name":         title,
		"url":          href,
		"content":      contentHTML,
		"mediaType":    "text/html",
		"published":    published.Format(time.RFC3339),
		"to":           []string{communityFollowersIRI},
		"cc":           []string{publicAddress},
	}
	return mustMarshal(map[string]any{
		"@context":  activityStreamsContext,
		"id":        activityId,
		"type":      "Create",
		"actor":     actorIRI,
		"published": published.Format(time.RFC3339),
		"to":        []string{communityFollowersIRI},
		"cc":        []string{publicAddress},
		"object":    page,
	})
}

// BuildCreateNote builds a Create{Note} activity announcing a new local
// Reply (§4.4 row 2). parentIRI is the comment or post this reply targets;
// extraCC carries the parent author and community inbox additions.
func BuildCreateNote(activityId, actorIRI, replyIRI, parentIRI, contentHTML string, extraCC []string, published time.Time) string {
	cc := append([]string{}, extraCC...)
	note := map[string]any{
		"id":           replyIRI,
		"type":         "Note",
		"attributedTo": actorIRI,
		"inReplyTo":    parentIRI,
		"content":      contentHTML,
		"mediaType":    "text/html",
		"published":    published.Format(time.RFC3339),
		"to":           []string{publicAddress},
		"cc":           cc,
	}
	return mustMarshal(map[string]any{
		"@context":  activityStreamsContext,
		"id":        activityId,
		"type":      "Create",
		"actor":     actorIRI,
		"published": published.Format(time.RFC3339),
		"to":        []string{publicAddress},
		"cc":        cc,
		"object":    note,
	})
}

// BuildLike builds a Like activity on a Post or Reply (§4.4 row 3).
func BuildLike(activityId, actorIRI, targetIRI string) string {
	return mustMarshal(map[string]any{
		"@context": activityStreamsContext,
		"id":       activityId,
		"type":     "Like",
		"actor":    actorIRI,
		"object":   targetIRI,
	})
}

// BuildUndoLike builds an Undo{Like} activity with the stable undoId
// preserved across retries in local_like_undos (§4.4 row 4).
func BuildUndoLike(undoId uuid.UUID, activityIRIBase, actorIRI, likeActivityId, targetIRI string) string {
	return mustMarshal(map[string]any{
		"@context": activityStreamsContext,
		"id":       ActivityIRI(activityIRIBase, ActivityUndo, undoId),
		"type":     "Undo",
		"actor":    actorIRI,
		"object": map[string]any{
			"id":     likeActivityId,
			"type":   "Like",
			"actor":  actorIRI,
			"object": targetIRI,
		},
	})
}

// BuildDelete builds a Delete activity tombstoning a locally-owned Post or
// Reply (§4.4 row 5).
func BuildDelete(activityId, actorIRI, objectIRI string) string {
	return mustMarshal(map[string]any{
		"@context": activityStreamsContext,
		"id":       activityId,
		"type":     "Delete",
		"actor":    actorIRI,
		"object": map[string]any{
			"id":   objectIRI,
			"type": "Tombstone",
		},
	})
}

// BuildFollow builds a Follow activity from a Person to a remote Community
// (§4.4 row 6).
func BuildFollow(activityId, actorIRI, communityIRI string) string {
	return mustMarshal(map[string]any{
		"@context": activityStreamsContext,
		"id":       activityId,
		"type":     "Follow",
		"actor":    actorIRI,
		"object":   communityIRI,
	})
}

// BuildAccept builds an Accept{Follow} activity a local Community sends in
// response to an inbound Follow (§4.4 row 7).
func BuildAccept(activityId, communityIRI, followActivityId, followerIRI string) string {
	return mustMarshal(map[string]any{
		"@context": activityStreamsContext,
		"id":       activityId,
		"type":     "Accept",
		"actor":    communityIRI,
		"object": map[string]any{
			"id":     followActivityId,
			"type":   "Follow",
			"actor":  followerIRI,
			"object": communityIRI,
		},
	})
}

// BuildAnnounce builds an Announce activity a local Community uses to
// re-publish a member's activity to its followers (§4.4 row 8).
func BuildAnnounce(activityId, communityIRI, communityFollowersIRI, innerActivityId string, published time.Time) string {
	return mustMarshal(map[string]any{
		"@context":  activityStreamsContext,
		"id":        activityId,
		"type":      "Announce",
		"actor":     communityIRI,
		"published": published.Format(time.RFC3339),
		"to":        []string{publicAddress},
		"cc":        []string{communityFollowersIRI},
		"object":    innerActivityId,
	})
}
