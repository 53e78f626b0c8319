package activitypub

import (
	"time"

	"github.com/embervale/forumfed/domain"
	"github.com/google/uuid"
)

// signAsKindCommunity/signAsKindPerson are the two DeliverToInboxParams.SignAsKind
// values the delivery worker understands.
const (
	signAsKindCommunity = "community"
	signAsKindPerson    = "person"
)

// EnqueueDeliverToInbox enqueues a single outbound delivery task, signed as
// the given local actor (§4.6).
func EnqueueDeliverToInbox(database Database, inboxURL, signAsKind string, signAsId uuid.UUID, body string) error {
	params := domain.DeliverToInboxParams{
		InboxURL:   inboxURL,
		SignAsKind: signAsKind,
		SignAsId:   signAsId,
		Body:       body,
	}
	return database.EnqueueTask(&domain.Task{
		Id:        uuid.New(),
		Kind:      domain.TaskDeliverToInbox,
		Params:    mustMarshal(params),
		CreatedAt: time.Now(),
		NotBefore: time.Now(),
	})
}

// enqueueDeliverToFollowers enqueues a DeliverToFollowers task; the delivery
// worker expands it into one DeliverToInbox task per distinct inbox (the
// shared inbox where a follower has one) when it executes the task (§4.6).
func enqueueDeliverToFollowers(database Database, communityId uuid.UUID, body, excludeHost string) error {
	params := domain.DeliverToFollowersParams{
		CommunityId: communityId,
		Body:        body,
		ExcludeHost: excludeHost,
	}
	return database.EnqueueTask(&domain.Task{
		Id:        uuid.New(),
		Kind:      domain.TaskDeliverToFollowers,
		Params:    mustMarshal(params),
		CreatedAt: time.Now(),
		NotBefore: time.Now(),
	})
}

// AnnounceToFollowers wraps innerActivityId in a fresh Announce signed as
// community and fans it out to every follower (§4.7, local-origin case).
func AnnounceToFollowers(database Database, baseURL string, community *domain.Community, innerActivityId string) error {
	announceId := ActivityIRI(baseURL, ActivityAnnounce, uuid.New())
	communityIRI := CommunityIRI(baseURL, community.Id)
	followersIRI := CommunityFollowersIRI(baseURL, community.Id)
	body := BuildAnnounce(announceId, communityIRI, followersIRI, innerActivityId, time.Now())
	return enqueueDeliverToFollowers(database, community.Id, body, "")
}

// ForwardToFollowers re-broadcasts a raw inbound activity body (already an
// Announce, or any other community-addressed activity) to every follower
// except the host it arrived from (§4.7, remote-arrival case).
func ForwardToFollowers(database Database, community *domain.Community, rawBody, excludeHost string) error {
	return enqueueDeliverToFollowers(database, community.Id, rawBody, excludeHost)
}

// DeliverToRemoteCommunity delivers a locally-originated activity to a
// single remote community's inbox (§4.7, remote-community case) — e.g. a
// local Person's Follow/Like/Undo directed at a community that isn't ours.
func DeliverToRemoteCommunity(database Database, community *domain.Community, signAsKind string, signAsId uuid.UUID, body string) error {
	inbox := community.InboxURI
	if community.SharedInboxURI != "" {
		inbox = community.SharedInboxURI
	}
	return EnqueueDeliverToInbox(database, inbox, signAsKind, signAsId, body)
}
