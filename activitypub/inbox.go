package activitypub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
	"github.com/google/uuid"
)

// InboxDeps holds the dependencies an inbox handler needs, mirroring the
// predecessor service's InboxDeps/test-injection convention, generalized
// with a Conf and an optional delivery worker to trigger after enqueuing
// fanout tasks.
type InboxDeps struct {
	Database   Database
	HTTPClient HTTPClient
	Conf       *util.AppConfig
	Worker     *DeliveryWorker
}

func (d *InboxDeps) trigger() {
	if d.Worker != nil {
		d.Worker.Trigger()
	}
}

// maxInboxBodyBytes bounds inbound POST bodies (§4.5 step 1 / §5).
const maxInboxBodyBytes = 1 << 20

// maxDateSkew is the signature Date header tolerance (§4.2).
const maxDateSkew = 5 * time.Minute

// inboundActivity is the generic envelope every inbound POST is parsed into
// before type-specific dispatch, generalizing the predecessor's Activity
// struct from a single-actor Note model to any (outer, inner) pair.
type inboundActivity struct {
	Context   any             `json:"@context"`
	Id        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	Object    json.RawMessage `json:"object"`
	Published string          `json:"published"`
}

// objectEnvelope captures just enough of an embedded object/activity to
// dispatch on: either a bare URI string, or {id, type, actor, object}.
type objectEnvelope struct {
	Id     string          `json:"id"`
	Type   string          `json:"type"`
	Actor  string          `json:"actor"`
	Object json.RawMessage `json:"object"`
}

// parseObjectEnvelope normalizes Object, which per the AS2 spec may be
// either a bare id string or an embedded object.
func parseObjectEnvelope(raw json.RawMessage) objectEnvelope {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return objectEnvelope{Id: asString}
	}
	var env objectEnvelope
	_ = json.Unmarshal(raw, &env)
	return env
}

// RecipientKind discriminates which inbox a POST arrived at.
type RecipientKind string

const (
	RecipientPerson    RecipientKind = "person"
	RecipientCommunity RecipientKind = "community"
)

// HandleInbox processes an inbound POST to /users/{id}/inbox or
// /communities/{id}/inbox, implementing the state machine of §4.5.
func HandleInbox(w http.ResponseWriter, r *http.Request, recipientKind RecipientKind, recipientId uuid.UUID, deps *InboxDeps) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboxBodyBytes+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if len(body) > maxInboxBodyBytes {
		http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
		return
	}

	// Step 1: read & verify signature.
	if r.Header.Get("Signature") == "" {
		http.Error(w, "missing signature", http.StatusUnauthorized)
		return
	}
	if dateHeader := r.Header.Get("Date"); dateHeader != "" {
		requestDate, err := http.ParseTime(dateHeader)
		if err != nil || time.Since(requestDate).Abs() > maxDateSkew {
			http.Error(w, "date skew too large", http.StatusUnauthorized)
			return
		}
	}

	keyId, err := ExtractKeyId(r)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	senderURI := ActorURIFromKeyId(keyId)

	senderPerson, senderCommunity, err := FetchActor(deps.Database, deps.HTTPClient, senderURI)
	if err != nil {
		log.Printf("Inbox: failed to resolve signer %s: %v", senderURI, err)
		http.Error(w, "failed to verify actor", http.StatusBadRequest)
		return
	}
	senderPublicKey := ""
	if senderPerson != nil {
		senderPublicKey = senderPerson.PublicKeyPem
	} else if senderCommunity != nil {
		senderPublicKey = senderCommunity.PublicKeyPem
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	if _, err := VerifyRequest(r, senderPublicKey); err != nil {
		log.Printf("Inbox: signature verification failed: %v", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var activity inboundActivity
	if err := json.Unmarshal(body, &activity); err != nil {
		http.Error(w, "invalid activity", http.StatusBadRequest)
		return
	}

	// Step 2: deduplicate on the outermost activity id.
	firstSeen, err := deps.Database.MarkActivitySeen(activity.Id)
	if err != nil {
		log.Printf("Inbox: failed to record seen activity %s: %v", activity.Id, err)
	}
	if !firstSeen {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	object := parseObjectEnvelope(activity.Object)

	if err := dispatch(deps, recipientKind, recipientId, activity, object, string(body)); err != nil {
		log.Printf("Inbox: error processing %s from %s: %v", activity.Type, senderURI, err)
	}

	w.WriteHeader(http.StatusAccepted)
}

// dispatch implements the (outer, inner) matrix of §4.5 step 3. Unknown
// combinations are logged and accepted without effect.
func dispatch(deps *InboxDeps, recipientKind RecipientKind, recipientId uuid.UUID, activity inboundActivity, object objectEnvelope, rawBody string) error {
	switch activity.Type {
	case "Create":
		switch object.Type {
		case "Page":
			return handleCreatePage(deps, recipientId, activity, object)
		case "Note":
			return handleCreateNote(deps, activity, object)
		}
	case "Follow":
		return handleFollow(deps, recipientId, activity)
	case "Accept":
		if object.Type == "Follow" {
			return handleAcceptFollow(deps, object)
		}
	case "Like":
		return handleLike(deps, activity, object.Id)
	case "Undo":
		if object.Type == "Like" {
			return handleUndoLike(deps, object)
		}
		if object.Type == "Follow" {
			return handleUndoFollow(deps, object)
		}
	case "Delete":
		return handleDelete(deps, activity, object.Id)
	case "Announce":
		return handleAnnounce(deps, activity, object)
	default:
		log.Printf("Inbox: unsupported activity type %q", activity.Type)
	}
	return nil
}

// handleCreatePage persists a remote Post addressed to a local community and
// fans out an Announce to its followers.
func handleCreatePage(deps *InboxDeps, recipientId uuid.UUID, activity inboundActivity, object objectEnvelope) error {
	err, community := deps.Database.ReadCommunityById(recipientId)
	if err != nil || community == nil || !community.Local {
		return nil // not addressed to a community we host
	}

	var page struct {
		Id           string `json:"id"`
		AttributedTo string `json:"attributedTo"`
		Name         string `json:"name"`
		URL          string `json:"url"`
		Content      string `json:"content"`
	}
	if err := json.Unmarshal(object.Object, &page); err != nil {
		return fmt.Errorf("failed to parse Page object: %w", err)
	}

	post := &domain.Post{
		Title:       page.Name,
		Href:        page.URL,
		ContentHTML: page.Content,
		APId:        page.Id,
		CommunityId: community.Id,
	}
	if err, _ := deps.Database.UpsertRemotePost(post); err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}

	base := deps.Conf.Conf.HostURLActivityPub
	announceId := ActivityIRI(base, ActivityAnnounce, uuid.New())
	communityIRI := CommunityIRI(base, community.Id)
	followersIRI := CommunityFollowersIRI(base, community.Id)
	announceBody := BuildAnnounce(announceId, communityIRI, followersIRI, activity.Id, time.Now())

	if err := ForwardToFollowers(deps.Database, community, announceBody, hostOf(activity.Actor)); err != nil {
		return fmt.Errorf("failed to fan out announce: %w", err)
	}
	deps.trigger()
	return nil
}

// handleCreateNote persists a remote Reply, linking its parent and raising a
// Notification when the addressed author is local (only the local author receives one).
func handleCreateNote(deps *InboxDeps, activity inboundActivity, object objectEnvelope) error {
	var note struct {
		Id           string `json:"id"`
		AttributedTo string `json:"attributedTo"`
		InReplyTo    string `json:"inReplyTo"`
		Content      string `json:"content"`
	}
	if err := json.Unmarshal(object.Object, &note); err != nil {
		return fmt.Errorf("failed to parse Note object: %w", err)
	}
	if note.InReplyTo == "" {
		return fmt.Errorf("reply %s has no inReplyTo", note.Id)
	}

	author, _, err := FetchActor(deps.Database, deps.HTTPClient, note.AttributedTo)
	if err != nil {
		return fmt.Errorf("failed to resolve reply author: %w", err)
	}

	reply := &domain.Reply{Content: note.Content, APId: note.Id}
	if author != nil {
		reply.AuthorId = uuid.NullUUID{UUID: author.Id, Valid: true}
	}

	var parentPostId uuid.UUID
	notifType := domain.NotificationPostReply
	var recipientPersonId uuid.UUID
	hasRecipient := false

	if err, parentPost := deps.Database.ReadPostByAPId(note.InReplyTo); err == nil && parentPost != nil {
		reply.PostId = parentPost.Id
		parentPostId = parentPost.Id
		if parentPost.AuthorId.Valid {
			recipientPersonId = parentPost.AuthorId.UUID
			hasRecipient = true
		}
	} else if err, parentReply := deps.Database.ReadReplyByAPId(note.InReplyTo); err == nil && parentReply != nil {
		reply.PostId = parentReply.PostId
		parentPostId = parentReply.PostId
		reply.ParentId = uuid.NullUUID{UUID: parentReply.Id, Valid: true}
		notifType = domain.NotificationReplyReply
		if parentReply.AuthorId.Valid {
			recipientPersonId = parentReply.AuthorId.UUID
			hasRecipient = true
		}
	} else {
		return fmt.Errorf("parent of reply %s not found: %w", note.Id, err)
	}

	if err := deps.Database.CreateReply(reply); err != nil {
		return fmt.Errorf("failed to create reply: %w", err)
	}

	// Only a local author receives a notification.
	if hasRecipient {
		if err, recipient := deps.Database.ReadPersonById(recipientPersonId); err != nil || recipient == nil || !recipient.Local {
			hasRecipient = false
		}
	}

	// No self-notify: skip when the commenter is the author.
	if hasRecipient && recipientPersonId != uuid.Nil && (author == nil || recipientPersonId != author.Id) {
		notification := &domain.Notification{
			Id:               uuid.New(),
			RecipientId:      recipientPersonId,
			NotificationType: notifType,
			PostId:           parentPostId,
			ReplyId:          reply.Id,
			ReplyPreview:     util.TruncateVisibleLength(note.Content, 100),
			CreatedAt:        time.Now(),
		}
		if author != nil {
			notification.ActorId = author.Id
			notification.ActorUsername = author.Username
			notification.ActorDomain = author.Domain
		}
		if err := deps.Database.CreateNotification(notification); err != nil {
			log.Printf("Inbox: failed to create notification: %v", err)
		}
	}

	return nil
}

// handleFollow accepts an inbound Follow of a local community and enqueues
// the matching Accept.
func handleFollow(deps *InboxDeps, recipientId uuid.UUID, activity inboundActivity) error {
	err, community := deps.Database.ReadCommunityById(recipientId)
	if err != nil || community == nil || !community.Local {
		return fmt.Errorf("follow target is not a local community")
	}

	follower, _, err := FetchActor(deps.Database, deps.HTTPClient, activity.Actor)
	if err != nil || follower == nil {
		return fmt.Errorf("failed to resolve follower %s: %w", activity.Actor, err)
	}

	follow := &domain.CommunityFollow{
		Id:          uuid.New(),
		CommunityId: community.Id,
		FollowerId:  follower.Id,
		Accepted:    true,
		IsLocal:     false,
		APId:        activity.Id,
		CreatedAt:   time.Now(),
	}
	if err := deps.Database.CreateCommunityFollow(follow); err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}

	base := deps.Conf.Conf.HostURLActivityPub
	acceptId := ActivityIRI(base, ActivityAccept, uuid.New())
	communityIRI := CommunityIRI(base, community.Id)
	body := BuildAccept(acceptId, communityIRI, activity.Id, follower.APId)

	inbox := follower.InboxURI
	if follower.SharedInboxURI != "" {
		inbox = follower.SharedInboxURI
	}
	if err := EnqueueDeliverToInbox(deps.Database, inbox, signAsKindCommunity, community.Id, body); err != nil {
		return fmt.Errorf("failed to enqueue accept: %w", err)
	}
	deps.trigger()
	return nil
}

// handleAcceptFollow marks a previously sent local Follow as accepted.
func handleAcceptFollow(deps *InboxDeps, object objectEnvelope) error {
	if object.Id == "" {
		return fmt.Errorf("accept missing object id")
	}
	err, follow := deps.Database.ReadCommunityFollowByAPId(object.Id)
	if err != nil || follow == nil {
		return fmt.Errorf("accepted follow %s not found: %w", object.Id, err)
	}
	return deps.Database.AcceptCommunityFollow(follow.Id)
}

// handleUndoFollow removes a follow relationship on receipt of an inbound
// Undo{Follow}, idempotently: an already-removed follow is not an error.
func handleUndoFollow(deps *InboxDeps, object objectEnvelope) error {
	err, follow := deps.Database.ReadCommunityFollowByAPId(object.Id)
	if err != nil || follow == nil {
		return nil
	}
	return deps.Database.DeleteCommunityFollow(follow.CommunityId, follow.FollowerId)
}

// resolveLikeTarget resolves a Like/Undo{Like} object URL to its target type
// and id.
func resolveLikeTarget(deps *InboxDeps, targetURL string) (domain.LikeTargetType, uuid.UUID, error) {
	post, reply, err := FetchObject(deps.Database, deps.HTTPClient, targetURL)
	if err != nil {
		return "", uuid.Nil, err
	}
	if post != nil {
		return domain.LikeTargetPost, post.Id, nil
	}
	return domain.LikeTargetReply, reply.Id, nil
}

// handleLike records an inbound Like and fans it out if its target belongs
// to a local community.
func handleLike(deps *InboxDeps, activity inboundActivity, targetURL string) error {
	targetType, targetId, err := resolveLikeTarget(deps, targetURL)
	if err != nil {
		return fmt.Errorf("failed to resolve like target %s: %w", targetURL, err)
	}
	person, _, err := FetchActor(deps.Database, deps.HTTPClient, activity.Actor)
	if err != nil || person == nil {
		return fmt.Errorf("failed to resolve liking actor %s: %w", activity.Actor, err)
	}

	like := &domain.Like{
		Id:         uuid.New(),
		TargetType: targetType,
		TargetId:   targetId,
		PersonId:   person.Id,
		Local:      false,
		APId:       activity.Id,
		CreatedAt:  time.Now(),
	}
	if err := deps.Database.CreateLike(like); err != nil {
		return fmt.Errorf("failed to create like: %w", err)
	}
	return fanoutIfLocalCommunity(deps, targetType, targetId, activity.Id)
}

// handleUndoLike removes a like on receipt of an inbound Undo{Like}.
func handleUndoLike(deps *InboxDeps, object objectEnvelope) error {
	inner := parseObjectEnvelope(object.Object)
	targetType, targetId, err := resolveLikeTarget(deps, inner.Id)
	if err != nil {
		return fmt.Errorf("failed to resolve undo-like target: %w", err)
	}
	person, _, err := FetchActor(deps.Database, deps.HTTPClient, object.Actor)
	if err != nil || person == nil {
		return fmt.Errorf("failed to resolve undoing actor: %w", err)
	}
	if err := deps.Database.DeleteLike(targetType, targetId, person.Id); err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return fanoutIfLocalCommunity(deps, targetType, targetId, object.Id)
}

func fanoutIfLocalCommunity(deps *InboxDeps, targetType domain.LikeTargetType, targetId uuid.UUID, activityId string) error {
	var communityId uuid.UUID
	switch targetType {
	case domain.LikeTargetPost:
		err, post := deps.Database.ReadPostById(targetId)
		if err != nil || post == nil {
			return nil
		}
		communityId = post.CommunityId
	case domain.LikeTargetReply:
		err, reply := deps.Database.ReadReplyById(targetId)
		if err != nil || reply == nil {
			return nil
		}
		err, post := deps.Database.ReadPostById(reply.PostId)
		if err != nil || post == nil {
			return nil
		}
		communityId = post.CommunityId
	}
	err, community := deps.Database.ReadCommunityById(communityId)
	if err != nil || community == nil || !community.Local {
		return nil
	}
	if err := AnnounceToFollowers(deps.Database, deps.Conf.Conf.HostURLActivityPub, community, activityId); err != nil {
		return err
	}
	deps.trigger()
	return nil
}

// handleDelete tombstones a Post/Reply, rejecting the mutation when the
// activity's actor is not the object's author (only the author may delete or mutate their own post or reply).
func handleDelete(deps *InboxDeps, activity inboundActivity, objectId string) error {
	actor, _, err := FetchActor(deps.Database, deps.HTTPClient, activity.Actor)
	if err != nil || actor == nil {
		return fmt.Errorf("failed to resolve deleting actor: %w", err)
	}

	if err, post := deps.Database.ReadPostByAPId(objectId); err == nil && post != nil {
		if !post.AuthorId.Valid || post.AuthorId.UUID != actor.Id {
			return fmt.Errorf("unauthorized delete: actor %s is not post author", activity.Actor)
		}
		if err := deps.Database.SoftDeletePost(post.Id); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		err, community := deps.Database.ReadCommunityById(post.CommunityId)
		if err == nil && community != nil && community.Local {
			if err := AnnounceToFollowers(deps.Database, deps.Conf.Conf.HostURLActivityPub, community, activity.Id); err != nil {
				return err
			}
			deps.trigger()
		}
		return nil
	}

	if err, reply := deps.Database.ReadReplyByAPId(objectId); err == nil && reply != nil {
		if !reply.AuthorId.Valid || reply.AuthorId.UUID != actor.Id {
			return fmt.Errorf("unauthorized delete: actor %s is not reply author", activity.Actor)
		}
		return deps.Database.SoftDeleteReply(reply.Id)
	}

	return fmt.Errorf("delete target %s not found", objectId)
}

// handleAnnounce fetches the inner activity of an Announce whose actor
// resolves to a community and dispatches it as addressed to that community,
// capped at depth 1 (an inner Announce is ignored). It does not check whether
// the inbox's recipient follows the announcing community.
func handleAnnounce(deps *InboxDeps, activity inboundActivity, object objectEnvelope) error {
	_, community, err := FetchActor(deps.Database, deps.HTTPClient, activity.Actor)
	if err != nil || community == nil {
		return fmt.Errorf("announce actor %s is not a known community: %w", activity.Actor, err)
	}

	innerURL := object.Id
	if innerURL == "" {
		return nil
	}

	body, err := getActivityJSON(deps.HTTPClient, innerURL)
	if err != nil {
		return fmt.Errorf("failed to fetch announced activity %s: %w", innerURL, err)
	}

	var inner inboundActivity
	if err := json.Unmarshal(body, &inner); err != nil {
		return fmt.Errorf("failed to parse announced activity: %w", err)
	}
	if strings.EqualFold(inner.Type, "Announce") {
		return nil // cap recursion at depth 1
	}

	innerObject := parseObjectEnvelope(inner.Object)
	return dispatch(deps, RecipientCommunity, community.Id, inner, innerObject, string(body))
}
