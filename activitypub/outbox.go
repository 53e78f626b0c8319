package activitypub

import (
	"fmt"
	"time"

	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
	"github.com/google/uuid"
)

// OutboxDeps mirrors InboxDeps for the user-initiated half of the engine,
// following the same dependency-injection convention (§9).
type OutboxDeps struct {
	Database Database
	Conf     *util.AppConfig
	Worker   *DeliveryWorker
}

func (d *OutboxDeps) trigger() {
	if d.Worker != nil {
		d.Worker.Trigger()
	}
}

func (d *OutboxDeps) base() string { return d.Conf.Conf.HostURLActivityPub }

// deliverToCommunity is the fanout entry point shared by every local action
// addressed to a community (§4.7): local communities wrap-and-announce; for
// a remote community it does nothing, and the caller enqueues the single
// direct delivery to the community's inbox.
func (d *OutboxDeps) deliverToCommunity(community *domain.Community, activityId string) error {
	if community.Local {
		return AnnounceToFollowers(d.Database, d.base(), community, activityId)
	}
	return nil
}

// PublishPost assigns a local Post its canonical IRI and sends the
// Create{Page} activity (§4.4 row 1): announced to followers for a local
// community, delivered to the inbox of a remote one. The caller has already
// persisted post via database.CreatePost.
func PublishPost(d *OutboxDeps, author *domain.Person, community *domain.Community, post *domain.Post) error {
	base := d.base()
	post.APId = PostIRI(base, post.Id)

	activityId := ActivityIRI(base, ActivityCreate, uuid.New())
	actorIRI := PersonIRI(base, author.Id)
	followersIRI := CommunityFollowersIRI(base, community.Id)
	body := BuildCreatePage(activityId, actorIRI, post.APId, followersIRI, post.Title, post.Href, post.ContentHTML, post.CreatedAt)

	if err := d.deliverToCommunity(community, activityId); err != nil {
		return fmt.Errorf("failed to fan out create: %w", err)
	}
	if !community.Local {
		inbox := community.InboxURI
		if community.SharedInboxURI != "" {
			inbox = community.SharedInboxURI
		}
		if err := EnqueueDeliverToInbox(d.Database, inbox, signAsKindPerson, author.Id, body); err != nil {
			return fmt.Errorf("failed to enqueue create delivery: %w", err)
		}
	}
	d.trigger()
	return nil
}

// PublishReply creates a local Reply and sends the Create{Note} activity
// (§4.4 row 2). parentIRI is the post or comment being replied to; extraCC
// carries the parent author's actor IRI (when known) so they are delivered
// to even if they don't follow the community.
func PublishReply(d *OutboxDeps, author *domain.Person, community *domain.Community, reply *domain.Reply, parentIRI string, extraCC []string) error {
	base := d.base()
	reply.APId = CommentIRI(base, reply.Id)

	activityId := ActivityIRI(base, ActivityCreate, uuid.New())
	actorIRI := PersonIRI(base, author.Id)
	cc := append([]string{CommunityFollowersIRI(base, community.Id)}, extraCC...)
	body := BuildCreateNote(activityId, actorIRI, reply.APId, parentIRI, reply.Content, cc, reply.CreatedAt)

	if err := d.deliverToCommunity(community, activityId); err != nil {
		return fmt.Errorf("failed to fan out create: %w", err)
	}
	if !community.Local {
		inbox := community.InboxURI
		if community.SharedInboxURI != "" {
			inbox = community.SharedInboxURI
		}
		if err := EnqueueDeliverToInbox(d.Database, inbox, signAsKindPerson, author.Id, body); err != nil {
			return fmt.Errorf("failed to enqueue create delivery: %w", err)
		}
	}
	d.trigger()
	return nil
}

// likeTargetOwnerCommunity resolves which community a liked Post/Reply
// belongs to, for fanout purposes.
func likeTargetOwnerCommunity(d *OutboxDeps, targetType domain.LikeTargetType, targetId uuid.UUID) (*domain.Community, string, error) {
	var communityId uuid.UUID
	var targetIRI string
	base := d.base()

	switch targetType {
	case domain.LikeTargetPost:
		err, post := d.Database.ReadPostById(targetId)
		if err != nil || post == nil {
			return nil, "", fmt.Errorf("like target post %s not found: %w", targetId, err)
		}
		communityId = post.CommunityId
		targetIRI = post.APId
		if targetIRI == "" {
			targetIRI = PostIRI(base, post.Id)
		}
	case domain.LikeTargetReply:
		err, reply := d.Database.ReadReplyById(targetId)
		if err != nil || reply == nil {
			return nil, "", fmt.Errorf("like target reply %s not found: %w", targetId, err)
		}
		err, post := d.Database.ReadPostById(reply.PostId)
		if err != nil || post == nil {
			return nil, "", fmt.Errorf("post of liked reply not found: %w", err)
		}
		communityId = post.CommunityId
		targetIRI = reply.APId
		if targetIRI == "" {
			targetIRI = CommentIRI(base, reply.Id)
		}
	}

	err, community := d.Database.ReadCommunityById(communityId)
	if err != nil || community == nil {
		return nil, "", fmt.Errorf("community %s not found: %w", communityId, err)
	}
	return community, targetIRI, nil
}

// PublishLike records a local Like and sends it (§4.4 row 3).
func PublishLike(d *OutboxDeps, person *domain.Person, targetType domain.LikeTargetType, targetId uuid.UUID) error {
	community, targetIRI, err := likeTargetOwnerCommunity(d, targetType, targetId)
	if err != nil {
		return err
	}

	base := d.base()
	activityId := ActivityIRI(base, ActivityLike, uuid.New())
	actorIRI := PersonIRI(base, person.Id)

	like := &domain.Like{
		Id:         uuid.New(),
		TargetType: targetType,
		TargetId:   targetId,
		PersonId:   person.Id,
		Local:      true,
		APId:       activityId,
		CreatedAt:  time.Now(),
	}
	if err := d.Database.CreateLike(like); err != nil {
		return fmt.Errorf("failed to record like: %w", err)
	}

	body := BuildLike(activityId, actorIRI, targetIRI)
	return d.sendToCommunity(community, person, activityId, body)
}

// PublishUndoLike removes a local Like and sends the Undo (§4.4 row 4),
// reusing a stable local_like_undos id across delivery retries.
func PublishUndoLike(d *OutboxDeps, person *domain.Person, targetType domain.LikeTargetType, targetId uuid.UUID) error {
	community, targetIRI, err := likeTargetOwnerCommunity(d, targetType, targetId)
	if err != nil {
		return err
	}

	err, like := d.Database.ReadLike(targetType, targetId, person.Id)
	if err != nil || like == nil {
		return fmt.Errorf("no existing like to undo: %w", err)
	}
	if err := d.Database.DeleteLike(targetType, targetId, person.Id); err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}

	err, undoId := d.Database.GetOrCreateLocalLikeUndo(targetType, targetId, person.Id)
	if err != nil {
		return fmt.Errorf("failed to allocate undo id: %w", err)
	}

	base := d.base()
	actorIRI := PersonIRI(base, person.Id)
	body := BuildUndoLike(undoId, base, actorIRI, like.APId, targetIRI)
	return d.sendToCommunity(community, person, ActivityIRI(base, ActivityUndo, undoId), body)
}

// sendToCommunity is the shared fanout tail of Like/Undo{Like}/Delete: local
// communities announce, remote communities get one direct delivery signed
// as the acting Person.
func (d *OutboxDeps) sendToCommunity(community *domain.Community, actor *domain.Person, activityId, body string) error {
	if err := d.deliverToCommunity(community, activityId); err != nil {
		return fmt.Errorf("failed to fan out: %w", err)
	}
	if !community.Local {
		inbox := community.InboxURI
		if community.SharedInboxURI != "" {
			inbox = community.SharedInboxURI
		}
		if err := EnqueueDeliverToInbox(d.Database, inbox, signAsKindPerson, actor.Id, body); err != nil {
			return fmt.Errorf("failed to enqueue delivery: %w", err)
		}
	}
	d.trigger()
	return nil
}

// PublishDeletePost soft-deletes a local Post and sends Delete (§4.4 row 5).
func PublishDeletePost(d *OutboxDeps, author *domain.Person, community *domain.Community, post *domain.Post) error {
	if !post.AuthorId.Valid || post.AuthorId.UUID != author.Id {
		return fmt.Errorf("only the author may delete post %s", post.Id)
	}
	if err := d.Database.SoftDeletePost(post.Id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	base := d.base()
	activityId := ActivityIRI(base, ActivityDelete, uuid.New())
	body := BuildDelete(activityId, PersonIRI(base, author.Id), post.APId)
	return d.sendToCommunity(community, author, activityId, body)
}

// PublishDeleteReply soft-deletes a local Reply and sends Delete.
func PublishDeleteReply(d *OutboxDeps, author *domain.Person, community *domain.Community, reply *domain.Reply) error {
	if !reply.AuthorId.Valid || reply.AuthorId.UUID != author.Id {
		return fmt.Errorf("only the author may delete reply %s", reply.Id)
	}
	if err := d.Database.SoftDeleteReply(reply.Id); err != nil {
		return fmt.Errorf("failed to delete reply: %w", err)
	}
	base := d.base()
	activityId := ActivityIRI(base, ActivityDelete, uuid.New())
	body := BuildDelete(activityId, PersonIRI(base, author.Id), reply.APId)
	return d.sendToCommunity(community, author, activityId, body)
}

// FollowCommunity records a local Person following a Community (local or
// remote) and sends Follow (§4.4 row 6). Following a local community
// auto-accepts, same as an inbound Follow does for a remote follower.
func FollowCommunity(d *OutboxDeps, person *domain.Person, community *domain.Community) error {
	base := d.base()
	activityId := ActivityIRI(base, ActivityFollow, uuid.New())

	follow := &domain.CommunityFollow{
		Id:          uuid.New(),
		CommunityId: community.Id,
		FollowerId:  person.Id,
		Accepted:    community.Local,
		IsLocal:     true,
		APId:        activityId,
		CreatedAt:   time.Now(),
	}
	if err := d.Database.CreateCommunityFollow(follow); err != nil {
		return fmt.Errorf("failed to record follow: %w", err)
	}
	if community.Local {
		return nil
	}

	body := BuildFollow(activityId, PersonIRI(base, person.Id), community.APId)
	inbox := community.InboxURI
	if community.SharedInboxURI != "" {
		inbox = community.SharedInboxURI
	}
	if err := EnqueueDeliverToInbox(d.Database, inbox, signAsKindPerson, person.Id, body); err != nil {
		return fmt.Errorf("failed to enqueue follow delivery: %w", err)
	}
	d.trigger()
	return nil
}
