package web

import (
	"strings"
	"time"

	"github.com/embervale/forumfed/activitypub"
	"github.com/embervale/forumfed/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// registerLocalActionRoutes wires the user-initiated half of the federation
// engine (§4.4's Follow/Create/Like/Undo/Delete rows, plus the outbound
// WebFinger lookup of §4.3) to HTTP. Every handler identifies the acting
// local Person by a person_id carried in the request body; there is no
// session layer in front of this surface yet (see DESIGN.md), so a
// deployment exposing it publicly would put an authenticating proxy in
// front of /api/unstable.
func registerLocalActionRoutes(g *gin.Engine, deps *activitypub.OutboxDeps, client activitypub.HTTPClient, limiter *RateLimiter, maxBodySize gin.HandlerFunc) {
	api := g.Group("/api/unstable", RateLimitMiddleware(limiter), maxBodySize)

	api.GET("/actors:lookup/:handle", func(c *gin.Context) { handleActorsLookup(c, deps, client) })

	api.POST("/communities/:id/follow", func(c *gin.Context) { handleFollowCommunity(c, deps) })
	api.POST("/communities/:id/posts", func(c *gin.Context) { handleCreatePost(c, deps) })
	api.DELETE("/posts/:id", func(c *gin.Context) { handleDeletePost(c, deps) })
	api.POST("/posts/:id/replies", func(c *gin.Context) { handleCreateReply(c, deps) })
	api.DELETE("/comments/:id", func(c *gin.Context) { handleDeleteReply(c, deps) })
	api.POST("/likes", func(c *gin.Context) { handleLike(c, deps) })
	api.DELETE("/likes", func(c *gin.Context) { handleUnlike(c, deps) })
}

// handleActorsLookup resolves an `acct:user@host` handle via WebFinger,
// fetches and caches the resolved actor, and returns its local row id
// (E2E scenario 4).
func handleActorsLookup(c *gin.Context, deps *activitypub.OutboxDeps, client activitypub.HTTPClient) {
	handle := strings.TrimPrefix(c.Param("handle"), "acct:")
	at := strings.LastIndex(handle, "@")
	if at <= 0 || at == len(handle)-1 {
		c.JSON(400, gin.H{"error": "expected acct:user@host"})
		return
	}
	username, host := handle[:at], handle[at+1:]

	apId, err := activitypub.ResolveAcct(client, username, host)
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}
	person, community, err := activitypub.FetchActor(deps.Database, client, apId)
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}

	id := uuid.Nil
	if person != nil {
		id = person.Id
	} else if community != nil {
		id = community.Id
	}
	c.JSON(200, []gin.H{{"id": id.String()}})
}

// actorIRIFor returns the canonical actor IRI to address a Person by,
// local or remote.
func actorIRIFor(base string, p *domain.Person) string {
	if p.Local {
		return activitypub.PersonIRI(base, p.Id)
	}
	return p.APId
}

func readLocalPerson(deps *activitypub.OutboxDeps, id uuid.UUID) *domain.Person {
	err, p := deps.Database.ReadPersonById(id)
	if err != nil || p == nil || !p.Local {
		return nil
	}
	return p
}

// handleFollowCommunity is §4.4 row 6: a local Person follows a community,
// local or remote (E2E scenario 1).
func handleFollowCommunity(c *gin.Context, deps *activitypub.OutboxDeps) {
	communityId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "invalid community id"})
		return
	}
	var req struct {
		PersonID uuid.UUID `json:"person_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	person := readLocalPerson(deps, req.PersonID)
	if person == nil {
		c.JSON(404, gin.H{"error": "person not found"})
		return
	}
	err, community := deps.Database.ReadCommunityById(communityId)
	if err != nil || community == nil {
		c.JSON(404, gin.H{"error": "community not found"})
		return
	}

	if err := activitypub.FollowCommunity(deps, person, community); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(202, gin.H{"status": "accepted"})
}

// handleCreatePost is §4.4 row 1: a local Person submits a Post to a
// community, local or remote.
func handleCreatePost(c *gin.Context, deps *activitypub.OutboxDeps) {
	communityId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "invalid community id"})
		return
	}
	var req struct {
		PersonID    uuid.UUID `json:"person_id"`
		Title       string    `json:"title"`
		Href        string    `json:"href"`
		ContentHTML string    `json:"content_html"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	person := readLocalPerson(deps, req.PersonID)
	if person == nil {
		c.JSON(404, gin.H{"error": "person not found"})
		return
	}
	err, community := deps.Database.ReadCommunityById(communityId)
	if err != nil || community == nil {
		c.JSON(404, gin.H{"error": "community not found"})
		return
	}

	post := &domain.Post{
		Id:          uuid.New(),
		CommunityId: community.Id,
		AuthorId:    uuid.NullUUID{UUID: person.Id, Valid: true},
		Title:       req.Title,
		Href:        req.Href,
		ContentHTML: req.ContentHTML,
		Local:       true,
		CreatedAt:   time.Now(),
	}
	if err := deps.Database.CreatePost(post); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if err := activitypub.PublishPost(deps, person, community, post); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(201, gin.H{"id": post.Id.String()})
}

// handleDeletePost is §4.4 row 5: the author tombstones their own Post.
func handleDeletePost(c *gin.Context, deps *activitypub.OutboxDeps) {
	postId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "invalid post id"})
		return
	}
	var req struct {
		PersonID uuid.UUID `json:"person_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	person := readLocalPerson(deps, req.PersonID)
	if person == nil {
		c.JSON(404, gin.H{"error": "person not found"})
		return
	}
	err, post := deps.Database.ReadPostById(postId)
	if err != nil || post == nil {
		c.JSON(404, gin.H{"error": "post not found"})
		return
	}
	err, community := deps.Database.ReadCommunityById(post.CommunityId)
	if err != nil || community == nil {
		c.JSON(404, gin.H{"error": "community not found"})
		return
	}

	if err := activitypub.PublishDeletePost(deps, person, community, post); err != nil {
		c.JSON(403, gin.H{"error": err.Error()})
		return
	}
	c.Status(204)
}

// handleCreateReply is §4.4 row 2: a local Person replies to a Post or, when
// parent_comment_id is set, to another Reply within that Post's thread.
func handleCreateReply(c *gin.Context, deps *activitypub.OutboxDeps) {
	postId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "invalid post id"})
		return
	}
	var req struct {
		PersonID        uuid.UUID  `json:"person_id"`
		ParentCommentID *uuid.UUID `json:"parent_comment_id"`
		Content         string     `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	person := readLocalPerson(deps, req.PersonID)
	if person == nil {
		c.JSON(404, gin.H{"error": "person not found"})
		return
	}
	err, post := deps.Database.ReadPostById(postId)
	if err != nil || post == nil {
		c.JSON(404, gin.H{"error": "post not found"})
		return
	}
	err, community := deps.Database.ReadCommunityById(post.CommunityId)
	if err != nil || community == nil {
		c.JSON(404, gin.H{"error": "community not found"})
		return
	}

	base := deps.Conf.Conf.HostURLActivityPub
	parentIRI := activitypub.PostIRI(base, post.Id)
	var extraCC []string

	reply := &domain.Reply{
		Id:        uuid.New(),
		PostId:    post.Id,
		AuthorId:  uuid.NullUUID{UUID: person.Id, Valid: true},
		Content:   req.Content,
		Local:     true,
		CreatedAt: time.Now(),
	}

	if req.ParentCommentID != nil {
		err, parent := deps.Database.ReadReplyById(*req.ParentCommentID)
		if err != nil || parent == nil || parent.PostId != post.Id {
			c.JSON(404, gin.H{"error": "parent comment not found"})
			return
		}
		reply.ParentId = uuid.NullUUID{UUID: parent.Id, Valid: true}
		parentIRI = activitypub.CommentIRI(base, parent.Id)
		if parent.AuthorId.Valid {
			if err, parentAuthor := deps.Database.ReadPersonById(parent.AuthorId.UUID); err == nil && parentAuthor != nil {
				extraCC = append(extraCC, actorIRIFor(base, parentAuthor))
			}
		}
	} else if post.AuthorId.Valid {
		if err, postAuthor := deps.Database.ReadPersonById(post.AuthorId.UUID); err == nil && postAuthor != nil {
			extraCC = append(extraCC, actorIRIFor(base, postAuthor))
		}
	}

	if err := deps.Database.CreateReply(reply); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	if err := activitypub.PublishReply(deps, person, community, reply, parentIRI, extraCC); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(201, gin.H{"id": reply.Id.String()})
}

// handleDeleteReply is §4.4 row 5 for a Reply.
func handleDeleteReply(c *gin.Context, deps *activitypub.OutboxDeps) {
	replyId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(404, gin.H{"error": "invalid comment id"})
		return
	}
	var req struct {
		PersonID uuid.UUID `json:"person_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return
	}

	person := readLocalPerson(deps, req.PersonID)
	if person == nil {
		c.JSON(404, gin.H{"error": "person not found"})
		return
	}
	err, reply := deps.Database.ReadReplyById(replyId)
	if err != nil || reply == nil {
		c.JSON(404, gin.H{"error": "comment not found"})
		return
	}
	err, post := deps.Database.ReadPostById(reply.PostId)
	if err != nil || post == nil {
		c.JSON(404, gin.H{"error": "post not found"})
		return
	}
	err, community := deps.Database.ReadCommunityById(post.CommunityId)
	if err != nil || community == nil {
		c.JSON(404, gin.H{"error": "community not found"})
		return
	}

	if err := activitypub.PublishDeleteReply(deps, person, community, reply); err != nil {
		c.JSON(403, gin.H{"error": err.Error()})
		return
	}
	c.Status(204)
}

// likeRequest is shared by handleLike and handleUnlike, addressing either a
// Post or a Reply by target_type/target_id per domain.LikeTargetType.
type likeRequest struct {
	PersonID   uuid.UUID             `json:"person_id"`
	TargetType domain.LikeTargetType `json:"target_type"`
	TargetID   uuid.UUID             `json:"target_id"`
}

func bindLikeRequest(c *gin.Context) (*likeRequest, bool) {
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid request body"})
		return nil, false
	}
	if req.TargetType != domain.LikeTargetPost && req.TargetType != domain.LikeTargetReply {
		c.JSON(400, gin.H{"error": "target_type must be post or reply"})
		return nil, false
	}
	return &req, true
}

// handleLike is §4.4 row 3.
func handleLike(c *gin.Context, deps *activitypub.OutboxDeps) {
	req, ok := bindLikeRequest(c)
	if !ok {
		return
	}
	person := readLocalPerson(deps, req.PersonID)
	if person == nil {
		c.JSON(404, gin.H{"error": "person not found"})
		return
	}
	if err := activitypub.PublishLike(deps, person, req.TargetType, req.TargetID); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(202, gin.H{"status": "accepted"})
}

// handleUnlike is §4.4 row 4.
func handleUnlike(c *gin.Context, deps *activitypub.OutboxDeps) {
	req, ok := bindLikeRequest(c)
	if !ok {
		return
	}
	person := readLocalPerson(deps, req.PersonID)
	if person == nil {
		c.JSON(404, gin.H{"error": "person not found"})
		return
	}
	if err := activitypub.PublishUndoLike(deps, person, req.TargetType, req.TargetID); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(202, gin.H{"status": "accepted"})
}
