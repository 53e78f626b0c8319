package web

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/embervale/forumfed/activitypub"
	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/util"
	"github.com/google/uuid"
)

func pubKeyEscaped(pem string) string {
	return strings.ReplaceAll(pem, "\n", "\\n")
}

// GetPersonActor returns a local Person's ActivityPub actor document. The
// second return value is "{}" on any error, mirroring the predecessor
// service's error-body convention for JSON-serving handlers.
func GetPersonActor(id uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, p := database.ReadPersonById(id)
	if err != nil || p == nil || !p.Local {
		return fmt.Errorf("person %s not found", id), "{}"
	}

	base := conf.Conf.HostURLActivityPub
	displayName := p.DisplayName
	if displayName == "" {
		displayName = p.Username
	}
	summary := strings.ReplaceAll(p.Summary, "\"", "\\\"")
	summary = strings.ReplaceAll(summary, "\n", "\\n")
	logoURL := fmt.Sprintf("%s/static/logo.png", base)
	if p.AvatarURL != "" {
		logoURL = p.AvatarURL
	}

	return nil, fmt.Sprintf(`{
	"@context": ["https://www.w3.org/ns/activitystreams", "https://w3id.org/security/v1"],
	"id": "%s",
	"type": "Person",
	"preferredUsername": "%s",
	"name": "%s",
	"summary": "%s",
	"inbox": "%s",
	"outbox": "%s",
	"following": "%s",
	"url": "%s",
	"manuallyApprovesFollowers": false,
	"discoverable": true,
	"icon": {"type": "Image", "mediaType": "image/png", "url": "%s"},
	"endpoints": {"sharedInbox": "%s"},
	"publicKey": {"id": "%s", "owner": "%s", "publicKeyPem": "%s"}
}`,
		activitypub.PersonIRI(base, p.Id),
		p.Username, displayName, summary,
		activitypub.PersonInboxIRI(base, p.Id),
		activitypub.PersonOutboxIRI(base, p.Id),
		activitypub.PersonFollowingIRI(base, p.Id),
		activitypub.PersonIRI(base, p.Id),
		logoURL,
		activitypub.SharedInboxIRI(base),
		activitypub.PersonKeyIRI(base, p.Id),
		activitypub.PersonIRI(base, p.Id),
		pubKeyEscaped(p.PublicKeyPem),
	)
}

// GetCommunityActor returns a local Community's ActivityPub Group actor
// document, with inbox and followers per §6.
func GetCommunityActor(id uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, c := database.ReadCommunityById(id)
	if err != nil || c == nil || !c.Local {
		return fmt.Errorf("community %s not found", id), "{}"
	}

	base := conf.Conf.HostURLActivityPub
	displayName := c.DisplayName
	if displayName == "" {
		displayName = c.Name
	}
	summary := strings.ReplaceAll(c.Summary, "\"", "\\\"")
	summary = strings.ReplaceAll(summary, "\n", "\\n")

	return nil, fmt.Sprintf(`{
	"@context": ["https://www.w3.org/ns/activitystreams", "https://w3id.org/security/v1"],
	"id": "%s",
	"type": "Group",
	"preferredUsername": "%s",
	"name": "%s",
	"summary": "%s",
	"inbox": "%s",
	"outbox": "%s",
	"followers": "%s",
	"url": "%s",
	"manuallyApprovesFollowers": false,
	"discoverable": true,
	"endpoints": {"sharedInbox": "%s"},
	"publicKey": {"id": "%s", "owner": "%s", "publicKeyPem": "%s"}
}`,
		activitypub.CommunityIRI(base, c.Id),
		c.Name, displayName, summary,
		activitypub.CommunityInboxIRI(base, c.Id),
		activitypub.CommunityOutboxIRI(base, c.Id),
		activitypub.CommunityFollowersIRI(base, c.Id),
		activitypub.CommunityIRI(base, c.Id),
		activitypub.SharedInboxIRI(base),
		activitypub.CommunityKeyIRI(base, c.Id),
		activitypub.CommunityIRI(base, c.Id),
		pubKeyEscaped(c.PublicKeyPem),
	)
}

// GetPostObject returns a local Post as an ActivityPub Page object (§4.4's
// BuildCreatePage shape, without the wrapping Create activity).
func GetPostObject(id uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, post := database.ReadPostById(id)
	if err != nil || post == nil || !post.Local {
		return fmt.Errorf("post %s not found", id), "{}"
	}
	err, community := database.ReadCommunityById(post.CommunityId)
	if err != nil || community == nil {
		return fmt.Errorf("community for post %s not found", id), "{}"
	}

	base := conf.Conf.HostURLActivityPub
	contentHTML := post.ContentHTML
	if contentHTML == "" {
		contentHTML = util.MarkdownLinksToHTML(post.ContentMarkdown)
	}

	obj := map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           activitypub.PostIRI(base, post.Id),
		"type":         "Page",
		"name":         post.Title,
		"attributedTo": activitypub.CommunityIRI(base, community.Id),
		"content":      contentHTML,
		"mediaType":    "text/html",
		"published":    post.CreatedAt.Format(time.RFC3339),
		"to":           []string{"https://www.w3.org/ns/activitystreams#Public"},
		"cc":           []string{activitypub.CommunityFollowersIRI(base, community.Id)},
	}
	if post.Href != "" {
		obj["url"] = post.Href
	}
	if post.EditedAt != nil {
		obj["updated"] = post.EditedAt.Format(time.RFC3339)
	}

	jsonBytes, err := json.Marshal(obj)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

// GetReplyObject returns a local Reply as an ActivityPub Note object.
func GetReplyObject(id uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, reply := database.ReadReplyById(id)
	if err != nil || reply == nil || !reply.Local {
		return fmt.Errorf("reply %s not found", id), "{}"
	}
	err, post := database.ReadPostById(reply.PostId)
	if err != nil || post == nil {
		return fmt.Errorf("post for reply %s not found", id), "{}"
	}
	err, community := database.ReadCommunityById(post.CommunityId)
	if err != nil || community == nil {
		return fmt.Errorf("community for reply %s not found", id), "{}"
	}

	base := conf.Conf.HostURLActivityPub
	inReplyTo := activitypub.PostIRI(base, post.Id)
	if reply.ParentId.Valid {
		inReplyTo = activitypub.CommentIRI(base, reply.ParentId.UUID)
	}

	obj := map[string]any{
		"@context":  "https://www.w3.org/ns/activitystreams",
		"id":        activitypub.CommentIRI(base, reply.Id),
		"type":      "Note",
		"inReplyTo": inReplyTo,
		"content":   util.MarkdownLinksToHTML(reply.Content),
		"mediaType": "text/html",
		"published": reply.CreatedAt.Format(time.RFC3339),
		"to":        []string{"https://www.w3.org/ns/activitystreams#Public"},
		"cc":        []string{activitypub.CommunityFollowersIRI(base, community.Id)},
	}
	if reply.AuthorId.Valid {
		if err, author := database.ReadPersonById(reply.AuthorId.UUID); err == nil && author != nil {
			obj["attributedTo"] = activitypub.PersonIRI(base, author.Id)
		}
	}
	if reply.EditedAt != nil {
		obj["updated"] = reply.EditedAt.Format(time.RFC3339)
	}

	jsonBytes, err := json.Marshal(obj)
	if err != nil {
		return err, "{}"
	}
	return nil, string(jsonBytes)
}

// GetFollowersCollection returns a local Community's followers as a paged
// ActivityPub OrderedCollection, per Open Question (c)'s resolution
// (always paginated, matching Mastodon/Lemmy compatibility expectations).
func GetFollowersCollection(communityId uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, community := database.ReadCommunityById(communityId)
	if err != nil || community == nil || !community.Local {
		return fmt.Errorf("community %s not found", communityId), "{}"
	}

	err, follows := database.ReadCommunityFollowers(communityId)
	total := 0
	if err == nil && follows != nil {
		for _, f := range *follows {
			if f.Accepted {
				total++
			}
		}
	}

	base := conf.Conf.HostURLActivityPub
	collectionURI := activitypub.CommunityFollowersIRI(base, communityId)
	collection := map[string]any{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         collectionURI,
		"type":       "OrderedCollection",
		"totalItems": total,
		"first":      fmt.Sprintf("%s?page=1", collectionURI),
	}
	jsonBytes, jsonErr := json.Marshal(collection)
	if jsonErr != nil {
		return jsonErr, "{}"
	}
	return nil, string(jsonBytes)
}

// GetFollowersPage returns a single OrderedCollectionPage of follower actor
// IRIs for a local Community.
func GetFollowersPage(communityId uuid.UUID, conf *util.AppConfig, page int) (error, string) {
	database := db.GetDB()
	err, community := database.ReadCommunityById(communityId)
	if err != nil || community == nil || !community.Local {
		return fmt.Errorf("community %s not found", communityId), "{}"
	}

	err, follows := database.ReadCommunityFollowers(communityId)
	if err != nil {
		return err, "{}"
	}

	base := conf.Conf.HostURLActivityPub
	var followerURIs []string
	if follows != nil {
		for _, f := range *follows {
			if !f.Accepted {
				continue
			}
			if err, p := database.ReadPersonById(f.FollowerId); err == nil && p != nil {
				if p.Local {
					followerURIs = append(followerURIs, activitypub.PersonIRI(base, p.Id))
				} else {
					followerURIs = append(followerURIs, p.APId)
				}
			}
		}
	}

	collectionURI := activitypub.CommunityFollowersIRI(base, communityId)
	pageURI := fmt.Sprintf("%s?page=%d", collectionURI, page)
	collectionPage := map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           pageURI,
		"type":         "OrderedCollectionPage",
		"partOf":       collectionURI,
		"orderedItems": followerURIs,
		"totalItems":   len(followerURIs),
	}
	jsonBytes, jsonErr := json.Marshal(collectionPage)
	if jsonErr != nil {
		return jsonErr, "{}"
	}
	return nil, string(jsonBytes)
}

// GetFollowerMembership answers GET /communities/{id}/followers/{uid}: a
// membership proof (the Follow activity's accepted state) for one follower,
// 404 if that Person does not currently follow the community.
func GetFollowerMembership(communityId, followerId uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, follow := database.ReadCommunityFollow(communityId, followerId)
	if err != nil || follow == nil || !follow.Accepted {
		return fmt.Errorf("no accepted follow for %s in %s", followerId, communityId), "{}"
	}

	base := conf.Conf.HostURLActivityPub
	doc := map[string]any{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id":       fmt.Sprintf("%s/%s", activitypub.CommunityFollowersIRI(base, communityId), followerId.String()),
		"type":     "Follow",
		"actor":    activitypub.PersonIRI(base, followerId),
		"object":   activitypub.CommunityIRI(base, communityId),
	}
	jsonBytes, jsonErr := json.Marshal(doc)
	if jsonErr != nil {
		return jsonErr, "{}"
	}
	return nil, string(jsonBytes)
}

// GetPostAnnounce returns an Announce document for a Post in a local
// Community, rebuilt on request with activity ids derived from the post's
// own id. It is not a stored copy of the Announce that AnnounceToFollowers
// sent to followers, which carries a freshly generated activity id.
func GetPostAnnounce(communityId, postId uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, community := database.ReadCommunityById(communityId)
	if err != nil || community == nil || !community.Local {
		return fmt.Errorf("community %s not found", communityId), "{}"
	}
	err, post := database.ReadPostById(postId)
	if err != nil || post == nil || post.CommunityId != communityId {
		return fmt.Errorf("post %s not found in community %s", postId, communityId), "{}"
	}

	base := conf.Conf.HostURLActivityPub
	body := activitypub.BuildAnnounce(
		activitypub.ActivityIRI(base, activitypub.ActivityAnnounce, postId),
		activitypub.CommunityIRI(base, community.Id),
		activitypub.CommunityFollowersIRI(base, community.Id),
		activitypub.ActivityIRI(base, activitypub.ActivityCreate, postId),
		post.CreatedAt,
	)
	return nil, body
}

// GetCommentAnnounce is GetPostAnnounce's analogue for Reply/comment
// Announces.
func GetCommentAnnounce(communityId, commentId uuid.UUID, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	err, community := database.ReadCommunityById(communityId)
	if err != nil || community == nil || !community.Local {
		return fmt.Errorf("community %s not found", communityId), "{}"
	}
	err, reply := database.ReadReplyById(commentId)
	if err != nil || reply == nil {
		return fmt.Errorf("comment %s not found", commentId), "{}"
	}
	err, post := database.ReadPostById(reply.PostId)
	if err != nil || post == nil || post.CommunityId != communityId {
		return fmt.Errorf("comment %s not found in community %s", commentId, communityId), "{}"
	}

	base := conf.Conf.HostURLActivityPub
	body := activitypub.BuildAnnounce(
		activitypub.ActivityIRI(base, activitypub.ActivityAnnounce, commentId),
		activitypub.CommunityIRI(base, community.Id),
		activitypub.CommunityFollowersIRI(base, community.Id),
		activitypub.ActivityIRI(base, activitypub.ActivityCreate, commentId),
		reply.CreatedAt,
	)
	return nil, body
}

// GetWebFingerNotFound is the JRD-shaped 404 body for an unresolvable acct.
func GetWebFingerNotFound() string {
	return `{"error": "not found"}`
}

// GetWebfinger resolves a bare "user" or "community" resource (already
// stripped of its "acct:" prefix and "@host" suffix by the caller) to a JRD
// document pointing at that Person's or Community's actor document.
func GetWebfinger(resource string, conf *util.AppConfig) (error, string) {
	database := db.GetDB()
	base := conf.Conf.HostURLActivityPub

	if err, p := database.ReadPersonByUsername(resource); err == nil && p != nil && p.Local {
		return nil, webfingerJRD(resource, conf.Conf.SslDomain, activitypub.PersonIRI(base, p.Id))
	}
	if err, c := database.ReadCommunityByName(resource); err == nil && c != nil && c.Local {
		return nil, webfingerJRD(resource, conf.Conf.SslDomain, activitypub.CommunityIRI(base, c.Id))
	}
	return fmt.Errorf("resource %s not found", resource), GetWebFingerNotFound()
}

func webfingerJRD(resource, domainName, actorIRI string) string {
	doc := map[string]any{
		"subject": fmt.Sprintf("acct:%s@%s", resource, domainName),
		"links": []map[string]string{
			{"rel": "self", "type": "application/activity+json", "href": actorIRI},
		},
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}
