package web

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"github.com/embervale/forumfed/activitypub"
	"github.com/embervale/forumfed/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Router builds the HTTP handler: the read-only web UI and RSS feeds
// always present, plus the ActivityPub federation surface of §6 when
// conf.Conf.WithAp is set. It returns the handler rather than running it
// itself, so App can own the *http.Server and its graceful shutdown.
func Router(conf *util.AppConfig, worker *activitypub.DeliveryWorker) (*gin.Engine, error) {
	gin.DefaultWriter = util.GetLogWriter()
	gin.DefaultErrorWriter = util.GetLogWriter()

	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	g.Static("/static", "./web/static")

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	tmpl, err := template.ParseFS(embeddedTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	g.SetHTMLTemplate(tmpl)

	// Web UI routes
	g.GET("/", func(c *gin.Context) { HandleIndex(c, conf) })
	g.GET("/c/:name", func(c *gin.Context) { HandleCommunity(c, conf) })
	g.GET("/c/:name/posts/:postid", func(c *gin.Context) { HandleSinglePost(c, conf) })

	// RSS feeds
	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		rss, err := GetRSS(conf, c.Query("community"))
		if err != nil {
			c.Render(404, render.String{Format: ""})
			return
		}
		c.Render(200, render.String{Format: rss})
	})

	g.GET("/feed/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		postId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.Render(404, render.String{Format: ""})
			return
		}
		rssItem, err := GetRSSItem(conf, postId)
		if err != nil {
			c.Render(404, render.String{Format: ""})
			return
		}
		c.Render(200, render.String{Format: rssItem})
	})

	if conf.Conf.WithAp {
		registerActivityPubRoutes(g, conf, worker)
	}

	return g, nil
}

// registerActivityPubRoutes wires the federation-relevant HTTP surface of
// §6: actor/object endpoints, inboxes, followers collections, announces,
// webfinger, and nodeinfo.
func registerActivityPubRoutes(g *gin.Engine, conf *util.AppConfig, worker *activitypub.DeliveryWorker) {
	apLimiter := NewRateLimiter(rate.Limit(5), 10)
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024) // 1MB, mirrors maxInboxBodyBytes

	database := activitypub.NewDBWrapper()
	httpClient := activitypub.NewDefaultHTTPClient(30 * time.Second)

	inboxDeps := &activitypub.InboxDeps{
		Database:   database,
		HTTPClient: httpClient,
		Conf:       conf,
		Worker:     worker,
	}
	outboxDeps := &activitypub.OutboxDeps{
		Database: database,
		Conf:     conf,
		Worker:   worker,
	}
	registerLocalActionRoutes(g, outboxDeps, httpClient, apLimiter, maxBodySize)

	apJSON := func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
	}

	g.GET("/users/:id", func(c *gin.Context) {
		apJSON(c)
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid person id"})
			return
		}
		err, actor := GetPersonActor(id, conf)
		if err != nil {
			c.Render(404, render.String{Format: actor})
			return
		}
		c.Render(200, render.String{Format: actor})
	})

	g.GET("/communities/:id", func(c *gin.Context) {
		apJSON(c)
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid community id"})
			return
		}
		err, actor := GetCommunityActor(id, conf)
		if err != nil {
			c.Render(404, render.String{Format: actor})
			return
		}
		c.Render(200, render.String{Format: actor})
	})

	g.GET("/posts/:id", func(c *gin.Context) {
		apJSON(c)
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid post id"})
			return
		}
		err, obj := GetPostObject(id, conf)
		if err != nil {
			c.Render(404, render.String{Format: obj})
			return
		}
		c.Render(200, render.String{Format: obj})
	})

	g.GET("/comments/:id", func(c *gin.Context) {
		apJSON(c)
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid comment id"})
			return
		}
		err, obj := GetReplyObject(id, conf)
		if err != nil {
			c.Render(404, render.String{Format: obj})
			return
		}
		c.Render(200, render.String{Format: obj})
	})

	g.GET("/communities/:id/posts/:pid/announce", func(c *gin.Context) {
		apJSON(c)
		communityId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid community id"})
			return
		}
		postId, err := uuid.Parse(c.Param("pid"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid post id"})
			return
		}
		err, doc := GetPostAnnounce(communityId, postId, conf)
		if err != nil {
			c.Render(404, render.String{Format: "{}"})
			return
		}
		c.Render(200, render.String{Format: doc})
	})

	g.GET("/communities/:id/comments/:cid/announce", func(c *gin.Context) {
		apJSON(c)
		communityId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid community id"})
			return
		}
		commentId, err := uuid.Parse(c.Param("cid"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid comment id"})
			return
		}
		err, doc := GetCommentAnnounce(communityId, commentId, conf)
		if err != nil {
			c.Render(404, render.String{Format: "{}"})
			return
		}
		c.Render(200, render.String{Format: doc})
	})

	g.GET("/communities/:id/followers", func(c *gin.Context) {
		apJSON(c)
		communityId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid community id"})
			return
		}

		if pageStr := c.Query("page"); pageStr != "" {
			page := ParsePageParam(pageStr)
			err, doc := GetFollowersPage(communityId, conf, page)
			if err != nil {
				c.Render(404, render.String{Format: "{}"})
				return
			}
			c.Render(200, render.String{Format: doc})
			return
		}

		err, doc := GetFollowersCollection(communityId, conf)
		if err != nil {
			c.Render(404, render.String{Format: "{}"})
			return
		}
		c.Render(200, render.String{Format: doc})
	})

	g.GET("/communities/:id/followers/:uid", func(c *gin.Context) {
		apJSON(c)
		communityId, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid community id"})
			return
		}
		followerId, err := uuid.Parse(c.Param("uid"))
		if err != nil {
			c.JSON(404, gin.H{"error": "invalid follower id"})
			return
		}
		err, doc := GetFollowerMembership(communityId, followerId, conf)
		if err != nil {
			c.Render(404, render.String{Format: "{}"})
			return
		}
		c.Render(200, render.String{Format: doc})
	})

	g.POST("/users/:id/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.Status(404)
			return
		}
		log.Printf("POST /users/%s/inbox", id)
		activitypub.HandleInbox(c.Writer, c.Request, activitypub.RecipientPerson, id, inboxDeps)
	})

	g.POST("/communities/:id/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.Status(404)
			return
		}
		log.Printf("POST /communities/%s/inbox", id)
		activitypub.HandleInbox(c.Writer, c.Request, activitypub.RecipientCommunity, id, inboxDeps)
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		c.Header("Content-Type", "application/jrd+json; charset=utf-8")

		resource := c.Query("resource")
		if resource == "" || !strings.HasPrefix(resource, "acct:") {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
			return
		}
		resource = strings.TrimPrefix(resource, "acct:")
		resource = strings.TrimSuffix(resource, fmt.Sprintf("@%s", conf.Conf.SslDomain))
		err, resp := GetWebfinger(resource, conf)
		if err != nil {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
			return
		}
		c.Render(200, render.String{Format: resp})
	})

	g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetWellKnownNodeInfo(conf)})
	})

	g.GET("/nodeinfo/2.0", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetNodeInfo20(conf)})
	})
}
