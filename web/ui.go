package web

import (
	"fmt"
	"html/template"
	"log"
	"strconv"
	"time"

	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IndexPageData backs the instance index: the list of locally-hosted
// communities.
type IndexPageData struct {
	Title       string
	Host        string
	SSHPort     int
	Version     string
	Communities []CommunityView
}

// CommunityPageData backs a single community's post listing.
type CommunityPageData struct {
	Title      string
	Host       string
	SSHPort    int
	Version    string
	Community  CommunityView
	Posts      []PostView
	TotalPosts int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

// SinglePostPageData backs a single post and its replies.
type SinglePostPageData struct {
	Title     string
	Host      string
	SSHPort   int
	Version   string
	Community CommunityView
	Post      PostView
	Replies   []PostView
}

type CommunityView struct {
	Name        string
	DisplayName string
	Summary     string
	CreatedAgo  string
}

type PostView struct {
	Id          string
	Title       string
	Href        string
	ContentHTML template.HTML
	Author      string
	TimeAgo     string
	ReplyCount  int
	IsReply     bool
}

func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	} else if duration < 30*24*time.Hour {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("Jan 2, 2006")
}

func uiHost(conf *util.AppConfig) string {
	if conf.Conf.WithAp {
		return conf.Conf.SslDomain
	}
	return conf.Conf.Host
}

func communityView(c domain.Community) CommunityView {
	displayName := c.DisplayName
	if displayName == "" {
		displayName = c.Name
	}
	return CommunityView{
		Name:        c.Name,
		DisplayName: displayName,
		Summary:     c.Summary,
		CreatedAgo:  formatTimeAgo(c.CreatedAt),
	}
}

func postView(database *db.DB, p domain.Post) PostView {
	contentHTML := p.ContentHTML
	if contentHTML == "" {
		contentHTML = util.MarkdownLinksToHTML(p.ContentMarkdown)
	}

	author := "[deleted]"
	if p.AuthorId.Valid {
		if err, person := database.ReadPersonById(p.AuthorId.UUID); err == nil && person != nil {
			author = person.Username
			if !person.Local {
				author = fmt.Sprintf("%s@%s", person.Username, person.Domain)
			}
		}
	}

	replyCount := 0
	if err, replies := database.ReadRepliesByPost(p.Id); err == nil && replies != nil {
		replyCount = len(*replies)
	}

	return PostView{
		Id:          p.Id.String(),
		Title:       p.Title,
		Href:        p.Href,
		ContentHTML: template.HTML(contentHTML),
		Author:      author,
		TimeAgo:     formatTimeAgo(p.CreatedAt),
		ReplyCount:  replyCount,
	}
}

func replyView(database *db.DB, r domain.Reply) PostView {
	author := "[deleted]"
	if r.AuthorId.Valid {
		if err, person := database.ReadPersonById(r.AuthorId.UUID); err == nil && person != nil {
			author = person.Username
			if !person.Local {
				author = fmt.Sprintf("%s@%s", person.Username, person.Domain)
			}
		}
	}
	return PostView{
		Id:          r.Id.String(),
		ContentHTML: template.HTML(util.MarkdownLinksToHTML(r.Content)),
		Author:      author,
		TimeAgo:     formatTimeAgo(r.CreatedAt),
		IsReply:     true,
	}
}

// HandleIndex lists every locally-hosted community.
func HandleIndex(c *gin.Context, conf *util.AppConfig) {
	database := db.GetDB()

	err, communities := database.ReadAllLocalCommunities()
	if err != nil {
		log.Printf("Failed to read communities: %v", err)
		c.HTML(500, "base.html", gin.H{"Title": "Error", "Error": "Failed to load communities"})
		return
	}
	if communities == nil {
		communities = &[]domain.Community{}
	}

	views := make([]CommunityView, 0, len(*communities))
	for _, community := range *communities {
		views = append(views, communityView(community))
	}

	data := IndexPageData{
		Title:       "Communities",
		Host:        uiHost(conf),
		SSHPort:     conf.Conf.SshPort,
		Version:     util.GetVersion(),
		Communities: views,
	}
	c.HTML(200, "index.html", data)
}

const postsPerPage = 20

// HandleCommunity lists a single community's top-level posts, paginated.
func HandleCommunity(c *gin.Context, conf *util.AppConfig) {
	name := c.Param("name")
	database := db.GetDB()

	err, community := database.ReadCommunityByName(name)
	if err != nil || community == nil {
		log.Printf("Community not found: %s", name)
		c.HTML(404, "base.html", gin.H{"Title": "Not Found", "Error": "Community not found"})
		return
	}

	page := 1
	if p, parseErr := strconv.Atoi(c.Query("page")); parseErr == nil && p > 0 {
		page = p
	}

	// One post past the page is read so HasNext can tell whether a next page exists.
	err, posts := database.ReadPostsByCommunity(community.Id, postsPerPage*page+1)
	if err != nil {
		log.Printf("Failed to read posts for community %s: %v", name, err)
		c.HTML(500, "base.html", gin.H{"Title": "Error", "Error": "Failed to load posts"})
		return
	}
	if posts == nil {
		posts = &[]domain.Post{}
	}

	total := len(*posts)
	start := (page - 1) * postsPerPage
	end := start + postsPerPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	pagePosts := (*posts)[start:end]

	views := make([]PostView, 0, len(pagePosts))
	for _, post := range pagePosts {
		views = append(views, postView(database, post))
	}

	data := CommunityPageData{
		Title:      community.Name,
		Host:       uiHost(conf),
		SSHPort:    conf.Conf.SshPort,
		Version:    util.GetVersion(),
		Community:  communityView(*community),
		Posts:      views,
		TotalPosts: total,
		HasPrev:    page > 1,
		HasNext:    end < total,
		PrevPage:   page - 1,
		NextPage:   page + 1,
	}
	c.HTML(200, "community.html", data)
}

// HandleSinglePost shows one post and its replies.
func HandleSinglePost(c *gin.Context, conf *util.AppConfig) {
	name := c.Param("name")
	postIdStr := c.Param("postid")
	database := db.GetDB()

	postId, err := uuid.Parse(postIdStr)
	if err != nil {
		c.HTML(404, "base.html", gin.H{"Title": "Not Found", "Error": "Post not found"})
		return
	}

	err, community := database.ReadCommunityByName(name)
	if err != nil || community == nil {
		c.HTML(404, "base.html", gin.H{"Title": "Not Found", "Error": "Community not found"})
		return
	}

	err, post := database.ReadPostById(postId)
	if err != nil || post == nil || post.CommunityId != community.Id || post.Deleted {
		c.HTML(404, "base.html", gin.H{"Title": "Not Found", "Error": "Post not found"})
		return
	}

	err, replies := database.ReadRepliesByPost(postId)
	var replyViews []PostView
	if err == nil && replies != nil {
		for _, r := range *replies {
			replyViews = append(replyViews, replyView(database, r))
		}
	}

	data := SinglePostPageData{
		Title:     post.Title,
		Host:      uiHost(conf),
		SSHPort:   conf.Conf.SshPort,
		Version:   util.GetVersion(),
		Community: communityView(*community),
		Post:      postView(database, *post),
		Replies:   replyViews,
	}
	c.HTML(200, "post.html", data)
}
