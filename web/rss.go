package web

import (
	"errors"
	"fmt"
	"log"

	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
	"github.com/google/uuid"
	"github.com/gorilla/feeds"
)

const rssPostLimit = 50

// buildURL creates proper URLs based on whether federation is enabled
func buildURL(conf *util.AppConfig, path string) string {
	if conf.Conf.WithAp && conf.Conf.SslDomain != "" {
		return fmt.Sprintf("https://%s%s", conf.Conf.SslDomain, path)
	}
	return fmt.Sprintf("http://%s:%d%s", conf.Conf.Host, conf.Conf.HttpPort, path)
}

// GetRSS returns an RSS feed of a local Community's recent posts. An empty
// community name is not meaningful here (there is no single global
// timeline in a multi-community forum) and is rejected.
func GetRSS(conf *util.AppConfig, community string) (string, error) {
	if community == "" {
		return "", errors.New("community name is required")
	}

	database := db.GetDB()
	err, c := database.ReadCommunityByName(community)
	if err != nil || c == nil {
		log.Printf("Could not find community %s for RSS feed: %v", community, err)
		return "", errors.New("error retrieving community")
	}

	err, posts := database.ReadPostsByCommunity(c.Id, rssPostLimit)
	if err != nil {
		log.Println(fmt.Sprintf("Could not get posts for %s!", community), err)
		return "", errors.New("error retrieving posts by community")
	}
	if posts == nil {
		posts = &[]domain.Post{}
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - forumfed", c.Name),
		Link:        &feeds.Link{Href: buildURL(conf, fmt.Sprintf("/feed?community=%s", community))},
		Description: fmt.Sprintf("recent posts in %s", c.Name),
		Author:      &feeds.Author{Name: c.Name},
		Created:     c.CreatedAt,
	}

	var feedItems []*feeds.Item
	for _, post := range *posts {
		if post.Deleted {
			continue
		}
		feedItems = append(feedItems, feedItemForPost(conf, post))
	}
	feed.Items = feedItems
	return feed.ToRss()
}

// GetRSSItem returns a single-item RSS feed for one local Post, addressed
// by id (mirrors the predecessor service's per-note feed endpoint).
func GetRSSItem(conf *util.AppConfig, id uuid.UUID) (string, error) {
	database := db.GetDB()
	err, post := database.ReadPostById(id)
	if err != nil || post == nil {
		log.Println("Could not get post!", err)
		return "", errors.New("error retrieving post by id")
	}

	feed := &feeds.Feed{
		Title:       post.Title,
		Link:        &feeds.Link{Href: buildURL(conf, fmt.Sprintf("/feed/%s", post.Id))},
		Description: "forumfed single-post feed",
		Created:     post.CreatedAt,
	}
	feed.Items = []*feeds.Item{feedItemForPost(conf, *post)}
	return feed.ToRss()
}

func feedItemForPost(conf *util.AppConfig, post domain.Post) *feeds.Item {
	contentHTML := post.ContentHTML
	if contentHTML == "" {
		contentHTML = util.MarkdownLinksToHTML(post.ContentMarkdown)
	}

	link := post.Href
	if link == "" {
		link = buildURL(conf, fmt.Sprintf("/feed/%s", post.Id))
	}

	author := "remote"
	if post.Local && post.AuthorId.Valid {
		if err, p := db.GetDB().ReadPersonById(post.AuthorId.UUID); err == nil && p != nil {
			author = p.Username
		}
	}

	return &feeds.Item{
		Id:      post.Id.String(),
		Title:   post.Title,
		Link:    &feeds.Link{Href: link},
		Content: contentHTML,
		Author:  &feeds.Author{Name: author},
		Created: post.CreatedAt,
	}
}
