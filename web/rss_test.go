package web

import (
	"strings"
	"testing"

	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
	"github.com/google/uuid"
)

func testRSSConf() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.Host = "localhost"
	conf.Conf.HttpPort = 8080
	conf.Conf.SslDomain = "example.com"
	return conf
}

func TestGetRSSRejectsEmptyCommunity(t *testing.T) {
	_, err := GetRSS(testRSSConf(), "")
	if err == nil {
		t.Fatalf("expected an error for an empty community name")
	}
}

func TestGetRSSRejectsUnknownCommunity(t *testing.T) {
	_, err := GetRSS(testRSSConf(), "no-such-community-"+uuid.New().String())
	if err == nil {
		t.Fatalf("expected an error for an unknown community")
	}
}

func TestGetRSSListsNonDeletedPosts(t *testing.T) {
	database := db.GetDB()
	conf := testRSSConf()

	name := "rss-" + uuid.New().String()
	c := &domain.Community{Name: name}
	if err := database.CreateLocalCommunity(c); err != nil {
		t.Fatalf("CreateLocalCommunity: %v", err)
	}
	kept := &domain.Post{CommunityId: c.Id, Title: "kept post", Local: true, ContentMarkdown: "hello"}
	database.CreatePost(kept)
	removed := &domain.Post{CommunityId: c.Id, Title: "removed post", Local: true}
	database.CreatePost(removed)
	database.SoftDeletePost(removed.Id)

	xml, err := GetRSS(conf, name)
	if err != nil {
		t.Fatalf("GetRSS: %v", err)
	}
	if !strings.Contains(xml, "kept post") {
		t.Errorf("expected the feed to include the non-deleted post, got:\n%s", xml)
	}
	if strings.Contains(xml, "removed post") {
		t.Errorf("expected the feed to exclude the deleted post, got:\n%s", xml)
	}
	if !strings.Contains(xml, "<rss") {
		t.Errorf("expected a valid RSS document, got:\n%s", xml)
	}
}

func TestGetRSSItemRejectsUnknownPost(t *testing.T) {
	_, err := GetRSSItem(testRSSConf(), uuid.New())
	if err == nil {
		t.Fatalf("expected an error for an unknown post id")
	}
}

func TestGetRSSItemRendersSinglePost(t *testing.T) {
	database := db.GetDB()
	conf := testRSSConf()

	c := &domain.Community{Name: "rss-" + uuid.New().String()}
	database.CreateLocalCommunity(c)
	post := &domain.Post{CommunityId: c.Id, Title: "single item post", Local: true, ContentMarkdown: "body text"}
	database.CreatePost(post)

	xml, err := GetRSSItem(conf, post.Id)
	if err != nil {
		t.Fatalf("GetRSSItem: %v", err)
	}
	if !strings.Contains(xml, "single item post") {
		t.Errorf("expected the feed item to include the post title, got:\n%s", xml)
	}
}

func TestBuildURLUsesHTTPSWhenFederating(t *testing.T) {
	conf := testRSSConf()
	conf.Conf.WithAp = true

	got := buildURL(conf, "/feed")
	want := "https://example.com/feed"
	if got != want {
		t.Errorf("buildURL() = %q, want %q", got, want)
	}
}

func TestBuildURLUsesPlainHTTPWithoutFederation(t *testing.T) {
	conf := testRSSConf()
	conf.Conf.WithAp = false

	got := buildURL(conf, "/feed")
	want := "http://localhost:8080/feed"
	if got != want {
		t.Errorf("buildURL() = %q, want %q", got, want)
	}
}
