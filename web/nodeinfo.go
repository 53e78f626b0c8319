package web

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/util"
)

// NodeInfo20 represents the NodeInfo 2.0 schema
// See: https://nodeinfo.diaspora.software/schema.html
type NodeInfo20 struct {
	Version           string           `json:"version"`
	Software          NodeInfoSoftware `json:"software"`
	Protocols         []string         `json:"protocols"`
	Services          NodeInfoServices `json:"services"`
	OpenRegistrations bool             `json:"openRegistrations"`
	Usage             NodeInfoUsage    `json:"usage"`
	Metadata          NodeInfoMetadata `json:"metadata"`
}

type NodeInfoSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NodeInfoServices struct {
	Inbound  []string `json:"inbound"`
	Outbound []string `json:"outbound"`
}

type NodeInfoUsage struct {
	Users      NodeInfoUsers `json:"users"`
	LocalPosts int           `json:"localPosts"`
}

type NodeInfoUsers struct {
	Total          int `json:"total"`
	ActiveMonth    int `json:"activeMonth"`
	ActiveHalfyear int `json:"activeHalfyear"`
}

type NodeInfoMetadata struct {
	NodeName        string `json:"nodeName"`
	NodeDescription string `json:"nodeDescription"`
}

// WellKnownNodeInfo represents the /.well-known/nodeinfo response
type WellKnownNodeInfo struct {
	Links []NodeInfoLink `json:"links"`
}

type NodeInfoLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// GetNodeInfo20 returns a NodeInfo 2.0 JSON response
func GetNodeInfo20(conf *util.AppConfig) string {
	database := db.GetDB()

	// Get statistics from database
	err, totalUsers := database.CountLocalPersons()
	if err != nil {
		log.Printf("Failed to count local persons: %v", err)
		totalUsers = 0
	}

	err, localPosts := database.CountLocalPosts()
	if err != nil {
		log.Printf("Failed to count local posts: %v", err)
		localPosts = 0
	}

	err, activeMonth := database.CountActiveLocalPersonsSince(time.Now().AddDate(0, -1, 0))
	if err != nil {
		log.Printf("Failed to count active users (month): %v", err)
		activeMonth = 0
	}

	err, activeHalfyear := database.CountActiveLocalPersonsSince(time.Now().AddDate(0, -6, 0))
	if err != nil {
		log.Printf("Failed to count active users (half year): %v", err)
		activeHalfyear = 0
	}

	// Determine if registrations are open
	// Closed if: conf.Conf.Closed OR (conf.Conf.Single AND a user exists)
	openRegistrations := !conf.Conf.Closed
	if conf.Conf.Single && totalUsers >= 1 {
		openRegistrations = false
	}

	// Get node description (use custom if set, otherwise default)
	nodeDescription := conf.Conf.NodeDescription
	if nodeDescription == "" {
		nodeDescription = "A federated link-aggregation community"
	}

	nodeName := conf.Conf.SslDomain
	if nodeName == "" {
		nodeName = "forumfed"
	}

	// Build NodeInfo response from a fixed fmt.Sprintf template so the field
	// order is exactly the one written below
	nodeInfoJSON := fmt.Sprintf(`{
  "version": "2.0",
  "software": {
    "name": "forumfed",
    "version": "%s"
  },
  "protocols": ["activitypub"],
  "services": {
    "outbound": [],
    "inbound": []
  },
  "usage": {
    "users": {
      "total": %d,
      "activeMonth": %d,
      "activeHalfyear": %d
    },
    "localPosts": %d
  },
  "openRegistrations": %t,
  "metadata": {
    "nodeName": "%s",
    "nodeDescription": "%s"
  }
}`,
		util.GetVersion(),
		totalUsers,
		activeMonth,
		activeHalfyear,
		localPosts,
		openRegistrations,
		nodeName,
		nodeDescription,
	)

	return nodeInfoJSON
}

// GetWellKnownNodeInfo returns the /.well-known/nodeinfo discovery document
func GetWellKnownNodeInfo(conf *util.AppConfig) string {
	wellKnown := WellKnownNodeInfo{
		Links: []NodeInfoLink{
			{
				Rel:  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				Href: "https://" + conf.Conf.SslDomain + "/nodeinfo/2.0",
			},
		},
	}

	jsonBytes, err := json.Marshal(wellKnown)
	if err != nil {
		log.Printf("Failed to marshal well-known nodeinfo: %v", err)
		return "{}"
	}

	return string(jsonBytes)
}
