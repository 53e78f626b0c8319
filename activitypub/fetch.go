package activitypub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/embervale/forumfed/domain"
)

const (
	// maxFetchBodyBytes caps every inbound document this engine parses,
	// inbox deliveries and fetched actor/object documents alike (§4.3, §4.5).
	maxFetchBodyBytes = 1 << 20 // 1 MiB

	// actorFreshness is how long a cached remote actor is trusted before
	// FetchActor re-fetches it, following the predecessor's GetOrFetchActor.
	actorFreshness = 24 * time.Hour
)

var fetchGroup = newFlightGroup()

// actorDoc is the subset of a Person/Service/Group ActivityPub actor
// document the engine persists.
type actorDoc struct {
	Id                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Name              string `json:"name"`
	Summary           string `json:"summary"`
	Inbox             string `json:"inbox"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	PublicKey struct {
		Id           string `json:"id"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// objectDoc is the subset of a Page/Note ActivityPub object document the
// engine persists.
type objectDoc struct {
	Id           string `json:"id"`
	Type         string `json:"type"`
	AttributedTo string `json:"attributedTo"`
	InReplyTo    string `json:"inReplyTo"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Content      string `json:"content"`
	Published    string `json:"published"`
}

// getActivityJSON issues a signed-less GET against url with the headers
// remote servers expect for ActivityPub content negotiation, bounding the
// body size per §4.3 step 2. Redirects are bounded by the client itself
// (see NewDefaultHTTPClient).
func getActivityJSON(client HTTPClient, url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "forumfed/1.0 ActivityPub")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch: unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: failed to read body: %w", err)
	}
	if len(body) > maxFetchBodyBytes {
		return nil, fmt.Errorf("fetch: body for %s exceeds %d bytes", url, maxFetchBodyBytes)
	}
	return body, nil
}

// FetchActor resolves ap_id to a remote Person or Community (on success
// exactly one of the two is non-nil), by cache lookup first and network
// fetch second (§4.3 steps 1-4). Concurrent calls for the same url are coalesced.
func FetchActor(database Database, client HTTPClient, apId string) (person *domain.Person, community *domain.Community, err error) {
	if err, cached := database.ReadPersonByAPId(apId); err == nil && cached != nil {
		if time.Since(cached.LastFetchedAt) < actorFreshness {
			return cached, nil, nil
		}
	}
	if err, cached := database.ReadCommunityByAPId(apId); err == nil && cached != nil {
		if time.Since(cached.LastFetchedAt) < actorFreshness {
			return nil, cached, nil
		}
	}

	result, ferr := fetchGroup.Do(apId, func() (any, error) {
		body, err := getActivityJSON(client, apId)
		if err != nil {
			return nil, err
		}
		var doc actorDoc
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("fetch: failed to parse actor %s: %w", apId, err)
		}
		if doc.Id == "" || doc.PublicKey.PublicKeyPem == "" {
			return nil, fmt.Errorf("fetch: actor document %s missing id or publicKey", apId)
		}

		switch doc.Type {
		case "Person", "Service":
			p := &domain.Person{
				Username:       doc.PreferredUsername,
				DisplayName:    doc.Name,
				Summary:        doc.Summary,
				PublicKeyPem:   doc.PublicKey.PublicKeyPem,
				APId:           doc.Id,
				Domain:         hostOf(doc.Id),
				InboxURI:       doc.Inbox,
				SharedInboxURI: doc.Endpoints.SharedInbox,
				LastFetchedAt:  time.Now(),
			}
			if err := database.UpsertRemotePerson(p); err != nil {
				return nil, fmt.Errorf("fetch: failed to upsert person %s: %w", apId, err)
			}
			return p, nil
		case "Group":
			c := &domain.Community{
				Name:           doc.PreferredUsername,
				DisplayName:    doc.Name,
				Summary:        doc.Summary,
				PublicKeyPem:   doc.PublicKey.PublicKeyPem,
				APId:           doc.Id,
				Domain:         hostOf(doc.Id),
				InboxURI:       doc.Inbox,
				SharedInboxURI: doc.Endpoints.SharedInbox,
				LastFetchedAt:  time.Now(),
			}
			if err := database.UpsertRemoteCommunity(c); err != nil {
				return nil, fmt.Errorf("fetch: failed to upsert community %s: %w", apId, err)
			}
			return c, nil
		default:
			return nil, fmt.Errorf("fetch: unsupported actor type %q for %s", doc.Type, apId)
		}
	})
	if ferr != nil {
		return nil, nil, ferr
	}

	switch v := result.(type) {
	case *domain.Person:
		return v, nil, nil
	case *domain.Community:
		return nil, v, nil
	default:
		return nil, nil, errors.New("fetch: unreachable actor fetch result")
	}
}

// FetchObject resolves ap_id to a remote Post or Reply, exactly one of the
// return values non-nil, following the same cache-then-network contract as
// FetchActor. Posts and Replies have no freshness window once created:
// federated content is immutable apart from explicit Update/Delete
// activities handled by the inbox.
func FetchObject(database Database, client HTTPClient, apId string) (post *domain.Post, reply *domain.Reply, err error) {
	if err, cached := database.ReadPostByAPId(apId); err == nil && cached != nil {
		return cached, nil, nil
	}
	if err, cached := database.ReadReplyByAPId(apId); err == nil && cached != nil {
		return nil, cached, nil
	}

	result, ferr := fetchGroup.Do(apId, func() (any, error) {
		body, err := getActivityJSON(client, apId)
		if err != nil {
			return nil, err
		}
		var doc objectDoc
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("fetch: failed to parse object %s: %w", apId, err)
		}
		if doc.Id == "" {
			return nil, fmt.Errorf("fetch: object document %s missing id", apId)
		}

		switch doc.Type {
		case "Page":
			p := &domain.Post{
				Title:       doc.Name,
				Href:        doc.URL,
				ContentHTML: doc.Content,
				APId:        doc.Id,
			}
			err, upserted := database.UpsertRemotePost(p)
			if err != nil {
				return nil, fmt.Errorf("fetch: failed to upsert post %s: %w", apId, err)
			}
			return upserted, nil
		case "Note":
			r := &domain.Reply{
				Content: doc.Content,
				APId:    doc.Id,
			}
			err, upserted := database.UpsertRemoteReply(r)
			if err != nil {
				return nil, fmt.Errorf("fetch: failed to upsert reply %s: %w", apId, err)
			}
			return upserted, nil
		default:
			return nil, fmt.Errorf("fetch: unsupported object type %q for %s", doc.Type, apId)
		}
	})
	if ferr != nil {
		return nil, nil, ferr
	}

	switch v := result.(type) {
	case *domain.Post:
		return v, nil, nil
	case *domain.Reply:
		return nil, v, nil
	default:
		return nil, nil, errors.New("fetch: unreachable object fetch result")
	}
}

// hostOf extracts the host component of an ActivityPub id URL, used to
// populate Domain on newly cached remote actors.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
