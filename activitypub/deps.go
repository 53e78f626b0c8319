package activitypub

import (
	"fmt"
	"net/http"
	"time"

	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/domain"
	"github.com/google/uuid"
)

// Database defines the storage operations required by the federation
// engine. This interface allows dependency injection and testing with mock
// implementations, exactly as the predecessor service's own Database
// interface did for its Account/Note model.
type Database interface {
	// Person operations
	CreateLocalPerson(p *domain.Person) error
	UpsertRemotePerson(p *domain.Person) error
	ReadPersonByUsername(username string) (error, *domain.Person)
	ReadPersonById(id uuid.UUID) (error, *domain.Person)
	ReadPersonByAPId(apId string) (error, *domain.Person)

	// Community operations
	CreateLocalCommunity(c *domain.Community) error
	UpsertRemoteCommunity(c *domain.Community) error
	ReadCommunityByName(name string) (error, *domain.Community)
	ReadCommunityById(id uuid.UUID) (error, *domain.Community)
	ReadCommunityByAPId(apId string) (error, *domain.Community)

	// Post operations
	CreatePost(p *domain.Post) error
	UpsertRemotePost(p *domain.Post) (error, *domain.Post)
	ReadPostById(id uuid.UUID) (error, *domain.Post)
	ReadPostByAPId(apId string) (error, *domain.Post)
	ReadPostsByCommunity(communityId uuid.UUID, limit int) (error, *[]domain.Post)
	SoftDeletePost(id uuid.UUID) error

	// Reply operations
	CreateReply(r *domain.Reply) error
	UpsertRemoteReply(r *domain.Reply) (error, *domain.Reply)
	ReadReplyById(id uuid.UUID) (error, *domain.Reply)
	ReadReplyByAPId(apId string) (error, *domain.Reply)
	SoftDeleteReply(id uuid.UUID) error

	// CommunityFollow operations
	CreateCommunityFollow(f *domain.CommunityFollow) error
	ReadCommunityFollow(communityId, followerId uuid.UUID) (error, *domain.CommunityFollow)
	ReadCommunityFollowByAPId(apId string) (error, *domain.CommunityFollow)
	AcceptCommunityFollow(id uuid.UUID) error
	DeleteCommunityFollow(communityId, followerId uuid.UUID) error
	ReadCommunityFollowers(communityId uuid.UUID) (error, *[]domain.CommunityFollow)
	ReadFanoutDestinations(communityId uuid.UUID, excludeHost string) (error, *[]db.FanoutDestination)

	// Like operations
	CreateLike(l *domain.Like) error
	ReadLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, *domain.Like)
	DeleteLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) error
	GetOrCreateLocalLikeUndo(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, uuid.UUID)

	// Task operations (outbound delivery queue, §4.6)
	EnqueueTask(t *domain.Task) error
	ClaimTasks(limit int) (error, *[]domain.Task)
	UpdateTaskRetry(id uuid.UUID, attempts int, notBefore time.Time, latestErr string) error
	DeleteTask(id uuid.UUID) error

	// Notification operations
	CreateNotification(n *domain.Notification) error
	ReadNotificationsByRecipient(recipientId uuid.UUID, limit int) (error, *[]domain.Notification)

	// SeenActivity operations (inbound dedup gate, §4.5 step 2)
	MarkActivitySeen(apId string) (bool, error)
}

// HTTPClient defines the HTTP client operations required by the federation
// engine. This interface allows dependency injection and testing with mock
// implementations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// defaultHTTPClient is the package-wide HTTP client production code falls
// back to when no test double is injected.
var defaultHTTPClient = NewDefaultHTTPClient(30 * time.Second)

// DefaultHTTPClient is the default HTTP client used in production.
type DefaultHTTPClient struct {
	client *http.Client
}

// maxFetchRedirects bounds actor/object fetches to 3 redirect hops (§4.3
// step 2).
const maxFetchRedirects = 3

// NewDefaultHTTPClient creates a new default HTTP client with the specified
// timeout, capping redirects at maxFetchRedirects.
func NewDefaultHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxFetchRedirects {
					return fmt.Errorf("stopped after %d redirects", maxFetchRedirects)
				}
				return nil
			},
		},
	}
}

// Do executes the HTTP request.
func (c *DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}
