package activitypub

import (
	"time"

	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/domain"
	"github.com/google/uuid"
)

// DBWrapper wraps the real database to implement the Database interface.
// This adapter allows the production code to use the existing db.GetDB()
// singleton while also supporting dependency injection for tests.
type DBWrapper struct {
	db *db.DB
}

// NewDBWrapper creates a new database wrapper around the singleton database.
func NewDBWrapper() *DBWrapper {
	return &DBWrapper{db: db.GetDB()}
}

// Person operations

func (w *DBWrapper) CreateLocalPerson(p *domain.Person) error        { return w.db.CreateLocalPerson(p) }
func (w *DBWrapper) UpsertRemotePerson(p *domain.Person) error        { return w.db.UpsertRemotePerson(p) }
func (w *DBWrapper) ReadPersonByUsername(username string) (error, *domain.Person) {
	return w.db.ReadPersonByUsername(username)
}
func (w *DBWrapper) ReadPersonById(id uuid.UUID) (error, *domain.Person) {
	return w.db.ReadPersonById(id)
}
func (w *DBWrapper) ReadPersonByAPId(apId string) (error, *domain.Person) {
	return w.db.ReadPersonByAPId(apId)
}

// Community operations

func (w *DBWrapper) CreateLocalCommunity(c *domain.Community) error {
	return w.db.CreateLocalCommunity(c)
}
func (w *DBWrapper) UpsertRemoteCommunity(c *domain.Community) error {
	return w.db.UpsertRemoteCommunity(c)
}
func (w *DBWrapper) ReadCommunityByName(name string) (error, *domain.Community) {
	return w.db.ReadCommunityByName(name)
}
func (w *DBWrapper) ReadCommunityById(id uuid.UUID) (error, *domain.Community) {
	return w.db.ReadCommunityById(id)
}
func (w *DBWrapper) ReadCommunityByAPId(apId string) (error, *domain.Community) {
	return w.db.ReadCommunityByAPId(apId)
}

// Post operations

func (w *DBWrapper) CreatePost(p *domain.Post) error { return w.db.CreatePost(p) }
func (w *DBWrapper) UpsertRemotePost(p *domain.Post) (error, *domain.Post) {
	return w.db.UpsertRemotePost(p)
}
func (w *DBWrapper) ReadPostById(id uuid.UUID) (error, *domain.Post) { return w.db.ReadPostById(id) }
func (w *DBWrapper) ReadPostByAPId(apId string) (error, *domain.Post) {
	return w.db.ReadPostByAPId(apId)
}
func (w *DBWrapper) ReadPostsByCommunity(communityId uuid.UUID, limit int) (error, *[]domain.Post) {
	return w.db.ReadPostsByCommunity(communityId, limit)
}
func (w *DBWrapper) SoftDeletePost(id uuid.UUID) error { return w.db.SoftDeletePost(id) }

// Reply operations

func (w *DBWrapper) CreateReply(r *domain.Reply) error { return w.db.CreateReply(r) }
func (w *DBWrapper) UpsertRemoteReply(r *domain.Reply) (error, *domain.Reply) {
	return w.db.UpsertRemoteReply(r)
}
func (w *DBWrapper) ReadReplyById(id uuid.UUID) (error, *domain.Reply) {
	return w.db.ReadReplyById(id)
}
func (w *DBWrapper) ReadReplyByAPId(apId string) (error, *domain.Reply) {
	return w.db.ReadReplyByAPId(apId)
}
func (w *DBWrapper) SoftDeleteReply(id uuid.UUID) error { return w.db.SoftDeleteReply(id) }

// CommunityFollow operations

func (w *DBWrapper) CreateCommunityFollow(f *domain.CommunityFollow) error {
	return w.db.CreateCommunityFollow(f)
}
func (w *DBWrapper) ReadCommunityFollow(communityId, followerId uuid.UUID) (error, *domain.CommunityFollow) {
	return w.db.ReadCommunityFollow(communityId, followerId)
}
func (w *DBWrapper) ReadCommunityFollowByAPId(apId string) (error, *domain.CommunityFollow) {
	return w.db.ReadCommunityFollowByAPId(apId)
}
func (w *DBWrapper) AcceptCommunityFollow(id uuid.UUID) error { return w.db.AcceptCommunityFollow(id) }
func (w *DBWrapper) DeleteCommunityFollow(communityId, followerId uuid.UUID) error {
	return w.db.DeleteCommunityFollow(communityId, followerId)
}
func (w *DBWrapper) ReadCommunityFollowers(communityId uuid.UUID) (error, *[]domain.CommunityFollow) {
	return w.db.ReadCommunityFollowers(communityId)
}
func (w *DBWrapper) ReadFanoutDestinations(communityId uuid.UUID, excludeHost string) (error, *[]db.FanoutDestination) {
	return w.db.ReadFanoutDestinations(communityId, excludeHost)
}

// Like operations

func (w *DBWrapper) CreateLike(l *domain.Like) error { return w.db.CreateLike(l) }
func (w *DBWrapper) ReadLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, *domain.Like) {
	return w.db.ReadLike(targetType, targetId, personId)
}
func (w *DBWrapper) DeleteLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) error {
	return w.db.DeleteLike(targetType, targetId, personId)
}
func (w *DBWrapper) GetOrCreateLocalLikeUndo(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, uuid.UUID) {
	return w.db.GetOrCreateLocalLikeUndo(targetType, targetId, personId)
}

// Task operations

func (w *DBWrapper) EnqueueTask(t *domain.Task) error { return w.db.EnqueueTask(t) }
func (w *DBWrapper) ClaimTasks(limit int) (error, *[]domain.Task) { return w.db.ClaimTasks(limit) }
func (w *DBWrapper) UpdateTaskRetry(id uuid.UUID, attempts int, notBefore time.Time, latestErr string) error {
	return w.db.UpdateTaskRetry(id, attempts, notBefore, latestErr)
}
func (w *DBWrapper) DeleteTask(id uuid.UUID) error { return w.db.DeleteTask(id) }

// Notification operations

func (w *DBWrapper) CreateNotification(n *domain.Notification) error {
	return w.db.CreateNotification(n)
}
func (w *DBWrapper) ReadNotificationsByRecipient(recipientId uuid.UUID, limit int) (error, *[]domain.Notification) {
	return w.db.ReadNotificationsByRecipient(recipientId, limit)
}

// SeenActivity operations

func (w *DBWrapper) MarkActivitySeen(apId string) (bool, error) { return w.db.MarkActivitySeen(apId) }

// Ensure DBWrapper implements Database interface
var _ Database = (*DBWrapper)(nil)
