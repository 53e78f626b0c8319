package activitypub

import (
	"fmt"
	"sync"
	"time"

	"github.com/embervale/forumfed/db"
	"github.com/embervale/forumfed/domain"
	"github.com/google/uuid"
)

// MockDatabase is an in-memory implementation of the Database interface,
// mirroring the predecessor service's mock-database-for-Account/Note-model
// test convention, generalized to the Person/Community/Post/Reply model.
type MockDatabase struct {
	mu sync.Mutex

	Persons       map[uuid.UUID]*domain.Person
	PersonsByUser map[string]*domain.Person
	PersonsByAPId map[string]*domain.Person

	Communities       map[uuid.UUID]*domain.Community
	CommunitiesByName map[string]*domain.Community
	CommunitiesByAPId map[string]*domain.Community

	Posts       map[uuid.UUID]*domain.Post
	PostsByAPId map[string]*domain.Post

	Replies       map[uuid.UUID]*domain.Reply
	RepliesByAPId map[string]*domain.Reply

	Follows       map[uuid.UUID]*domain.CommunityFollow
	FollowsByAPId map[string]*domain.CommunityFollow

	Likes map[string]*domain.Like // keyed by targetType|targetId|personId

	Undos map[string]uuid.UUID // keyed by targetType|targetId|personId

	Tasks map[uuid.UUID]*domain.Task

	Notifications []domain.Notification

	Seen map[string]bool

	// FailOn lets a test force a specific method to return an error.
	FailOn map[string]error
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		Persons:           make(map[uuid.UUID]*domain.Person),
		PersonsByUser:     make(map[string]*domain.Person),
		PersonsByAPId:     make(map[string]*domain.Person),
		Communities:       make(map[uuid.UUID]*domain.Community),
		CommunitiesByName: make(map[string]*domain.Community),
		CommunitiesByAPId: make(map[string]*domain.Community),
		Posts:             make(map[uuid.UUID]*domain.Post),
		PostsByAPId:       make(map[string]*domain.Post),
		Replies:           make(map[uuid.UUID]*domain.Reply),
		RepliesByAPId:     make(map[string]*domain.Reply),
		Follows:           make(map[uuid.UUID]*domain.CommunityFollow),
		FollowsByAPId:     make(map[string]*domain.CommunityFollow),
		Likes:             make(map[string]*domain.Like),
		Undos:             make(map[string]uuid.UUID),
		Tasks:             make(map[uuid.UUID]*domain.Task),
		Seen:              make(map[string]bool),
		FailOn:            make(map[string]error),
	}
}

func likeKey(targetType domain.LikeTargetType, targetId, personId uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%s", targetType, targetId, personId)
}

// AddPerson seeds a person directly, bypassing Create/Upsert.
func (m *MockDatabase) AddPerson(p *domain.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Persons[p.Id] = p
	if p.Local {
		m.PersonsByUser[p.Username] = p
	} else {
		m.PersonsByAPId[p.APId] = p
	}
}

// AddCommunity seeds a community directly.
func (m *MockDatabase) AddCommunity(c *domain.Community) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Communities[c.Id] = c
	if c.Local {
		m.CommunitiesByName[c.Name] = c
	} else {
		m.CommunitiesByAPId[c.APId] = c
	}
}

// AddPost seeds a post directly.
func (m *MockDatabase) AddPost(p *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Posts[p.Id] = p
	if p.APId != "" {
		m.PostsByAPId[p.APId] = p
	}
}

// AddCommunityFollow seeds a follow directly.
func (m *MockDatabase) AddCommunityFollow(f *domain.CommunityFollow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Follows[f.Id] = f
	if f.APId != "" {
		m.FollowsByAPId[f.APId] = f
	}
}

func (m *MockDatabase) fail(name string) error {
	if err, ok := m.FailOn[name]; ok {
		return err
	}
	return nil
}

// Person operations

func (m *MockDatabase) CreateLocalPerson(p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateLocalPerson"); err != nil {
		return err
	}
	if _, exists := m.PersonsByUser[p.Username]; exists {
		return fmt.Errorf("username already exists: %s", p.Username)
	}
	m.Persons[p.Id] = p
	m.PersonsByUser[p.Username] = p
	return nil
}

func (m *MockDatabase) UpsertRemotePerson(p *domain.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertRemotePerson"); err != nil {
		return err
	}
	m.Persons[p.Id] = p
	m.PersonsByAPId[p.APId] = p
	return nil
}

func (m *MockDatabase) ReadPersonByUsername(username string) (error, *domain.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadPersonByUsername"); err != nil {
		return err, nil
	}
	p, ok := m.PersonsByUser[username]
	if !ok {
		return nil, nil
	}
	return nil, p
}

func (m *MockDatabase) ReadPersonById(id uuid.UUID) (error, *domain.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadPersonById"); err != nil {
		return err, nil
	}
	p, ok := m.Persons[id]
	if !ok {
		return nil, nil
	}
	return nil, p
}

func (m *MockDatabase) ReadPersonByAPId(apId string) (error, *domain.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadPersonByAPId"); err != nil {
		return err, nil
	}
	p, ok := m.PersonsByAPId[apId]
	if !ok {
		return nil, nil
	}
	return nil, p
}

// Community operations

func (m *MockDatabase) CreateLocalCommunity(c *domain.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateLocalCommunity"); err != nil {
		return err
	}
	if _, exists := m.CommunitiesByName[c.Name]; exists {
		return fmt.Errorf("community name already exists: %s", c.Name)
	}
	m.Communities[c.Id] = c
	m.CommunitiesByName[c.Name] = c
	return nil
}

func (m *MockDatabase) UpsertRemoteCommunity(c *domain.Community) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertRemoteCommunity"); err != nil {
		return err
	}
	m.Communities[c.Id] = c
	m.CommunitiesByAPId[c.APId] = c
	return nil
}

func (m *MockDatabase) ReadCommunityByName(name string) (error, *domain.Community) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadCommunityByName"); err != nil {
		return err, nil
	}
	c, ok := m.CommunitiesByName[name]
	if !ok {
		return nil, nil
	}
	return nil, c
}

func (m *MockDatabase) ReadCommunityById(id uuid.UUID) (error, *domain.Community) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadCommunityById"); err != nil {
		return err, nil
	}
	c, ok := m.Communities[id]
	if !ok {
		return nil, nil
	}
	return nil, c
}

func (m *MockDatabase) ReadCommunityByAPId(apId string) (error, *domain.Community) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadCommunityByAPId"); err != nil {
		return err, nil
	}
	c, ok := m.CommunitiesByAPId[apId]
	if !ok {
		return nil, nil
	}
	return nil, c
}

// Post operations

func (m *MockDatabase) CreatePost(p *domain.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreatePost"); err != nil {
		return err
	}
	m.Posts[p.Id] = p
	if p.APId != "" {
		m.PostsByAPId[p.APId] = p
	}
	return nil
}

func (m *MockDatabase) UpsertRemotePost(p *domain.Post) (error, *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertRemotePost"); err != nil {
		return err, nil
	}
	if existing, ok := m.PostsByAPId[p.APId]; ok {
		p.Id = existing.Id
	}
	m.Posts[p.Id] = p
	m.PostsByAPId[p.APId] = p
	return nil, p
}

func (m *MockDatabase) ReadPostById(id uuid.UUID) (error, *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadPostById"); err != nil {
		return err, nil
	}
	p, ok := m.Posts[id]
	if !ok {
		return nil, nil
	}
	return nil, p
}

func (m *MockDatabase) ReadPostByAPId(apId string) (error, *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadPostByAPId"); err != nil {
		return err, nil
	}
	p, ok := m.PostsByAPId[apId]
	if !ok {
		return nil, nil
	}
	return nil, p
}

func (m *MockDatabase) ReadPostsByCommunity(communityId uuid.UUID, limit int) (error, *[]domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadPostsByCommunity"); err != nil {
		return err, nil
	}
	var posts []domain.Post
	for _, p := range m.Posts {
		if p.CommunityId == communityId && !p.Deleted {
			posts = append(posts, *p)
		}
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return nil, &posts
}

func (m *MockDatabase) SoftDeletePost(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SoftDeletePost"); err != nil {
		return err
	}
	if p, ok := m.Posts[id]; ok {
		p.Deleted = true
		p.ContentText = ""
		p.ContentMarkdown = ""
		p.ContentHTML = ""
	}
	return nil
}

// Reply operations

func (m *MockDatabase) CreateReply(r *domain.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateReply"); err != nil {
		return err
	}
	m.Replies[r.Id] = r
	if r.APId != "" {
		m.RepliesByAPId[r.APId] = r
	}
	return nil
}

func (m *MockDatabase) UpsertRemoteReply(r *domain.Reply) (error, *domain.Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertRemoteReply"); err != nil {
		return err, nil
	}
	if existing, ok := m.RepliesByAPId[r.APId]; ok {
		r.Id = existing.Id
	}
	m.Replies[r.Id] = r
	m.RepliesByAPId[r.APId] = r
	return nil, r
}

func (m *MockDatabase) ReadReplyById(id uuid.UUID) (error, *domain.Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadReplyById"); err != nil {
		return err, nil
	}
	r, ok := m.Replies[id]
	if !ok {
		return nil, nil
	}
	return nil, r
}

func (m *MockDatabase) ReadReplyByAPId(apId string) (error, *domain.Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadReplyByAPId"); err != nil {
		return err, nil
	}
	r, ok := m.RepliesByAPId[apId]
	if !ok {
		return nil, nil
	}
	return nil, r
}

func (m *MockDatabase) SoftDeleteReply(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("SoftDeleteReply"); err != nil {
		return err
	}
	if r, ok := m.Replies[id]; ok {
		r.Deleted = true
		r.Content = ""
	}
	return nil
}

// CommunityFollow operations

func (m *MockDatabase) CreateCommunityFollow(f *domain.CommunityFollow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateCommunityFollow"); err != nil {
		return err
	}
	m.Follows[f.Id] = f
	if f.APId != "" {
		m.FollowsByAPId[f.APId] = f
	}
	return nil
}

func (m *MockDatabase) ReadCommunityFollow(communityId, followerId uuid.UUID) (error, *domain.CommunityFollow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadCommunityFollow"); err != nil {
		return err, nil
	}
	for _, f := range m.Follows {
		if f.CommunityId == communityId && f.FollowerId == followerId {
			return nil, f
		}
	}
	return nil, nil
}

func (m *MockDatabase) ReadCommunityFollowByAPId(apId string) (error, *domain.CommunityFollow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadCommunityFollowByAPId"); err != nil {
		return err, nil
	}
	f, ok := m.FollowsByAPId[apId]
	if !ok {
		return nil, nil
	}
	return nil, f
}

func (m *MockDatabase) AcceptCommunityFollow(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AcceptCommunityFollow"); err != nil {
		return err
	}
	if f, ok := m.Follows[id]; ok {
		f.Accepted = true
	}
	return nil
}

func (m *MockDatabase) DeleteCommunityFollow(communityId, followerId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteCommunityFollow"); err != nil {
		return err
	}
	for id, f := range m.Follows {
		if f.CommunityId == communityId && f.FollowerId == followerId {
			delete(m.Follows, id)
			if f.APId != "" {
				delete(m.FollowsByAPId, f.APId)
			}
		}
	}
	return nil
}

func (m *MockDatabase) ReadCommunityFollowers(communityId uuid.UUID) (error, *[]domain.CommunityFollow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadCommunityFollowers"); err != nil {
		return err, nil
	}
	var follows []domain.CommunityFollow
	for _, f := range m.Follows {
		if f.CommunityId == communityId && f.Accepted {
			follows = append(follows, *f)
		}
	}
	return nil, &follows
}

func (m *MockDatabase) ReadFanoutDestinations(communityId uuid.UUID, excludeHost string) (error, *[]db.FanoutDestination) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadFanoutDestinations"); err != nil {
		return err, nil
	}
	seenInbox := make(map[string]bool)
	var dests []db.FanoutDestination
	for _, f := range m.Follows {
		if f.CommunityId != communityId || !f.Accepted {
			continue
		}
		follower, ok := m.Persons[f.FollowerId]
		if !ok || follower.Local {
			continue
		}
		if follower.Domain == excludeHost {
			continue
		}
		inbox := follower.SharedInboxURI
		if inbox == "" {
			inbox = follower.InboxURI
		}
		if inbox == "" || seenInbox[inbox] {
			continue
		}
		seenInbox[inbox] = true
		dests = append(dests, db.FanoutDestination{InboxURL: inbox, Domain: follower.Domain})
	}
	return nil, &dests
}

// Like operations

func (m *MockDatabase) CreateLike(l *domain.Like) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateLike"); err != nil {
		return err
	}
	key := likeKey(l.TargetType, l.TargetId, l.PersonId)
	if _, exists := m.Likes[key]; exists {
		return fmt.Errorf("like already exists")
	}
	m.Likes[key] = l
	return nil
}

func (m *MockDatabase) ReadLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, *domain.Like) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadLike"); err != nil {
		return err, nil
	}
	l, ok := m.Likes[likeKey(targetType, targetId, personId)]
	if !ok {
		return nil, nil
	}
	return nil, l
}

func (m *MockDatabase) DeleteLike(targetType domain.LikeTargetType, targetId, personId uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteLike"); err != nil {
		return err
	}
	delete(m.Likes, likeKey(targetType, targetId, personId))
	return nil
}

func (m *MockDatabase) GetOrCreateLocalLikeUndo(targetType domain.LikeTargetType, targetId, personId uuid.UUID) (error, uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetOrCreateLocalLikeUndo"); err != nil {
		return err, uuid.Nil
	}
	key := likeKey(targetType, targetId, personId)
	if existing, ok := m.Undos[key]; ok {
		return nil, existing
	}
	id := uuid.New()
	m.Undos[key] = id
	return nil, id
}

// Task operations

func (m *MockDatabase) EnqueueTask(t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("EnqueueTask"); err != nil {
		return err
	}
	m.Tasks[t.Id] = t
	return nil
}

func (m *MockDatabase) ClaimTasks(limit int) (error, *[]domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ClaimTasks"); err != nil {
		return err, nil
	}
	var claimed []domain.Task
	now := time.Now()
	for _, t := range m.Tasks {
		if len(claimed) >= limit {
			break
		}
		if t.NotBefore.After(now) {
			continue
		}
		claimed = append(claimed, *t)
	}
	return nil, &claimed
}

func (m *MockDatabase) UpdateTaskRetry(id uuid.UUID, attempts int, notBefore time.Time, latestErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpdateTaskRetry"); err != nil {
		return err
	}
	if t, ok := m.Tasks[id]; ok {
		t.Attempts = attempts
		t.NotBefore = notBefore
		t.LatestErr = latestErr
	}
	return nil
}

func (m *MockDatabase) DeleteTask(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteTask"); err != nil {
		return err
	}
	delete(m.Tasks, id)
	return nil
}

// Notification operations

func (m *MockDatabase) CreateNotification(n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateNotification"); err != nil {
		return err
	}
	m.Notifications = append(m.Notifications, *n)
	return nil
}

func (m *MockDatabase) ReadNotificationsByRecipient(recipientId uuid.UUID, limit int) (error, *[]domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ReadNotificationsByRecipient"); err != nil {
		return err, nil
	}
	var out []domain.Notification
	for _, n := range m.Notifications {
		if n.RecipientId == recipientId {
			out = append(out, n)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return nil, &out
}

// SeenActivity operations

func (m *MockDatabase) MarkActivitySeen(apId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("MarkActivitySeen"); err != nil {
		return false, err
	}
	if m.Seen[apId] {
		return false, nil
	}
	m.Seen[apId] = true
	return true, nil
}
