package activitypub

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/embervale/forumfed/domain"
	"github.com/google/uuid"
)

func testWorker(db *MockDatabase, client HTTPClient) *DeliveryWorker {
	conf := testConf()
	return NewDeliveryWorker(db, client, conf)
}

func TestHostnameExtractsHostFromInboxURL(t *testing.T) {
	host, err := hostname("https://remote.example/inbox")
	if err != nil {
		t.Fatalf("hostname: %v", err)
	}
	if host != "remote.example" {
		t.Errorf("hostname() = %q, want %q", host, "remote.example")
	}
}

func TestHostnameRejectsInvalidURL(t *testing.T) {
	if _, err := hostname("://bad"); err == nil {
		t.Fatalf("expected an error for an unparseable inbox URL")
	}
}

func TestIsTransientStatusCoversServerErrorsAndThrottling(t *testing.T) {
	cases := map[int]bool{
		http.StatusOK:                  false,
		http.StatusBadRequest:          false,
		http.StatusUnauthorized:        false,
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	}
	for code, want := range cases {
		if got := isTransientStatus(code); got != want {
			t.Errorf("isTransientStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestBackoffGrowsWithAttemptsAndStaysWithinJitterBounds(t *testing.T) {
	for _, attempts := range []int{0, 1, 3, 10} {
		d := backoff(attempts)
		if d < 50*time.Second {
			t.Errorf("backoff(%d) = %v, too small", attempts, d)
		}
		if d > 66*time.Minute {
			t.Errorf("backoff(%d) = %v, exceeds the capped+jitter ceiling", attempts, d)
		}
	}
}

func seedPersonWithKey(db *MockDatabase, username string) *domain.Person {
	pair := GenerateActorKeyPair()
	p := &domain.Person{
		Id:            uuid.New(),
		Username:      username,
		Local:         true,
		PrivateKeyPem: pair.PrivatePEM,
		PublicKeyPem:  pair.PublicPEM,
	}
	db.AddPerson(p)
	return p
}

func TestExecuteDeliverToInboxSucceedsAndDeletesTask(t *testing.T) {
	db := NewMockDatabase()
	signer := seedPersonWithKey(db, "alice")

	var capturedReq *http.Request
	client := &capturingClient{statusCode: http.StatusOK, onRequest: func(r *http.Request) { capturedReq = r }}
	w := testWorker(db, client)

	params := domain.DeliverToInboxParams{InboxURL: "https://remote.example/inbox", SignAsKind: signAsKindPerson, SignAsId: signer.Id, Body: `{"type":"Create"}`}
	task := domain.Task{Id: uuid.New(), Kind: domain.TaskDeliverToInbox, Params: mustMarshal(params), MaxAttempts: 8}
	db.EnqueueTask(&task)

	w.execute(task)

	if _, exists := db.Tasks[task.Id]; exists {
		t.Errorf("expected the task to be deleted after a successful delivery")
	}
	if capturedReq == nil {
		t.Fatalf("expected the worker to issue an HTTP request")
	}
	if capturedReq.Header.Get("Signature") == "" {
		t.Errorf("expected the outbound request to carry an HTTP Signature header")
	}
}

func TestExecuteDeliverToInboxDropsOnPermanentClientError(t *testing.T) {
	db := NewMockDatabase()
	signer := seedPersonWithKey(db, "alice")

	client := &capturingClient{statusCode: http.StatusBadRequest}
	w := testWorker(db, client)

	params := domain.DeliverToInboxParams{InboxURL: "https://remote.example/inbox", SignAsKind: signAsKindPerson, SignAsId: signer.Id, Body: `{}`}
	task := domain.Task{Id: uuid.New(), Kind: domain.TaskDeliverToInbox, Params: mustMarshal(params), MaxAttempts: 8}
	db.EnqueueTask(&task)

	w.execute(task)

	if _, exists := db.Tasks[task.Id]; exists {
		t.Errorf("expected a permanent 4xx failure to drop the task rather than reschedule it")
	}
}

func TestExecuteDeliverToInboxReschedulesOnTransientServerError(t *testing.T) {
	db := NewMockDatabase()
	signer := seedPersonWithKey(db, "alice")

	client := &capturingClient{statusCode: http.StatusServiceUnavailable}
	w := testWorker(db, client)

	params := domain.DeliverToInboxParams{InboxURL: "https://remote.example/inbox", SignAsKind: signAsKindPerson, SignAsId: signer.Id, Body: `{}`}
	task := domain.Task{Id: uuid.New(), Kind: domain.TaskDeliverToInbox, Params: mustMarshal(params), Attempts: 0, MaxAttempts: 8}
	db.EnqueueTask(&task)

	w.execute(task)

	rescheduled, exists := db.Tasks[task.Id]
	if !exists {
		t.Fatalf("expected a transient failure to reschedule the task, not delete it")
	}
	if rescheduled.Attempts != 1 {
		t.Errorf("expected Attempts to increment to 1, got %d", rescheduled.Attempts)
	}
	if !rescheduled.NotBefore.After(time.Now()) {
		t.Errorf("expected NotBefore to be pushed into the future after a transient failure")
	}
}

func TestExecuteDeliverToInboxDropsAfterExhaustingRetries(t *testing.T) {
	db := NewMockDatabase()
	signer := seedPersonWithKey(db, "alice")

	client := &capturingClient{statusCode: http.StatusServiceUnavailable}
	w := testWorker(db, client)

	params := domain.DeliverToInboxParams{InboxURL: "https://remote.example/inbox", SignAsKind: signAsKindPerson, SignAsId: signer.Id, Body: `{}`}
	task := domain.Task{Id: uuid.New(), Kind: domain.TaskDeliverToInbox, Params: mustMarshal(params), Attempts: 7, MaxAttempts: 8}
	db.EnqueueTask(&task)

	w.execute(task)

	if _, exists := db.Tasks[task.Id]; exists {
		t.Errorf("expected the task to be dropped once MaxAttempts is reached")
	}
}

func TestExecuteDeliverToInboxRejectsUnknownSigner(t *testing.T) {
	db := NewMockDatabase()
	client := &capturingClient{statusCode: http.StatusOK}
	w := testWorker(db, client)

	params := domain.DeliverToInboxParams{InboxURL: "https://remote.example/inbox", SignAsKind: signAsKindPerson, SignAsId: uuid.New(), Body: `{}`}
	task := domain.Task{Id: uuid.New(), Kind: domain.TaskDeliverToInbox, Params: mustMarshal(params), MaxAttempts: 8}
	db.EnqueueTask(&task)

	w.execute(task)

	if _, exists := db.Tasks[task.Id]; exists {
		t.Errorf("expected a missing signer to be treated as a permanent failure, dropping the task")
	}
}

func TestExecuteDeliverToFollowersFansOutOneTaskPerDestination(t *testing.T) {
	db := NewMockDatabase()
	community := &domain.Community{Id: uuid.New(), Local: true, Name: "rust"}
	db.AddCommunity(community)

	follower1 := &domain.Person{Id: uuid.New(), Domain: "host-a.example", InboxURI: "https://host-a.example/users/x/inbox"}
	follower2 := &domain.Person{Id: uuid.New(), Domain: "host-b.example", InboxURI: "https://host-b.example/users/y/inbox"}
	db.AddPerson(follower1)
	db.AddPerson(follower2)
	db.AddCommunityFollow(&domain.CommunityFollow{Id: uuid.New(), CommunityId: community.Id, FollowerId: follower1.Id, Accepted: true})
	db.AddCommunityFollow(&domain.CommunityFollow{Id: uuid.New(), CommunityId: community.Id, FollowerId: follower2.Id, Accepted: true})

	w := testWorker(db, &capturingClient{statusCode: http.StatusOK})

	params := domain.DeliverToFollowersParams{CommunityId: community.Id, Body: `{"type":"Announce"}`}
	task := domain.Task{Id: uuid.New(), Kind: domain.TaskDeliverToFollowers, Params: mustMarshal(params), MaxAttempts: 8}
	db.EnqueueTask(&task)

	w.execute(task)

	if _, exists := db.Tasks[task.Id]; exists {
		t.Errorf("expected the DeliverToFollowers task itself to be deleted once expanded")
	}

	var inboxTasks int
	for _, tk := range db.Tasks {
		if tk.Kind == domain.TaskDeliverToInbox {
			inboxTasks++
		}
	}
	if inboxTasks != 2 {
		t.Errorf("expected one DeliverToInbox task per follower host, got %d", inboxTasks)
	}
}

func TestExecuteFetchResolvesObject(t *testing.T) {
	db := NewMockDatabase()
	objUrl := "https://remote.example/posts/1"
	client := &fakeGetClient{responses: map[string][]byte{
		objUrl: []byte(`{"id": "https://remote.example/posts/1", "type": "Page", "name": "hi"}`),
	}}
	w := testWorker(db, client)

	params := domain.FetchParams{URL: objUrl, Reason: "referenced-by-inbound-activity"}
	task := domain.Task{Id: uuid.New(), Kind: domain.TaskFetch, Params: mustMarshal(params), MaxAttempts: 8}
	db.EnqueueTask(&task)

	w.execute(task)

	if _, exists := db.Tasks[task.Id]; exists {
		t.Errorf("expected a successful fetch task to be deleted")
	}
	if err, post := db.ReadPostByAPId(objUrl); err != nil || post == nil {
		t.Errorf("expected the fetched post to be cached")
	}
}

func TestTriggerIsNonBlockingWhenAlreadyPending(t *testing.T) {
	w := testWorker(NewMockDatabase(), &capturingClient{statusCode: http.StatusOK})
	w.Trigger()
	w.Trigger() // must not block even though the buffered channel already holds a pending wakeup
	select {
	case <-w.trigger:
	default:
		t.Fatalf("expected a pending trigger to be available")
	}
}

// capturingClient returns a fixed status for every request and optionally
// records the last request it saw.
type capturingClient struct {
	statusCode int
	onRequest  func(*http.Request)
}

func (c *capturingClient) Do(req *http.Request) (*http.Response, error) {
	if c.onRequest != nil {
		c.onRequest(req)
	}
	return &http.Response{
		StatusCode: c.statusCode,
		Body:       io.NopCloser(bytes.NewReader([]byte("{}"))),
		Header:     make(http.Header),
	}, nil
}
