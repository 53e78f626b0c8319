package activitypub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/embervale/forumfed/domain"
	"github.com/embervale/forumfed/util"
	"github.com/google/uuid"
)

// DeliveryWorker runs the outbound delivery queue worker pool: a pool of
// goroutines that claim due Task rows and execute them by kind, retrying
// transient failures with backoff and dropping permanent ones.
type DeliveryWorker struct {
	database Database
	client   HTTPClient
	baseURL  string

	workers int
	trigger chan struct{}

	hostSemMu sync.Mutex
	hostSem   map[string]chan struct{}

	wg   sync.WaitGroup
	quit chan struct{}
}

// perHostConcurrency bounds simultaneous deliveries to the same remote host
// (§4.6 step 3).
const perHostConcurrency = 2

// pollInterval is the fallback poll period in case a trigger is missed.
const pollInterval = 30 * time.Second

// deliveryDeadline bounds a single outbound delivery attempt (§5).
const deliveryDeadline = 60 * time.Second

// NewDeliveryWorker constructs a worker pool against database/client, sized
// per conf.Conf.DeliveryWorkers (default 4).
func NewDeliveryWorker(database Database, client HTTPClient, conf *util.AppConfig) *DeliveryWorker {
	workers := conf.Conf.DeliveryWorkers
	if workers <= 0 {
		workers = 4
	}
	return &DeliveryWorker{
		database: database,
		client:   client,
		baseURL:  conf.Conf.HostURLActivityPub,
		workers:  workers,
		trigger:  make(chan struct{}, 1),
		hostSem:  make(map[string]chan struct{}),
		quit:     make(chan struct{}),
	}
}

// Trigger wakes a worker immediately instead of waiting for the next poll.
// Non-blocking: if a wakeup is already pending the send is dropped (§5).
func (w *DeliveryWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start launches the worker pool. Every worker claims from the same shared
// queue, so W workers is simply W goroutines running the same loop; SQLite's
// single-writer semantics make the claim transaction the real serialization
// point (§4.6 step 1).
func (w *DeliveryWorker) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop()
	}
}

// Shutdown drains in-flight tasks or gives up after timeout, whichever comes
// first, matching App.Shutdown()'s 30s budget (§5). Tasks still in flight at
// timeout are left in the queue and recovered on next start.
func (w *DeliveryWorker) Shutdown(timeout time.Duration) {
	close(w.quit)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Println("DeliveryWorker: shutdown timed out with tasks still in flight")
	}
}

func (w *DeliveryWorker) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		w.drain()
		select {
		case <-w.quit:
			return
		case <-w.trigger:
		case <-ticker.C:
		}
	}
}

// drain claims and executes tasks until the queue is empty.
func (w *DeliveryWorker) drain() {
	for {
		select {
		case <-w.quit:
			return
		default:
		}

		err, tasks := w.database.ClaimTasks(w.workers)
		if err != nil {
			log.Printf("DeliveryWorker: failed to claim tasks: %v", err)
			return
		}
		if tasks == nil || len(*tasks) == 0 {
			return
		}
		for _, t := range *tasks {
			w.execute(t)
		}
	}
}

func (w *DeliveryWorker) execute(task domain.Task) {
	var err error
	switch task.Kind {
	case domain.TaskDeliverToInbox:
		err = w.executeDeliverToInbox(task)
	case domain.TaskDeliverToFollowers:
		err = w.executeDeliverToFollowers(task)
	case domain.TaskFetch:
		err = w.executeFetch(task)
	default:
		log.Printf("DeliveryWorker: unknown task kind %q, dropping", task.Kind)
		_ = w.database.DeleteTask(task.Id)
		return
	}

	if err == nil {
		if derr := w.database.DeleteTask(task.Id); derr != nil {
			log.Printf("DeliveryWorker: failed to delete completed task %s: %v", task.Id, derr)
		}
		return
	}

	w.retryOrDrop(task, err)
}

func (w *DeliveryWorker) retryOrDrop(task domain.Task, taskErr error) {
	if perr, ok := taskErr.(*permanentError); ok {
		log.Printf("DeliveryWorker: task %s failed permanently: %v", task.Id, perr.err)
		_ = w.database.DeleteTask(task.Id)
		return
	}

	attempts := task.Attempts + 1
	if attempts >= task.MaxAttempts {
		log.Printf("DeliveryWorker: task %s exhausted %d attempts, dropping: %v", task.Id, task.MaxAttempts, taskErr)
		_ = w.database.DeleteTask(task.Id)
		return
	}

	notBefore := time.Now().Add(backoff(attempts))
	if uerr := w.database.UpdateTaskRetry(task.Id, attempts, notBefore, taskErr.Error()); uerr != nil {
		log.Printf("DeliveryWorker: failed to reschedule task %s: %v", task.Id, uerr)
	}
}

// backoff implements min(60s * 2^attempts, 1h) with +-10% jitter (§4.6 step 2).
func backoff(attempts int) time.Duration {
	base := 60 * time.Second
	capped := time.Hour
	delay := base
	for i := 0; i < attempts && delay < capped; i++ {
		delay *= 2
	}
	if delay > capped {
		delay = capped
	}
	jitter := float64(delay) * (0.9 + 0.2*rand.Float64())
	return time.Duration(jitter)
}

// permanentError marks a failure the worker must not retry (4xx other than
// 408/429).
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }

func isTransientStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500
}

func (w *DeliveryWorker) executeDeliverToInbox(task domain.Task) error {
	var params domain.DeliverToInboxParams
	if err := json.Unmarshal([]byte(task.Params), &params); err != nil {
		return &permanentError{fmt.Errorf("malformed DeliverToInbox params: %w", err)}
	}

	host, err := hostname(params.InboxURL)
	if err != nil {
		return &permanentError{err}
	}
	release := w.acquireHost(host)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), deliveryDeadline)
	defer cancel()

	keyId, privatePEM, err := w.resolveSigner(params.SignAsKind, params.SignAsId)
	if err != nil {
		return &permanentError{err}
	}

	return w.post(ctx, params.InboxURL, params.Body, keyId, privatePEM)
}

func (w *DeliveryWorker) resolveSigner(kind string, id uuid.UUID) (keyId, privatePEM string, err error) {
	switch kind {
	case signAsKindPerson:
		err, p := w.database.ReadPersonById(id)
		if err != nil || p == nil {
			return "", "", fmt.Errorf("signer person %s not found: %w", id, err)
		}
		return PersonKeyIRI(w.baseURL, p.Id), p.PrivateKeyPem, nil
	case signAsKindCommunity:
		err, c := w.database.ReadCommunityById(id)
		if err != nil || c == nil {
			return "", "", fmt.Errorf("signer community %s not found: %w", id, err)
		}
		return CommunityKeyIRI(w.baseURL, c.Id), c.PrivateKeyPem, nil
	default:
		return "", "", fmt.Errorf("unknown sign_as_kind %q", kind)
	}
}

func (w *DeliveryWorker) post(ctx context.Context, inboxURL, body, keyId, privatePEM string) error {
	privateKey, err := ParsePrivateKey(privatePEM)
	if err != nil {
		return &permanentError{fmt.Errorf("failed to parse signer key: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inboxURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return &permanentError{fmt.Errorf("failed to build request: %w", err)}
	}

	hash := sha256.Sum256([]byte(body))
	digest := "SHA-256=" + base64.StdEncoding.EncodeToString(hash[:])

	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "forumfed/1.0 ActivityPub")
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("Digest", digest)

	if err := SignRequest(req, privateKey, keyId); err != nil {
		return &permanentError{fmt.Errorf("failed to sign request: %w", err)}
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if isTransientStatus(resp.StatusCode) {
		return fmt.Errorf("remote returned transient status %d", resp.StatusCode)
	}
	return &permanentError{fmt.Errorf("remote returned status %d", resp.StatusCode)}
}

func (w *DeliveryWorker) executeDeliverToFollowers(task domain.Task) error {
	var params domain.DeliverToFollowersParams
	if err := json.Unmarshal([]byte(task.Params), &params); err != nil {
		return &permanentError{fmt.Errorf("malformed DeliverToFollowers params: %w", err)}
	}

	err, community := w.database.ReadCommunityById(params.CommunityId)
	if err != nil || community == nil {
		return &permanentError{fmt.Errorf("community %s not found: %w", params.CommunityId, err)}
	}

	err, destinations := w.database.ReadFanoutDestinations(params.CommunityId, params.ExcludeHost)
	if err != nil {
		return fmt.Errorf("failed to read fanout destinations: %w", err)
	}
	if destinations == nil {
		return nil
	}

	for _, dest := range *destinations {
		if enqErr := EnqueueDeliverToInbox(w.database, dest.InboxURL, signAsKindCommunity, community.Id, params.Body); enqErr != nil {
			return fmt.Errorf("failed to enqueue delivery to %s: %w", dest.InboxURL, enqErr)
		}
	}
	w.Trigger()
	return nil
}

func (w *DeliveryWorker) executeFetch(task domain.Task) error {
	var params domain.FetchParams
	if err := json.Unmarshal([]byte(task.Params), &params); err != nil {
		return &permanentError{fmt.Errorf("malformed Fetch params: %w", err)}
	}
	if _, _, err := FetchObject(w.database, w.client, params.URL); err == nil {
		return nil
	}
	if _, _, err := FetchActor(w.database, w.client, params.URL); err != nil {
		return fmt.Errorf("fetch of %s (%s) failed: %w", params.URL, params.Reason, err)
	}
	return nil
}

func (w *DeliveryWorker) acquireHost(host string) (release func()) {
	w.hostSemMu.Lock()
	sem, ok := w.hostSem[host]
	if !ok {
		sem = make(chan struct{}, perHostConcurrency)
		w.hostSem[host] = sem
	}
	w.hostSemMu.Unlock()

	sem <- struct{}{}
	return func() { <-sem }
}

func hostname(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid inbox url %q: %w", rawURL, err)
	}
	return u.Host, nil
}
