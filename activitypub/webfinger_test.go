package activitypub

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"
)

// fakeWebfingerClient serves a single canned JRD body regardless of the
// request URL, recording the last request it saw for assertions.
type fakeWebfingerClient struct {
	body       []byte
	statusCode int
	err        error
	lastReq    *http.Request
}

func (f *fakeWebfingerClient) Do(req *http.Request) (*http.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	status := f.statusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(f.body)),
		Header:     make(http.Header),
	}, nil
}

func TestResolveAcctFindsActivityPubSelfLink(t *testing.T) {
	client := &fakeWebfingerClient{body: []byte(`{
		"subject": "acct:alice@remote.example",
		"links": [
			{"rel": "http://webfinger.net/rel/profile-page", "type": "text/html", "href": "https://remote.example/@alice"},
			{"rel": "self", "type": "application/activity+json", "href": "https://remote.example/users/alice"}
		]
	}`)}

	got, err := ResolveAcct(client, "alice", "remote.example")
	if err != nil {
		t.Fatalf("ResolveAcct: %v", err)
	}
	if got != "https://remote.example/users/alice" {
		t.Errorf("ResolveAcct() = %q, want %q", got, "https://remote.example/users/alice")
	}

	if client.lastReq.URL.Query().Get("resource") != "acct:alice@remote.example" {
		t.Errorf("expected the resource query param to be the acct URI, got %q", client.lastReq.URL.RawQuery)
	}
	if client.lastReq.Header.Get("Accept") != "application/jrd+json" {
		t.Errorf("expected an Accept: application/jrd+json header")
	}
}

func TestResolveAcctAcceptsLDJSONSelfLink(t *testing.T) {
	client := &fakeWebfingerClient{body: []byte(`{
		"subject": "acct:bob@remote.example",
		"links": [
			{"rel": "self", "type": "application/ld+json; profile=\"https://www.w3.org/ns/activitystreams\"", "href": "https://remote.example/users/bob"}
		]
	}`)}

	got, err := ResolveAcct(client, "bob", "remote.example")
	if err != nil {
		t.Fatalf("ResolveAcct: %v", err)
	}
	if got != "https://remote.example/users/bob" {
		t.Errorf("ResolveAcct() = %q, want %q", got, "https://remote.example/users/bob")
	}
}

func TestResolveAcctRejectsResponseWithNoSelfLink(t *testing.T) {
	client := &fakeWebfingerClient{body: []byte(`{
		"subject": "acct:carol@remote.example",
		"links": [
			{"rel": "http://webfinger.net/rel/profile-page", "type": "text/html", "href": "https://remote.example/@carol"}
		]
	}`)}

	_, err := ResolveAcct(client, "carol", "remote.example")
	if err == nil {
		t.Fatalf("expected an error when no ActivityPub self link is present")
	}
}

func TestResolveAcctPropagatesNon200Status(t *testing.T) {
	client := &fakeWebfingerClient{statusCode: http.StatusNotFound, body: []byte(`{}`)}

	_, err := ResolveAcct(client, "nobody", "remote.example")
	if err == nil {
		t.Fatalf("expected an error for a non-200 webfinger response")
	}
}

func TestResolveAcctPropagatesTransportError(t *testing.T) {
	client := &fakeWebfingerClient{err: fmt.Errorf("connection refused")}

	_, err := ResolveAcct(client, "nobody", "remote.example")
	if err == nil {
		t.Fatalf("expected the transport error to propagate")
	}
}

func TestResolveAcctRejectsMalformedJSON(t *testing.T) {
	client := &fakeWebfingerClient{body: []byte(`not json`)}

	_, err := ResolveAcct(client, "nobody", "remote.example")
	if err == nil {
		t.Fatalf("expected an error for a malformed JRD body")
	}
}
