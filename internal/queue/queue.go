// internal/queue/queue.go

// Package queue carries scrape requests from publishers to the worker pool.
// The queue is in-process and bounded; backpressure surfaces as ErrFull so
// callers can reject rather than block the ingest surface.
package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrFull is returned when the queue cannot accept another request.
var ErrFull = errors.New("queue: full")

// ErrClosed is returned when the queue has been shut down.
var ErrClosed = errors.New("queue: closed")

// Request asks for one profile page to be fetched and processed.
type Request struct {
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url"`
}

// RequestFromURL derives a request from a canonical profile page URL.
func RequestFromURL(pageURL string) (Request, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return Request{}, fmt.Errorf("queue: parse profile URL: %w", err)
	}
	segment := strings.Trim(u.Path, "/")
	if !strings.HasPrefix(segment, "@") || len(segment) < 2 {
		return Request{}, fmt.Errorf("queue: %q is not a profile URL", pageURL)
	}
	username := strings.TrimPrefix(segment, "@")
	if i := strings.IndexByte(username, '/'); i >= 0 {
		username = username[:i]
	}
	return Request{Username: username, ProfileURL: pageURL}, nil
}

// pushEnvelope is the push-delivery wrapper: the payload travels
// base64-encoded inside a message object.
type pushEnvelope struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

// DecodePush extracts the request from a push-delivery body. The decoded
// payload is the profile page URL.
func DecodePush(body []byte) (Request, error) {
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Request{}, fmt.Errorf("queue: parse push envelope: %w", err)
	}
	if envelope.Message.Data == "" {
		return Request{}, fmt.Errorf("queue: push envelope carries no data")
	}
	payload, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return Request{}, fmt.Errorf("queue: decode push payload: %w", err)
	}
	return RequestFromURL(string(payload))
}

// EncodePush wraps a request as a push-delivery body, for publishers.
func EncodePush(req Request) ([]byte, error) {
	var envelope pushEnvelope
	envelope.Message.Data = base64.StdEncoding.EncodeToString([]byte(req.ProfileURL))
	return json.Marshal(envelope)
}

// Queue is a bounded in-process request queue.
type Queue struct {
	ch chan Request
}

// New creates a queue holding at most size requests.
func New(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Request, size)}
}

// Enqueue adds a request without blocking; a full queue returns ErrFull.
func (q *Queue) Enqueue(req Request) error {
	select {
	case q.ch <- req:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue blocks until a request is available, the queue closes, or the
// context is done.
func (q *Queue) Dequeue(ctx context.Context) (Request, error) {
	select {
	case req, ok := <-q.ch:
		if !ok {
			return Request{}, ErrClosed
		}
		return req, nil
	case <-ctx.Done():
		return Request{}, ctx.Err()
	}
}

// Close stops the queue. Pending requests remain readable until drained.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports how many requests are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}
