// internal/queue/queue_test.go
package queue

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestRequestFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"canonical", "https://www.tiktok.com/@demo", "demo", false},
		{"trailing slash", "https://www.tiktok.com/@demo/", "demo", false},
		{"with subpath", "https://www.tiktok.com/@demo/video/123", "demo", false},
		{"whitespace", "  https://www.tiktok.com/@demo\n", "demo", false},
		{"no handle", "https://www.tiktok.com/foryou", "", true},
		{"bare handle", "https://www.tiktok.com/@", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := RequestFromURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Username != tt.want {
				t.Errorf("username = %q, want %q", req.Username, tt.want)
			}
		})
	}
}

func TestPushRoundTrip(t *testing.T) {
	original := Request{Username: "demo", ProfileURL: "https://www.tiktok.com/@demo"}
	body, err := EncodePush(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePush(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip = %+v, want %+v", decoded, original)
	}
}

func TestDecodePush_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"empty data", `{"message":{"data":""}}`},
		{"bad base64", `{"message":{"data":"!!!"}}`},
		{"payload not a profile URL", `{"message":{"data":"` +
			base64.StdEncoding.EncodeToString([]byte("https://example.com/")) + `"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePush([]byte(tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := New(2)
	if err := q.Enqueue(Request{Username: "a"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Request{Username: "b"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Request{Username: "c"}); !errors.Is(err, ErrFull) {
		t.Errorf("third enqueue: got %v, want ErrFull", err)
	}
	if q.Len() != 2 {
		t.Errorf("len = %d, want 2", q.Len())
	}

	req, err := q.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if req.Username != "a" {
		t.Errorf("dequeue order: got %q, want a", req.Username)
	}
}

func TestQueue_DequeueRespectsContext(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestQueue_CloseDrains(t *testing.T) {
	q := New(2)
	q.Enqueue(Request{Username: "a"})
	q.Close()

	if req, err := q.Dequeue(context.Background()); err != nil || req.Username != "a" {
		t.Fatalf("pending request must stay readable, got %+v, %v", req, err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
