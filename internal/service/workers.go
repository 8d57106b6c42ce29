// internal/service/workers.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/TikTokIngester/internal/blob"
	"github.com/valpere/TikTokIngester/internal/fetch"
	"github.com/valpere/TikTokIngester/internal/monitoring"
	"github.com/valpere/TikTokIngester/internal/queue"
	"github.com/valpere/TikTokIngester/internal/utils"
)

// Fetcher retrieves one rendered page. Satisfied by fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// WorkerPool drains the scrape queue: each request is fetched, archived as a
// raw document and processed in place.
type WorkerPool struct {
	requests  *queue.Queue
	fetcher   Fetcher
	blobs     blob.Store
	rawBucket string
	processor *Processor
	metrics   *monitoring.Metrics
	logger    utils.Logger
	workers   int
}

// WorkerPoolOptions wires a WorkerPool.
type WorkerPoolOptions struct {
	Requests  *queue.Queue
	Fetcher   Fetcher
	Blobs     blob.Store
	RawBucket string
	Processor *Processor
	Metrics   *monitoring.Metrics
	Logger    utils.Logger
	Workers   int
}

// NewWorkerPool creates a pool; Workers defaults to 1.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	if opts.Logger == nil {
		opts.Logger = utils.NewLogger()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &WorkerPool{
		requests:  opts.Requests,
		fetcher:   opts.Fetcher,
		blobs:     opts.Blobs,
		rawBucket: opts.RawBucket,
		processor: opts.Processor,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		workers:   opts.Workers,
	}
}

// Run blocks until the context is done or the queue closes, draining
// requests with the configured concurrency. Per-request failures are logged
// and alerted inside the processor; they never stop the pool.
func (w *WorkerPool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (w *WorkerPool) worker(ctx context.Context, id int) {
	logger := w.logger.WithField("worker", id)
	for {
		req, err := w.requests.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && ctx.Err() == nil {
				logger.Errorf("service: dequeue: %v", err)
			}
			return
		}
		if w.metrics != nil {
			w.metrics.QueueDepth.Set(float64(w.requests.Len()))
		}
		if err := w.handle(ctx, req); err != nil {
			logger.Errorf("service: scrape %s: %v", req.Username, err)
		}
	}
}

// handle runs one request end to end. The raw page is archived before
// processing so a failed extraction can always be replayed from the blob.
func (w *WorkerPool) handle(ctx context.Context, req queue.Request) error {
	pageURL := req.ProfileURL
	if pageURL == "" {
		pageURL = fetch.ProfileURL(req.Username)
	}

	html, err := w.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if w.metrics != nil {
			w.metrics.FetchesTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("fetch page: %w", err)
	}
	if w.metrics != nil {
		w.metrics.FetchesTotal.WithLabelValues("success").Inc()
	}

	now := time.Now().UTC()
	object := fmt.Sprintf("profiles/%s/%s.html", req.Username, now.Format("20060102-150405"))
	if err := w.blobs.WriteText(ctx, w.rawBucket, object, html); err != nil {
		return fmt.Errorf("archive raw page: %w", err)
	}

	return w.processor.Process(ctx, Event{
		Bucket:       w.rawBucket,
		ObjectName:   object,
		CreationTime: now,
	})
}
