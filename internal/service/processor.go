// internal/service/processor.go

// Package service runs the ingestion pipeline: raw documents come in as
// storage events, pass through extraction and land in the warehouse, with
// scrape requests feeding the front of the pipeline through a worker pool.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/TikTokIngester/internal/artifact"
	"github.com/valpere/TikTokIngester/internal/blob"
	"github.com/valpere/TikTokIngester/internal/extract"
	"github.com/valpere/TikTokIngester/internal/monitoring"
	"github.com/valpere/TikTokIngester/internal/store"
	"github.com/valpere/TikTokIngester/internal/utils"
)

// Event describes one finalized raw document in the blob store. The field
// names mirror the storage notification payload.
type Event struct {
	Bucket       string    `json:"bucket"`
	ObjectName   string    `json:"name"`
	CreationTime time.Time `json:"timeCreated"`
}

// ProcessorOptions wires a Processor.
type ProcessorOptions struct {
	Blobs       blob.Store
	Sink        artifact.Sink
	Warehouse   *store.Store
	Metrics     *monitoring.Metrics
	Alerter     monitoring.Alerter
	Logger      utils.Logger
	LoadTimeout time.Duration
}

// Processor turns one storage event into warehouse rows.
type Processor struct {
	blobs        blob.Store
	orchestrator *extract.Orchestrator
	sink         artifact.Sink
	warehouse    *store.Store
	metrics      *monitoring.Metrics
	alerter      monitoring.Alerter
	logger       utils.Logger
	loadTimeout  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewProcessor creates a processor. Blobs and Warehouse are required; the
// rest falls back to working defaults.
func NewProcessor(opts ProcessorOptions) *Processor {
	if opts.Logger == nil {
		opts.Logger = utils.NewLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics("tiktokingester")
	}
	if opts.Alerter == nil {
		opts.Alerter = monitoring.NewLogAlerter(opts.Logger)
	}
	if opts.LoadTimeout == 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Processor{
		blobs:        opts.Blobs,
		orchestrator: extract.NewOrchestrator(opts.Logger),
		sink:         opts.Sink,
		warehouse:    opts.Warehouse,
		metrics:      opts.Metrics,
		alerter:      opts.Alerter,
		logger:       opts.Logger,
		loadTimeout:  opts.LoadTimeout,
		locks:        make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-username mutex, creating it on first use. Holding
// it guarantees at most one writer per key inside this process.
func (p *Processor) lockFor(username string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[username]
	if !ok {
		l = &sync.Mutex{}
		p.locks[username] = l
	}
	return l
}

// Process reads the raw document, extracts the canonical records, records
// the artifacts and loads the warehouse. Any returned error means the run
// failed as a unit and the event should be redelivered.
func (p *Processor) Process(ctx context.Context, event Event) error {
	start := time.Now()
	defer func() {
		p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	html, err := p.blobs.ReadText(ctx, event.Bucket, event.ObjectName)
	if err != nil {
		return p.fail(ctx, event, "read raw document", err)
	}

	scrapedAt := event.CreationTime
	if scrapedAt.IsZero() {
		scrapedAt = time.Now()
	}

	profile, videos, err := p.orchestrator.Extract(html, scrapedAt)
	if err != nil {
		return p.fail(ctx, event, "extract document", err)
	}

	lock := p.lockFor(profile.Username)
	lock.Lock()
	defer lock.Unlock()

	// Artifacts are an audit trail, not a load dependency: a sink outage
	// must not block the warehouse.
	if p.sink != nil {
		if err := p.sink.WriteProfile(ctx, profile); err != nil {
			p.logger.Warnf("service: profile artifact for %s: %v", profile.Username, err)
		}
		if err := p.sink.WriteVideos(ctx, profile.Username, videos); err != nil {
			p.logger.Warnf("service: video artifacts for %s: %v", profile.Username, err)
		}
	}

	loadCtx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()
	if err := p.warehouse.Load(loadCtx, profile, videos); err != nil {
		return p.fail(ctx, event, "load warehouse", err)
	}

	p.metrics.DocumentsProcessed.WithLabelValues("success").Inc()
	p.metrics.VideosLoaded.Add(float64(len(videos)))
	p.logger.WithFields(map[string]interface{}{
		"object":   event.ObjectName,
		"username": profile.Username,
		"videos":   len(videos),
	}).Info("service: document processed")
	return nil
}

// fail records the failure in the metrics and the alert channel, then wraps
// the error for the caller.
func (p *Processor) fail(ctx context.Context, event Event, step string, err error) error {
	p.metrics.DocumentsProcessed.WithLabelValues("error").Inc()
	detail := fmt.Sprintf("%s/%s: %s: %v", event.Bucket, event.ObjectName, step, err)
	if alertErr := p.alerter.Alert(ctx, "document processing failed", detail); alertErr != nil {
		p.logger.Warnf("service: alert delivery: %v", alertErr)
	}
	return fmt.Errorf("service: %s %s/%s: %w", step, event.Bucket, event.ObjectName, err)
}
