// cmd/tiktokingester/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/valpere/TikTokIngester/internal/artifact"
	"github.com/valpere/TikTokIngester/internal/blob"
	"github.com/valpere/TikTokIngester/internal/config"
	"github.com/valpere/TikTokIngester/internal/fetch"
	"github.com/valpere/TikTokIngester/internal/monitoring"
	"github.com/valpere/TikTokIngester/internal/numeric"
	"github.com/valpere/TikTokIngester/internal/queue"
	"github.com/valpere/TikTokIngester/internal/service"
	"github.com/valpere/TikTokIngester/internal/store"
	"github.com/valpere/TikTokIngester/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "process":
		err = runProcess(os.Args[2:])
	case "publish":
		err = runPublish(os.Args[2:])
	case "view":
		err = runView(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "init-schema":
		err = runInitSchema(os.Args[2:])
	case "version", "--version":
		fmt.Printf("tiktokingester %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`tiktokingester - profile ingestion pipeline

Usage:
  tiktokingester <command> [flags]

Commands:
  serve        run the ingestion service (HTTP surface + scrape workers)
  process      process one raw document from the blob store
  publish      enqueue profile scrapes on a running service
  view         print the per-username summary rollup
  export       export the summary rollup to CSV or XLSX
  init-schema  create the warehouse tables
  version      print version information

Common flags:
  -config <file>   configuration file (default config.yaml)
`)
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) utils.Logger {
	var logger utils.Logger
	switch strings.ToLower(cfg.Service.LogLevel) {
	case "debug":
		logger = utils.NewLoggerWithLevel(utils.DebugLevel)
	case "warn":
		logger = utils.NewLoggerWithLevel(utils.WarnLevel)
	case "error":
		logger = utils.NewLoggerWithLevel(utils.ErrorLevel)
	default:
		logger = utils.NewLogger()
	}
	numeric.SetLogger(logger)
	return logger
}

func openStore(cfg *config.Config, logger utils.Logger) (*store.Store, error) {
	return store.Open(store.Options{
		Driver:   cfg.Database.Driver,
		DSN:      cfg.Database.DSN,
		Strategy: store.Strategy(cfg.Database.Strategy),
		Logger:   logger,
	})
}

func newSink(cfg *config.Config, blobs blob.Store) (artifact.Sink, func(), error) {
	if cfg.Artifact.Backend == "mongodb" {
		sink, err := artifact.NewMongoSink(context.Background(), artifact.MongoOptions{
			URI:        cfg.Artifact.MongoURI,
			Database:   cfg.Artifact.MongoDatabase,
			Collection: cfg.Artifact.MongoCollection,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect artifact sink: %w", err)
		}
		return sink, func() { sink.Close(context.Background()) }, nil
	}
	return artifact.NewBlobSink(blobs, cfg.Storage.ProcessedBucket), func() {}, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateFetcher(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	warehouse, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer warehouse.Close()
	if err := warehouse.EnsureSchema(); err != nil {
		return err
	}

	blobs, err := blob.NewFilesystemStore(cfg.Storage.Root)
	if err != nil {
		return err
	}
	sink, closeSink, err := newSink(cfg, blobs)
	if err != nil {
		return err
	}
	defer closeSink()

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics(cfg.Metrics.Namespace)
	}
	alerter := monitoring.NewAlerter(cfg.Alerts.WebhookURL, logger)

	processor := service.NewProcessor(service.ProcessorOptions{
		Blobs:       blobs,
		Sink:        sink,
		Warehouse:   warehouse,
		Metrics:     metrics,
		Alerter:     alerter,
		Logger:      logger,
		LoadTimeout: cfg.Service.LoadTimeout,
	})

	requests := queue.New(cfg.Service.QueueSize)
	pool := service.NewWorkerPool(service.WorkerPoolOptions{
		Requests:  requests,
		Fetcher:   fetch.NewClient(cfg.Fetcher, logger),
		Blobs:     blobs,
		RawBucket: cfg.Storage.RawBucket,
		Processor: processor,
		Metrics:   metrics,
		Logger:    logger,
		Workers:   cfg.Service.Workers,
	})

	srv := service.NewServer(processor, requests, warehouse, metrics, logger)
	httpServer := &http.Server{
		Addr:              cfg.Service.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("address", cfg.Service.ListenAddress).Info("service listening")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-poolDone
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	requests.Close()
	<-poolDone
	return nil
}

func runProcess(args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	object := fs.String("object", "", "raw document object name, e.g. profiles/demo/20240301-123000.html")
	bucket := fs.String("bucket", "", "raw bucket (defaults to storage.raw_bucket)")
	fs.Parse(args)

	if *object == "" {
		return fmt.Errorf("-object is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	warehouse, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer warehouse.Close()
	if err := warehouse.EnsureSchema(); err != nil {
		return err
	}

	blobs, err := blob.NewFilesystemStore(cfg.Storage.Root)
	if err != nil {
		return err
	}
	sink, closeSink, err := newSink(cfg, blobs)
	if err != nil {
		return err
	}
	defer closeSink()

	processor := service.NewProcessor(service.ProcessorOptions{
		Blobs:       blobs,
		Sink:        sink,
		Warehouse:   warehouse,
		Alerter:     monitoring.NewAlerter(cfg.Alerts.WebhookURL, logger),
		Logger:      logger,
		LoadTimeout: cfg.Service.LoadTimeout,
	})

	eventBucket := *bucket
	if eventBucket == "" {
		eventBucket = cfg.Storage.RawBucket
	}
	return processor.Process(context.Background(), service.Event{
		Bucket:       eventBucket,
		ObjectName:   *object,
		CreationTime: time.Now().UTC(),
	})
}

func runPublish(args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8080", "base URL of a running service")
	fs.Parse(args)

	usernames := fs.Args()
	if len(usernames) == 0 {
		return fmt.Errorf("usage: publish [-server URL] <username> [username...]")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	for _, username := range usernames {
		username = strings.TrimPrefix(strings.TrimSpace(username), "@")
		body, err := json.Marshal(map[string]string{"username": username})
		if err != nil {
			return err
		}
		resp, err := client.Post(*server+"/v1/scrapes", "application/json", strings.NewReader(string(body)))
		if err != nil {
			return fmt.Errorf("publish %s: %w", username, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("publish %s: service answered %d", username, resp.StatusCode)
		}
		fmt.Printf("queued %s\n", username)
	}
	return nil
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	username := fs.String("username", "", "limit to one username")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	warehouse, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer warehouse.Close()

	ctx := context.Background()
	var summaries []store.Summary
	if *username != "" {
		summary, err := warehouse.SummaryFor(ctx, strings.TrimPrefix(*username, "@"))
		if err != nil {
			return fmt.Errorf("summary for %s: %w", *username, err)
		}
		summaries = []store.Summary{summary}
	} else {
		if summaries, err = warehouse.Summaries(ctx); err != nil {
			return err
		}
	}

	fmt.Printf("%-24s %12s %14s %8s %12s %-20s\n",
		"USERNAME", "FOLLOWERS", "TOTAL LIKES", "VIDEOS", "VIEWS", "LATEST SCRAPE")
	for _, s := range summaries {
		fmt.Printf("%-24s %12d %14d %8d %12d %-20s\n",
			s.Username, s.FollowerCount, s.TotalLikeCount, s.VideoCount, s.TotalViews, s.LatestScrape)
	}
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	format := fs.String("format", "csv", "output format: csv or xlsx")
	out := fs.String("out", "", "output file (default stdout for csv, summary.xlsx for xlsx)")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	warehouse, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer warehouse.Close()

	summaries, err := warehouse.Summaries(context.Background())
	if err != nil {
		return err
	}

	switch *format {
	case "csv":
		if *out == "" {
			return store.ExportCSV(os.Stdout, summaries)
		}
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create %s: %w", *out, err)
		}
		defer f.Close()
		return store.ExportCSV(f, summaries)
	case "xlsx":
		filename := *out
		if filename == "" {
			filename = "summary.xlsx"
		}
		return store.ExportXLSX(filename, summaries)
	default:
		return fmt.Errorf("unsupported format %q (csv or xlsx)", *format)
	}
}

func runInitSchema(args []string) error {
	fs := flag.NewFlagSet("init-schema", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "configuration file")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	warehouse, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer warehouse.Close()

	if err := warehouse.EnsureSchema(); err != nil {
		return err
	}
	fmt.Println("schema ready")
	return nil
}
