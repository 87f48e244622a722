// Package app builds the long-lived services from configuration and exposes
// the operations the CLI runs.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/chapter-crawler/internal/api"
	"github.com/JakeFAU/chapter-crawler/internal/clock/system"
	"github.com/JakeFAU/chapter-crawler/internal/config"
	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/discovery"
	"github.com/JakeFAU/chapter-crawler/internal/extract"
	autofetcher "github.com/JakeFAU/chapter-crawler/internal/fetcher/auto"
	collyfetcher "github.com/JakeFAU/chapter-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/chapter-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/chapter-crawler/internal/hash/sha256"
	"github.com/JakeFAU/chapter-crawler/internal/headless/detector"
	"github.com/JakeFAU/chapter-crawler/internal/id/uuid"
	"github.com/JakeFAU/chapter-crawler/internal/metrics"
	"github.com/JakeFAU/chapter-crawler/internal/output"
	"github.com/JakeFAU/chapter-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/chapter-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/chapter-crawler/internal/progress/sinks"
	gcppublisher "github.com/JakeFAU/chapter-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/chapter-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/chapter-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/chapter-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/chapter-crawler/internal/storage/postgres"
	"github.com/JakeFAU/chapter-crawler/internal/video"
)

// persistTimeout bounds the writes made after a run, which still happen when
// the run itself was canceled.
const persistTimeout = 30 * time.Second

// App holds the services shared by every command.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	site   crawler.Site
	clock  *system.Clock

	fetcher   crawler.Fetcher
	decoder   crawler.Decoder
	extractor crawler.Extractor
	pages     *crawler.Engine
	driver    *crawler.Driver
	catalog   *discovery.Catalog
	listing   *discovery.Listing
	blobs     crawler.BlobStore
	writer    *output.Writer
	video     *video.Client

	tracker *progress.Tracker
	hub     *progress.Hub
	ops     *api.Server

	runStore  *pgstore.RunStore
	gcs       *storage.Client
	publisher *gcppublisher.Publisher

	headlessMu sync.Mutex
	headless   *headlessfetcher.Fetcher
}

// Deps lets callers replace infrastructure pieces; zero fields are built from
// the configuration.
type Deps struct {
	Fetcher   crawler.Fetcher
	Pauser    crawler.Pauser
	BlobStore crawler.BlobStore
	RunStore  crawler.RunStore
	Publisher crawler.Publisher
}

// Build wires an App from cfg.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return BuildWith(ctx, cfg, logger, Deps{})
}

// BuildWith is Build with injected dependencies.
func BuildWith(ctx context.Context, cfg config.Config, logger *zap.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	site, err := crawler.NewSite(cfg.Site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("site: %w", err)
	}
	metrics.Init()

	a := &App{
		cfg:       cfg,
		logger:    logger,
		site:      site,
		clock:     system.New(),
		decoder:   crawler.NewGB18030Decoder(),
		extractor: extract.NewChapterExtractor(cfg.Extraction()),
		catalog:   discovery.NewCatalog(),
	}
	logger.Info("building application",
		zap.String("base_url", site.BaseURL()),
		zap.String("backend", cfg.HTTP.Backend),
		zap.String("output", cfg.Output.Provider),
		zap.String("failure_policy", cfg.Crawler.FailurePolicy),
	)

	if err := a.setup(ctx, deps); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) setup(ctx context.Context, deps Deps) error {
	var pauser crawler.Pauser = a.clock
	if deps.Pauser != nil {
		pauser = deps.Pauser
	}

	a.fetcher = deps.Fetcher
	if a.fetcher == nil {
		fetcher, err := a.setupFetcher()
		if err != nil {
			return err
		}
		a.fetcher = fetcher
	}

	a.blobs = deps.BlobStore
	if a.blobs == nil {
		blobs, err := a.setupStorage(ctx)
		if err != nil {
			return err
		}
		a.blobs = blobs
	}

	runs := deps.RunStore
	if runs == nil {
		if err := a.setupDatabase(ctx); err != nil {
			return err
		}
		if a.runStore != nil {
			runs = a.runStore
		}
	}

	publisher := deps.Publisher
	if publisher == nil {
		if err := a.setupPublisher(ctx); err != nil {
			return err
		}
		if a.publisher != nil {
			publisher = a.publisher
		}
	}

	observer := a.setupProgress(ctx, runs)

	policy := crawler.NewFixedRetryPolicy(a.cfg.Crawler.MaxAttempts, a.cfg.Crawler.RetryDelay)
	engine := crawler.NewEngine(a.fetcher, a.decoder, a.extractor, policy, pauser, observer, a.logger.Named("engine"))
	a.pages = crawler.NewEngine(a.fetcher, a.decoder, extract.Raw{}, policy, pauser, nil, a.logger.Named("catalog"))
	a.driver = crawler.NewDriver(
		engine,
		crawler.NewPacer(a.cfg.Crawler.BatchSize, a.cfg.Crawler.BatchCooldown, pauser),
		a.site,
		a.clock,
		uuid.New(),
		crawler.DriverConfig{FailurePolicy: a.cfg.Policy()},
		observer,
		a.logger.Named("driver"),
	)
	a.listing = discovery.NewListing(a.fetcher, a.decoder, pauser, a.site, discovery.ListingConfig{
		Kind:      a.cfg.Listing.Kind,
		Class:     a.cfg.Listing.Class,
		PageDelay: a.cfg.Listing.PageDelay,
		OnPage: func(_ int, err error) {
			metrics.ObserveListingPage(err == nil)
		},
	}, a.logger.Named("discovery"))
	a.writer = output.NewWriter(a.blobs, runs, publisher, sha256.New(), a.clock, output.Config{
		Prefix: a.cfg.Output.Prefix,
		Topic:  a.cfg.PubSub.TopicName,
	}, a.logger.Named("output"))
	a.video = video.NewClient(video.Config{
		Endpoint: a.cfg.Video.Endpoint,
		Host:     a.cfg.Video.Host,
		Quality:  a.cfg.Video.Quality,
		Timeout:  a.cfg.Video.Timeout,
	}, a.logger.Named("video"))
	a.ops = api.NewServer(a.tracker, a.Ready, a.logger.Named("api"))
	return nil
}

func (a *App) setupFetcher() (crawler.Fetcher, error) {
	cookies, err := a.cfg.CookieMap()
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(ratelimit.Config{
		RPS:     a.cfg.HTTP.RPS,
		Burst:   a.cfg.HTTP.Burst,
		OnDelay: metrics.ObserveRateLimitDelay,
	})

	switch a.cfg.HTTP.Backend {
	case config.BackendHeadless:
		render, err := a.newHeadless(cookies)
		if err != nil {
			return nil, err
		}
		return &limitedFetcher{next: render, limiter: limiter}, nil
	case config.BackendAuto:
		probe, err := a.newColly(cookies, limiter)
		if err != nil {
			return nil, err
		}
		fetcher, err := autofetcher.New(autofetcher.Config{
			Probe: probe,
			Render: func() (crawler.Fetcher, error) {
				render, err := a.newHeadless(cookies)
				if err != nil {
					return nil, err
				}
				return &limitedFetcher{next: render, limiter: limiter}, nil
			},
			Detector:  detector.NewHeuristic(a.cfg.Headless.PromoteThreshold),
			OnPromote: metrics.ObserveHeadlessPromotion,
		}, a.logger.Named("fetcher"))
		if err != nil {
			return nil, fmt.Errorf("auto fetcher init failed: %w", err)
		}
		a.logger.Info("using auto fetcher", zap.Int("promote_threshold", a.cfg.Headless.PromoteThreshold))
		return fetcher, nil
	default:
		return a.newColly(cookies, limiter)
	}
}

func (a *App) newColly(cookies map[string]string, limiter *ratelimit.Limiter) (crawler.Fetcher, error) {
	cookieURL, err := collyfetcher.CookieURLFor(a.site.BaseURL())
	if err != nil {
		return nil, err
	}
	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Site.UserAgent,
		Timeout:   a.cfg.HTTP.Timeout,
		Headers:   a.cfg.HeaderMap(),
		Cookies:   cookies,
		CookieURL: cookieURL,
		Limiter:   limiter,
	})
	if err != nil {
		return nil, fmt.Errorf("colly fetcher init failed: %w", err)
	}
	a.logger.Info("using colly fetcher", zap.Duration("timeout", a.cfg.HTTP.Timeout))
	return fetcher, nil
}

func (a *App) newHeadless(cookies map[string]string) (*headlessfetcher.Fetcher, error) {
	origin := a.cfg.Headless.Origin
	if origin == "" {
		origin = a.site.BaseURL()
	}
	fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		UserAgent:         a.cfg.Site.UserAgent,
		NavigationTimeout: a.cfg.Headless.NavTimeout,
		Origin:            origin,
		Headers:           a.cfg.HeaderMap(),
		Cookies:           cookies,
		ExecPath:          a.cfg.Headless.ExecPath,
	}, a.logger.Named("headless"))
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.headlessMu.Lock()
	a.headless = fetcher
	a.headlessMu.Unlock()
	a.logger.Info("headless fetcher started", zap.String("origin", origin))
	return fetcher, nil
}

func (a *App) setupStorage(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Output.Provider {
	case config.ProviderGCS:
		var err error
		a.gcs, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		blobs, err := gcsstorage.New(a.gcs, gcsstorage.Config{Bucket: a.cfg.Output.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS output", zap.String("bucket", a.cfg.Output.GCSBucket))
		return blobs, nil
	case config.ProviderLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Output.Dir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local output", zap.String("dir", a.cfg.Output.Dir))
		return blobs, nil
	default:
		a.logger.Info("using in-memory output")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("no db.dsn configured; run rows are not persisted")
		return nil
	}
	var err error
	a.runStore, err = pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	a.logger.Info("run store initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Debug("no pubsub topic configured; run summaries are not published")
		return nil
	}
	var err error
	a.publisher, err = gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupProgress(ctx context.Context, runs crawler.RunStore) crawler.Observer {
	a.tracker = progress.NewTracker()
	sinks := []progress.Sink{a.tracker}
	if runs != nil {
		sinks = append(sinks, progresssinks.NewStoreSink(runs, a.logger.Named("progress_store")))
	}
	if a.cfg.Progress.LogEvents {
		sinks = append(sinks, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatch,
		MaxBatchWait:   a.cfg.Progress.MaxBatchWait,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         a.logger.Named("progress_hub"),
	}, sinks...)
	return crawler.MultiObserver{
		metrics.Observer{},
		progress.NewReporter(a.hub, a.clock.Now),
	}
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Site returns the configured target site.
func (a *App) Site() crawler.Site {
	return a.site
}

// Progress returns the snapshot of the current or last run.
func (a *App) Progress() progress.Snapshot {
	return a.tracker.Snapshot()
}

// Ready reports whether the configured backing services are reachable.
func (a *App) Ready(ctx context.Context) error {
	if a.runStore != nil {
		if err := a.runStore.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ServeOps runs the ops server until ctx is done. It returns immediately when
// no address is configured.
func (a *App) ServeOps(ctx context.Context) error {
	if a.cfg.Server.MetricsAddr == "" {
		return nil
	}
	return a.ops.Serve(ctx, a.cfg.Server.MetricsAddr)
}

// ChapterRefs fetches the book's catalog page and returns its chapters in
// catalog order.
func (a *App) ChapterRefs(ctx context.Context, bookID string) ([]crawler.ChapterRef, error) {
	url := a.site.CatalogURL(bookID)
	markup, err := a.pages.FetchOne(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog %s: %w", url, err)
	}
	refs, err := a.catalog.Discover(markup)
	if errors.Is(err, discovery.ErrCatalogAnchorMissing) {
		a.logger.Warn("catalog has no chapter list", zap.String("url", url))
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", url, err)
	}
	a.logger.Info("catalog loaded", zap.String("book_id", bookID), zap.Int("chapters", len(refs)))
	return refs, nil
}

// DownloadBook runs the chapter pipeline for bookID and persists the result.
// The returned error is the run's error joined with any persistence error.
func (a *App) DownloadBook(ctx context.Context, bookID string) (crawler.RunResult, crawler.RunRecord, error) {
	refs, err := a.ChapterRefs(ctx, bookID)
	if err != nil {
		return crawler.RunResult{}, crawler.RunRecord{}, err
	}
	return a.RunChapters(ctx, bookID, refs)
}

// RunChapters runs the pipeline over refs and persists the result.
func (a *App) RunChapters(
	ctx context.Context,
	bookID string,
	refs []crawler.ChapterRef,
) (crawler.RunResult, crawler.RunRecord, error) {
	result, runErr := a.driver.Run(ctx, bookID, refs)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := a.hub.Flush(persistCtx); err != nil {
		a.logger.Warn("progress flush failed", zap.Error(err))
	}
	record, err := a.writer.WriteRun(persistCtx, result)
	if err != nil {
		return result, record, errors.Join(runErr, err)
	}
	return result, record, runErr
}

// DiscoverBooks walks the listing pages and merges the IDs into list_id.json.
// IDs found before a cancellation are still merged.
func (a *App) DiscoverBooks(ctx context.Context, pages discovery.PageRange) ([]string, string, error) {
	ids, discoverErr := a.listing.Discover(ctx, pages)
	if len(ids) == 0 {
		return nil, "", discoverErr
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	merged, uri, err := a.writer.MergeBookIDs(persistCtx, ids.Sorted())
	if err != nil {
		return nil, "", errors.Join(discoverErr, err)
	}
	return merged, uri, discoverErr
}

// VideoInfo asks the download-info endpoint about vid.
func (a *App) VideoInfo(ctx context.Context, req video.Request) (json.RawMessage, error) {
	return a.video.DownloadInfo(ctx, req)
}

// ExtractPage decodes a saved chapter page and returns its cleaned text.
func (a *App) ExtractPage(body []byte) (string, error) {
	markup, err := a.decoder.Decode(body)
	if err != nil {
		return "", fmt.Errorf("decode page: %w", err)
	}
	text, err := a.extractor.Extract(markup)
	if err != nil {
		return "", fmt.Errorf("extract page: %w", err)
	}
	return text, nil
}

// Close flushes progress and releases every client. It is safe to call on a
// partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.headlessMu.Lock()
	if a.headless != nil {
		a.headless.Close()
		a.headless = nil
	}
	a.headlessMu.Unlock()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub close: %w", err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs client close: %w", err))
		}
	}
	if a.runStore != nil {
		a.runStore.Close()
	}
	return errors.Join(errs...)
}

// limitedFetcher applies the per-host limiter in front of a backend that has
// no hook of its own.
type limitedFetcher struct {
	next    crawler.Fetcher
	limiter *ratelimit.Limiter
}

func (f *limitedFetcher) Fetch(ctx context.Context, url string) (crawler.FetchResponse, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return crawler.FetchResponse{}, err
	}
	return f.next.Fetch(ctx, url)
}
