package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/cardsnap/internal/config"
	"github.com/kirillkom/cardsnap/internal/core/ports"
	"github.com/kirillkom/cardsnap/internal/core/store"
	"github.com/kirillkom/cardsnap/internal/core/usecase"
	"github.com/kirillkom/cardsnap/internal/core/view"
	"github.com/kirillkom/cardsnap/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/cardsnap/internal/infrastructure/media"
	"github.com/kirillkom/cardsnap/internal/infrastructure/mirror/sheet"
	"github.com/kirillkom/cardsnap/internal/infrastructure/notify"
	"github.com/kirillkom/cardsnap/internal/infrastructure/queue/nats"
	"github.com/kirillkom/cardsnap/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/cardsnap/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/cardsnap/internal/infrastructure/resilience"
	"github.com/kirillkom/cardsnap/internal/infrastructure/session"
	"github.com/kirillkom/cardsnap/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/cardsnap/internal/infrastructure/storage/s3"
	"github.com/kirillkom/cardsnap/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Store      *store.Store
	Lifecycle  *usecase.CardLifecycleUseCase
	Cards      *usecase.CardQueryUseCase
	Credential *usecase.CredentialUseCase
	Session    *session.Toggle
	Notices    *notify.Hub
	Metrics    *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, error) {
		closeAll()
		return nil, err
	}

	kv, db, err := openKeyValueStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = db.Close() })

	images, err := openImageStorage(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	cardStore := store.New(kv, store.DefaultKeys(), logger)
	if err := seedCredential(ctx, cardStore, cfg.GeminiAPIKey); err != nil {
		return fail(err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics("cardsnap-api")
	lifecycleMetrics := metrics.NewLifecycleMetrics("cardsnap-api", httpMetrics.Registry())

	hub := notify.NewHub(logger, 0)
	closers = append(closers, hub.Close)
	toggle := session.NewToggle(cfg.SessionActive, hub)

	guard := resilience.NewGuard(breakerConfig(cfg)).
		WithLogger(logger).
		OnStateChange(lifecycleMetrics.ObserveBreaker)

	mirror, closeMirror, err := openMirror(cfg, guard, logger)
	if err != nil {
		return fail(err)
	}
	if closeMirror != nil {
		closers = append(closers, closeMirror)
	}

	extractor := gemini.New(gemini.Options{
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
		Guard:   guard,
		Logger:  logger,
	})

	undo := usecase.NewUndoTracker(cfg.UndoWindow)
	lifecycle := usecase.NewCardLifecycleUseCase(usecase.LifecycleDeps{
		Store:       cardStore,
		Credentials: cardStore,
		Storage:     images,
		Preparer:    media.NewPreparer(int64(cfg.ImageMaxBytes), cfg.ImageMaxEdge),
		Extractor:   extractor,
		Mirror:      mirror,
		Notifier:    hub,
		Session:     toggle,
		Observer:    lifecycleMetrics,
		Undo:        undo,
		Logger:      logger,
	})
	// Registered last so in-flight work settles before its dependencies close.
	closers = append(closers, lifecycle.Close)

	cards := usecase.NewCardQueryUseCase(cardStore, view.NewProjector(cfg.CollationLanguage)).WithImages(images)
	credential := usecase.NewCredentialUseCase(cardStore, extractor, hub)

	logger.Info("app_initialized",
		"storage_driver", cfg.StorageDriver,
		"image_backend", cfg.ImageBackend,
		"mirror_target", cfg.MirrorTarget,
		"session_active", cfg.SessionActive,
	)

	return &App{
		Config: cfg,
		Logger: logger,

		Store:      cardStore,
		Lifecycle:  lifecycle,
		Cards:      cards,
		Credential: credential,
		Session:    toggle,
		Notices:    hub,
		Metrics:    httpMetrics,

		closeFn: closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func openKeyValueStore(ctx context.Context, cfg config.Config) (ports.KeyValueStore, *sql.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", "sqlite":
		db, err := sqlite.OpenDB(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return sqlite.NewKVRepository(db), db, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewKVRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func openImageStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ImageBackend)) {
	case "", "localfs":
		storage, err := localfs.New(cfg.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("init image storage: %w", err)
		}
		return storage, nil
	case "s3":
		storage, err := s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 image storage: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unsupported image backend %q", cfg.ImageBackend)
	}
}

// openMirror returns a nil mirror when mirroring is disabled.
func openMirror(cfg config.Config, guard *resilience.Guard, logger *slog.Logger) (ports.Mirror, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MirrorTarget)) {
	case "", "none":
		return nil, nil, nil
	case "sheet":
		workbook, err := sheet.New(cfg.SheetPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init sheet mirror: %w", err)
		}
		return workbook, nil, nil
	case "nats":
		queue, err := openQueue(cfg, guard, logger)
		if err != nil {
			return nil, nil, err
		}
		return queue, queue.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported mirror target %q", cfg.MirrorTarget)
	}
}

func openQueue(cfg config.Config, guard *resilience.Guard, logger *slog.Logger) (*nats.Queue, error) {
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Guard:  guard,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}

func breakerConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.Enabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.MinRequests = uint32(cfg.BreakerMinRequests)
	}
	out.FailureRatio = cfg.BreakerFailureRatio
	out.OpenTimeout = cfg.BreakerOpenTimeout
	return out
}

// seedCredential stores a configured key when none has been saved yet.
func seedCredential(ctx context.Context, credentials ports.CredentialStore, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	current, err := credentials.Credential(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if current != "" {
		return nil
	}
	if err := credentials.SetCredential(ctx, value); err != nil {
		return fmt.Errorf("seed credential: %w", err)
	}
	return nil
}
