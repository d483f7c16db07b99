package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/cardsnap/internal/config"
	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/infrastructure/mirror/sheet"
	"github.com/kirillkom/cardsnap/internal/infrastructure/queue/nats"
	"github.com/kirillkom/cardsnap/internal/observability/metrics"
)

// Worker consumes cards published on the mirror subject and writes them into
// the workbook.
type Worker struct {
	Config  config.Config
	Logger  *slog.Logger
	Queue   *nats.Queue
	Sheet   *sheet.Mirror
	Metrics *metrics.HTTPServerMetrics

	mirrorMetrics *metrics.LifecycleMetrics
	closeFn       func()
}

func NewWorker(cfg config.Config, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	workbook, err := sheet.New(cfg.SheetPath)
	if err != nil {
		return nil, fmt.Errorf("init sheet mirror: %w", err)
	}
	queue, err := openQueue(cfg, nil, logger)
	if err != nil {
		return nil, err
	}

	serverMetrics := metrics.NewHTTPServerMetrics("cardsnap-worker")
	return &Worker{
		Config:        cfg,
		Logger:        logger,
		Queue:         queue,
		Sheet:         workbook,
		Metrics:       serverMetrics,
		mirrorMetrics: metrics.NewLifecycleMetrics("cardsnap-worker", serverMetrics.Registry()),
		closeFn:       queue.Close,
	}, nil
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("worker_subscribed", "subject", w.Config.NATSSubject, "workbook", w.Config.SheetPath)
	return w.Queue.SubscribeCardMirrored(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, card domain.Card) error {
	err := w.Sheet.Mirror(ctx, card)
	w.mirrorMetrics.ObserveMirror(err)
	if err != nil {
		return fmt.Errorf("write card %s to workbook: %w", card.ID, err)
	}
	w.Logger.Info("card_mirrored", "card_id", card.ID)
	return nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
