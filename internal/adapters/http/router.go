package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/cardsnap/internal/config"
	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
	"github.com/kirillkom/cardsnap/internal/observability/metrics"
)

const (
	eventsPath      = "/v1/events"
	multipartMemory = 8 << 20
)

// CardReader is the read side the router serves cards and images from.
type CardReader interface {
	ports.CardReader
	Image(ctx context.Context, id string) (io.ReadCloser, string, error)
}

// SessionControl signs the mirror session in and out.
type SessionControl interface {
	Active() bool
	Login(ctx context.Context)
	Logout(ctx context.Context)
}

// NoticeSource hands out live notice subscriptions for the event stream.
type NoticeSource interface {
	Subscribe() (<-chan domain.Notice, func())
}

type Dependencies struct {
	Lifecycle  ports.CardLifecycle
	Cards      CardReader
	Credential ports.CredentialService
	Session    SessionControl
	Notices    NoticeSource
	Metrics    *metrics.HTTPServerMetrics
	Logger     *slog.Logger
}

type Router struct {
	lifecycle  ports.CardLifecycle
	cards      CardReader
	credential ports.CredentialService
	session    SessionControl
	notices    NoticeSource
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger

	maxUploadBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	queueWait      time.Duration
	keepAlive      time.Duration
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keepAlive := cfg.SSEKeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	maxUpload := int64(cfg.ImageMaxBytes)
	if maxUpload <= 0 {
		maxUpload = 15 << 20
	}
	return &Router{
		lifecycle:      deps.Lifecycle,
		cards:          deps.Cards,
		credential:     deps.Credential,
		session:        deps.Session,
		notices:        deps.Notices,
		metrics:        deps.Metrics,
		logger:         logger,
		maxUploadBytes: maxUpload + multipartMemory,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		queueWait:      cfg.APIQueueWait,
		keepAlive:      keepAlive,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/cards", rt.captureCard)
	mux.HandleFunc("GET /v1/cards", rt.listCards)
	mux.HandleFunc("GET /v1/cards/{id}", rt.getCard)
	mux.HandleFunc("GET /v1/cards/{id}/image", rt.getCardImage)
	mux.HandleFunc("GET /v1/cards/{id}/share", rt.shareCard)
	mux.HandleFunc("PUT /v1/cards/{id}", rt.editCard)
	mux.HandleFunc("PATCH /v1/cards/{id}", rt.quickUpdateCard)
	mux.HandleFunc("DELETE /v1/cards/{id}", rt.deleteCard)
	mux.HandleFunc("POST /v1/undo/{token}", rt.undoDelete)

	mux.HandleFunc("GET /v1/credential", rt.getCredential)
	mux.HandleFunc("PUT /v1/credential", rt.setCredential)
	mux.HandleFunc("POST /v1/credential/validate", rt.validateCredential)
	mux.HandleFunc("POST /v1/camera", rt.activateCamera)

	mux.HandleFunc("GET /v1/session", rt.getSession)
	mux.HandleFunc("POST /v1/session", rt.login)
	mux.HandleFunc("DELETE /v1/session", rt.logout)

	mux.HandleFunc("GET "+eventsPath, rt.streamEvents)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.queueWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("cardsnap-api", handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.WrapError(domain.ErrInvalidInput, "decode body", errors.New("request body is empty"))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode body", err)
	}
	return nil
}
