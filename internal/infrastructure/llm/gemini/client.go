package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "models/gemini-3-flash-preview"
)

type Options struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Guard      *resilience.Guard
	Logger     *slog.Logger
}

// Client calls the Gemini generateContent endpoint. Every Extract is a single
// HTTP request made behind the guard's breaker.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	guard      *resilience.Guard
	logger     *slog.Logger
}

func New(options Options) *Client {
	baseURL := strings.TrimRight(options.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(options.Model)
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		guard:      options.Guard,
		logger:     logger,
	}
}

var dataURLPrefix = regexp.MustCompile(`^data:image/(png|jpeg|jpg|webp);base64,`)

// Extract sends the card image to the model and normalizes the JSON it returns.
func (c *Client) Extract(ctx context.Context, image domain.PreparedImage, credential string) (domain.ExtractedFields, error) {
	if strings.TrimSpace(credential) == "" {
		return domain.ExtractedFields{}, domain.WrapError(domain.ErrMissingCredential, "gemini extract", errors.New("credential is empty"))
	}
	if len(image.Data) == 0 {
		return domain.ExtractedFields{}, domain.WrapError(domain.ErrInvalidInput, "gemini extract", errors.New("image is empty"))
	}

	request := buildExtractionRequest(encodeImage(image.Data), mimeTypeOrDefault(image.MimeType))

	var response generateResponse
	call := func(ctx context.Context) error {
		response = generateResponse{}
		return c.postJSON(ctx, credential, request, &response, "generate")
	}

	var err error
	if c.guard != nil {
		err = c.guard.Do(ctx, "gemini.generate", call, classifyGeminiError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ExtractedFields{}, domain.WrapError(domain.ErrExtraction, "gemini extract", wrapTemporaryIfNeeded("gemini generate", err))
	}

	text, err := response.text()
	if err != nil {
		return domain.ExtractedFields{}, domain.WrapError(domain.ErrExtraction, "gemini extract", err)
	}
	fields, err := normalizeExtraction(text)
	if err != nil {
		return domain.ExtractedFields{}, domain.WrapError(domain.ErrExtraction, "gemini extract", err)
	}
	return fields, nil
}

// CheckCredential makes a minimal generateContent call with candidate and
// returns the failure, if any.
func (c *Client) CheckCredential(ctx context.Context, candidate string) error {
	if strings.TrimSpace(candidate) == "" {
		return domain.WrapError(domain.ErrMissingCredential, "gemini validate", errors.New("credential is empty"))
	}
	var response generateResponse
	if err := c.postJSON(ctx, candidate, buildCheckRequest(), &response, "validate"); err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusBadRequest ||
			statusErr.StatusCode == http.StatusUnauthorized ||
			statusErr.StatusCode == http.StatusForbidden) {
			return domain.WrapError(domain.ErrUnauthorized, "gemini validate", err)
		}
		return wrapTemporaryIfNeeded("gemini validate", err)
	}
	return nil
}

// ValidateCredential reports whether the service accepts candidate. The
// failure reason is logged and otherwise dropped.
func (c *Client) ValidateCredential(ctx context.Context, candidate string) bool {
	if err := c.CheckCredential(ctx, candidate); err != nil {
		c.logger.Warn("credential_validation_failed", "error", err)
		return false
	}
	return true
}

func encodeImage(data []byte) string {
	if loc := dataURLPrefix.FindIndex(data); loc != nil {
		return string(data[loc[1]:])
	}
	return base64.StdEncoding.EncodeToString(data)
}

func mimeTypeOrDefault(mimeType string) string {
	if mimeType == "" {
		return "image/jpeg"
	}
	return mimeType
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r generateResponse) text() (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 {
		return "", errors.New("no response from gemini")
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("no response from gemini")
	}
	return text, nil
}
