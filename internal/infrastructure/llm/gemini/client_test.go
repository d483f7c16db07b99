package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/infrastructure/resilience"
)

func modelReply(text string) string {
	payload, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(payload)
}

func TestExtractSendsImageAndNormalizesResponse(t *testing.T) {
	var captured map[string]any
	var apiKey, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(modelReply(`{"name":"Jane Doe","company":"","phone":"+1 555 0100","email":null,"website":"https://acme.test"}`)))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Model: "gemini-test"})
	fields, err := client.Extract(context.Background(), domain.PreparedImage{Data: []byte("raw-jpeg"), MimeType: "image/jpeg"}, "AIza-key")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if path != "/v1beta/models/gemini-test:generateContent" {
		t.Fatalf("unexpected path %q", path)
	}
	if apiKey != "AIza-key" {
		t.Fatalf("expected api key header, got %q", apiKey)
	}
	body, _ := json.Marshal(captured)
	if !strings.Contains(string(body), base64.StdEncoding.EncodeToString([]byte("raw-jpeg"))) {
		t.Fatalf("expected inline image data in request, got %s", body)
	}
	if !strings.Contains(string(body), "QR code") || !strings.Contains(string(body), `"responseMimeType":"application/json"`) {
		t.Fatalf("expected prompt and json response config, got %s", body)
	}

	if domain.Deref(fields.Name) != "Jane Doe" || fields.Company != nil {
		t.Fatalf("unexpected name/company %+v", fields)
	}
	if !reflect.DeepEqual(fields.Phone, []string{"+1 555 0100"}) || !reflect.DeepEqual(fields.Email, []string{}) {
		t.Fatalf("unexpected phone/email %#v %#v", fields.Phone, fields.Email)
	}
	if fields.Tags == nil || len(fields.Tags) != 0 {
		t.Fatalf("expected empty tags, got %#v", fields.Tags)
	}
	if fields.Description != nil {
		t.Fatalf("expected absent description")
	}
}

func TestExtractStripsDataURLPrefix(t *testing.T) {
	var captured string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Contents []struct {
				Parts []struct {
					InlineData *struct {
						Data string `json:"data"`
					} `json:"inline_data"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		captured = payload.Contents[0].Parts[1].InlineData.Data
		_, _ = w.Write([]byte(modelReply(`{"name":null,"company":null,"tags":["a"]}`)))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	_, err := client.Extract(context.Background(), domain.PreparedImage{Data: []byte("data:image/png;base64,QUJD"), MimeType: "image/png"}, "k")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if captured != "QUJD" {
		t.Fatalf("expected prefix to be stripped, got %q", captured)
	}
}

func TestExtractRejectsEmptyCredentialWithoutCalling(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL}).Extract(context.Background(), domain.PreparedImage{Data: []byte("x")}, " ")
	if !domain.IsKind(err, domain.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no remote call")
	}
}

func TestExtractEmptyResponseIsExtractionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL}).Extract(context.Background(), domain.PreparedImage{Data: []byte("x")}, "k")
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractMalformedJSONIsExtractionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(modelReply("not json at all")))
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL}).Extract(context.Background(), domain.PreparedImage{Data: []byte("x")}, "k")
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractRateLimitIsSingleTemporaryFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	guard := resilience.NewGuard(resilience.DefaultConfig())
	client := New(Options{BaseURL: server.URL, Guard: guard, Timeout: time.Second})
	_, err := client.Extract(context.Background(), domain.PreparedImage{Data: []byte("x")}, "k")
	if !domain.IsKind(err, domain.ErrExtraction) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary extraction error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Resource has been exhausted") {
		t.Fatalf("expected API message in error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one remote call, got %d", got)
	}
}

func TestValidateCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid."}}`))
			return
		}
		_, _ = w.Write([]byte(modelReply("Hi there")))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	if !client.ValidateCredential(context.Background(), "good") {
		t.Fatalf("expected good key to validate")
	}
	if client.ValidateCredential(context.Background(), "bad") {
		t.Fatalf("expected bad key to fail validation")
	}
	if err := client.CheckCredential(context.Background(), "bad"); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
