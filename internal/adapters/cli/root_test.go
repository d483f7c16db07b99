package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/cardsnap/internal/config"
	"github.com/kirillkom/cardsnap/internal/core/domain"
)

type lifecycleFake struct {
	mu       sync.Mutex
	notices  chan domain.Notice
	captured string
	deleted  []string
	waited   bool
}

func (f *lifecycleFake) Capture(_ context.Context, image io.Reader) (domain.Card, error) {
	raw, err := io.ReadAll(image)
	if err != nil {
		return domain.Card{}, err
	}
	f.mu.Lock()
	f.captured = string(raw)
	f.mu.Unlock()
	f.notices <- domain.Notice{Kind: domain.NoticeProcessingStarted, Message: "Processing card..."}
	return domain.Card{ID: "c1", Phase: domain.PhasePending}, nil
}

func (f *lifecycleFake) Edit(_ context.Context, card domain.Card) (domain.Card, error) {
	return card, nil
}

func (f *lifecycleFake) QuickUpdate(_ context.Context, card domain.Card) (domain.Card, error) {
	return card, nil
}

func (f *lifecycleFake) Delete(_ context.Context, id string) (string, error) {
	if id == "missing" {
		return "", domain.WrapError(domain.ErrCardNotFound, "delete", errors.New("id=missing"))
	}
	f.deleted = append(f.deleted, id)
	return "token", nil
}

func (f *lifecycleFake) Undo(context.Context, string) (domain.Card, error) {
	return domain.Card{}, domain.ErrUndoExpired
}

func (f *lifecycleFake) ActivateCamera(context.Context) error { return nil }

func (f *lifecycleFake) Wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = true
}

type cardsFake struct {
	cards []domain.Card
}

func (f *cardsFake) Get(_ context.Context, id string) (domain.Card, error) {
	for _, card := range f.cards {
		if card.ID == id {
			return card, nil
		}
	}
	return domain.Card{}, domain.WrapError(domain.ErrCardNotFound, "get card", errors.New("id="+id))
}

func (f *cardsFake) View(_ context.Context, query string) ([]domain.CardGroup, error) {
	var out []domain.Card
	for _, card := range f.cards {
		if query == "" || strings.Contains(strings.ToLower(card.DisplayName()), strings.ToLower(query)) {
			out = append(out, card)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return []domain.CardGroup{{Key: "J", Cards: out}}, nil
}

func (f *cardsFake) List(context.Context) ([]domain.Card, error) {
	return f.cards, nil
}

type credentialFake struct {
	value string
	valid bool
}

func (f *credentialFake) GetCredential(context.Context) (string, bool, error) {
	return f.value, f.value != "", nil
}

func (f *credentialFake) SetCredential(_ context.Context, value string) error {
	f.value = value
	return nil
}

func (f *credentialFake) ValidateCredential(_ context.Context, candidate string) bool {
	return f.valid && candidate != ""
}

type noticesFake struct {
	ch chan domain.Notice
}

func (f *noticesFake) Subscribe() (<-chan domain.Notice, func()) {
	var once sync.Once
	return f.ch, func() { once.Do(func() { close(f.ch) }) }
}

type cliHarness struct {
	lifecycle  *lifecycleFake
	cards      *cardsFake
	credential *credentialFake
	closed     int
}

func newCLIHarness() *cliHarness {
	notices := make(chan domain.Notice, 4)
	return &cliHarness{
		lifecycle: &lifecycleFake{notices: notices},
		cards: &cardsFake{cards: []domain.Card{{
			ID:      "c1",
			Name:    domain.Text("Jane Doe"),
			Company: domain.Text("Acme"),
			Phone:   []string{"555-0100"},
			Email:   []string{},
			Tags:    []string{"sales"},
			Phase:   domain.PhaseProcessed,
		}}},
		credential: &credentialFake{},
	}
}

func (h *cliHarness) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv(config.ConfigFileEnv, "")

	open := func(context.Context, config.Config, string) (*Runtime, error) {
		return &Runtime{
			Lifecycle:  h.lifecycle,
			Cards:      h.cards,
			Credential: h.credential,
			Notices:    &noticesFake{ch: h.lifecycle.notices},
			Close:      func() { h.closed++ },
		}, nil
	}

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), open, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCaptureWaitsAndPrintsFinalCard(t *testing.T) {
	h := newCLIHarness()
	path := filepath.Join(t.TempDir(), "card.jpg")
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o600))

	code, stdout, stderr := h.run(t, "capture", path)

	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "image-bytes", h.lifecycle.captured)
	assert.True(t, h.lifecycle.waited)
	assert.Contains(t, stdout, `"name": "Jane Doe"`)
	assert.Contains(t, stderr, "- Processing card...")
	assert.Equal(t, 1, h.closed)
}

func TestCaptureFailsForMissingFile(t *testing.T) {
	h := newCLIHarness()
	code, _, stderr := h.run(t, "capture", filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "open image")
	assert.Equal(t, 1, h.closed)
}

func TestListPrintsGroups(t *testing.T) {
	h := newCLIHarness()
	code, stdout, _ := h.run(t, "list")
	require.Equal(t, 0, code)
	assert.Equal(t, "J\n  c1  Jane Doe (Acme)\n", stdout)
}

func TestListReportsNoMatches(t *testing.T) {
	h := newCLIHarness()
	code, stdout, _ := h.run(t, "list", "zzz")
	require.Equal(t, 0, code)
	assert.Equal(t, "No cards found.\n", stdout)
}

func TestShowShareText(t *testing.T) {
	h := newCLIHarness()
	code, stdout, _ := h.run(t, "show", "c1", "--share")
	require.Equal(t, 0, code)
	assert.Equal(t, "Jane Doe\nAcme\nTel: 555-0100\n", stdout)
}

func TestDeleteReportsNotFound(t *testing.T) {
	h := newCLIHarness()
	code, _, stderr := h.run(t, "delete", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "card not found")

	code, stdout, _ := h.run(t, "delete", "c1")
	require.Equal(t, 0, code)
	assert.Equal(t, "Deleted c1\n", stdout)
	assert.Equal(t, []string{"c1"}, h.lifecycle.deleted)
}

func TestKeyCommands(t *testing.T) {
	h := newCLIHarness()

	code, stdout, _ := h.run(t, "key", "show")
	require.Equal(t, 0, code)
	assert.Equal(t, "No API key configured.\n", stdout)

	code, _, _ = h.run(t, "key", "set", "AIzaSecret1234")
	require.Equal(t, 0, code)

	code, stdout, _ = h.run(t, "key", "show")
	require.Equal(t, 0, code)
	assert.Equal(t, "**********1234\n", stdout)

	code, _, stderr := h.run(t, "key", "validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not valid")

	h.credential.valid = true
	code, stdout, _ = h.run(t, "key", "validate")
	require.Equal(t, 0, code)
	assert.Equal(t, "API key is valid\n", stdout)
}

func TestExportWritesWorkbook(t *testing.T) {
	h := newCLIHarness()
	path := filepath.Join(t.TempDir(), "cards.xlsx")

	code, stdout, stderr := h.run(t, "export", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Exported 1 cards")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Cards")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c1", rows[1][0])
}
