package schema

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

func currentCard() domain.Card {
	processed := time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC)
	return domain.Card{
		ID:          "card-1",
		ImageURI:    "file:///tmp/card-1.jpg",
		Name:        domain.Text("Jane Doe"),
		Company:     domain.Text("Acme"),
		Phone:       []string{"555-1234", "555-1234"},
		Email:       []string{"jane@acme.test"},
		Website:     domain.Text("https://acme.test"),
		Tags:        []string{"sales"},
		Notes:       "met at expo",
		Phase:       domain.PhaseProcessed,
		Revision:    3,
		CreatedAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		ProcessedAt: &processed,
	}
}

func TestMigrateIsIdempotentForCurrentRecords(t *testing.T) {
	card := currentCard()
	raw, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	once, err := Migrate(raw)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !reflect.DeepEqual(once, card) {
		t.Fatalf("migrate changed a current record:\n got %+v\nwant %+v", once, card)
	}

	twice := MigrateCard(once)
	if !reflect.DeepEqual(twice, once) {
		t.Fatalf("second migration changed the record: %+v", twice)
	}
}

func TestMigrateNormalizesScalarPhoneAndEmail(t *testing.T) {
	card, err := Migrate(json.RawMessage(`{"id":"a","phone":"555-1234","email":null,"tags":["x"]}`))
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !reflect.DeepEqual(card.Phone, []string{"555-1234"}) {
		t.Fatalf("expected scalar phone to become a list, got %#v", card.Phone)
	}
	if card.Email == nil || len(card.Email) != 0 {
		t.Fatalf("expected null email to become an empty list, got %#v", card.Email)
	}
}

func TestMigrateTreatsAbsentListsAsEmpty(t *testing.T) {
	card, err := Migrate(json.RawMessage(`{"id":"a","phone":""}`))
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if card.Phone == nil || len(card.Phone) != 0 {
		t.Fatalf("expected empty phone list, got %#v", card.Phone)
	}
	if card.Tags == nil || card.Email == nil {
		t.Fatalf("expected non-nil tag and email lists")
	}
	if card.Notes != "" {
		t.Fatalf("expected empty notes, got %q", card.Notes)
	}
}

func TestMigrateDerivesPhaseFromLegacyTags(t *testing.T) {
	cases := []struct {
		raw      string
		phase    domain.Phase
		wantTags []string
	}{
		{raw: `{"id":"p","tags":["pending"]}`, phase: domain.PhasePending, wantTags: []string{}},
		{raw: `{"id":"e","tags":["error"]}`, phase: domain.PhaseFailed, wantTags: []string{}},
		{raw: `{"id":"d","tags":["sales","tech"]}`, phase: domain.PhaseProcessed, wantTags: []string{"sales", "tech"}},
	}
	for _, tc := range cases {
		card, err := Migrate(json.RawMessage(tc.raw))
		if err != nil {
			t.Fatalf("Migrate(%s) error = %v", tc.raw, err)
		}
		if card.Phase != tc.phase {
			t.Fatalf("Migrate(%s) phase = %q, want %q", tc.raw, card.Phase, tc.phase)
		}
		if !reflect.DeepEqual(card.Tags, tc.wantTags) {
			t.Fatalf("Migrate(%s) tags = %#v, want %#v", tc.raw, card.Tags, tc.wantTags)
		}
	}
}

func TestMigrateKeepsTagsWhenPhaseIsExplicit(t *testing.T) {
	card, err := Migrate(json.RawMessage(`{"id":"x","phase":"processed","tags":["pending"]}`))
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !reflect.DeepEqual(card.Tags, []string{"pending"}) {
		t.Fatalf("expected user tag to survive, got %#v", card.Tags)
	}
}

func TestMigrateAcceptsLegacyTimestampsAndNumericIDs(t *testing.T) {
	card, err := Migrate(json.RawMessage(`{"id":1717171717,"createdAt":"2024-06-01T12:00:00.000Z","processedAt":null}`))
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if card.ID != "1717171717" {
		t.Fatalf("unexpected id %q", card.ID)
	}
	if !card.CreatedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt %v", card.CreatedAt)
	}
	if card.ProcessedAt != nil {
		t.Fatalf("expected nil processedAt")
	}
}

func TestMigrateAllSkipsNonObjectsAndFlagsCorruption(t *testing.T) {
	cards, skipped, err := MigrateAll([]byte(`[{"id":"a"}, 42, {"id":"b"}]`))
	if err != nil {
		t.Fatalf("MigrateAll() error = %v", err)
	}
	if len(cards) != 2 || skipped != 1 {
		t.Fatalf("expected 2 cards and 1 skipped, got %d/%d", len(cards), skipped)
	}

	_, _, err = MigrateAll([]byte(`{not json`))
	if !domain.IsKind(err, domain.ErrStorageCorruption) {
		t.Fatalf("expected ErrStorageCorruption, got %v", err)
	}
}
