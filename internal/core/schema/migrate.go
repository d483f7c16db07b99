// Package schema upgrades persisted card records from older layouts into the
// current domain.Card shape.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

// Tag values that older versions used to encode the lifecycle phase.
const (
	legacyPendingTag = "pending"
	legacyErrorTag   = "error"
)

// Migrate decodes one persisted record of any known layout. Fields with an
// unexpected type are treated as absent. Only a non-object value is an error.
func Migrate(raw json.RawMessage) (domain.Card, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Card{}, fmt.Errorf("decode card record: %w", err)
	}
	if fields == nil {
		return domain.Card{}, fmt.Errorf("decode card record: null record")
	}

	card := domain.Card{
		ID:           decodeID(fields["id"]),
		ImageURI:     decodeString(fields["imageUri"]),
		Name:         decodeOptional(fields["name"]),
		Company:      decodeOptional(fields["company"]),
		Phone:        DecodeList(fields["phone"]),
		Email:        DecodeList(fields["email"]),
		Website:      decodeOptional(fields["website"]),
		Description:  decodeOptional(fields["description"]),
		Nickname:     decodeOptional(fields["nickname"]),
		Tags:         DecodeList(fields["tags"]),
		Notes:        decodeString(fields["notes"]),
		Phase:        domain.Phase(decodeString(fields["phase"])),
		Revision:     decodeInt(fields["revision"]),
		CreatedAt:    decodeTime(fields["createdAt"]),
		ProcessedAt:  decodeOptionalTime(fields["processedAt"]),
		LastSyncedAt: decodeOptionalTime(fields["lastSyncedAt"]),
		IsSyncing:    decodeBool(fields["isSyncing"]),
	}
	return MigrateCard(card), nil
}

// MigrateAll decodes a persisted collection. Elements that are not objects
// are skipped and reported through the returned count.
func MigrateAll(blob []byte) ([]domain.Card, int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, 0, domain.WrapError(domain.ErrStorageCorruption, "decode card collection", err)
	}

	cards := make([]domain.Card, 0, len(items))
	skipped := 0
	for _, item := range items {
		card, err := Migrate(item)
		if err != nil {
			skipped++
			continue
		}
		cards = append(cards, card)
	}
	return cards, skipped, nil
}

// MigrateCard normalizes an already typed card to the current record shape.
// It is idempotent: a current card comes back unchanged.
func MigrateCard(card domain.Card) domain.Card {
	if card.Phone == nil {
		card.Phone = []string{}
	}
	if card.Email == nil {
		card.Email = []string{}
	}
	if card.Tags == nil {
		card.Tags = []string{}
	}
	if !card.Phase.Valid() {
		card.Phase, card.Tags = derivePhase(card)
	}
	return card
}

func derivePhase(card domain.Card) (domain.Phase, []string) {
	switch {
	case containsTag(card.Tags, legacyPendingTag):
		return domain.PhasePending, withoutTag(card.Tags, legacyPendingTag)
	case containsTag(card.Tags, legacyErrorTag):
		return domain.PhaseFailed, withoutTag(card.Tags, legacyErrorTag)
	default:
		return domain.PhaseProcessed, card.Tags
	}
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func withoutTag(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}

func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func decodeOptional(raw json.RawMessage) *string {
	var s *string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return s
}

func decodeID(raw json.RawMessage) string {
	if s := decodeString(raw); s != "" {
		return s
	}
	var n json.Number
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil {
		return ""
	}
	return n.String()
}

// DecodeList coerces a phone, email or tag value to a list. It accepts null,
// a scalar string or an array. Empty scalars and non-string array elements
// are dropped.
func DecodeList(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}

	var scalar string
	if err := json.Unmarshal(raw, &scalar); err == nil {
		if scalar != "" {
			out = append(out, scalar)
		}
		return out
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	return out
}

func decodeInt(raw json.RawMessage) int64 {
	var n json.Number
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil {
		return 0
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func decodeBool(raw json.RawMessage) bool {
	var b bool
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

func decodeTime(raw json.RawMessage) time.Time {
	if t := decodeOptionalTime(raw); t != nil {
		return *t
	}
	return time.Time{}
}

func decodeOptionalTime(raw json.RawMessage) *time.Time {
	var t *time.Time
	if len(raw) == 0 || json.Unmarshal(raw, &t) != nil {
		return nil
	}
	return t
}
