// Package store keeps the card collection and the extraction credential in a
// key-value backend. The collection is persisted as one JSON array that is
// rewritten on every mutation.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
	"github.com/kirillkom/cardsnap/internal/core/schema"
)

const (
	CollectionKey       = "cardsnap_data_v2"
	LegacyCollectionKey = "cardsnap_data_v1"
	CredentialKey       = "cardsnap_gemini_api_key"

	corruptSuffix = ".corrupt"
)

type Keys struct {
	Collection string
	Legacy     string
	Credential string
}

func DefaultKeys() Keys {
	return Keys{
		Collection: CollectionKey,
		Legacy:     LegacyCollectionKey,
		Credential: CredentialKey,
	}
}

type Store struct {
	kv     ports.KeyValueStore
	keys   Keys
	logger *slog.Logger

	mu        sync.Mutex
	recovered bool
}

func New(kv ports.KeyValueStore, keys Keys, logger *slog.Logger) *Store {
	if keys.Collection == "" {
		keys = DefaultKeys()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, keys: keys, logger: logger}
}

// Load returns the migrated collection. A corrupt blob loads as empty.
func (s *Store) Load(ctx context.Context) ([]domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) Get(ctx context.Context, id string) (domain.Card, error) {
	cards, err := s.Load(ctx)
	if err != nil {
		return domain.Card{}, err
	}
	if idx := indexOf(cards, id); idx >= 0 {
		return cards[idx], nil
	}
	return domain.Card{}, domain.WrapError(domain.ErrCardNotFound, "get card", fmt.Errorf("id=%s", id))
}

// Upsert replaces the card with the same id in place, or inserts it at the
// front. A replacement must carry a revision above the stored one.
func (s *Store) Upsert(ctx context.Context, card domain.Card) ([]domain.Card, error) {
	return s.put(ctx, card, true)
}

// Update is Upsert for a card that must already be stored. A missing id fails
// with ErrCardNotFound and nothing is written.
func (s *Store) Update(ctx context.Context, card domain.Card) ([]domain.Card, error) {
	return s.put(ctx, card, false)
}

// Remove drops the card and returns it together with the remaining
// collection. Read and write happen under one lock.
func (s *Store) Remove(ctx context.Context, id string) (domain.Card, []domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.loadLocked(ctx)
	if err != nil {
		return domain.Card{}, nil, err
	}

	idx := indexOf(cards, id)
	if idx < 0 {
		return domain.Card{}, nil, domain.WrapError(domain.ErrCardNotFound, "remove card", fmt.Errorf("id=%s", id))
	}
	removed := cards[idx]
	kept := append(cards[:idx:idx], cards[idx+1:]...)

	if err := s.writeLocked(ctx, kept); err != nil {
		return domain.Card{}, nil, err
	}
	return removed, kept, nil
}

func (s *Store) put(ctx context.Context, card domain.Card, insert bool) ([]domain.Card, error) {
	if card.ID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upsert card", fmt.Errorf("empty card id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cards, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}

	if idx := indexOf(cards, card.ID); idx >= 0 {
		if card.Revision <= cards[idx].Revision {
			return nil, domain.WrapError(
				domain.ErrStaleRevision,
				"upsert card",
				fmt.Errorf("id=%s revision %d not above stored %d", card.ID, card.Revision, cards[idx].Revision),
			)
		}
		cards[idx] = card
	} else if insert {
		cards = append([]domain.Card{card}, cards...)
	} else {
		return nil, domain.WrapError(domain.ErrCardNotFound, "update card", fmt.Errorf("id=%s", card.ID))
	}

	if err := s.writeLocked(ctx, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (s *Store) Credential(ctx context.Context) (string, error) {
	value, err := s.kv.Get(ctx, s.keys.Credential)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return string(value), nil
}

// SetCredential stores the secret as given. No validation happens here.
func (s *Store) SetCredential(ctx context.Context, value string) error {
	if err := s.kv.Set(ctx, s.keys.Credential, []byte(value)); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

func (s *Store) loadLocked(ctx context.Context) ([]domain.Card, error) {
	blob, err := s.kv.Get(ctx, s.keys.Collection)
	if err != nil {
		return nil, fmt.Errorf("read card collection: %w", err)
	}

	if len(blob) == 0 {
		return s.upgradeLegacyLocked(ctx)
	}

	cards := s.decode(ctx, s.keys.Collection, blob)
	if !s.recovered {
		s.recovered = true
		if clearStaleSyncing(cards) {
			if err := s.writeLocked(ctx, cards); err != nil {
				return nil, err
			}
		}
	}
	return cards, nil
}

// upgradeLegacyLocked moves a legacy collection under the current key. The
// legacy value is left in place.
func (s *Store) upgradeLegacyLocked(ctx context.Context) ([]domain.Card, error) {
	s.recovered = true

	legacy, err := s.kv.Get(ctx, s.keys.Legacy)
	if err != nil {
		return nil, fmt.Errorf("read legacy card collection: %w", err)
	}
	if len(legacy) == 0 {
		return []domain.Card{}, nil
	}

	cards := s.decode(ctx, s.keys.Legacy, legacy)
	if len(cards) == 0 {
		return cards, nil
	}
	clearStaleSyncing(cards)
	if err := s.writeLocked(ctx, cards); err != nil {
		return nil, err
	}
	s.logger.Info("legacy_collection_migrated", "from", s.keys.Legacy, "to", s.keys.Collection, "cards", len(cards))
	return cards, nil
}

func (s *Store) decode(ctx context.Context, key string, blob []byte) []domain.Card {
	cards, skipped, err := schema.MigrateAll(blob)
	if err != nil {
		s.logger.Warn("store_blob_corrupt", "key", key, "bytes", len(blob), "error", err)
		if backupErr := s.kv.Set(ctx, key+corruptSuffix, blob); backupErr != nil {
			s.logger.Error("store_blob_backup_failed", "key", key, "error", backupErr)
		}
		return []domain.Card{}
	}
	if skipped > 0 {
		s.logger.Warn("store_records_skipped", "key", key, "skipped", skipped)
	}
	return cards
}

func (s *Store) writeLocked(ctx context.Context, cards []domain.Card) error {
	blob, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("encode card collection: %w", err)
	}
	if err := s.kv.Set(ctx, s.keys.Collection, blob); err != nil {
		return fmt.Errorf("write card collection: %w", err)
	}
	return nil
}

// clearStaleSyncing resets in-flight flags left behind by a previous process.
func clearStaleSyncing(cards []domain.Card) bool {
	changed := false
	for i := range cards {
		if cards[i].IsSyncing {
			cards[i].IsSyncing = false
			changed = true
		}
	}
	return changed
}

func indexOf(cards []domain.Card, id string) int {
	for i := range cards {
		if cards[i].ID == id {
			return i
		}
	}
	return -1
}
