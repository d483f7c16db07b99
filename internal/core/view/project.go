// Package view derives the searchable, alphabetically grouped presentation of
// the card collection.
package view

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

type Projector struct {
	tag language.Tag
}

// NewProjector builds a projector that orders names with the collation rules
// of lang. An unparsable tag falls back to English.
func NewProjector(lang string) *Projector {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		tag = language.English
	}
	return &Projector{tag: tag}
}

// Project filters cards by a case-insensitive query over name, company and
// tags, then groups them by the first letter of the name. It holds no state.
func (p *Projector) Project(cards []domain.Card, query string) []domain.CardGroup {
	needle := strings.ToLower(strings.TrimSpace(query))

	buckets := make(map[string][]domain.Card)
	for _, card := range cards {
		if !Matches(card, needle) {
			continue
		}
		key := GroupKey(card)
		buckets[key] = append(buckets[key], card)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// Collators keep internal buffers, so each call gets its own.
	collator := collate.New(p.tag, collate.IgnoreCase)

	groups := make([]domain.CardGroup, 0, len(keys))
	for _, key := range keys {
		members := buckets[key]
		sort.SliceStable(members, func(i, j int) bool {
			return collator.CompareString(members[i].DisplayName(), members[j].DisplayName()) < 0
		})
		groups = append(groups, domain.CardGroup{Key: key, Cards: members})
	}
	return groups
}

// Matches reports whether a card matches an already lower-cased query.
func Matches(card domain.Card, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(card.DisplayName()), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(domain.Deref(card.Company)), needle) {
		return true
	}
	for _, tag := range card.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// GroupKey returns the upper-cased first ASCII letter of the name, or the
// overflow key.
func GroupKey(card domain.Card) string {
	name := card.DisplayName()
	if name == "" {
		return domain.OverflowGroupKey
	}
	first := name[0]
	switch {
	case first >= 'a' && first <= 'z':
		return string(first - 'a' + 'A')
	case first >= 'A' && first <= 'Z':
		return string(first)
	default:
		return domain.OverflowGroupKey
	}
}
