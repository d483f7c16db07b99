package domain

import (
	"strings"
	"time"
)

type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseProcessed Phase = "processed"
	PhaseFailed    Phase = "failed"
)

func (p Phase) Valid() bool {
	switch p {
	case PhasePending, PhaseProcessed, PhaseFailed:
		return true
	default:
		return false
	}
}

// Placeholder text written while a card waits for extraction or after it failed.
const (
	PendingName    = "Processing..."
	PendingCompany = "Analyzing card..."
	FailedName     = "Scan Failed"
	FailedCompany  = "Could not extract data"
)

// Card is one captured business card. Phone, Email and Tags are never nil
// once a card has passed through the schema migrator.
type Card struct {
	ID           string     `json:"id"`
	ImageURI     string     `json:"imageUri"`
	Name         *string    `json:"name,omitempty"`
	Company      *string    `json:"company,omitempty"`
	Phone        []string   `json:"phone"`
	Email        []string   `json:"email"`
	Website      *string    `json:"website,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Nickname     *string    `json:"nickname,omitempty"`
	Tags         []string   `json:"tags"`
	Notes        string     `json:"notes"`
	Phase        Phase      `json:"phase"`
	Revision     int64      `json:"revision"`
	CreatedAt    time.Time  `json:"createdAt"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	IsSyncing    bool       `json:"isSyncing"`
}

// ExtractedFields is the normalized output of the extraction gateway.
type ExtractedFields struct {
	Name        *string  `json:"name"`
	Company     *string  `json:"company"`
	Phone       []string `json:"phone"`
	Email       []string `json:"email"`
	Website     *string  `json:"website"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
}

// Text returns a pointer to s, for optional card fields.
func Text(s string) *string {
	return &s
}

// Deref returns the pointed-to value or "" for an absent field.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (c Card) DisplayName() string {
	return Deref(c.Name)
}

// Clone returns a deep copy so that captured values survive later mutation.
func (c Card) Clone() Card {
	out := c
	out.Name = cloneText(c.Name)
	out.Company = cloneText(c.Company)
	out.Website = cloneText(c.Website)
	out.Description = cloneText(c.Description)
	out.Nickname = cloneText(c.Nickname)
	out.Phone = cloneStrings(c.Phone)
	out.Email = cloneStrings(c.Email)
	out.Tags = cloneStrings(c.Tags)
	out.ProcessedAt = cloneTime(c.ProcessedAt)
	out.LastSyncedAt = cloneTime(c.LastSyncedAt)
	return out
}

// CompactEntries trims every entry and drops the blank ones.
func CompactEntries(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// NormalizeTags trims tags, drops blanks and suppresses duplicates, keeping
// first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func cloneText(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
