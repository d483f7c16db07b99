package usecase

import (
	"slices"
	"time"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

// reconcile merges extraction output into the current card. Fields the user
// changed after the pending snapshot keep their edited values.
func reconcile(base, current domain.Card, fields domain.ExtractedFields, processedAt time.Time) domain.Card {
	out := current
	out.Name = mergeText(base.Name, current.Name, fields.Name)
	out.Company = mergeText(base.Company, current.Company, fields.Company)
	out.Website = mergeText(base.Website, current.Website, fields.Website)
	out.Description = mergeText(base.Description, current.Description, fields.Description)
	out.Phone = mergeList(base.Phone, current.Phone, orEmpty(fields.Phone))
	out.Email = mergeList(base.Email, current.Email, orEmpty(fields.Email))
	out.Tags = mergeList(base.Tags, current.Tags, domain.NormalizeTags(fields.Tags))
	out.Phase = domain.PhaseProcessed
	out.ProcessedAt = &processedAt
	out.IsSyncing = false
	return out
}

// failCard moves the card to the failed phase. Placeholder text only replaces
// name and company the user has not touched.
func failCard(base, current domain.Card, processedAt time.Time) domain.Card {
	out := current
	out.Name = mergeText(base.Name, current.Name, domain.Text(domain.FailedName))
	out.Company = mergeText(base.Company, current.Company, domain.Text(domain.FailedCompany))
	out.Phase = domain.PhaseFailed
	out.ProcessedAt = &processedAt
	out.IsSyncing = false
	return out
}

// overlayUserFields copies the user-editable fields of edited onto current.
// Identity, phase, timestamps and sync state stay with the stored record.
func overlayUserFields(current, edited domain.Card) domain.Card {
	out := current
	out.Name = edited.Name
	out.Company = edited.Company
	out.Phone = orEmpty(edited.Phone)
	out.Email = orEmpty(edited.Email)
	out.Website = edited.Website
	out.Description = edited.Description
	out.Nickname = edited.Nickname
	out.Tags = orEmpty(edited.Tags)
	out.Notes = edited.Notes
	return out
}

func mergeText(base, ours, theirs *string) *string {
	if !sameText(base, ours) {
		return ours
	}
	return theirs
}

func mergeList(base, ours, theirs []string) []string {
	if !slices.Equal(base, ours) {
		return ours
	}
	return theirs
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
