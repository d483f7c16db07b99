package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
)

type CredentialUseCase struct {
	store     ports.CredentialStore
	validator ports.CredentialValidator
	notifier  ports.Notifier
}

func NewCredentialUseCase(store ports.CredentialStore, validator ports.CredentialValidator, notifier ports.Notifier) *CredentialUseCase {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	return &CredentialUseCase{store: store, validator: validator, notifier: notifier}
}

// GetCredential returns the stored secret and whether one is configured.
func (uc *CredentialUseCase) GetCredential(ctx context.Context) (string, bool, error) {
	value, err := uc.store.Credential(ctx)
	if err != nil {
		return "", false, fmt.Errorf("get credential: %w", err)
	}
	return value, strings.TrimSpace(value) != "", nil
}

func (uc *CredentialUseCase) SetCredential(ctx context.Context, value string) error {
	if err := uc.store.SetCredential(ctx, value); err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	uc.notifier.Notify(ctx, domain.Notice{
		Kind:    domain.NoticeCredentialSaved,
		Message: "API Key saved",
		At:      time.Now().UTC(),
	})
	return nil
}

// ValidateCredential reports whether the remote service accepts candidate.
// Any failure reads as false.
func (uc *CredentialUseCase) ValidateCredential(ctx context.Context, candidate string) bool {
	if strings.TrimSpace(candidate) == "" || uc.validator == nil {
		return false
	}
	return uc.validator.ValidateCredential(ctx, candidate)
}
