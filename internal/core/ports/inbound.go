package ports

import (
	"context"
	"io"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

// CardLifecycle is the inbound contract for capture, edit and delete flows.
type CardLifecycle interface {
	Capture(ctx context.Context, image io.Reader) (domain.Card, error)
	Edit(ctx context.Context, card domain.Card) (domain.Card, error)
	QuickUpdate(ctx context.Context, card domain.Card) (domain.Card, error)
	Delete(ctx context.Context, id string) (string, error)
	Undo(ctx context.Context, token string) (domain.Card, error)
	ActivateCamera(ctx context.Context) error
}

// CardReader is the inbound read model for the card collection.
type CardReader interface {
	Get(ctx context.Context, id string) (domain.Card, error)
	View(ctx context.Context, query string) ([]domain.CardGroup, error)
}

// CredentialService manages the extraction-service credential.
type CredentialService interface {
	GetCredential(ctx context.Context) (string, bool, error)
	SetCredential(ctx context.Context, value string) error
	ValidateCredential(ctx context.Context, candidate string) bool
}
