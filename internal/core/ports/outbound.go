package ports

import (
	"context"
	"io"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

// KeyValueStore persists opaque values by key. Get returns (nil, nil) for a
// missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CardStore is the durable card collection. Every mutation rewrites the whole
// collection and returns its new contents. Update only replaces a stored
// card; Remove also returns the card it dropped.
type CardStore interface {
	Load(ctx context.Context) ([]domain.Card, error)
	Get(ctx context.Context, id string) (domain.Card, error)
	Upsert(ctx context.Context, card domain.Card) ([]domain.Card, error)
	Update(ctx context.Context, card domain.Card) ([]domain.Card, error)
	Remove(ctx context.Context, id string) (domain.Card, []domain.Card, error)
}

// CredentialStore keeps the extraction-service secret. An unset secret reads
// as the empty string.
type CredentialStore interface {
	Credential(ctx context.Context) (string, error)
	SetCredential(ctx context.Context, value string) error
}

// ObjectStorage stores captured card images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URI(key string) string
}

// ImagePreparer turns raw capture bytes into an upload-ready image.
type ImagePreparer interface {
	Prepare(ctx context.Context, body io.Reader) (domain.PreparedImage, error)
}

// CardExtractor derives contact fields from a card image with one remote call.
type CardExtractor interface {
	Extract(ctx context.Context, image domain.PreparedImage, credential string) (domain.ExtractedFields, error)
}

// CredentialValidator confirms that a candidate credential is accepted.
type CredentialValidator interface {
	ValidateCredential(ctx context.Context, candidate string) bool
}

// Mirror propagates a card to a best-effort remote copy.
type Mirror interface {
	Mirror(ctx context.Context, card domain.Card) error
}

// Notifier delivers user-visible status notices. It must not block.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// Session reports whether a remote mirror session is signed in.
type Session interface {
	Active() bool
}

// LifecycleObserver receives lifecycle measurements.
type LifecycleObserver interface {
	StartExtraction()
	FinishExtraction(outcome string, seconds float64)
	ObserveMirror(err error)
	ObserveDelete()
	ObserveUndo(err error)
}
