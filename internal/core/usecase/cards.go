package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
	"github.com/kirillkom/cardsnap/internal/core/view"
)

// CardQueryUseCase serves read-only views of the card collection.
type CardQueryUseCase struct {
	store     ports.CardStore
	projector *view.Projector
	storage   ports.ObjectStorage
}

func NewCardQueryUseCase(store ports.CardStore, projector *view.Projector) *CardQueryUseCase {
	if projector == nil {
		projector = view.NewProjector("en")
	}
	return &CardQueryUseCase{store: store, projector: projector}
}

func (uc *CardQueryUseCase) Get(ctx context.Context, id string) (domain.Card, error) {
	card, err := uc.store.Get(ctx, id)
	if err != nil {
		return domain.Card{}, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

func (uc *CardQueryUseCase) List(ctx context.Context) ([]domain.Card, error) {
	cards, err := uc.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	return cards, nil
}

// View returns the filtered, grouped projection of the current collection.
func (uc *CardQueryUseCase) View(ctx context.Context, query string) ([]domain.CardGroup, error) {
	cards, err := uc.List(ctx)
	if err != nil {
		return nil, err
	}
	return uc.projector.Project(cards, query), nil
}

// WithImages enables Image lookups against the blob storage holding captures.
func (uc *CardQueryUseCase) WithImages(storage ports.ObjectStorage) *CardQueryUseCase {
	uc.storage = storage
	return uc
}

// Image opens the captured image of a card and reports its MIME type. Legacy
// cards that embed the image as a data URL are decoded in place.
func (uc *CardQueryUseCase) Image(ctx context.Context, id string) (io.ReadCloser, string, error) {
	card, err := uc.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if strings.HasPrefix(card.ImageURI, "data:") {
		return decodeDataURI(card.ImageURI)
	}
	if uc.storage == nil {
		return nil, "", domain.WrapError(domain.ErrCardNotFound, "open image", errors.New("image storage is not configured"))
	}

	key := path.Base(card.ImageURI)
	if key == "." || key == "/" {
		return nil, "", domain.WrapError(domain.ErrCardNotFound, "open image", fmt.Errorf("card %s has no image", id))
	}
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	return rc, mimeTypeFor(key), nil
}

func decodeDataURI(uri string) (io.ReadCloser, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "decode image", errors.New("unsupported data url"))
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "decode image", err)
	}
	mimeType := strings.TrimSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return io.NopCloser(bytes.NewReader(raw)), mimeType, nil
}

func mimeTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
