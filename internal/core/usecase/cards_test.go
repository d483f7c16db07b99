package usecase

import (
	"context"
	"io"
	"testing"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/store"
	"github.com/kirillkom/cardsnap/internal/core/view"
)

func seededQuery(t *testing.T, cards ...domain.Card) (*CardQueryUseCase, *storageFake) {
	t.Helper()
	s := store.New(&kvFake{values: map[string][]byte{}}, store.DefaultKeys(), nil)
	for _, card := range cards {
		if _, err := s.Upsert(context.Background(), card); err != nil {
			t.Fatalf("seed %s: %v", card.ID, err)
		}
	}
	images := &storageFake{}
	return NewCardQueryUseCase(s, view.NewProjector("en")).WithImages(images), images
}

func queryCard(id, name, imageURI string) domain.Card {
	return domain.Card{
		ID:       id,
		ImageURI: imageURI,
		Name:     domain.Text(name),
		Phone:    []string{},
		Email:    []string{},
		Tags:     []string{},
		Phase:    domain.PhaseProcessed,
		Revision: 1,
	}
}

func TestCardQueryViewGroupsAndFilters(t *testing.T) {
	uc, _ := seededQuery(t,
		queryCard("1", "bob", "mem://1.jpg"),
		queryCard("2", "Alice", "mem://2.jpg"),
		queryCard("3", "Ben", "mem://3.jpg"),
	)

	groups, err := uc.View(context.Background(), "")
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(groups) != 2 || groups[0].Key != "A" || groups[1].Key != "B" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if len(groups[1].Cards) != 2 || groups[1].Cards[0].ID != "3" {
		t.Fatalf("expected Ben before bob, got %+v", groups[1].Cards)
	}

	filtered, err := uc.View(context.Background(), "ali")
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].Cards[0].ID != "2" {
		t.Fatalf("expected only Alice, got %+v", filtered)
	}
}

func TestCardQueryGetMissingIsNotFound(t *testing.T) {
	uc, _ := seededQuery(t)
	_, err := uc.Get(context.Background(), "nope")
	if !domain.IsKind(err, domain.ErrCardNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCardQueryImageOpensStoredBlob(t *testing.T) {
	uc, images := seededQuery(t, queryCard("1", "Ann", "mem://1.png"))
	images.saved = map[string][]byte{"1.png": []byte("png-bytes")}

	rc, mimeType, err := uc.Image(context.Background(), "1")
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "png-bytes" || mimeType != "image/png" {
		t.Fatalf("unexpected image %q (%s)", body, mimeType)
	}
}

func TestCardQueryImageDecodesLegacyDataURL(t *testing.T) {
	uc, _ := seededQuery(t, queryCard("1", "Ann", "data:image/jpeg;base64,aGVsbG8="))

	rc, mimeType, err := uc.Image(context.Background(), "1")
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "hello" || mimeType != "image/jpeg" {
		t.Fatalf("unexpected image %q (%s)", body, mimeType)
	}
}

func TestCardQueryImageRejectsMalformedDataURL(t *testing.T) {
	uc, _ := seededQuery(t, queryCard("1", "Ann", "data:image/jpeg,raw"))
	if _, _, err := uc.Image(context.Background(), "1"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
