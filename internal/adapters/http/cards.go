package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

func (rt *Router) captureCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "image is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'image' is required"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'image' is required"})
		return
	}
	defer file.Close()

	card, err := rt.lifecycle.Capture(r.Context(), file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, card)
}

func (rt *Router) listCards(w http.ResponseWriter, r *http.Request) {
	groups, err := rt.cards.View(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (rt *Router) getCard(w http.ResponseWriter, r *http.Request) {
	card, err := rt.cards.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (rt *Router) getCardImage(w http.ResponseWriter, r *http.Request) {
	body, mimeType, err := rt.cards.Image(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		rt.logger.Warn("image_stream_interrupted", "card_id", r.PathValue("id"), "error", err)
	}
}

func (rt *Router) shareCard(w http.ResponseWriter, r *http.Request) {
	card, err := rt.cards.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    card.ID,
		"title": "Contact: " + card.DisplayName(),
		"text":  domain.ShareText(card),
	})
}

func (rt *Router) editCard(w http.ResponseWriter, r *http.Request) {
	card, ok := rt.decodeCard(w, r)
	if !ok {
		return
	}
	saved, err := rt.lifecycle.Edit(r.Context(), card)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (rt *Router) quickUpdateCard(w http.ResponseWriter, r *http.Request) {
	card, ok := rt.decodeCard(w, r)
	if !ok {
		return
	}
	saved, err := rt.lifecycle.QuickUpdate(r.Context(), card)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// decodeCard reads a card body and binds it to the id in the path.
func (rt *Router) decodeCard(w http.ResponseWriter, r *http.Request) (domain.Card, bool) {
	var card domain.Card
	if err := decodeJSONBody(r, &card); err != nil {
		rt.writeError(w, r, err)
		return domain.Card{}, false
	}

	id := r.PathValue("id")
	if card.ID != "" && card.ID != id {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode card",
			fmt.Errorf("body id %q does not match path id %q", card.ID, id)))
		return domain.Card{}, false
	}
	card.ID = id
	return card, true
}

func (rt *Router) deleteCard(w http.ResponseWriter, r *http.Request) {
	token, err := rt.lifecycle.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"undo_token": token})
}

func (rt *Router) undoDelete(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PathValue("token"))
	card, err := rt.lifecycle.Undo(r.Context(), token)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}
