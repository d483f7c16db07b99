package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

const DefaultUndoWindow = 4 * time.Second

// UndoTracker holds at most one undoable deletion. Each deletion gets an id and
// a timer. Tracking a new deletion cancels the previous one.
//
// The callbacks passed to TrackRemoval and Restore run under the tracker lock,
// so a background result settling through Amend sees either the tracked
// snapshot or the restored card, never a gap between the two.
type UndoTracker struct {
	window time.Duration

	mu      sync.Mutex
	pending *pendingDeletion
}

type pendingDeletion struct {
	id    string
	card  domain.Card
	timer *time.Timer
}

func NewUndoTracker(window time.Duration) *UndoTracker {
	if window <= 0 {
		window = DefaultUndoWindow
	}
	return &UndoTracker{window: window}
}

// Track records a deleted card and returns its deletion id.
func (t *UndoTracker) Track(card domain.Card) string {
	id, _, _ := t.TrackRemoval(func() (domain.Card, error) { return card, nil })
	return id
}

// TrackRemoval runs remove and tracks the card it returns. When remove fails
// the previous deletion stays undoable.
func (t *UndoTracker) TrackRemoval(remove func() (domain.Card, error)) (string, domain.Card, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	card, err := remove()
	if err != nil {
		return "", domain.Card{}, err
	}

	if t.pending != nil {
		t.pending.timer.Stop()
	}
	id := uuid.NewString()
	entry := &pendingDeletion{id: id, card: card.Clone()}
	entry.timer = time.AfterFunc(t.window, func() { t.expire(id) })
	t.pending = entry
	return id, card, nil
}

// Take claims the card for deletion id. It fails once the window has passed or
// a later deletion superseded it.
func (t *UndoTracker) Take(id string) (domain.Card, bool) {
	card, ok, _ := t.Restore(id, nil)
	return card, ok
}

// Restore claims the card for deletion id and hands it to restore. The
// deletion stays undoable when restore fails.
func (t *UndoTracker) Restore(id string, restore func(domain.Card) error) (domain.Card, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil || t.pending.id != id {
		return domain.Card{}, false, nil
	}
	card := t.pending.card
	if restore != nil {
		if err := restore(card.Clone()); err != nil {
			return domain.Card{}, true, err
		}
	}
	t.pending.timer.Stop()
	t.pending = nil
	return card, true, nil
}

// Amend applies mutate to the tracked snapshot of cardID. It reports false
// when no undoable deletion holds that card.
func (t *UndoTracker) Amend(cardID string, mutate func(domain.Card) domain.Card) (domain.Card, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil || t.pending.card.ID != cardID {
		return domain.Card{}, false
	}
	next := mutate(t.pending.card.Clone())
	t.pending.card = next.Clone()
	return next, true
}

// Pending returns the id of the deletion that can still be undone.
func (t *UndoTracker) Pending() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return "", false
	}
	return t.pending.id, true
}

func (t *UndoTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.timer.Stop()
		t.pending = nil
	}
}

func (t *UndoTracker) expire(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil && t.pending.id == id {
		t.pending = nil
	}
}
