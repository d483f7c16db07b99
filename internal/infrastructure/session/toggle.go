// Package session tracks whether a remote mirror session is signed in.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
)

// Toggle is the process-wide session flag handed to the lifecycle controller.
type Toggle struct {
	active   atomic.Bool
	notifier ports.Notifier
}

func NewToggle(active bool, notifier ports.Notifier) *Toggle {
	t := &Toggle{notifier: notifier}
	t.active.Store(active)
	return t
}

func (t *Toggle) Active() bool {
	return t.active.Load()
}

func (t *Toggle) Login(ctx context.Context) {
	if t.active.Swap(true) {
		return
	}
	t.notify(ctx, domain.NoticeSignedIn, "Signed in successfully")
}

func (t *Toggle) Logout(ctx context.Context) {
	if !t.active.Swap(false) {
		return
	}
	t.notify(ctx, domain.NoticeSignedOut, "Signed out")
}

func (t *Toggle) notify(ctx context.Context, kind domain.NoticeKind, message string) {
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(ctx, domain.Notice{Kind: kind, Message: message, At: time.Now().UTC()})
}
