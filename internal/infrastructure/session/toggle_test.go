package session

import (
	"context"
	"testing"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

type notifierFake struct {
	kinds []domain.NoticeKind
}

func (f *notifierFake) Notify(_ context.Context, n domain.Notice) {
	f.kinds = append(f.kinds, n.Kind)
}

func TestToggleNotifiesOnlyOnTransitions(t *testing.T) {
	notifier := &notifierFake{}
	toggle := NewToggle(false, notifier)

	toggle.Login(context.Background())
	toggle.Login(context.Background())
	if !toggle.Active() {
		t.Fatalf("expected active session")
	}
	toggle.Logout(context.Background())
	toggle.Logout(context.Background())
	if toggle.Active() {
		t.Fatalf("expected inactive session")
	}

	want := []domain.NoticeKind{domain.NoticeSignedIn, domain.NoticeSignedOut}
	if len(notifier.kinds) != len(want) || notifier.kinds[0] != want[0] || notifier.kinds[1] != want[1] {
		t.Fatalf("unexpected notices %v", notifier.kinds)
	}
}
