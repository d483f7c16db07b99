package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/cardsnap/internal/core/domain"
	"github.com/kirillkom/cardsnap/internal/core/ports"
)

const maxCommitAttempts = 5

const missingCredentialMessage = "Please set your Gemini API Key in Settings to scan cards."

var errLifecycleClosed = errors.New("card lifecycle is closed")

// LifecycleDeps wires the card lifecycle controller. Mirror, Notifier, Session
// and Observer are optional.
type LifecycleDeps struct {
	Store       ports.CardStore
	Credentials ports.CredentialStore
	Storage     ports.ObjectStorage
	Preparer    ports.ImagePreparer
	Extractor   ports.CardExtractor
	Mirror      ports.Mirror
	Notifier    ports.Notifier
	Session     ports.Session
	Observer    ports.LifecycleObserver
	Undo        *UndoTracker
	Logger      *slog.Logger
	Clock       func() time.Time
}

type CardLifecycleUseCase struct {
	store       ports.CardStore
	credentials ports.CredentialStore
	storage     ports.ObjectStorage
	preparer    ports.ImagePreparer
	extractor   ports.CardExtractor
	mirror      ports.Mirror
	notifier    ports.Notifier
	session     ports.Session
	observer    ports.LifecycleObserver
	undo        *UndoTracker
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewCardLifecycleUseCase(deps LifecycleDeps) *CardLifecycleUseCase {
	uc := &CardLifecycleUseCase{
		store:       deps.Store,
		credentials: deps.Credentials,
		storage:     deps.Storage,
		preparer:    deps.Preparer,
		extractor:   deps.Extractor,
		mirror:      deps.Mirror,
		notifier:    deps.Notifier,
		session:     deps.Session,
		observer:    deps.Observer,
		undo:        deps.Undo,
		logger:      deps.Logger,
		now:         deps.Clock,
	}
	if uc.notifier == nil {
		uc.notifier = discardNotifier{}
	}
	if uc.session == nil {
		uc.session = inactiveSession{}
	}
	if uc.observer == nil {
		uc.observer = nopObserver{}
	}
	if uc.undo == nil {
		uc.undo = NewUndoTracker(DefaultUndoWindow)
	}
	if uc.logger == nil {
		uc.logger = slog.Default()
	}
	if uc.now == nil {
		uc.now = func() time.Time { return time.Now().UTC() }
	}
	return uc
}

// Capture stores the image, commits a pending card and starts extraction in
// the background. It returns once the pending card is durable.
func (uc *CardLifecycleUseCase) Capture(ctx context.Context, image io.Reader) (domain.Card, error) {
	if uc.isClosed() {
		return domain.Card{}, domain.WrapError(domain.ErrTemporary, "capture card", errLifecycleClosed)
	}
	prepared, err := uc.prepare(ctx, image)
	if err != nil {
		return domain.Card{}, err
	}

	id := uuid.NewString()
	uri, err := uc.saveImage(ctx, id, prepared)
	if err != nil {
		return domain.Card{}, err
	}

	pending := newPendingCard(id, uri, uc.now())
	if _, err := uc.store.Upsert(ctx, pending); err != nil {
		return domain.Card{}, fmt.Errorf("save pending card: %w", err)
	}
	uc.logger.Info("card_captured", "card_id", id, "mime_type", prepared.MimeType, "bytes", len(prepared.Data))
	uc.notify(ctx, domain.NoticeProcessingStarted, "Processing card...", id, "")

	bg := context.WithoutCancel(ctx)
	if !uc.spawn(func() { uc.process(bg, pending, prepared) }) {
		uc.markFailed(bg, pending, errLifecycleClosed)
	}

	return pending, nil
}

// Edit overlays the user-editable fields of card onto the stored record,
// confirms the save and mirrors the result when a session is active.
func (uc *CardLifecycleUseCase) Edit(ctx context.Context, card domain.Card) (domain.Card, error) {
	saved, err := uc.applyEdit(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}
	uc.notify(ctx, domain.NoticeSaveSucceeded, "Changes saved", saved.ID, "")
	uc.startSync(ctx, saved)
	return saved, nil
}

// QuickUpdate persists field changes without a notice or a mirror round-trip.
func (uc *CardLifecycleUseCase) QuickUpdate(ctx context.Context, card domain.Card) (domain.Card, error) {
	return uc.applyEdit(ctx, card)
}

// Sync mirrors a card when a session is active. Mirror failures are logged
// and otherwise swallowed.
func (uc *CardLifecycleUseCase) Sync(ctx context.Context, id string) {
	if !uc.session.Active() || uc.mirror == nil {
		return
	}

	marked, err := uc.commit(ctx, id, func(current domain.Card) (domain.Card, error) {
		current.IsSyncing = true
		return current, nil
	})
	if err != nil {
		uc.logSyncAbort(id, err)
		return
	}

	mirrorErr := uc.mirror.Mirror(ctx, marked)
	uc.observer.ObserveMirror(mirrorErr)
	if mirrorErr != nil {
		uc.logger.Warn("mirror_failed", "card_id", id, "error", domain.WrapError(domain.ErrMirror, "mirror card", mirrorErr))
	}

	syncedAt := uc.now()
	_, _, err = uc.settle(ctx, id, func(current domain.Card) domain.Card {
		current.IsSyncing = false
		if mirrorErr == nil {
			current.LastSyncedAt = &syncedAt
		}
		return current
	})
	if err != nil {
		uc.logSyncAbort(id, err)
	}
}

// Delete removes the card and returns a deletion id usable with Undo until the
// undo window closes or another deletion supersedes it.
func (uc *CardLifecycleUseCase) Delete(ctx context.Context, id string) (string, error) {
	token, card, err := uc.undo.TrackRemoval(func() (domain.Card, error) {
		removed, _, err := uc.store.Remove(ctx, id)
		return removed, err
	})
	if err != nil {
		return "", fmt.Errorf("remove card: %w", err)
	}

	uc.observer.ObserveDelete()
	uc.logger.Info("card_deleted", "card_id", id, "phase", card.Phase, "revision", card.Revision)
	uc.notify(ctx, domain.NoticeDeleteSucceeded, "Card deleted", id, token)
	return token, nil
}

// Undo restores the card captured by the deletion with the given id.
func (uc *CardLifecycleUseCase) Undo(ctx context.Context, token string) (domain.Card, error) {
	card, ok, err := uc.undo.Restore(token, func(card domain.Card) error {
		_, err := uc.store.Upsert(ctx, card)
		return err
	})
	if !ok {
		err := domain.WrapError(domain.ErrUndoExpired, "undo delete", fmt.Errorf("deletion %s is no longer undoable", token))
		uc.observer.ObserveUndo(err)
		return domain.Card{}, err
	}
	if err != nil {
		uc.observer.ObserveUndo(err)
		return domain.Card{}, fmt.Errorf("restore card: %w", err)
	}
	uc.observer.ObserveUndo(nil)
	uc.notify(ctx, domain.NoticeDeleteUndone, "Delete undone", card.ID, "")
	return card, nil
}

// ActivateCamera checks that captures can be extracted.
func (uc *CardLifecycleUseCase) ActivateCamera(ctx context.Context) error {
	credential, err := uc.credentials.Credential(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if strings.TrimSpace(credential) == "" {
		uc.notify(ctx, domain.NoticeCredentialMissing, missingCredentialMessage, "", "")
		return domain.WrapError(domain.ErrMissingCredential, "activate camera", errors.New("no credential configured"))
	}
	return nil
}

// Wait blocks until background extraction and sync chains have settled.
func (uc *CardLifecycleUseCase) Wait() {
	uc.inflight.Wait()
}

// Close stops accepting background work, waits for what is running and drops
// the pending undo. It is safe to call more than once.
func (uc *CardLifecycleUseCase) Close() {
	uc.mu.Lock()
	uc.closed = true
	uc.mu.Unlock()

	uc.inflight.Wait()
	uc.undo.Stop()
}

func (uc *CardLifecycleUseCase) process(ctx context.Context, base domain.Card, image domain.PreparedImage) {
	fields, err := uc.extract(ctx, image)
	if err != nil {
		uc.markFailed(ctx, base, err)
		return
	}

	processedAt := uc.now()
	card, parked, err := uc.settle(ctx, base.ID, func(current domain.Card) domain.Card {
		return reconcile(base, current, fields, processedAt)
	})
	if err != nil {
		uc.logCommitFailure("extraction_result_dropped", base.ID, err)
		return
	}
	if parked {
		uc.logger.Info("extraction_result_parked", "card_id", base.ID, "phase", card.Phase)
		return
	}

	uc.logger.Info("card_processed", "card_id", card.ID, "revision", card.Revision)
	uc.notify(ctx, domain.NoticeProcessingSucceeded, "Card processed successfully", card.ID, "")
	if uc.session.Active() {
		uc.Sync(ctx, card.ID)
	}
}

func (uc *CardLifecycleUseCase) extract(ctx context.Context, image domain.PreparedImage) (domain.ExtractedFields, error) {
	credential, err := uc.credentials.Credential(ctx)
	if err != nil {
		return domain.ExtractedFields{}, fmt.Errorf("read credential: %w", err)
	}
	if strings.TrimSpace(credential) == "" {
		uc.notify(ctx, domain.NoticeCredentialMissing, missingCredentialMessage, "", "")
		return domain.ExtractedFields{}, domain.WrapError(
			domain.ErrMissingCredential,
			"extract card",
			errors.New("no credential configured"),
		)
	}

	uc.observer.StartExtraction()
	started := time.Now()
	fields, err := uc.extractor.Extract(ctx, image, credential)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	uc.observer.FinishExtraction(outcome, time.Since(started).Seconds())
	if err != nil {
		return domain.ExtractedFields{}, fmt.Errorf("extract card: %w", err)
	}
	return fields, nil
}

func (uc *CardLifecycleUseCase) markFailed(ctx context.Context, base domain.Card, cause error) {
	uc.logger.Warn("extraction_failed", "card_id", base.ID, "error", cause)

	processedAt := uc.now()
	_, parked, err := uc.settle(ctx, base.ID, func(current domain.Card) domain.Card {
		return failCard(base, current, processedAt)
	})
	if err != nil {
		uc.logCommitFailure("failure_state_dropped", base.ID, err)
		return
	}
	if parked {
		uc.logger.Info("failure_state_parked", "card_id", base.ID)
		return
	}
	uc.notify(ctx, domain.NoticeProcessingFailed, "Analysis failed: "+failureReason(cause), base.ID, "")
}

func (uc *CardLifecycleUseCase) applyEdit(ctx context.Context, card domain.Card) (domain.Card, error) {
	if strings.TrimSpace(card.ID) == "" {
		return domain.Card{}, domain.WrapError(domain.ErrInvalidInput, "edit card", errors.New("card id is required"))
	}
	card.Phone = domain.CompactEntries(card.Phone)
	card.Email = domain.CompactEntries(card.Email)
	card.Tags = domain.NormalizeTags(card.Tags)

	saved, err := uc.commit(ctx, card.ID, func(current domain.Card) (domain.Card, error) {
		// A body without a phase makes no claim about the snapshot it was
		// edited from.
		if card.Phase != "" && card.Revision < current.Revision && card.Phase != current.Phase {
			return domain.Card{}, domain.WrapError(
				domain.ErrStaleRevision,
				"edit card",
				fmt.Errorf("card %s moved to %s since revision %d", card.ID, current.Phase, card.Revision),
			)
		}
		return overlayUserFields(current, card), nil
	})
	if domain.IsKind(err, domain.ErrCardNotFound) {
		return uc.reinsert(ctx, card)
	}
	if err != nil {
		return domain.Card{}, err
	}
	return saved, nil
}

// reinsert writes an edited card whose id is no longer stored.
func (uc *CardLifecycleUseCase) reinsert(ctx context.Context, card domain.Card) (domain.Card, error) {
	if !card.Phase.Valid() {
		card.Phase = domain.PhaseProcessed
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = uc.now()
	}
	card.IsSyncing = false
	card.Revision++
	if _, err := uc.store.Upsert(ctx, card); err != nil {
		return domain.Card{}, fmt.Errorf("reinsert edited card: %w", err)
	}
	return card, nil
}

// commit applies mutate to the latest stored card and writes it with the next
// revision, retrying when another writer got there first.
func (uc *CardLifecycleUseCase) commit(
	ctx context.Context,
	id string,
	mutate func(current domain.Card) (domain.Card, error),
) (domain.Card, error) {
	var lastErr error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		current, err := uc.store.Get(ctx, id)
		if err != nil {
			return domain.Card{}, err
		}

		next, err := mutate(current.Clone())
		if err != nil {
			return domain.Card{}, err
		}
		next.ID = current.ID
		next.Revision = current.Revision + 1

		if _, err := uc.store.Update(ctx, next); err != nil {
			if domain.IsKind(err, domain.ErrStaleRevision) {
				lastErr = err
				continue
			}
			return domain.Card{}, err
		}
		return next, nil
	}
	return domain.Card{}, fmt.Errorf("commit card %s after %d attempts: %w", id, maxCommitAttempts, lastErr)
}

// settle commits a background result. When the card was deleted meanwhile
// the result is applied to the undo snapshot instead, so an undo restores the
// settled card; parked reports that case.
func (uc *CardLifecycleUseCase) settle(
	ctx context.Context,
	id string,
	mutate func(current domain.Card) domain.Card,
) (domain.Card, bool, error) {
	apply := func(current domain.Card) (domain.Card, error) {
		return mutate(current), nil
	}
	amend := func(current domain.Card) domain.Card {
		next := mutate(current)
		next.ID = current.ID
		next.Revision = current.Revision + 1
		return next
	}

	var err error
	// A second pass covers an undo that restored the card between the
	// failed commit and the amend.
	for pass := 0; pass < 2; pass++ {
		var card domain.Card
		card, err = uc.commit(ctx, id, apply)
		if !domain.IsKind(err, domain.ErrCardNotFound) {
			return card, false, err
		}
		if parked, ok := uc.undo.Amend(id, amend); ok {
			return parked, true, nil
		}
	}
	return domain.Card{}, false, err
}

func (uc *CardLifecycleUseCase) startSync(ctx context.Context, card domain.Card) {
	if !uc.session.Active() || uc.mirror == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	if !uc.spawn(func() { uc.Sync(bg, card.ID) }) {
		uc.logger.Info("sync_skipped", "card_id", card.ID, "reason", "lifecycle closed")
	}
}

// spawn runs fn as tracked background work unless Close has begun.
func (uc *CardLifecycleUseCase) spawn(fn func()) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.closed {
		return false
	}
	uc.inflight.Add(1)
	go func() {
		defer uc.inflight.Done()
		fn()
	}()
	return true
}

func (uc *CardLifecycleUseCase) isClosed() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.closed
}

func (uc *CardLifecycleUseCase) prepare(ctx context.Context, image io.Reader) (domain.PreparedImage, error) {
	if image == nil {
		return domain.PreparedImage{}, domain.WrapError(domain.ErrInvalidInput, "prepare image", errors.New("image is required"))
	}
	prepared, err := uc.preparer.Prepare(ctx, image)
	if err != nil {
		return domain.PreparedImage{}, fmt.Errorf("prepare image: %w", err)
	}
	return prepared, nil
}

func (uc *CardLifecycleUseCase) saveImage(ctx context.Context, id string, image domain.PreparedImage) (string, error) {
	key := id + extensionFor(image.MimeType)
	if err := uc.storage.Save(ctx, key, bytes.NewReader(image.Data)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return uc.storage.URI(key), nil
}

func (uc *CardLifecycleUseCase) notify(ctx context.Context, kind domain.NoticeKind, message, cardID, token string) {
	uc.notifier.Notify(ctx, domain.Notice{
		Kind:      kind,
		Message:   message,
		CardID:    cardID,
		UndoToken: token,
		At:        uc.now(),
	})
}

func (uc *CardLifecycleUseCase) logCommitFailure(event, id string, err error) {
	if domain.IsKind(err, domain.ErrCardNotFound) {
		uc.logger.Info(event, "card_id", id, "reason", "card deleted")
		return
	}
	uc.logger.Error(event, "card_id", id, "error", err)
}

func (uc *CardLifecycleUseCase) logSyncAbort(id string, err error) {
	if domain.IsKind(err, domain.ErrCardNotFound) {
		uc.logger.Info("sync_skipped", "card_id", id, "reason", "card deleted")
		return
	}
	uc.logger.Error("sync_bookkeeping_failed", "card_id", id, "error", err)
}

func newPendingCard(id, imageURI string, now time.Time) domain.Card {
	return domain.Card{
		ID:        id,
		ImageURI:  imageURI,
		Name:      domain.Text(domain.PendingName),
		Company:   domain.Text(domain.PendingCompany),
		Phone:     []string{},
		Email:     []string{},
		Tags:      []string{},
		Notes:     "",
		Phase:     domain.PhasePending,
		Revision:  1,
		CreatedAt: now,
	}
}

func failureReason(err error) string {
	if domain.IsKind(err, domain.ErrMissingCredential) {
		return "Gemini API Key is missing. Please add it in Settings."
	}
	return err.Error()
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, domain.Notice) {}

type inactiveSession struct{}

func (inactiveSession) Active() bool { return false }

type nopObserver struct{}

func (nopObserver) StartExtraction()                 {}
func (nopObserver) FinishExtraction(string, float64) {}
func (nopObserver) ObserveMirror(error)              {}
func (nopObserver) ObserveDelete()                   {}
func (nopObserver) ObserveUndo(error)                {}
