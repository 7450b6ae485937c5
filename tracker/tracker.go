// Package tracker drives in-flight transactions through signing, submission
// and confirmation, keeps the transient toast queue, and records exactly one
// persisted history entry per tracked operation.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/celerfi/stellar-wallet-sync/confirm"
	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxToasts  = 6
	MaxHistory = 50
)

// LinkBuilder is satisfied by *explorer.Builder.
type LinkBuilder interface {
	Link(hash string, kind models.TxKind) string
}

// Snapshot is what subscribers receive after every change.
type Snapshot struct {
	Toasts  []models.ToastItem
	History []models.TxHistoryItem
}

type Option func(*Tracker)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

type Tracker struct {
	kv     storage.Store
	links  LinkBuilder
	waiter confirm.Waiter
	now    func() time.Time

	mu      sync.Mutex
	toasts  []models.ToastItem // newest first
	history []models.TxHistoryItem
	subs    map[int]func(Snapshot)
	nextSub int

	// serializes history rewrites so a stale list never lands after a newer one
	persistMu sync.Mutex
}

// New reads the persisted history once. A missing or unreadable slot starts empty.
func New(ctx context.Context, kv storage.Store, links LinkBuilder, waiter confirm.Waiter, opts ...Option) *Tracker {
	t := &Tracker{
		kv:     kv,
		links:  links,
		waiter: waiter,
		now:    time.Now,
		subs:   make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.history = loadHistory(ctx, kv)
	return t
}

// operation is the tracker's own record of one Track call. It outlives the
// toast, which may be dismissed or evicted while the work is in flight.
type operation struct {
	id      string
	meta    models.TxMeta
	phase   models.TxPhase
	hash    string
	link    string
	settled bool
}

// Track runs work to a terminal state and returns the confirmed hash. On any
// failure it returns a *TxError after the toast and history are updated.
func (t *Tracker) Track(ctx context.Context, work Work, meta models.TxMeta) (string, error) {
	op := t.start(meta)
	log := logger.With(zap.String("toast", op.id), zap.String("asset", string(meta.Asset)))

	if work == nil {
		return "", t.fail(ctx, op, ErrNoHash)
	}

	result, err := work.resolve(ctx, t.phaseSetter(op))
	if err != nil {
		return "", t.fail(ctx, op, err)
	}
	result.Hash = strings.TrimSpace(result.Hash)
	if result.Hash == "" {
		return "", t.fail(ctx, op, ErrNoHash)
	}

	kind := meta.Kind
	if result.Kind.Valid() {
		kind = result.Kind
	}
	t.update(op, func(o *operation) {
		o.hash = result.Hash
		o.meta.Kind = kind
		o.link = t.links.Link(result.Hash, kind)
		if o.phase == models.PhaseSigning {
			o.phase = models.PhaseSubmitted
		}
	})
	log.Info("transaction submitted", zap.String("hash", result.Hash), zap.String("kind", string(kind)))

	if err := t.waiter.Wait(ctx, result.Hash, kind); err != nil {
		return "", t.fail(ctx, op, err)
	}

	t.update(op, func(o *operation) {
		o.phase = models.PhaseConfirmed
	})
	t.settle(ctx, op, models.StatusSuccess, "")
	log.Info("transaction confirmed", zap.String("hash", result.Hash))
	return result.Hash, nil
}

func (t *Tracker) start(meta models.TxMeta) *operation {
	op := &operation{
		id:    uuid.NewString(),
		meta:  meta,
		phase: models.PhaseSubmitted,
	}
	if meta.Kind == models.TxKindContract {
		op.phase = models.PhaseSigning
	}

	toast := models.ToastItem{
		TxMeta:    meta,
		ID:        op.id,
		Title:     title(meta),
		Status:    models.StatusPending,
		Phase:     op.phase,
		Timestamp: t.now().UTC(),
	}

	t.mu.Lock()
	t.toasts = append([]models.ToastItem{toast}, t.toasts...)
	if len(t.toasts) > MaxToasts {
		t.toasts = t.toasts[:MaxToasts]
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	return op
}

// phaseSetter only moves forward and never past submitted; confirmed is set
// by the tracker once the waiter resolves.
func (t *Tracker) phaseSetter(op *operation) SetPhase {
	return func(p models.TxPhase) {
		if p.Rank() == 0 || p.Rank() > models.PhaseSubmitted.Rank() {
			return
		}
		t.update(op, func(o *operation) {
			if p.Rank() > o.phase.Rank() {
				o.phase = p
			}
		})
	}
}

// update mutates op and mirrors it into its toast if the toast is still queued.
func (t *Tracker) update(op *operation, fn func(*operation)) {
	t.mu.Lock()
	if op.settled {
		t.mu.Unlock()
		return
	}
	fn(op)
	if i := t.toastIndexLocked(op.id); i >= 0 {
		toast := &t.toasts[i]
		toast.Kind = op.meta.Kind
		toast.Phase = op.phase
		toast.Hash = op.hash
		toast.ExplorerURL = op.link
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
}

func (t *Tracker) fail(ctx context.Context, op *operation, cause error) error {
	reason := SanitizeError(cause)
	logger.Warn("tracked transaction failed",
		zap.String("toast", op.id),
		zap.String("hash", op.hash),
		zap.String("reason", reason),
		zap.Error(cause))
	t.settle(ctx, op, models.StatusFailed, reason)
	return &TxError{Reason: reason, Hash: op.hash, Err: cause}
}

// settle is the only place a tracked operation reaches history.
func (t *Tracker) settle(ctx context.Context, op *operation, status models.TxStatus, reason string) {
	t.mu.Lock()
	if op.settled {
		t.mu.Unlock()
		return
	}
	op.settled = true
	if i := t.toastIndexLocked(op.id); i >= 0 {
		toast := &t.toasts[i]
		toast.Status = status
		toast.Reason = reason
		toast.Phase = op.phase
		toast.Hash = op.hash
		toast.ExplorerURL = op.link
	}
	item := models.TxHistoryItem{
		TxMeta:      op.meta,
		ID:          op.id,
		Status:      status,
		Phase:       op.phase,
		Hash:        op.hash,
		ExplorerURL: op.link,
		Reason:      reason,
		Timestamp:   t.now().UTC(),
	}
	t.prependHistoryLocked(item)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	if err := t.persist(context.WithoutCancel(ctx)); err != nil {
		logger.Error("persisting transaction history failed", zap.String("toast", op.id), zap.Error(err))
	}
}

// Dismiss removes a toast from the queue. History is untouched.
func (t *Tracker) Dismiss(id string) bool {
	t.mu.Lock()
	i := t.toastIndexLocked(id)
	if i < 0 {
		t.mu.Unlock()
		return false
	}
	t.toasts = append(t.toasts[:i:i], t.toasts[i+1:]...)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	return true
}

// Toasts returns a copy of the queue, newest first.
func (t *Tracker) Toasts() []models.ToastItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.ToastItem(nil), t.toasts...)
}

// History returns a copy of the history, newest first.
func (t *Tracker) History() []models.TxHistoryItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.TxHistoryItem(nil), t.history...)
}

// Subscribe registers fn for every subsequent change. fn runs on the
// goroutine that made the change and must not block.
func (t *Tracker) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) toastIndexLocked(id string) int {
	for i := range t.toasts {
		if t.toasts[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Toasts:  append([]models.ToastItem(nil), t.toasts...),
		History: append([]models.TxHistoryItem(nil), t.history...),
	}
}

func (t *Tracker) publish(snap Snapshot) {
	t.mu.Lock()
	subs := make([]func(Snapshot), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func title(meta models.TxMeta) string {
	verb := "Transaction"
	switch meta.Direction {
	case models.DirectionDeposit:
		verb = "Deposit"
	case models.DirectionWithdraw:
		verb = "Withdraw"
	}
	return fmt.Sprintf("%s %s %s", verb, meta.Amount.String(), meta.Asset)
}
