package tracker

import (
	"context"
	"encoding/json"

	"github.com/celerfi/stellar-wallet-sync/logger"
	"github.com/celerfi/stellar-wallet-sync/models"
	"github.com/celerfi/stellar-wallet-sync/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func loadHistory(ctx context.Context, kv storage.Store) []models.TxHistoryItem {
	raw, err := kv.Get(ctx, storage.HistoryKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("reading transaction history failed, starting empty", zap.Error(err))
		}
		return nil
	}
	var items []models.TxHistoryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn("stored transaction history is corrupt, starting empty", zap.Error(err))
		return nil
	}
	if len(items) > MaxHistory {
		items = items[:MaxHistory]
	}
	return items
}

func (t *Tracker) prependHistoryLocked(item models.TxHistoryItem) {
	t.history = append([]models.TxHistoryItem{item}, t.history...)
	if len(t.history) > MaxHistory {
		t.history = t.history[:MaxHistory]
	}
}

// persist writes the history as it is when the write lock is taken, so
// overlapping calls land in order and the last one carries every entry.
func (t *Tracker) persist(ctx context.Context) error {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	t.mu.Lock()
	items := append([]models.TxHistoryItem{}, t.history...)
	t.mu.Unlock()

	if len(items) == 0 {
		return errors.Wrap(t.kv.Delete(ctx, storage.HistoryKey), "clear history")
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	return errors.Wrap(t.kv.Set(ctx, storage.HistoryKey, raw), "write history")
}

// AppendHistory records an entry that did not come through Track. Missing
// id, kind, status and timestamp are filled in.
func (t *Tracker) AppendHistory(ctx context.Context, item models.TxHistoryItem) (models.TxHistoryItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if !item.Kind.Valid() {
		item.Kind = models.TxKindClassic
	}
	if item.Status == "" {
		item.Status = models.StatusPending
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = t.now().UTC()
	}
	if item.Hash != "" && item.ExplorerURL == "" {
		item.ExplorerURL = t.links.Link(item.Hash, item.Kind)
	}

	t.mu.Lock()
	t.prependHistoryLocked(item)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	return item, t.persist(context.WithoutCancel(ctx))
}

// ClearHistory empties the history and its persisted slot. Toasts stay.
func (t *Tracker) ClearHistory(ctx context.Context) error {
	t.mu.Lock()
	t.history = nil
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(snap)
	return t.persist(context.WithoutCancel(ctx))
}
