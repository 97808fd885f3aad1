package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

const defaultAppendTimeout = 5 * time.Second

// HistorySink records every published snapshot in a Store. Consecutive
// sleeping snapshots (heartbeats) collapse into the first one.
type HistorySink struct {
	store   Store
	runID   string
	timeout time.Duration
	last    reporter.DaemonStatus
}

// NewHistorySink returns a sink appending to store under runID.
func NewHistorySink(store Store, runID string) *HistorySink {
	if store == nil {
		panic("eventstore: history sink requires a store")
	}
	return &HistorySink{store: store, runID: runID, timeout: defaultAppendTimeout}
}

// Write implements reporter.Sink.
func (h *HistorySink) Write(snap reporter.Snapshot) error {
	if err := snap.Validate(); err != nil {
		panic("eventstore: malformed snapshot: " + err.Error())
	}
	if snap.Status == reporter.StatusSleeping && h.last == reporter.StatusSleeping {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}
	meta := map[string]string{"repos": strconv.Itoa(len(snap.Repos))}
	if snap.CurrentRepo != nil {
		meta["current_repo"] = snap.CurrentRepo.Name
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.store.Append(ctx, h.runID, string(snap.Status), payload, meta); err != nil {
		slog.Warn("Failed to record snapshot history", logfields.RunID(h.runID), logfields.Error(err))
		return err
	}
	h.last = snap.Status
	return nil
}
