package repository

import (
	"context"
	"sync"

	"github.com/example/foodcart/pkg/order"
)

// MemoryHistory is the status history used when no MongoDB is configured.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]order.HistoryEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: make(map[string][]order.HistoryEntry)}
}

func (h *MemoryHistory) Record(_ context.Context, e order.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[e.OrderID] = append(h.entries[e.OrderID], e)
	return nil
}

func (h *MemoryHistory) History(_ context.Context, orderID string, limit int64) ([]order.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.entries[orderID]
	if limit > 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return append([]order.HistoryEntry(nil), entries...), nil
}
