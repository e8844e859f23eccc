package service

import (
	"sync"
	"time"
)

const (
	BatchStatusSucceeded = "succeeded"
	BatchStatusFailed    = "failed"
	BatchStatusSkipped   = "skipped"
)

type BatchItem struct {
	ID     uint64 `json:"id,omitempty"`
	Key    string `json:"key,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchResult reports per-item outcomes of a batch run. Item failures are
// recorded here and never returned as the batch error.
type BatchResult struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Items     []BatchItem `json:"items"`

	mu sync.Mutex
}

func (r *BatchResult) add(item BatchItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Total++
	switch item.Status {
	case BatchStatusSucceeded:
		r.Succeeded++
	case BatchStatusFailed:
		r.Failed++
	default:
		r.Skipped++
	}
	r.Items = append(r.Items, item)
}

func (r *BatchResult) merge(other *BatchResult) {
	if other == nil {
		return
	}
	for _, item := range other.Items {
		r.add(item)
	}
}

func nowFrom(clock func() time.Time) time.Time {
	if clock != nil {
		return clock().UTC()
	}
	return time.Now().UTC()
}

func boolPtr(v bool) *bool {
	return &v
}
