package forecast

import (
	"sync/atomic"
	"time"

	"github.com/umweltmonitoring/sensebox-monitor/internal/models"
)

// Result is one published forecast: the stitched series plus when it was
// trained. Replaced wholesale on every retraining cycle; never persisted.
type Result struct {
	Points    []models.SeriesPoint `json:"points"`
	TrainedAt time.Time            `json:"trained_at"`
}

// Slot is the single publish cell for the current forecast. Writers replace
// the value atomically; readers always see either the previous complete
// result or the new one, never a partial write, and never block.
type Slot struct {
	cur atomic.Pointer[Result]
}

// NewSlot returns an empty slot. Current returns nil until the first publish.
func NewSlot() *Slot {
	return &Slot{}
}

// Publish swaps in a new result.
func (s *Slot) Publish(r *Result) {
	s.cur.Store(r)
}

// Current returns the last published result, or nil when none exists yet.
func (s *Slot) Current() *Result {
	return s.cur.Load()
}
