package room

import (
	"math"
	"time"
)

// dialBuckets is the number of half-point bins between 1.0 and 5.0 inclusive.
const dialBuckets = 9

// DialEntry is one participant's current dial position.
type DialEntry struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// DialSummary aggregates entries into the nine half-point bins used for the
// live histogram display.
type DialSummary struct {
	Buckets [dialBuckets]int `json:"buckets"`
	Count   int              `json:"count"`
	Average float64          `json:"average"`
}

// FeedbackDial tracks a last-write-wins understanding value per participant.
type FeedbackDial struct {
	base
	entries map[string]DialEntry
}

func newFeedbackDial(key Key, now time.Time) *FeedbackDial {
	return &FeedbackDial{
		base:    newBase(key, now),
		entries: make(map[string]DialEntry),
	}
}

// Update records the participant's value, clamped into [1,5] and snapped to
// the nearest half point. Prior values are overwritten, never accumulated.
func (d *FeedbackDial) Update(connID string, value float64, now time.Time) error {
	if err := d.gate(); err != nil {
		return err
	}

	d.entries[connID] = DialEntry{Value: clampDialValue(value), Timestamp: now}
	return nil
}

// Value returns the participant's current entry, if any.
func (d *FeedbackDial) Value(connID string) (DialEntry, bool) {
	entry, ok := d.entries[connID]
	return entry, ok
}

// Summary buckets all current entries for aggregate display.
func (d *FeedbackDial) Summary() DialSummary {
	var summary DialSummary
	sum := 0.0
	for _, entry := range d.entries {
		summary.Buckets[bucketIndex(entry.Value)]++
		summary.Count++
		sum += entry.Value
	}
	if summary.Count > 0 {
		summary.Average = sum / float64(summary.Count)
	}
	return summary
}

// RemoveParticipant drops the participant's entry so the aggregate no longer
// reflects departed connections.
func (d *FeedbackDial) RemoveParticipant(connID string) {
	delete(d.entries, connID)
}

func (d *FeedbackDial) Snapshot() Snapshot {
	return Snapshot{
		Kind:       d.key.Kind,
		ActivityID: d.key.ActivityID,
		IsActive:   d.isActive,
		Data:       d.Summary(),
	}
}

func clampDialValue(value float64) float64 {
	value = math.Round(value*2) / 2
	if value < 1 {
		return 1
	}
	if value > 5 {
		return 5
	}
	return value
}

func bucketIndex(value float64) int {
	idx := int(math.Round((value - 1) * 2))
	if idx < 0 {
		return 0
	}
	if idx >= dialBuckets {
		return dialBuckets - 1
	}
	return idx
}
