package notification

import (
	"sync"
	"time"
)

const DefaultFeedSize = 50

// FeedEntry is what the app's notification list renders.
type FeedEntry struct {
	Message   string    `json:"message"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed keeps the most recent notifications in memory.
type Feed struct {
	mu      sync.Mutex
	size    int
	entries []FeedEntry
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size}
}

func (f *Feed) Add(e FeedEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	if over := len(f.entries) - f.size; over > 0 {
		f.entries = append(f.entries[:0:0], f.entries[over:]...)
	}
}

// List returns entries newest first.
func (f *Feed) List() []FeedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FeedEntry, len(f.entries))
	for i, e := range f.entries {
		out[len(f.entries)-1-i] = e
	}
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
