package queue

import "github.com/mcoot/gocup/internal/model"

// Matcher picks two compatible entries from the queue
type Matcher interface {
	// Pair returns the indices of two entries to match, or false if none can be paired
	Pair(entries []model.QueueEntry) (int, int, bool)
}

// FIFOMatcher pairs the longest-waiting player with the next player who wants
// the same board size
type FIFOMatcher struct{}

// Pair implements Matcher
func (FIFOMatcher) Pair(entries []model.QueueEntry) (int, int, bool) {
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].Preferences.BoardSize == entries[j].Preferences.BoardSize {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// MatcherFunc adapts a function to Matcher
type MatcherFunc func(entries []model.QueueEntry) (int, int, bool)

// Pair implements Matcher
func (f MatcherFunc) Pair(entries []model.QueueEntry) (int, int, bool) {
	return f(entries)
}
