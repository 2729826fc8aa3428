// Package replay re-scores historical labeled records against persisted
// artifact sets, so model versions can be compared offline before one is
// promoted to the scoring service.
package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"sportsml/internal/records"
)

// Loader serves labeled records chronologically by game time.
type Loader struct {
	recs  []records.RawRecord
	index int

	StartTime time.Time
	EndTime   time.Time
	Dropped   int
}

// NewLoader filters a record batch down to the labeled games for the target
// inside the optional [start, end] window and orders them chronologically.
func NewLoader(recs []records.RawRecord, target records.Target, start, end time.Time) (*Loader, error) {
	labeled, dropped := records.FilterLabeled(recs, target)

	filtered := labeled[:0]
	for _, r := range labeled {
		if !start.IsZero() && r.GameTime.Before(start) {
			dropped++
			continue
		}
		if !end.IsZero() && r.GameTime.After(end) {
			dropped++
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no labeled %s games in the selected window", target)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].GameTime.Before(filtered[j].GameTime)
	})

	l := &Loader{
		recs:      filtered,
		StartTime: filtered[0].GameTime,
		EndTime:   filtered[len(filtered)-1].GameTime,
		Dropped:   dropped,
	}
	log.Info().
		Int("games", len(filtered)).
		Int("dropped", dropped).
		Time("start", l.StartTime).
		Time("end", l.EndTime).
		Msg("replay window loaded")
	return l, nil
}

// Len returns the number of games in the window.
func (l *Loader) Len() int { return len(l.recs) }

// HasNext reports whether more games remain.
func (l *Loader) HasNext() bool { return l.index < len(l.recs) }

// Next returns the next game in chronological order.
func (l *Loader) Next() *records.RawRecord {
	r := &l.recs[l.index]
	l.index++
	return r
}

// Reset rewinds the loader so another version can replay the same window.
func (l *Loader) Reset() { l.index = 0 }
