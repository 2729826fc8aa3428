package features

import (
	"encoding/json"
	"sort"

	"sportsml/internal/records"
)

// Encoding is the dense integer code table for categorical identifiers,
// fit once per run over the distinct categories observed. Teams share a
// single table across home and away sides so the same club gets the same
// code in either role.
type Encoding struct {
	Sports []string `json:"sports"`
	Teams  []string `json:"teams"`

	sportIdx map[string]int
	teamIdx  map[string]int
}

// FitEncoding builds the code tables from a record batch. Classes are sorted
// so the fit is deterministic for a given batch.
func FitEncoding(recs []records.RawRecord) *Encoding {
	sports := map[string]bool{}
	teams := map[string]bool{}
	for i := range recs {
		sports[recs[i].Sport] = true
		teams[recs[i].HomeTeam] = true
		teams[recs[i].AwayTeam] = true
	}

	e := &Encoding{
		Sports: sortedKeys(sports),
		Teams:  sortedKeys(teams),
	}
	e.reindex()
	return e
}

// SportCode encodes a sport tag. An unseen sport falls back to the midpoint
// code; new leagues must not make inference fail.
func (e *Encoding) SportCode(sport string) float64 {
	if i, ok := e.sportIdx[sport]; ok {
		return float64(i)
	}
	return float64(len(e.Sports) / 2)
}

// TeamCode encodes a team identifier, falling back to the midpoint code for
// teams that were not in the training batch.
func (e *Encoding) TeamCode(team string) float64 {
	if i, ok := e.teamIdx[team]; ok {
		return float64(i)
	}
	return float64(len(e.Teams) / 2)
}

// UnmarshalJSON rebuilds the lookup indices after loading a persisted table.
func (e *Encoding) UnmarshalJSON(data []byte) error {
	type alias Encoding
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	e.Sports = a.Sports
	e.Teams = a.Teams
	e.reindex()
	return nil
}

func (e *Encoding) reindex() {
	e.sportIdx = make(map[string]int, len(e.Sports))
	for i, s := range e.Sports {
		e.sportIdx[s] = i
	}
	e.teamIdx = make(map[string]int, len(e.Teams))
	for i, t := range e.Teams {
		e.teamIdx[t] = i
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
