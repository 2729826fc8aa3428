package records

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func storeRecord(id string, madeAt time.Time) RawRecord {
	return RawRecord{
		ID:       id,
		GameID:   id,
		Sport:    "nfl",
		HomeTeam: "KC",
		AwayTeam: "BUF",
		GameTime: madeAt.Add(24 * time.Hour),
		MadeAt:   madeAt,
	}
}

func TestStorePutAndLoadRange(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	var batch []RawRecord
	for i := 0; i < 5; i++ {
		batch = append(batch, storeRecord(string(rune('a'+i)), base.AddDate(0, 0, i)))
	}
	if err := s.PutBatch(batch); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	got, err := s.Load("nfl", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d records, want 3", len(got))
	}
	for i, r := range got {
		if want := string(rune('b' + i)); r.ID != want {
			t.Errorf("record %d = %s, want %s", i, r.ID, want)
		}
	}
}

func TestStoreLoadIsolatesSports(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	nfl := storeRecord("nfl-game", at)
	nba := storeRecord("nba-game", at)
	nba.Sport = "nba"
	if err := s.PutBatch([]RawRecord{nfl, nba}); err != nil {
		t.Fatalf("PutBatch failed: %v", err)
	}

	got, err := s.Load("nba", at.Add(-time.Hour), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "nba-game" {
		t.Fatalf("got %v", got)
	}
}

func TestStoreRePutOverwrites(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	rec := storeRecord("g1", at)
	if err := s.Put(rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// The outcome resolves later; the updated record replaces the original.
	resolved := true
	rec.WasCorrect = &resolved
	if err := s.Put(rec); err != nil {
		t.Fatalf("re-Put failed: %v", err)
	}

	got, err := s.Load("nfl", at.Add(-time.Hour), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d records, want 1", len(got))
	}
	if got[0].WasCorrect == nil || !*got[0].WasCorrect {
		t.Error("resolved outcome not persisted")
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	s, err := OpenStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Put(storeRecord("g1", at)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s, err = OpenStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer s.Close()

	got, err := s.Load("nfl", at.Add(-time.Hour), at.Add(time.Hour))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d records after reopen, want 1", len(got))
	}
}
