package audit

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesEventsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	trail, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer trail.Close()

	var name string
	err = trail.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='events'").Scan(&name)
	if err != nil {
		t.Fatalf("expected events table to exist: %v", err)
	}
}

func TestRecord_InsertsRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	trail, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer trail.Close()

	err = trail.Record(context.Background(), Record{
		TS:      1000,
		Coin:    "PURR",
		Type:    EventPlace,
		Payload: map[string]any{"oid": 42, "price": 0.2},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	var count int
	if err := trail.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestRecord_MultipleAppendsPreserveOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	trail, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer trail.Close()

	types := []EventType{EventPlace, EventFill, EventCancel}
	for i, ty := range types {
		if err := trail.Record(context.Background(), Record{TS: int64(i), Coin: "PURR", Type: ty, Payload: nil}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	rows, err := trail.db.Query("SELECT type FROM events ORDER BY id ASC")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var ty string
		if err := rows.Scan(&ty); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, ty)
	}
	want := []string{"place", "fill", "cancel"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
