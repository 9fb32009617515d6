package history

import (
	"testing"
	"time"
)

// ":memory:" gives every test a brand new, empty DB.
func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := openTestLedger(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l.RecordPlay("a.mp3", "Artist – First", 180, base)
	l.RecordPlay("b.mp3", "Artist – Second", 200, base.Add(3*time.Minute))
	l.RecordSkip("bad.mp3", "zero-byte")

	recent, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d records, want 2", len(recent))
	}
	if recent[0].Key != "b.mp3" {
		t.Errorf("newest first: got %s, want b.mp3", recent[0].Key)
	}

	var skips []SkipRecord
	if err := l.db.Find(&skips).Error; err != nil {
		t.Fatal(err)
	}
	if len(skips) != 1 || skips[0].Reason != "zero-byte" {
		t.Errorf("skip record = %+v, want one zero-byte entry", skips)
	}
}

func TestRecentLimit(t *testing.T) {
	l := openTestLedger(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		l.RecordPlay("t.mp3", "T", 60, now.Add(time.Duration(i)*time.Minute))
	}

	recent, err := l.Recent(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Errorf("Recent(3) returned %d records", len(recent))
	}
}

func TestNilLedgerIsSafe(t *testing.T) {
	var l *Ledger
	l.RecordPlay("a.mp3", "A", 1, time.Now())
	l.RecordSkip("a.mp3", "crashed")
	if recs, err := l.Recent(5); err != nil || recs != nil {
		t.Errorf("nil ledger Recent = (%v, %v), want (nil, nil)", recs, err)
	}
}
