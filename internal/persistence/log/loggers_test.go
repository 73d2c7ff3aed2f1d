package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"symcraft.ai/internal/sim/world"
)

func TestAuditLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir, Options{})
	entries := []world.AuditEntry{
		{Tick: 3, Actor: "A1", Action: "BUILD", EntityID: "E000001", Prefab: "foundation", Grade: "twig", Pos: [3]float64{6, 0, 3.6}},
		{Tick: 4, Actor: "A1", Action: "SYM_COPY", EntityID: "E000002", Prefab: "foundation", Grade: "twig", Pos: [3]float64{-6, 0, 3.6}},
		{Tick: 4, Actor: "A1", Action: "SYM_SKIP", Prefab: "foundation", Reason: "insufficient resources for symmetric copy"},
	}
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadAudits(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries", len(got))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Fatalf("entry %d = %+v want %+v", i, got[i], entries[i])
		}
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l := NewTickLogger(dir, Options{Now: func() time.Time { return now }})

	if err := l.WriteTick(world.TickLogEntry{Tick: 1, Digest: "a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := l.WriteTick(world.TickLogEntry{Tick: 2, Digest: "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, name := range []string{"ticks-2026-03-01-10.jsonl.zst", "ticks-2026-03-01-11.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, "ticks", name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	var ticks []uint64
	err := ReadJSONL(filepath.Join(dir, "ticks"), "ticks", func(line []byte) error {
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		ticks = append(ticks, e.Tick)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ticks) != 2 || ticks[0] != 1 || ticks[1] != 2 {
		t.Fatalf("ticks=%v", ticks)
	}
}
