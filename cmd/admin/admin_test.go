package main

import (
	"bytes"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"symcraft.ai/internal/persistence/indexdb"
	"symcraft.ai/internal/persistence/snapshot"
	"symcraft.ai/internal/sim/world"
)

func TestFilterAudits(t *testing.T) {
	entries := []world.AuditEntry{
		{Tick: 1, Actor: "A1", Action: "BUILD"},
		{Tick: 2, Actor: "A1", Action: "SYM_COPY"},
		{Tick: 2, Actor: "A2", Action: "SYM_COPY"},
		{Tick: 5, Actor: "A1", Action: "SYM_SKIP"},
	}
	cases := []struct {
		name string
		f    auditFilter
		want int
	}{
		{"all", auditFilter{}, 4},
		{"actor", auditFilter{Actor: "A1"}, 3},
		{"action case-insensitive", auditFilter{Action: "sym_copy"}, 2},
		{"tick window", auditFilter{SinceTick: 2, ToTick: 2}, 2},
		{"combined", auditFilter{Actor: "A1", SinceTick: 3}, 1},
	}
	for _, tc := range cases {
		if got := len(filterAudits(entries, tc.f)); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{WorldID: "w", Tick: 9},
		Actors: []snapshot.ActorV1{{ID: "A1"}},
		Entities: []snapshot.EntityV1{
			{ID: "E000001", Prefab: "foundation", Grade: "stone"},
			{ID: "E000002", Prefab: "foundation", Grade: "twig"},
			{ID: "E000003", Prefab: "door.hinged.wood"},
		},
	}
	got := summarize(s)
	if got.Entities != 3 || got.ByPrefab["foundation"] != 2 || got.ByGrade["stone"] != 1 || len(got.ByGrade) != 2 {
		t.Fatalf("summary=%+v", got)
	}
}

func TestRunQuery_ReadsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.WriteAudit(world.AuditEntry{Tick: 3, Actor: "A1", Action: "BUILD", Prefab: "foundation"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 4, Actor: "A1", Action: "SYM_COPY", Prefab: "foundation"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 4, Actor: "A1", Action: "SYM_SKIP", Prefab: "foundation", Reason: "insufficient resources for symmetric copy"})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var buf bytes.Buffer
	if err := runQuery(db, &buf, "actions", 0); err != nil {
		t.Fatalf("actions: %v", err)
	}
	if !strings.Contains(buf.String(), `{"action":"SYM_COPY","count":1}`) {
		t.Fatalf("actions output=%s", buf.String())
	}

	buf.Reset()
	if err := runQuery(db, &buf, "skips", 5); err != nil {
		t.Fatalf("skips: %v", err)
	}
	if !strings.Contains(buf.String(), "insufficient resources") {
		t.Fatalf("skips output=%s", buf.String())
	}

	if err := runQuery(db, &buf, "nope", 5); err == nil {
		t.Fatalf("expected unknown query error")
	}
}

func TestAdminRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/v1/snapshot" {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = rw.Write([]byte(`{"ok":true,"tick":7}`))
	}))
	defer srv.Close()

	body, status, err := adminRequest(srv.Client(), http.MethodPost, srv.URL+"/", "/admin/v1/snapshot")
	if err != nil || status != http.StatusOK || string(body) != `{"ok":true,"tick":7}` {
		t.Fatalf("status=%d body=%s err=%v", status, body, err)
	}
}
