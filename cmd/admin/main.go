// Command admin inspects world data on disk and talks to a running server's
// loopback admin endpoints.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "symcraft.ai/internal/persistence/log"
	"symcraft.ai/internal/persistence/snapshot"
	"symcraft.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			httpCmd("state", "GET", "/admin/v1/state", os.Args[2:])
			return
		case "snapshot":
			httpCmd("snapshot", "POST", "/admin/v1/snapshot", os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

// auditFilter selects audit entries; zero fields match everything.
type auditFilter struct {
	Actor     string
	Action    string
	SinceTick uint64
	ToTick    uint64
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && !strings.EqualFold(e.Action, f.Action) {
		return false
	}
	if e.Tick < f.SinceTick {
		return false
	}
	if f.ToTick != 0 && e.Tick > f.ToTick {
		return false
	}
	return true
}

func filterAudits(entries []world.AuditEntry, f auditFilter) []world.AuditEntry {
	var out []world.AuditEntry
	for _, e := range entries {
		if f.match(e) {
			out = append(out, e)
		}
	}
	return out
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	var f auditFilter
	fs.StringVar(&f.Actor, "actor", "", "actor id filter")
	fs.StringVar(&f.Action, "action", "", "action filter (BUILD, UPGRADE, SYM_COPY, SYM_SKIP, SYM_UPGRADE)")
	fs.Uint64Var(&f.SinceTick, "since_tick", 0, "first tick (inclusive)")
	fs.Uint64Var(&f.ToTick, "to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	entries, err := persistlog.ReadAudits(filepath.Join(*dataDir, "worlds", *worldID))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range filterAudits(entries, f) {
		_ = enc.Encode(e)
	}
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		p, err := snapshot.Latest(filepath.Join(*dataDir, "worlds", *worldID, "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "find snapshot:", err)
			os.Exit(1)
		}
		path = p
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	summary := summarize(snap)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(summary)
}

type snapshotSummary struct {
	WorldID  string         `json:"world_id"`
	Tick     uint64         `json:"tick"`
	Actors   int            `json:"actors"`
	Entities int            `json:"entities"`
	ByPrefab map[string]int `json:"by_prefab"`
	ByGrade  map[string]int `json:"by_grade"`
}

func summarize(s snapshot.SnapshotV1) snapshotSummary {
	out := snapshotSummary{
		WorldID:  s.Header.WorldID,
		Tick:     s.Header.Tick,
		Actors:   len(s.Actors),
		Entities: len(s.Entities),
		ByPrefab: map[string]int{},
		ByGrade:  map[string]int{},
	}
	for _, e := range s.Entities {
		out.ByPrefab[e.Prefab]++
		if e.Grade != "" {
			out.ByGrade[e.Grade]++
		}
	}
	return out
}
