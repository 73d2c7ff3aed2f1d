package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, os.Stdout, q, *limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runQuery prints one JSON object per row for the named report.
func runQuery(db *sql.DB, w io.Writer, q string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	enc := json.NewEncoder(w)
	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,world_id,actors,entities FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				Path     string `json:"path"`
				WorldID  string `json:"world_id"`
				Actors   int    `json:"actors"`
				Entities int    `json:"entities"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.WorldID, &r.Actors, &r.Entities); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "actions":
		// Audit totals per action: how much each placement fanned out.
		rows, err := db.Query(`SELECT action, COUNT(*) FROM audits GROUP BY action ORDER BY action`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Action string `json:"action"`
				Count  int64  `json:"count"`
			}
			if err := rows.Scan(&r.Action, &r.Count); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "skips":
		rows, err := db.Query(`SELECT tick,actor,prefab,reason FROM audits WHERE action='SYM_SKIP' ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick   int64  `json:"tick"`
				Actor  string `json:"actor"`
				Prefab string `json:"prefab"`
				Reason string `json:"reason"`
			}
			var prefab, reason sql.NullString
			if err := rows.Scan(&r.Tick, &r.Actor, &prefab, &reason); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			r.Prefab, r.Reason = prefab.String, reason.String
			_ = enc.Encode(r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			_ = enc.Encode(r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query %q (snapshots, actions, skips, catalogs)", q)
}
