package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"symcraft.ai/internal/observability"
	"symcraft.ai/internal/persistence/indexdb"
	persistlog "symcraft.ai/internal/persistence/log"
	"symcraft.ai/internal/persistence/snapshot"
	"symcraft.ai/internal/sim/catalogs"
	"symcraft.ai/internal/sim/tuning"
	"symcraft.ai/internal/sim/world"
)

// serverConfig holds flag values; SYM_* environment variables override them.
type serverConfig struct {
	Addr        string `env:"SYM_ADDR"`
	WorldID     string `env:"SYM_WORLD"`
	ConfigDir   string `env:"SYM_CONFIGS"`
	DataDir     string `env:"SYM_DATA"`
	TuningPath  string `env:"SYM_TUNING"`
	LogLevel    string `env:"SYM_LOG_LEVEL"`
	DisableDB   bool   `env:"SYM_DISABLE_DB"`
	EnableAdmin bool   `env:"SYM_ENABLE_ADMIN_HTTP"`

	SnapshotPath string `env:"SYM_SNAPSHOT"`
	LoadLatest   bool   `env:"SYM_LOAD_LATEST_SNAPSHOT"`
}

func parseConfig(args []string) (serverConfig, error) {
	var cfg serverConfig
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", ":8080", "http listen address")
	fs.StringVar(&cfg.WorldID, "world", "world_1", "world id")
	fs.StringVar(&cfg.ConfigDir, "configs", "./configs", "config directory")
	fs.StringVar(&cfg.DataDir, "data", "./data", "runtime data directory")
	fs.StringVar(&cfg.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.StringVar(&cfg.LogLevel, "log_level", "", "log level (default: tuning log_level)")
	fs.BoolVar(&cfg.DisableDB, "disable_db", false, "disable the sqlite index (tick/audit + catalogs + snapshot metadata)")
	fs.BoolVar(&cfg.EnableAdmin, "admin_http", defaultEnableAdminHTTP(), "serve loopback-only /admin/v1 endpoints")
	fs.StringVar(&cfg.SnapshotPath, "snapshot", "", "path to snapshot to load (optional)")
	fs.BoolVar(&cfg.LoadLatest, "load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(cfg.TuningPath) == "" {
		cfg.TuningPath = filepath.Join(cfg.ConfigDir, "tuning.yaml")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		bootLogger := observability.InitLogger("symcraft-server", "info")
		bootLogger.Fatal().Err(err).Msg("parse config")
	}

	tune, tuneErr := tuning.Load(cfg.TuningPath)
	level := cfg.LogLevel
	if level == "" {
		level = tune.LogLevel
	}
	logger := observability.InitLogger("symcraft-server", level)
	if tuneErr != nil {
		if !os.IsNotExist(tuneErr) {
			logger.Fatal().Err(tuneErr).Msg("load tuning")
		}
		logger.Warn().Str("path", cfg.TuningPath).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalogs")
	}

	worldDir := filepath.Join(cfg.DataDir, "worlds", cfg.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("create world dir")
	}
	snapDir := filepath.Join(worldDir, "snapshots")

	observability.RegisterMetrics()

	wcfg := world.ConfigFromTuning(cfg.WorldID, tune)
	wcfg.TuningDigest = tuningDigest(tune)
	w, err := world.New(wcfg, cats)
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}
	w.SetLogger(logger)
	w.SetReplicationMetrics(observability.Replication{})

	snapshotToLoad := strings.TrimSpace(cfg.SnapshotPath)
	if snapshotToLoad == "" && cfg.LoadLatest {
		if snapshotToLoad, err = snapshot.Latest(snapDir); err != nil {
			logger.Fatal().Err(err).Msg("find latest snapshot")
		}
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatal().Err(err).Msg("read snapshot")
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatal().Err(err).Msg("import snapshot")
		}
		logger.Info().Str("snapshot", filepath.Base(snapshotToLoad)).Uint64("tick", w.CurrentTick()).Msg("resumed from snapshot")
	}

	// Optional read-model index (does not affect sim determinism).
	var idx *indexdb.SQLiteIndex
	if !cfg.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatal().Err(err).Msg("open index")
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cfg.ConfigDir, cats, tune); err != nil {
			logger.Warn().Err(err).Msg("index: upsert catalogs")
		}
	}

	tickLog := persistlog.NewTickLogger(worldDir, persistlog.Options{})
	auditLog := persistlog.NewAuditLogger(worldDir, persistlog.Options{})
	defer tickLog.Close()
	defer auditLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
		w.SetAuditLogger(auditLog)
	}

	ctx, cancel := signalContext()
	defer cancel()

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go writeSnapshots(ctx, snapDir, snapCh, idx, logger)

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("world stopped")
		}
	}()

	mux := buildMux(w, idx, cfg.EnableAdmin, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", cfg.Addr).Str("world", cfg.WorldID).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("listen")
	}
}

func writeSnapshots(ctx context.Context, dir string, ch <-chan snapshot.SnapshotV1, idx *indexdb.SQLiteIndex, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := snapshot.Path(dir, snap.Header.Tick)
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Error().Err(err).Uint64("tick", snap.Header.Tick).Msg("snapshot write")
				continue
			}
			idx.RecordSnapshot(path, snap)
			logger.Debug().Str("path", path).Msg("snapshot written")
		}
	}
}

func tuningDigest(t tuning.Tuning) string {
	b, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
