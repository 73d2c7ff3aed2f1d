package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is the persisted world state. Session state (connection flags,
// symmetry frames and pending tasks) is carried too so a replay can resume
// mid-session; a server restart discards it.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int            `json:"tick_rate_hz"`
	SnapshotEveryTicks int            `json:"snapshot_every_ticks,omitempty"`
	StarterItems       map[string]int `json:"starter_items,omitempty"`

	Actors   []ActorV1  `json:"actors"`
	Entities []EntityV1 `json:"entities"`

	Tasks []TaskV1 `json:"tasks,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextActor  uint64 `json:"next_actor"`
	NextEntity uint64 `json:"next_entity"`
	NextTask   uint64 `json:"next_task,omitempty"`
}

type ActorV1 struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Permissions []string       `json:"permissions,omitempty"`
	Eye         [3]float64     `json:"eye"`
	Look        [3]float64     `json:"look"`
	Inventory   map[string]int `json:"inventory"`

	Connected bool     `json:"connected,omitempty"`
	Frame     *FrameV1 `json:"frame,omitempty"`
}

type FrameV1 struct {
	Center      [3]float64 `json:"center"`
	Orientation [4]float64 `json:"orientation"`
	HasCenter   bool       `json:"has_center"`
	Group       string     `json:"group"`
	Enabled     bool       `json:"enabled"`
	ViewVisible bool       `json:"view_visible"`
}

// FrameRefV1 is the frame captured by a pending task.
type FrameRefV1 struct {
	Center      [3]float64 `json:"center"`
	Orientation [4]float64 `json:"orientation"`
	Group       string     `json:"group"`
}

// TaskV1 is a pending deferred task. Exactly one of Build and Upgrade is set.
type TaskV1 struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	OwnerID string `json:"owner_id"`
	DueTick uint64 `json:"due_tick"`

	Build   *BuildTaskV1   `json:"build,omitempty"`
	Upgrade *UpgradeTaskV1 `json:"upgrade,omitempty"`
}

type ItemCountV1 struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type BuildTaskV1 struct {
	Prefab string        `json:"prefab"`
	Kind   string        `json:"kind"`
	Skin   uint64        `json:"skin,omitempty"`
	Health float64       `json:"health"`
	Grade  string        `json:"grade,omitempty"`
	Cost   []ItemCountV1 `json:"cost,omitempty"`
	Pos    [3]float64    `json:"pos"`
	Rot    [4]float64    `json:"rot"`
	Frame  FrameRefV1    `json:"frame"`
}

type UpgradeTaskV1 struct {
	BlockID string     `json:"block_id"`
	Grade   string     `json:"grade"`
	Pos     [3]float64 `json:"pos"`
	Rot     [4]float64 `json:"rot"`
	Frame   FrameRefV1 `json:"frame"`
}

type EntityV1 struct {
	ID        string     `json:"id"`
	Prefab    string     `json:"prefab"`
	Kind      string     `json:"kind"`
	OwnerID   string     `json:"owner_id"`
	Skin      uint64     `json:"skin,omitempty"`
	Grade     string     `json:"grade,omitempty"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"max_health"`
	Pos       [3]float64 `json:"pos"`
	// Rot is [x, y, z, w].
	Rot         [4]float64 `json:"rot"`
	CreatedTick uint64     `json:"created_tick"`
}

// Path returns the conventional file name for a snapshot at tick.
func Path(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header is repeated inside the gob payload.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, snap.Header.Version)
	}
	return snap, nil
}

// Latest returns the snapshot in dir with the highest tick, or "" if there
// is none.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.snap.zst"))
	if err != nil {
		return "", err
	}
	var best string
	var bestTick uint64
	for _, p := range matches {
		var tick uint64
		if _, err := fmt.Sscanf(filepath.Base(p), "%d.snap.zst", &tick); err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			best, bestTick = p, tick
		}
	}
	return best, nil
}
