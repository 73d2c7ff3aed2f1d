package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
)

// stateDigest hashes the persisted world state. Frames and pending tasks
// are session state and are left out.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, nowTick)
	writeU64(h, &tmp, w.nextActorNum.Load())
	writeU64(h, &tmp, w.nextEntityNum.Load())
	w.digestActors(h, &tmp)
	w.digestEntities(h, &tmp)

	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestActors(h hash.Hash, tmp *[8]byte) {
	ids := make([]string, 0, len(w.actors))
	for id := range w.actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := w.actors[id]
		writeString(h, a.ID)
		writeString(h, a.Name)
		for _, st := range a.inventoryStacks() {
			writeString(h, st.Item)
			writeU64(h, tmp, uint64(st.Count))
		}
	}
}

func (w *World) digestEntities(h hash.Hash, tmp *[8]byte) {
	for _, id := range w.sortedEntityIDs() {
		e := w.entities[id]
		writeString(h, e.ID)
		writeString(h, e.Prefab)
		writeString(h, e.OwnerID)
		writeString(h, string(e.Grade))
		writeU64(h, tmp, e.Skin)
		writeF64(h, tmp, e.Health)
		for _, v := range vecToWire(e.Pose.Position) {
			writeF64(h, tmp, v)
		}
		for _, v := range quatToWire(e.Pose.Rotation) {
			writeF64(h, tmp, v)
		}
	}
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	_, _ = h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}

func writeString(h hash.Hash, s string) {
	_, _ = h.Write([]byte(s))
	_, _ = h.Write([]byte{0})
}
