package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// stateDigest hashes everything that determines future updates: slot
// occupancy, every cell's engine state and every environment.
func (w *World) stateDigest(nowUpdate uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowUpdate)
	digestWriteU64(h, &tmp, w.nextOrgID)
	for _, t := range w.resTags {
		digestWriteU64(h, &tmp, uint64(t))
	}
	for _, s := range w.slots {
		h.Write([]byte{boolByte(s.occupied)})
		if !s.occupied {
			continue
		}
		digestWriteU64(h, &tmp, s.orgID)
		digestWriteU64(h, &tmp, s.birthUpdate)
		digestWriteF64(h, &tmp, s.deme.Pool)
		w.digestDeme(h, &tmp, s)
		w.digestEnv(h, &tmp, s)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) digestDeme(h hashWriter, tmp *[8]byte, s *slot) {
	for id := 0; id < s.deme.NumCells(); id++ {
		c := s.deme.GetCell(id)
		h.Write([]byte{boolByte(c.Active), byte(c.Facing), boolByte(c.ReproTagLocked)})
		if !c.Active {
			continue
		}
		digestWriteU64(h, tmp, uint64(c.ReproTag))
		digestWriteF64(h, tmp, c.LocalResources)
		digestWriteU64(h, tmp, uint64(c.Unit.NumContexts()))
		for _, on := range c.Sensors {
			h.Write([]byte{boolByte(on)})
		}
	}
}

func (w *World) digestEnv(h hashWriter, tmp *[8]byte, s *slot) {
	digestWriteF64(h, tmp, s.env.LevelScale)
	for i := range s.env.Resources {
		r := &s.env.Resources[i]
		digestWriteF64(h, tmp, r.Amount)
		h.Write([]byte{boolByte(r.Available)})
		digestWriteU64(h, tmp, r.TimeInState)
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
