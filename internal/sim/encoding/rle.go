package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a sequence of cell codes into base64(varint pairs).
// The pairs are (code, run_len) repeated.
func EncodeRLE(codes []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(codes); {
		c := codes[i]
		run := 1
		for j := i + 1; j < len(codes) && codes[j] == c; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(c))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	return decode(b64, -1)
}

// DecodeFrame decodes a frame that must hold exactly cells codes.
func DecodeFrame(b64 string, cells int) ([]uint16, error) {
	return decode(b64, cells)
}

func decode(b64 string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	if want >= 0 {
		out = make([]uint16, 0, want)
	}
	for i := 0; i < len(raw); {
		c, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if c > 0xFFFF {
			return nil, fmt.Errorf("cell code too large: %d", c)
		}
		if run == 0 {
			return nil, fmt.Errorf("zero run at %d", i)
		}
		if want >= 0 && uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("frame overflows %d cells", want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(c))
		}
	}
	if want >= 0 && len(out) != want {
		return nil, fmt.Errorf("frame has %d cells, want %d", len(out), want)
	}
	return out, nil
}
