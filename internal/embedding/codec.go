package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Vector blob layout: uint32 little-endian length prefix followed by one
// little-endian IEEE-754 float32 per component. The encoding is stable so
// persist -> load -> similarity round-trips exactly.

// EncodeVector serializes a vector for storage. A nil vector encodes to nil.
func EncodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, 4+4*len(v))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes a vector blob. An empty blob decodes to nil.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("vector blob too short: %d bytes", len(data))
	}
	n := binary.LittleEndian.Uint32(data[0:4])
	body := len(data) - 4
	// Compare in uint64 so a hostile header cannot wrap n*4 around.
	if body%4 != 0 || uint64(n)*4 != uint64(body) {
		return nil, fmt.Errorf("vector blob length mismatch: header says %d floats, body has %d bytes", n, body)
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+4*i:]))
	}
	return v, nil
}
