package wasi

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"

	"github.com/govm-net/vmhost/types"
)

// Memory is the linear memory of the calling guest. Every access is bounds
// checked; out of range accesses fail with WasmVm/MemoryBounds.
type Memory interface {
	// Read copies n bytes starting at ptr.
	Read(ptr, n uint32) ([]byte, error)
	// Write copies b to ptr.
	Write(ptr uint32, b []byte) error
	// Size is the current memory size in bytes.
	Size() uint32
}

func outOfBounds(ptr, n uint32, size uint32) error {
	return types.Errorf(types.ErrWasmVm, types.CodeMemoryBounds,
		"access [%d, %d+%d) outside linear memory of %d bytes", ptr, ptr, n, size)
}

type guestMemory struct {
	mem api.Memory
}

// NewMemory wraps a wazero memory. A nil memory behaves as empty.
func NewMemory(mem api.Memory) Memory {
	return &guestMemory{mem: mem}
}

func (g *guestMemory) Size() uint32 {
	if g.mem == nil {
		return 0
	}
	return g.mem.Size()
}

func (g *guestMemory) Read(ptr, n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if g.mem == nil {
		return nil, outOfBounds(ptr, n, 0)
	}
	b, ok := g.mem.Read(ptr, n)
	if !ok {
		return nil, outOfBounds(ptr, n, g.mem.Size())
	}
	return append([]byte{}, b...), nil
}

func (g *guestMemory) Write(ptr uint32, b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if g.mem == nil || !g.mem.Write(ptr, b) {
		return outOfBounds(ptr, uint32(len(b)), g.Size())
	}
	return nil
}

// SliceMemory is a Memory backed by a byte slice. Native contracts and tests
// use it where no guest instance exists.
type SliceMemory []byte

func (s SliceMemory) Size() uint32 { return uint32(len(s)) }

func (s SliceMemory) Read(ptr, n uint32) ([]byte, error) {
	end := uint64(ptr) + uint64(n)
	if end > uint64(len(s)) {
		return nil, outOfBounds(ptr, n, s.Size())
	}
	return append([]byte{}, s[ptr:end]...), nil
}

func (s SliceMemory) Write(ptr uint32, b []byte) error {
	end := uint64(ptr) + uint64(len(b))
	if end > uint64(len(s)) {
		return outOfBounds(ptr, uint32(len(b)), s.Size())
	}
	copy(s[ptr:end], b)
	return nil
}

// ReadVals reads n consecutive little-endian 64-bit values.
func ReadVals(m Memory, ptr, n uint32) ([]types.Val, error) {
	size := uint64(n) * 8
	if size > uint64(^uint32(0)) {
		return nil, outOfBounds(ptr, ^uint32(0), m.Size())
	}
	b, err := m.Read(ptr, uint32(size))
	if err != nil {
		return nil, err
	}
	vals := make([]types.Val, n)
	for i := range vals {
		vals[i] = types.Val(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return vals, nil
}

// WriteVals writes vals as consecutive little-endian 64-bit values.
func WriteVals(m Memory, ptr uint32, vals []types.Val) error {
	b := make([]byte, 0, len(vals)*8)
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint64(b, uint64(v))
	}
	return m.Write(ptr, b)
}

// Slices of (ptr, len) pairs are packed as two little-endian u32s per entry.

// ReadSlices reads n (ptr, len) pairs.
func ReadSlices(m Memory, ptr, n uint32) ([][2]uint32, error) {
	size := uint64(n) * 8
	if size > uint64(^uint32(0)) {
		return nil, outOfBounds(ptr, ^uint32(0), m.Size())
	}
	b, err := m.Read(ptr, uint32(size))
	if err != nil {
		return nil, err
	}
	out := make([][2]uint32, n)
	for i := range out {
		out[i][0] = binary.LittleEndian.Uint32(b[i*8:])
		out[i][1] = binary.LittleEndian.Uint32(b[i*8+4:])
	}
	return out, nil
}
