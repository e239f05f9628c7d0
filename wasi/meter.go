package wasi

import (
	"bytes"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// FuelExport names the mutable i64 global through which an instrumented
// module exposes its remaining instruction allowance.
const FuelExport = "__fuel"

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

const (
	secCustom   = 0
	secType     = 1
	secImport   = 2
	secFunction = 3
	secGlobal   = 6
	secExport   = 7
	secCode     = 10
	secDataCnt  = 12
)

// sectionRank orders the known sections. Data count sits between elements
// and code.
func sectionRank(id byte) int {
	switch id {
	case secDataCnt:
		return 10
	case secCode:
		return 11
	case 11:
		return 12
	}
	return int(id)
}

type wasmReader struct {
	buf []byte
	off int
}

func (r *wasmReader) more() bool { return r.off < len(r.buf) }

func (r *wasmReader) byte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, invalidModule("unexpected end of input at offset %d", r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *wasmReader) uleb() (uint64, error) {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
	}
	return 0, invalidModule("malformed leb128 at offset %d", r.off)
}

// skipLEB skips one signed or unsigned leb128 number.
func (r *wasmReader) skipLEB() error {
	for i := 0; i < 10; i++ {
		b, err := r.byte()
		if err != nil {
			return err
		}
		if b&0x80 == 0 {
			return nil
		}
	}
	return invalidModule("malformed leb128 at offset %d", r.off)
}

func (r *wasmReader) take(n uint64) ([]byte, error) {
	if n > uint64(len(r.buf)-r.off) {
		return nil, invalidModule("unexpected end of input at offset %d", r.off)
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b, nil
}

func (r *wasmReader) name() (string, error) {
	n, err := r.uleb()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	return string(b), err
}

func (r *wasmReader) limits() error {
	flag, err := r.byte()
	if err != nil {
		return err
	}
	if _, err := r.uleb(); err != nil {
		return err
	}
	if flag&1 != 0 {
		_, err = r.uleb()
	}
	return err
}

func putUleb(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

func putSleb(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

type rawSection struct {
	id   byte
	body []byte
}

// instrument rewrites a module so that guest execution draws down an exported
// fuel global. A metering function is appended to the function index space;
// every function entry and every loop header calls it with the number of
// instructions in the straight-line region it guards. The metering function
// traps once fuel goes negative. Appending at the end of each index space
// leaves every existing index valid.
func instrument(code []byte) ([]byte, error) {
	if len(code) < len(wasmHeader) || !bytes.Equal(code[:len(wasmHeader)], wasmHeader) {
		return nil, invalidModule("missing wasm header")
	}
	r := &wasmReader{buf: code, off: len(wasmHeader)}
	var secs []rawSection
	seen := make(map[byte]bool)
	for r.more() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.uleb()
		if err != nil {
			return nil, err
		}
		body, err := r.take(size)
		if err != nil {
			return nil, err
		}
		if id != secCustom {
			if seen[id] {
				return nil, invalidModule("duplicate section %d", id)
			}
			seen[id] = true
		}
		secs = append(secs, rawSection{id: id, body: body})
	}

	var nTypes, nFuncs, nGlobals, importedFuncs, importedGlobals uint64
	for _, s := range secs {
		var err error
		switch s.id {
		case secType:
			nTypes, err = vecLen(s.body)
		case secImport:
			importedFuncs, importedGlobals, err = countImports(s.body)
		case secFunction:
			nFuncs, err = vecLen(s.body)
		case secGlobal:
			nGlobals, err = vecLen(s.body)
		case secExport:
			err = checkExports(s.body)
		}
		if err != nil {
			return nil, err
		}
	}
	meterType := nTypes
	meterFunc := importedFuncs + nFuncs
	fuel := importedGlobals + nGlobals
	if meterFunc > math.MaxUint32 || fuel > math.MaxUint32 {
		return nil, invalidModule("index space overflow")
	}

	for _, id := range []byte{secType, secFunction, secGlobal, secExport, secCode} {
		secs = ensureSection(secs, id)
	}
	for i := range secs {
		s := &secs[i]
		var err error
		switch s.id {
		case secType:
			s.body, err = appendEntry(s.body, []byte{0x60, 1, byte(api.ValueTypeI64), 0})
		case secFunction:
			s.body, err = appendEntry(s.body, putUleb(nil, meterType))
		case secGlobal:
			s.body, err = appendEntry(s.body, []byte{byte(api.ValueTypeI64), 1, 0x42, 0, 0x0b})
		case secExport:
			e := putUleb(nil, uint64(len(FuelExport)))
			e = append(e, FuelExport...)
			e = append(e, 0x03)
			s.body, err = appendEntry(s.body, putUleb(e, fuel))
		case secCode:
			s.body, err = meterCode(s.body, meterFunc, fuel)
		}
		if err != nil {
			return nil, err
		}
	}

	out := append([]byte{}, wasmHeader...)
	for _, s := range secs {
		out = append(out, s.id)
		out = putUleb(out, uint64(len(s.body)))
		out = append(out, s.body...)
	}
	return out, nil
}

func vecLen(body []byte) (uint64, error) {
	r := &wasmReader{buf: body}
	return r.uleb()
}

// ensureSection inserts an empty section id in order when it is missing.
func ensureSection(secs []rawSection, id byte) []rawSection {
	at := len(secs)
	for i, s := range secs {
		if s.id == id {
			return secs
		}
		if s.id != secCustom && sectionRank(s.id) > sectionRank(id) && at == len(secs) {
			at = i
		}
	}
	secs = append(secs, rawSection{})
	copy(secs[at+1:], secs[at:])
	secs[at] = rawSection{id: id, body: []byte{0}}
	return secs
}

// appendEntry adds one encoded entry to a vector section.
func appendEntry(body, entry []byte) ([]byte, error) {
	r := &wasmReader{buf: body}
	n, err := r.uleb()
	if err != nil {
		return nil, err
	}
	out := putUleb(nil, n+1)
	out = append(out, body[r.off:]...)
	return append(out, entry...), nil
}

func countImports(body []byte) (funcs, globals uint64, err error) {
	r := &wasmReader{buf: body}
	n, err := r.uleb()
	if err != nil {
		return 0, 0, err
	}
	for i := uint64(0); i < n; i++ {
		if _, err := r.name(); err != nil {
			return 0, 0, err
		}
		if _, err := r.name(); err != nil {
			return 0, 0, err
		}
		kind, err := r.byte()
		if err != nil {
			return 0, 0, err
		}
		switch kind {
		case 0x00:
			funcs++
			_, err = r.uleb()
		case 0x01:
			if _, err = r.byte(); err == nil {
				err = r.limits()
			}
		case 0x02:
			err = r.limits()
		case 0x03:
			globals++
			_, err = r.take(2)
		default:
			err = invalidModule("unknown import kind %d", kind)
		}
		if err != nil {
			return 0, 0, err
		}
	}
	return funcs, globals, nil
}

func checkExports(body []byte) error {
	r := &wasmReader{buf: body}
	n, err := r.uleb()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		if name == FuelExport {
			return invalidModule("export name %s is reserved", FuelExport)
		}
		if _, err := r.take(1); err != nil {
			return err
		}
		if _, err := r.uleb(); err != nil {
			return err
		}
	}
	return nil
}

func meterCode(body []byte, meterFunc, fuel uint64) ([]byte, error) {
	r := &wasmReader{buf: body}
	n, err := r.uleb()
	if err != nil {
		return nil, err
	}
	out := putUleb(nil, n+1)
	for i := uint64(0); i < n; i++ {
		size, err := r.uleb()
		if err != nil {
			return nil, err
		}
		fn, err := r.take(size)
		if err != nil {
			return nil, err
		}
		metered, err := meterFunction(fn, meterFunc)
		if err != nil {
			return nil, err
		}
		out = putUleb(out, uint64(len(metered)))
		out = append(out, metered...)
	}
	if r.more() {
		return nil, invalidModule("trailing bytes in code section")
	}

	// (func (param i64)
	//   global.set $fuel (i64.sub (global.get $fuel) (local.get 0))
	//   (if (i64.lt_s (global.get $fuel) (i64.const 0)) (then unreachable)))
	m := []byte{0, 0x23}
	m = putUleb(m, fuel)
	m = append(m, 0x20, 0, 0x7d, 0x24)
	m = putUleb(m, fuel)
	m = append(m, 0x23)
	m = putUleb(m, fuel)
	m = append(m, 0x42, 0, 0x53, 0x04, 0x40, 0x00, 0x0b, 0x0b)
	out = putUleb(out, uint64(len(m)))
	return append(out, m...), nil
}

// meterPoint is an insertion offset and the instruction count it charges.
type meterPoint struct {
	at   int
	cost uint64
}

// meterFunction charges each instruction to the innermost enclosing loop, or
// to the function entry outside any loop.
func meterFunction(fn []byte, meterFunc uint64) ([]byte, error) {
	r := &wasmReader{buf: fn}
	groups, err := r.uleb()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < groups; i++ {
		if _, err := r.uleb(); err != nil {
			return nil, err
		}
		if _, err := r.byte(); err != nil {
			return nil, err
		}
	}

	points := []meterPoint{{at: r.off}}
	open := []int{0}
	var loops []bool
	done := false
	for r.more() {
		if done {
			return nil, invalidModule("instructions after function end")
		}
		points[open[len(open)-1]].cost++
		op, err := r.byte()
		if err != nil {
			return nil, err
		}
		switch op {
		case 0x02, 0x04:
			err = r.blockType()
			loops = append(loops, false)
		case 0x03:
			err = r.blockType()
			loops = append(loops, true)
			points = append(points, meterPoint{at: r.off})
			open = append(open, len(points)-1)
		case 0x0b:
			if len(loops) == 0 {
				done = true
				break
			}
			if loops[len(loops)-1] {
				open = open[:len(open)-1]
			}
			loops = loops[:len(loops)-1]
		default:
			err = r.immediates(op)
		}
		if err != nil {
			return nil, err
		}
	}
	if !done {
		return nil, invalidModule("function body is not terminated")
	}

	out := make([]byte, 0, len(fn)+len(points)*8)
	prev := 0
	for _, p := range points {
		out = append(out, fn[prev:p.at]...)
		out = append(out, 0x42)
		out = putSleb(out, int64(p.cost))
		out = append(out, 0x10)
		out = putUleb(out, meterFunc)
		prev = p.at
	}
	return append(out, fn[prev:]...), nil
}

func (r *wasmReader) blockType() error {
	b, err := r.byte()
	if err != nil {
		return err
	}
	switch b {
	case 0x40, 0x7f, 0x7e, 0x7d, 0x7c, 0x7b, 0x70, 0x6f:
		return nil
	}
	r.off--
	return r.skipLEB()
}

// immediates skips the immediate operands of op. Vector instructions are not
// supported.
func (r *wasmReader) immediates(op byte) error {
	switch {
	case op <= 0x01, op == 0x05, op == 0x0f, op == 0x1a, op == 0x1b, op == 0xd1,
		op >= 0x45 && op <= 0xc4:
		return nil
	case op == 0x0c, op == 0x0d, op == 0x10, op >= 0x20 && op <= 0x26, op == 0xd2:
		_, err := r.uleb()
		return err
	case op == 0x0e:
		n, err := r.uleb()
		if err != nil {
			return err
		}
		for i := uint64(0); i <= n; i++ {
			if _, err := r.uleb(); err != nil {
				return err
			}
		}
		return nil
	case op == 0x11, op >= 0x28 && op <= 0x3e:
		if _, err := r.uleb(); err != nil {
			return err
		}
		_, err := r.uleb()
		return err
	case op == 0x1c:
		n, err := r.uleb()
		if err != nil {
			return err
		}
		_, err = r.take(n)
		return err
	case op == 0x3f, op == 0x40, op == 0xd0:
		_, err := r.byte()
		return err
	case op == 0x41, op == 0x42:
		return r.skipLEB()
	case op == 0x43:
		_, err := r.take(4)
		return err
	case op == 0x44:
		_, err := r.take(8)
		return err
	case op == 0xfc:
		return r.miscImmediates()
	}
	return invalidModule("unsupported opcode 0x%02x at offset %d", op, r.off-1)
}

func (r *wasmReader) miscImmediates() error {
	sub, err := r.uleb()
	if err != nil {
		return err
	}
	var ulebs, raw int
	switch {
	case sub <= 7:
	case sub == 8:
		ulebs, raw = 1, 1
	case sub == 9, sub == 13, sub >= 15 && sub <= 17:
		ulebs = 1
	case sub == 10:
		raw = 2
	case sub == 11:
		raw = 1
	case sub == 12, sub == 14:
		ulebs = 2
	default:
		return invalidModule("unsupported opcode 0xfc %d at offset %d", sub, r.off)
	}
	for i := 0; i < ulebs; i++ {
		if _, err := r.uleb(); err != nil {
			return err
		}
	}
	_, err = r.take(uint64(raw))
	return err
}
