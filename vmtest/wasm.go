// Package vmtest builds contract modules and hosts for tests.
//
// The assembler writes the wasm binary format directly so tests can describe
// small guests instruction by instruction without a compiler toolchain.
package vmtest

import (
	"bytes"
	"fmt"

	"github.com/govm-net/vmhost/abi"
	"github.com/govm-net/vmhost/types"
)

// ValType is a wasm value type.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

type funcType struct {
	params, results []ValType
}

func (f funcType) key() string {
	return fmt.Sprintf("%x>%x", f.params, f.results)
}

type importFunc struct {
	module, name string
	typ          funcType
}

type function struct {
	export string
	typ    funcType
	locals []ValType
	body   []byte
}

type dataSegment struct {
	offset uint32
	data   []byte
}

// Module assembles a wasm module. Imports must be declared before functions.
type Module struct {
	imports   []importFunc
	funcs     []function
	memPages  *uint32
	memExport string
	data      []dataSegment
	customs   []abi.Section
}

// NewModule starts an empty module.
func NewModule() *Module {
	return &Module{}
}

// Import declares an imported function and returns its function index.
func (m *Module) Import(module, name string, params, results []ValType) uint32 {
	if len(m.funcs) > 0 {
		panic("vmtest: imports must precede functions")
	}
	m.imports = append(m.imports, importFunc{module, name, funcType{params, results}})
	return uint32(len(m.imports) - 1)
}

// ImportHost declares a host function with its declared arity.
func (m *Module) ImportHost(module, name string) uint32 {
	hf, ok := types.LookupHostFunction(module, name)
	if !ok {
		panic(fmt.Sprintf("vmtest: unknown host function %s.%s", module, name))
	}
	return m.Import(module, name, Vals(hf.Args), Vals(1))
}

// Vals returns n I64 value types.
func Vals(n int) []ValType {
	out := make([]ValType, n)
	for i := range out {
		out[i] = I64
	}
	return out
}

// Func adds a function built from instructions and returns its index. An
// empty export name leaves it unexported. The closing end is appended.
func (m *Module) Func(export string, params, results, locals []ValType, code ...[]byte) uint32 {
	m.funcs = append(m.funcs, function{
		export: export,
		typ:    funcType{params, results},
		locals: locals,
		body:   append(bytes.Join(code, nil), opEnd),
	})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// ContractFunc adds an exported function taking n values and returning one.
func (m *Module) ContractFunc(name string, n int, code ...[]byte) uint32 {
	return m.Func(name, Vals(n), Vals(1), nil, code...)
}

// Memory declares a linear memory of pages pages, exported as name.
func (m *Module) Memory(pages uint32, name string) {
	m.memPages = &pages
	m.memExport = name
}

// Data places b at offset in linear memory.
func (m *Module) Data(offset uint32, b []byte) {
	m.data = append(m.data, dataSegment{offset, b})
}

// Custom appends a custom section.
func (m *Module) Custom(name string, data []byte) {
	m.customs = append(m.customs, abi.Section{Name: name, Data: data})
}

// Contract adds the contract metadata sections. A nil spec omits the spec
// section.
func (m *Module) Contract(env abi.EnvMeta, meta map[string]string, spec *abi.ABI) {
	m.Custom(abi.SectionEnvMeta, abi.EncodeEnvMeta(env))
	if len(meta) > 0 {
		b, err := abi.EncodeMeta(meta)
		if err != nil {
			panic(err)
		}
		m.Custom(abi.SectionMeta, b)
	}
	if spec != nil {
		b, err := abi.EncodeSpec(spec)
		if err != nil {
			panic(err)
		}
		m.Custom(abi.SectionSpec, b)
	}
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	var typesList []funcType
	typeIndex := map[string]uint32{}
	typeOf := func(t funcType) uint32 {
		if i, ok := typeIndex[t.key()]; ok {
			return i
		}
		typeIndex[t.key()] = uint32(len(typesList))
		typesList = append(typesList, t)
		return uint32(len(typesList) - 1)
	}
	importTypes := make([]uint32, len(m.imports))
	for i, imp := range m.imports {
		importTypes[i] = typeOf(imp.typ)
	}
	funcTypes := make([]uint32, len(m.funcs))
	for i, f := range m.funcs {
		funcTypes[i] = typeOf(f.typ)
	}

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	var sec []byte
	sec = uleb(sec, uint64(len(typesList)))
	for _, t := range typesList {
		sec = append(sec, 0x60)
		sec = valTypes(sec, t.params)
		sec = valTypes(sec, t.results)
	}
	out = section(out, 1, sec)

	if len(m.imports) > 0 {
		sec = uleb(nil, uint64(len(m.imports)))
		for i, imp := range m.imports {
			sec = name(sec, imp.module)
			sec = name(sec, imp.name)
			sec = append(sec, 0x00)
			sec = uleb(sec, uint64(importTypes[i]))
		}
		out = section(out, 2, sec)
	}

	sec = uleb(nil, uint64(len(m.funcs)))
	for _, t := range funcTypes {
		sec = uleb(sec, uint64(t))
	}
	out = section(out, 3, sec)

	if m.memPages != nil {
		sec = uleb(nil, 1)
		sec = append(sec, 0x00)
		sec = uleb(sec, uint64(*m.memPages))
		out = section(out, 5, sec)
	}

	var exports [][]byte
	for i, f := range m.funcs {
		if f.export == "" {
			continue
		}
		e := name(nil, f.export)
		e = append(e, 0x00)
		e = uleb(e, uint64(len(m.imports)+i))
		exports = append(exports, e)
	}
	if m.memPages != nil && m.memExport != "" {
		e := name(nil, m.memExport)
		e = append(e, 0x02, 0x00)
		exports = append(exports, e)
	}
	sec = uleb(nil, uint64(len(exports)))
	for _, e := range exports {
		sec = append(sec, e...)
	}
	out = section(out, 7, sec)

	sec = uleb(nil, uint64(len(m.funcs)))
	for _, f := range m.funcs {
		var body []byte
		body = uleb(body, uint64(len(f.locals)))
		for _, l := range f.locals {
			body = uleb(body, 1)
			body = append(body, byte(l))
		}
		body = append(body, f.body...)
		sec = uleb(sec, uint64(len(body)))
		sec = append(sec, body...)
	}
	out = section(out, 10, sec)

	if len(m.data) > 0 {
		sec = uleb(nil, uint64(len(m.data)))
		for _, d := range m.data {
			sec = append(sec, 0x00, opI32Const)
			sec = sleb(sec, int64(int32(d.offset)))
			sec = append(sec, opEnd)
			sec = uleb(sec, uint64(len(d.data)))
			sec = append(sec, d.data...)
		}
		out = section(out, 11, sec)
	}

	for _, c := range m.customs {
		sec = name(nil, c.Name)
		sec = append(sec, c.Data...)
		out = section(out, 0, sec)
	}
	return out
}

func section(dst []byte, id byte, body []byte) []byte {
	dst = append(dst, id)
	dst = uleb(dst, uint64(len(body)))
	return append(dst, body...)
}

func name(dst []byte, s string) []byte {
	dst = uleb(dst, uint64(len(s)))
	return append(dst, s...)
}

func valTypes(dst []byte, ts []ValType) []byte {
	dst = uleb(dst, uint64(len(ts)))
	for _, t := range ts {
		dst = append(dst, byte(t))
	}
	return dst
}

func uleb(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

func sleb(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}
