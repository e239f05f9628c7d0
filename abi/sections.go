package abi

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/types"
)

const envMetaSize = 8

// Entry kinds of the spec section.
const (
	entryFunction  = "function"
	entryStruct    = "struct"
	entryUnion     = "union"
	entryEnum      = "enum"
	entryErrorEnum = "error_enum"
	entryEvent     = "event"
	entryMeta      = "meta"
)

// EncodeEnvMeta renders the env meta section.
func EncodeEnvMeta(m EnvMeta) []byte {
	b := make([]byte, envMetaSize)
	binary.BigEndian.PutUint32(b[:4], m.Protocol)
	binary.BigEndian.PutUint32(b[4:], m.PreRelease)
	return b
}

// DecodeEnvMeta parses the env meta section.
func DecodeEnvMeta(b []byte) (EnvMeta, error) {
	if len(b) != envMetaSize {
		return EnvMeta{}, fmt.Errorf("env meta is %d bytes, want %d", len(b), envMetaSize)
	}
	return EnvMeta{
		Protocol:   binary.BigEndian.Uint32(b[:4]),
		PreRelease: binary.BigEndian.Uint32(b[4:]),
	}, nil
}

func appendEntry(dst []byte, v types.ScVal) ([]byte, error) {
	body, err := codec.Serialize(v)
	if err != nil {
		return nil, err
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)))
	return append(dst, body...), nil
}

func splitEntries(b []byte) ([]types.ScVal, error) {
	var out []types.ScVal
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("truncated entry length")
		}
		n := binary.BigEndian.Uint32(b)
		b = b[4:]
		if uint64(n) > uint64(len(b)) {
			return nil, fmt.Errorf("entry of %d bytes overruns section", n)
		}
		v, err := codec.Deserialize(b[:n])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

// EncodeMeta renders the meta section. Keys are written in sorted order.
func EncodeMeta(meta map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []byte
	var err error
	for _, k := range keys {
		out, err = appendEntry(out, record(entryMeta,
			field("key", types.String(k)),
			field("val", types.String(meta[k]))))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeMeta parses the meta section.
func DecodeMeta(b []byte) (map[string]string, error) {
	entries, err := splitEntries(b)
	if err != nil {
		return nil, fmt.Errorf("meta section: %w", err)
	}
	meta := make(map[string]string, len(entries))
	for _, e := range entries {
		r := reader{}
		m := r.record(e, entryMeta)
		k, v := r.str(m, "key"), r.str(m, "val")
		if r.err != nil {
			return nil, fmt.Errorf("meta section: %w", r.err)
		}
		meta[k] = v
	}
	return meta, nil
}

// EncodeSpec renders the spec section of a.
func EncodeSpec(a *ABI) ([]byte, error) {
	var entries []types.ScVal
	for _, f := range a.Functions {
		entries = append(entries, record(entryFunction,
			field("name", types.String(f.Name)),
			field("doc", types.String(f.Doc)),
			field("inputs", params(f.Inputs)),
			field("output", types.String(f.Output)),
			field("error", types.String(f.Error))))
	}
	for _, s := range a.Structs {
		entries = append(entries, record(entryStruct,
			field("name", types.String(s.Name)),
			field("fields", params(s.Fields))))
	}
	for _, u := range a.Unions {
		cases := make(types.Vec, 0, len(u.Cases))
		for _, c := range u.Cases {
			cases = append(cases, types.Vec{types.String(c.Name), strs(c.Payload)})
		}
		entries = append(entries, record(entryUnion,
			field("name", types.String(u.Name)),
			field("cases", cases)))
	}
	for _, e := range a.Enums {
		entries = append(entries, enumRecord(entryEnum, e))
	}
	for _, e := range a.ErrorEnums {
		entries = append(entries, enumRecord(entryErrorEnum, e))
	}
	for _, ev := range a.Events {
		entries = append(entries, record(entryEvent,
			field("name", types.String(ev.Name)),
			field("prefix", strs(ev.PrefixTopics)),
			field("topics", params(ev.Topics)),
			field("data", params(ev.Data)),
			field("format", types.String(ev.DataFormat))))
	}
	var out []byte
	var err error
	for _, e := range entries {
		if out, err = appendEntry(out, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeSpec parses the spec section into a.
func DecodeSpec(b []byte, a *ABI) error {
	entries, err := splitEntries(b)
	if err != nil {
		return fmt.Errorf("spec section: %w", err)
	}
	for i, e := range entries {
		r := reader{}
		m, ok := e.(types.Map)
		if !ok {
			return fmt.Errorf("spec entry %d is a %s", i, e.Type())
		}
		kind, _ := lookup(m, "kind")
		switch kind {
		case types.Symbol(entryFunction):
			a.Functions = append(a.Functions, Function{
				Name:   r.str(m, "name"),
				Doc:    r.str(m, "doc"),
				Inputs: r.params(m, "inputs"),
				Output: r.str(m, "output"),
				Error:  r.str(m, "error"),
			})
		case types.Symbol(entryStruct):
			a.Structs = append(a.Structs, Struct{Name: r.str(m, "name"), Fields: r.params(m, "fields")})
		case types.Symbol(entryUnion):
			u := Union{Name: r.str(m, "name")}
			for _, c := range r.vec(m, "cases") {
				pair, ok := c.(types.Vec)
				if !ok || len(pair) != 2 {
					r.fail("malformed union case")
					break
				}
				name, _ := pair[0].(types.String)
				u.Cases = append(u.Cases, UnionCase{Name: string(name), Payload: r.strings(pair[1])})
			}
			a.Unions = append(a.Unions, u)
		case types.Symbol(entryEnum):
			a.Enums = append(a.Enums, r.enum(m))
		case types.Symbol(entryErrorEnum):
			a.ErrorEnums = append(a.ErrorEnums, r.enum(m))
		case types.Symbol(entryEvent):
			a.Events = append(a.Events, Event{
				Name:         r.str(m, "name"),
				PrefixTopics: r.strings(r.get(m, "prefix")),
				Topics:       r.params(m, "topics"),
				Data:         r.params(m, "data"),
				DataFormat:   DataFormat(r.str(m, "format")),
			})
		default:
			return fmt.Errorf("spec entry %d has unknown kind %v", i, kind)
		}
		if r.err != nil {
			return fmt.Errorf("spec entry %d: %w", i, r.err)
		}
	}
	return nil
}

func field(name string, v types.ScVal) types.MapEntry {
	return types.MapEntry{Key: types.Symbol(name), Val: v}
}

func record(kind string, fields ...types.MapEntry) types.Map {
	m := append(types.Map{field("kind", types.Symbol(kind))}, fields...)
	codec.SortMap(m)
	return m
}

func params(ps []Parameter) types.Vec {
	out := make(types.Vec, 0, len(ps))
	for _, p := range ps {
		out = append(out, types.Vec{types.String(p.Name), types.String(p.Type)})
	}
	return out
}

func strs(ss []string) types.Vec {
	out := make(types.Vec, 0, len(ss))
	for _, s := range ss {
		out = append(out, types.String(s))
	}
	return out
}

func enumRecord(kind string, e Enum) types.Map {
	cases := make(types.Vec, 0, len(e.Cases))
	for _, c := range e.Cases {
		cases = append(cases, types.Vec{types.String(c.Name), types.U32(c.Value)})
	}
	return record(kind, field("name", types.String(e.Name)), field("cases", cases))
}

// reader decodes record fields and keeps the first error.
type reader struct {
	err error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *reader) record(v types.ScVal, kind string) types.Map {
	m, ok := v.(types.Map)
	if !ok {
		r.fail("expected a %s record", kind)
		return nil
	}
	if k, _ := lookup(m, "kind"); k != types.Symbol(kind) {
		r.fail("expected a %s record, got %v", kind, k)
	}
	return m
}

func (r *reader) get(m types.Map, name string) types.ScVal {
	v, ok := lookup(m, name)
	if !ok {
		r.fail("missing field %s", name)
		return types.Vec{}
	}
	return v
}

func (r *reader) str(m types.Map, name string) string {
	s, ok := r.get(m, name).(types.String)
	if !ok {
		r.fail("field %s is not a string", name)
	}
	return string(s)
}

func (r *reader) vec(m types.Map, name string) types.Vec {
	v, ok := r.get(m, name).(types.Vec)
	if !ok {
		r.fail("field %s is not a vec", name)
	}
	return v
}

func (r *reader) strings(v types.ScVal) []string {
	vec, ok := v.(types.Vec)
	if !ok {
		r.fail("expected a vec of strings")
		return nil
	}
	var out []string
	for _, e := range vec {
		s, ok := e.(types.String)
		if !ok {
			r.fail("expected a string, got %s", e.Type())
			return nil
		}
		out = append(out, string(s))
	}
	return out
}

func (r *reader) params(m types.Map, name string) []Parameter {
	var out []Parameter
	for _, e := range r.vec(m, name) {
		pair, ok := e.(types.Vec)
		if !ok || len(pair) != 2 {
			r.fail("malformed parameter in %s", name)
			return nil
		}
		n, ok1 := pair[0].(types.String)
		t, ok2 := pair[1].(types.String)
		if !ok1 || !ok2 {
			r.fail("malformed parameter in %s", name)
			return nil
		}
		out = append(out, Parameter{Name: string(n), Type: string(t)})
	}
	return out
}

func (r *reader) enum(m types.Map) Enum {
	e := Enum{Name: r.str(m, "name")}
	for _, c := range r.vec(m, "cases") {
		pair, ok := c.(types.Vec)
		if !ok || len(pair) != 2 {
			r.fail("malformed enum case")
			return e
		}
		n, ok1 := pair[0].(types.String)
		v, ok2 := pair[1].(types.U32)
		if !ok1 || !ok2 {
			r.fail("malformed enum case")
			return e
		}
		e.Cases = append(e.Cases, EnumCase{Name: string(n), Value: uint32(v)})
	}
	return e
}
