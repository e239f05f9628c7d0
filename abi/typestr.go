package abi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/govm-net/vmhost/types"
)

// Kind classifies a parsed type string.
type Kind uint8

const (
	KindVal Kind = iota
	KindPrimitive
	KindBytesN
	KindVec
	KindMap
	KindOption
	KindUser
)

var primitives = map[string]types.ScValType{
	"bool":                types.ScvBool,
	"void":                types.ScvVoid,
	"error":               types.ScvError,
	"u32":                 types.ScvU32,
	"i32":                 types.ScvI32,
	"u64":                 types.ScvU64,
	"i64":                 types.ScvI64,
	"timepoint":           types.ScvTimepoint,
	"duration":            types.ScvDuration,
	"u128":                types.ScvU128,
	"i128":                types.ScvI128,
	"u256":                types.ScvU256,
	"i256":                types.ScvI256,
	"bytes":               types.ScvBytes,
	"string":              types.ScvString,
	"symbol":              types.ScvSymbol,
	"address":             types.ScvAddress,
	"muxed_address":       types.ScvMuxedAddress,
	"contract_executable": types.ScvContractExecutable,
}

// Type is a parsed type string such as "u32", "vec<address>",
// "map<symbol,i128>", "option<Point>" or "bytesN<32>".
type Type struct {
	Kind  Kind
	Prim  types.ScValType
	N     int
	Elem  *Type // vec, option
	Key   *Type // map
	Value *Type // map
	Name  string
}

func (t *Type) String() string {
	switch t.Kind {
	case KindVal:
		return "val"
	case KindPrimitive:
		for name, p := range primitives {
			if p == t.Prim {
				return name
			}
		}
	case KindBytesN:
		return fmt.Sprintf("bytesN<%d>", t.N)
	case KindVec:
		return "vec<" + t.Elem.String() + ">"
	case KindMap:
		return "map<" + t.Key.String() + "," + t.Value.String() + ">"
	case KindOption:
		return "option<" + t.Elem.String() + ">"
	}
	return t.Name
}

// ParseType parses a type string.
func ParseType(s string) (*Type, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("type %q: unexpected %q", s, p.src[p.pos:])
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("type %q: expected %q at %d", p.src, c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) args(n int) ([]*Type, error) {
	if err := p.expect('<'); err != nil {
		return nil, err
	}
	out := make([]*Type, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := p.expect(','); err != nil {
				return nil, err
			}
		}
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, p.expect('>')
}

func (p *typeParser) parse() (*Type, error) {
	name := p.ident()
	if name == "" {
		return nil, fmt.Errorf("type %q: expected a name at %d", p.src, p.pos)
	}
	if prim, ok := primitives[name]; ok {
		return &Type{Kind: KindPrimitive, Prim: prim}, nil
	}
	switch name {
	case "val":
		return &Type{Kind: KindVal}, nil
	case "bytesN":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(p.ident())
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("type %q: bad bytesN length", p.src)
		}
		return &Type{Kind: KindBytesN, N: n}, p.expect('>')
	case "vec", "option":
		a, err := p.args(1)
		if err != nil {
			return nil, err
		}
		kind := KindVec
		if name == "option" {
			kind = KindOption
		}
		return &Type{Kind: kind, Elem: a[0]}, nil
	case "map":
		a, err := p.args(2)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindMap, Key: a[0], Value: a[1]}, nil
	}
	if strings.ToLower(name[:1]) == name[:1] {
		return nil, fmt.Errorf("type %q: unknown type %q", p.src, name)
	}
	return &Type{Kind: KindUser, Name: name}, nil
}

func mismatch(format string, args ...any) error {
	return types.Errorf(types.ErrContext, types.CodeTypeMismatch, format, args...)
}

// CheckValue reports whether v is a value of the type string typ. User types
// are resolved against the ABI. A mismatch fails with Context/TypeMismatch.
func (a *ABI) CheckValue(typ string, v types.ScVal) error {
	t, err := ParseType(typ)
	if err != nil {
		return types.WrapError(types.ErrWasmVm, types.CodeInvalidModule, err, "bad type in contract spec")
	}
	return a.check(t, v, 0)
}

const maxTypeDepth = 32

func (a *ABI) check(t *Type, v types.ScVal, depth int) error {
	if depth > maxTypeDepth {
		return mismatch("type nesting too deep")
	}
	switch t.Kind {
	case KindVal:
		return nil
	case KindPrimitive:
		if v.Type() != t.Prim {
			return mismatch("expected %s, got %s", t, v.Type())
		}
		return nil
	case KindBytesN:
		b, ok := v.(types.Bytes)
		if !ok || len(b) != t.N {
			return mismatch("expected %s", t)
		}
		return nil
	case KindOption:
		if _, ok := v.(types.Void); ok {
			return nil
		}
		return a.check(t.Elem, v, depth+1)
	case KindVec:
		vec, ok := v.(types.Vec)
		if !ok {
			return mismatch("expected %s, got %s", t, v.Type())
		}
		for _, e := range vec {
			if err := a.check(t.Elem, e, depth+1); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		m, ok := v.(types.Map)
		if !ok {
			return mismatch("expected %s, got %s", t, v.Type())
		}
		for _, e := range m {
			if err := a.check(t.Key, e.Key, depth+1); err != nil {
				return err
			}
			if err := a.check(t.Value, e.Val, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return a.checkUser(t.Name, v, depth)
}

func (a *ABI) checkUser(name string, v types.ScVal, depth int) error {
	def, ok := a.userType(name)
	if !ok {
		return types.Errorf(types.ErrWasmVm, types.CodeInvalidModule, "undefined type %s in contract spec", name)
	}
	switch d := def.(type) {
	case *Struct:
		m, ok := v.(types.Map)
		if !ok || len(m) != len(d.Fields) {
			return mismatch("expected struct %s", name)
		}
		for _, f := range d.Fields {
			fv, ok := lookup(m, f.Name)
			if !ok {
				return mismatch("struct %s: missing field %s", name, f.Name)
			}
			if err := a.checkString(f.Type, fv, depth+1); err != nil {
				return err
			}
		}
		return nil
	case *Union:
		vec, ok := v.(types.Vec)
		if !ok || len(vec) == 0 {
			return mismatch("expected union %s", name)
		}
		tag, ok := vec[0].(types.Symbol)
		if !ok {
			return mismatch("union %s: case must be a symbol", name)
		}
		for _, c := range d.Cases {
			if c.Name != string(tag) {
				continue
			}
			if len(vec)-1 != len(c.Payload) {
				return mismatch("union %s::%s: expected %d values", name, c.Name, len(c.Payload))
			}
			for i, pt := range c.Payload {
				if err := a.checkString(pt, vec[i+1], depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		return mismatch("union %s: unknown case %s", name, tag)
	case *Enum:
		u, ok := v.(types.U32)
		if !ok || !hasCase(d.Cases, uint32(u)) {
			return mismatch("expected enum %s", name)
		}
		return nil
	case *errorEnum:
		e, ok := v.(types.Error)
		if !ok || e.Category != types.ErrContract || !hasCase(d.Cases, uint32(e.Code)) {
			return mismatch("expected error enum %s", name)
		}
		return nil
	}
	return mismatch("unsupported type %s", name)
}

func (a *ABI) checkString(typ string, v types.ScVal, depth int) error {
	t, err := ParseType(typ)
	if err != nil {
		return types.WrapError(types.ErrWasmVm, types.CodeInvalidModule, err, "bad type in contract spec")
	}
	return a.check(t, v, depth)
}

func lookup(m types.Map, key string) (types.ScVal, bool) {
	for _, e := range m {
		if s, ok := e.Key.(types.Symbol); ok && string(s) == key {
			return e.Val, true
		}
	}
	return nil, false
}

func hasCase(cases []EnumCase, v uint32) bool {
	for _, c := range cases {
		if c.Value == v {
			return true
		}
	}
	return false
}
