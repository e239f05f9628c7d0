package abi

import (
	"strings"

	"github.com/govm-net/vmhost/types"
)

// Section is a raw custom section of a module.
type Section struct {
	Name string
	Data []byte
}

func invalid(format string, args ...any) error {
	return types.Errorf(types.ErrWasmVm, types.CodeInvalidModule, format, args...)
}

// Parse decodes the contract sections among a module's custom sections.
// Repeated meta and spec sections are concatenated.
func Parse(sections []Section) (*ABI, error) {
	a := &ABI{}
	var meta, spec []byte
	for _, s := range sections {
		switch s.Name {
		case SectionEnvMeta:
			if a.EnvMeta != nil {
				return nil, invalid("duplicate %s section", SectionEnvMeta)
			}
			m, err := DecodeEnvMeta(s.Data)
			if err != nil {
				return nil, invalid("%v", err)
			}
			a.EnvMeta = &m
		case SectionMeta:
			meta = append(meta, s.Data...)
		case SectionSpec:
			spec = append(spec, s.Data...)
		}
	}
	if len(meta) > 0 {
		m, err := DecodeMeta(meta)
		if err != nil {
			return nil, invalid("%v", err)
		}
		a.Meta = m
	}
	if len(spec) > 0 {
		if err := DecodeSpec(spec, a); err != nil {
			return nil, invalid("%v", err)
		}
	}
	return a, nil
}

// HasSpec reports whether the module declared any spec entries.
func (a *ABI) HasSpec() bool {
	return len(a.Functions)+len(a.Structs)+len(a.Unions)+len(a.Enums)+len(a.ErrorEnums)+len(a.Events) > 0
}

// Verify checks a module against the host before it is stored. The module
// must declare an interface version the host supports. Every spec function
// must be exported and every exported function not starting with an
// underscore must appear in the spec, so a module that exports contract
// functions without a spec is rejected. Every type string must parse and
// every user type it names must be defined.
func (a *ABI) Verify(host EnvMeta, exports []string) error {
	if a.EnvMeta == nil {
		return invalid("missing %s section", SectionEnvMeta)
	}
	env := *a.EnvMeta
	if env.Protocol > host.Protocol {
		return types.Errorf(types.ErrWasmVm, types.CodeVersionUnsupported,
			"module targets protocol %d, host supports %d", env.Protocol, host.Protocol)
	}
	if env.PreRelease != 0 && (env.Protocol != host.Protocol || env.PreRelease != host.PreRelease) {
		return types.Errorf(types.ErrWasmVm, types.CodeVersionUnsupported,
			"pre-release module %d.%d does not match host %d.%d", env.Protocol, env.PreRelease, host.Protocol, host.PreRelease)
	}
	exported := make(map[string]bool, len(exports))
	for _, e := range exports {
		exported[e] = true
	}
	declared := make(map[string]bool, len(a.Functions))
	for _, f := range a.Functions {
		if declared[f.Name] {
			return invalid("function %s declared twice", f.Name)
		}
		declared[f.Name] = true
		if !exported[f.Name] {
			return invalid("function %s is declared but not exported", f.Name)
		}
		for _, in := range f.Inputs {
			if err := a.verifyType(in.Type); err != nil {
				return err
			}
		}
		if f.Output != "" {
			if err := a.verifyType(f.Output); err != nil {
				return err
			}
		}
	}
	for _, e := range exports {
		if strings.HasPrefix(e, "_") {
			continue
		}
		if !declared[e] {
			return invalid("export %s is not declared", e)
		}
	}
	for _, s := range a.Structs {
		for _, f := range s.Fields {
			if err := a.verifyType(f.Type); err != nil {
				return err
			}
		}
	}
	for _, u := range a.Unions {
		for _, c := range u.Cases {
			for _, p := range c.Payload {
				if err := a.verifyType(p); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a *ABI) verifyType(s string) error {
	t, err := ParseType(s)
	if err != nil {
		return invalid("%v", err)
	}
	return a.verifyParsed(t)
}

func (a *ABI) verifyParsed(t *Type) error {
	switch t.Kind {
	case KindVec, KindOption:
		return a.verifyParsed(t.Elem)
	case KindMap:
		if err := a.verifyParsed(t.Key); err != nil {
			return err
		}
		return a.verifyParsed(t.Value)
	case KindUser:
		if _, ok := a.userType(t.Name); !ok {
			return invalid("undefined type %s", t.Name)
		}
	}
	return nil
}

// CheckArgs checks call arguments against the declared inputs of fn. It is a
// no-op when the module carries no spec entry for fn.
func (a *ABI) CheckArgs(fn string, args []types.ScVal) error {
	f, ok := a.Function(fn)
	if !ok {
		return nil
	}
	if len(args) != len(f.Inputs) {
		return types.Errorf(types.ErrContext, types.CodeArityMismatch,
			"%s takes %d arguments, got %d", fn, len(f.Inputs), len(args))
	}
	for i, in := range f.Inputs {
		if err := a.CheckValue(in.Type, args[i]); err != nil {
			return types.WrapError(types.ErrContext, types.CodeTypeMismatch, err, "%s argument %s", fn, in.Name)
		}
	}
	return nil
}
