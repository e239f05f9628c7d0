// Package abi reads and writes the metadata sections a contract module
// carries: the host interface version it was built for, free-form metadata,
// and the schema of its functions, user types and events.
package abi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Custom section names.
const (
	SectionEnvMeta = "contractenvmetav0"
	SectionMeta    = "contractmetav0"
	SectionSpec    = "contractspecv0"
)

// MetaAllowReentry is the metadata key a contract sets to "true" to accept
// calls while it is already on the call stack.
const MetaAllowReentry = "allow_reentry"

// EnvMeta is the host interface version a module was built against.
type EnvMeta struct {
	Protocol   uint32 `json:"protocol"`
	PreRelease uint32 `json:"pre_release,omitempty"`
}

// ABI is the decoded metadata of a contract module.
type ABI struct {
	EnvMeta    *EnvMeta          `json:"env_meta,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	Functions  []Function        `json:"functions,omitempty"`
	Structs    []Struct          `json:"structs,omitempty"`
	Unions     []Union           `json:"unions,omitempty"`
	Enums      []Enum            `json:"enums,omitempty"`
	ErrorEnums []Enum            `json:"error_enums,omitempty"`
	Events     []Event           `json:"events,omitempty"`
}

// Function is an exported contract function.
type Function struct {
	Name   string      `json:"name"`
	Doc    string      `json:"doc,omitempty"`
	Inputs []Parameter `json:"inputs,omitempty"`
	Output string      `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Parameter is a named, typed function input, struct field or event topic.
type Parameter struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Struct is a user type carried as a map keyed by field name.
type Struct struct {
	Name   string      `json:"name"`
	Fields []Parameter `json:"fields"`
}

// Union is a user type carried as a vec: the case name followed by the
// payload values of that case.
type Union struct {
	Name  string      `json:"name"`
	Cases []UnionCase `json:"cases"`
}

// UnionCase is one variant of a Union.
type UnionCase struct {
	Name    string   `json:"name"`
	Payload []string `json:"payload,omitempty"`
}

// Enum is an integer enumeration. Error enums list the contract error codes a
// contract may fail with.
type Enum struct {
	Name  string     `json:"name"`
	Cases []EnumCase `json:"cases"`
}

// EnumCase is one named discriminant.
type EnumCase struct {
	Name  string `json:"name"`
	Value uint32 `json:"value"`
}

// DataFormat describes how an event's data parameters are packed.
type DataFormat string

const (
	DataSingleValue DataFormat = "single_value"
	DataVec         DataFormat = "vec"
	DataMap         DataFormat = "map"
)

// Event describes an event a contract emits.
type Event struct {
	Name         string      `json:"name"`
	PrefixTopics []string    `json:"prefix_topics,omitempty"`
	Topics       []Parameter `json:"topics,omitempty"`
	Data         []Parameter `json:"data,omitempty"`
	DataFormat   DataFormat  `json:"data_format,omitempty"`
}

// Function returns the named function entry.
func (a *ABI) Function(name string) (*Function, bool) {
	for i := range a.Functions {
		if a.Functions[i].Name == name {
			return &a.Functions[i], true
		}
	}
	return nil, false
}

// AllowsReentry reports whether the module opted into reentrant calls.
func (a *ABI) AllowsReentry() bool {
	return strings.EqualFold(a.Meta[MetaAllowReentry], "true")
}

// JSON renders the ABI for off-chain tooling.
func (a *ABI) JSON() ([]byte, error) {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal abi: %w", err)
	}
	return b, nil
}

func (a *ABI) userType(name string) (any, bool) {
	for i := range a.Structs {
		if a.Structs[i].Name == name {
			return &a.Structs[i], true
		}
	}
	for i := range a.Unions {
		if a.Unions[i].Name == name {
			return &a.Unions[i], true
		}
	}
	for i := range a.Enums {
		if a.Enums[i].Name == name {
			return &a.Enums[i], true
		}
	}
	for i := range a.ErrorEnums {
		if a.ErrorEnums[i].Name == name {
			return &errorEnum{a.ErrorEnums[i]}, true
		}
	}
	return nil, false
}

type errorEnum struct{ Enum }
