package abi

import (
	"fmt"
	"go/format"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BindingGenerator generates a typed Go client from a contract spec.
type BindingGenerator struct {
	abi    *ABI
	pkg    string
	caser  cases.Caser
	Format bool
}

// NewBindingGenerator creates a generator writing package pkg.
func NewBindingGenerator(a *ABI, pkg string) *BindingGenerator {
	return &BindingGenerator{
		abi:    a,
		pkg:    pkg,
		caser:  cases.Title(language.English),
		Format: true,
	}
}

var goTypes = map[string]string{
	"bool":          "types.Bool",
	"void":          "types.Void",
	"error":         "types.Error",
	"u32":           "types.U32",
	"i32":           "types.I32",
	"u64":           "types.U64",
	"i64":           "types.I64",
	"timepoint":     "types.Timepoint",
	"duration":      "types.Duration",
	"u128":          "types.U128",
	"i128":          "types.I128",
	"u256":          "types.U256",
	"i256":          "types.I256",
	"bytes":         "types.Bytes",
	"string":        "types.String",
	"symbol":        "types.Symbol",
	"address":       "types.Address",
	"muxed_address": "types.MuxedAddress",
}

func goType(typ string) string {
	if t, ok := goTypes[typ]; ok {
		return t
	}
	return "types.ScVal"
}

// goName turns a snake_case contract name into an exported Go identifier.
func (g *BindingGenerator) goName(name string) string {
	var sb strings.Builder
	for _, part := range strings.Split(name, "_") {
		if part == "" {
			continue
		}
		sb.WriteString(g.caser.String(part))
	}
	if sb.Len() == 0 {
		return "X"
	}
	return sb.String()
}

func (g *BindingGenerator) paramName(name string, i int) string {
	n := g.goName(name)
	if n == "X" {
		return fmt.Sprintf("arg%d", i)
	}
	return strings.ToLower(n[:1]) + n[1:]
}

// Generate returns the client source.
func (g *BindingGenerator) Generate() (string, error) {
	var sb strings.Builder
	sb.WriteString("// Code generated from a contract spec. DO NOT EDIT.\n\n")
	fmt.Fprintf(&sb, "package %s\n\n", g.pkg)
	sb.WriteString("import \"github.com/govm-net/vmhost/types\"\n\n")
	sb.WriteString("// Invoker performs a contract call.\n")
	sb.WriteString("type Invoker interface {\n")
	sb.WriteString("\tInvoke(contract types.Address, fn types.Symbol, args []types.ScVal) (types.ScVal, error)\n")
	sb.WriteString("}\n\n")
	sb.WriteString("// Client calls the contract at Address.\n")
	sb.WriteString("type Client struct {\n\tInvoker Invoker\n\tAddress types.Address\n}\n\n")

	for _, fn := range g.abi.Functions {
		if strings.HasPrefix(fn.Name, "__") {
			continue
		}
		sb.WriteString(g.method(fn))
	}

	code := sb.String()
	if !g.Format {
		return code, nil
	}
	formatted, err := format.Source([]byte(code))
	if err != nil {
		return "", fmt.Errorf("failed to format bindings: %w", err)
	}
	return string(formatted), nil
}

func (g *BindingGenerator) method(fn Function) string {
	var sb strings.Builder
	if fn.Doc != "" {
		for _, line := range strings.Split(fn.Doc, "\n") {
			fmt.Fprintf(&sb, "// %s\n", line)
		}
	}
	fmt.Fprintf(&sb, "func (c *Client) %s(", g.goName(fn.Name))
	names := make([]string, len(fn.Inputs))
	for i, in := range fn.Inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		names[i] = g.paramName(in.Name, i)
		fmt.Fprintf(&sb, "%s %s", names[i], goType(in.Type))
	}
	sb.WriteString(") (types.ScVal, error) {\n")
	fmt.Fprintf(&sb, "\treturn c.Invoker.Invoke(c.Address, types.Symbol(%q), []types.ScVal{%s})\n",
		fn.Name, strings.Join(names, ", "))
	sb.WriteString("}\n\n")
	return sb.String()
}
