package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/govm-net/vmhost/api"
	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/types"
)

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// parseArg reads a "type:value" command line argument.
func parseArg(s string) (types.ScVal, error) {
	typ, val, _ := strings.Cut(s, ":")
	bad := func(err error) (types.ScVal, error) {
		return nil, fmt.Errorf("invalid %s argument %q: %w", typ, val, err)
	}
	switch typ {
	case "void":
		return types.Void{}, nil
	case "bool":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return bad(err)
		}
		return types.Bool(b), nil
	case "u32":
		n, err := strconv.ParseUint(val, 0, 32)
		if err != nil {
			return bad(err)
		}
		return types.U32(n), nil
	case "i32":
		n, err := strconv.ParseInt(val, 0, 32)
		if err != nil {
			return bad(err)
		}
		return types.I32(n), nil
	case "u64":
		n, err := strconv.ParseUint(val, 0, 64)
		if err != nil {
			return bad(err)
		}
		return types.U64(n), nil
	case "i64":
		n, err := strconv.ParseInt(val, 0, 64)
		if err != nil {
			return bad(err)
		}
		return types.I64(n), nil
	case "u128":
		n, ok := new(big.Int).SetString(val, 0)
		if !ok || n.Sign() < 0 || n.Cmp(maxU128) > 0 {
			return bad(fmt.Errorf("out of range"))
		}
		lo := new(big.Int).And(n, new(big.Int).SetUint64(^uint64(0)))
		return types.U128{Hi: new(big.Int).Rsh(n, 64).Uint64(), Lo: lo.Uint64()}, nil
	case "u256":
		n, err := uint256.FromDecimal(val)
		if err != nil {
			return bad(err)
		}
		return types.U256(*n), nil
	case "sym":
		return types.Symbol(val), nil
	case "str":
		return types.String(val), nil
	case "bytes":
		b, err := hex.DecodeString(strings.TrimPrefix(val, "0x"))
		if err != nil {
			return bad(err)
		}
		return types.Bytes(b), nil
	case "addr":
		a, err := types.DecodeStrkey(val)
		if err != nil {
			return bad(err)
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown argument type %q", typ)
}

func parseArgs(ss []string) ([]types.ScVal, error) {
	out := make([]types.ScVal, 0, len(ss))
	for _, s := range ss {
		v, err := parseArg(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseSalt reads a hex salt, left padded with zeros.
func parseSalt(s string) (types.Hash, error) {
	var h types.Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) > len(h) {
		return h, fmt.Errorf("invalid salt %q", s)
	}
	copy(h[len(h)-len(b):], b)
	return h, nil
}

// formatVal renders v in the argument syntax where one exists.
func formatVal(v types.ScVal) string {
	switch x := v.(type) {
	case nil:
		return "<none>"
	case types.Void:
		return "void"
	case types.Bool:
		return fmt.Sprintf("bool:%t", bool(x))
	case types.U32:
		return fmt.Sprintf("u32:%d", uint32(x))
	case types.I32:
		return fmt.Sprintf("i32:%d", int32(x))
	case types.U64:
		return fmt.Sprintf("u64:%d", uint64(x))
	case types.I64:
		return fmt.Sprintf("i64:%d", int64(x))
	case types.U128:
		n := new(big.Int).Lsh(new(big.Int).SetUint64(x.Hi), 64)
		return "u128:" + n.Or(n, new(big.Int).SetUint64(x.Lo)).String()
	case types.U256:
		u := uint256.Int(x)
		return "u256:" + u.Dec()
	case types.I256:
		u := uint256.Int(x)
		if u.Sign() < 0 {
			return "i256:-" + new(uint256.Int).Neg(&u).Dec()
		}
		return "i256:" + u.Dec()
	case types.Symbol:
		return "sym:" + string(x)
	case types.String:
		return strconv.Quote(string(x))
	case types.Bytes:
		return "bytes:" + hex.EncodeToString(x)
	case types.Address:
		return "addr:" + x.String()
	case types.Error:
		return "error:" + x.String()
	case types.Vec:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatVal(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case types.Map:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatVal(e.Key) + ": " + formatVal(e.Val)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%s:%v", v.Type(), v)
}

// printResult writes the value, events and budget usage of an invocation.
func printResult(w io.Writer, res *api.Result) {
	p := message.NewPrinter(language.English)
	if res.Err != nil {
		p.Fprintf(w, "Error: %v\n", res.Err)
	} else {
		p.Fprintf(w, "Result: %s\n", formatVal(res.Value))
	}
	for _, ev := range res.Events {
		topics := make([]string, len(ev.Topics))
		for i, t := range ev.Topics {
			topics[i] = formatVal(t)
		}
		p.Fprintf(w, "Event (%s): [%s] %s\n", ev.Kind, strings.Join(topics, ", "), formatVal(ev.Data))
	}
	for _, ev := range res.Diagnostics {
		p.Fprintf(w, "Diagnostic (failed=%t): %s\n", ev.FailedCall, formatVal(ev.Data))
	}
	p.Fprintln(w, "Budget:")
	for c := budget.Counter(0); int(c) < budget.CounterCount; c++ {
		p.Fprintf(w, "  %-18s %d\n", c, res.Budget.Get(c))
	}
}
