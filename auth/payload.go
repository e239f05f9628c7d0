package auth

import (
	"crypto/sha256"

	"github.com/near/borsh-go"

	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/types"
)

// Symbols naming the two kinds of authorized function in their value form.
const (
	symContractFn     = types.Symbol("contract_fn")
	symCreateContract = types.Symbol("create_contract")
)

// FunctionVal renders an authorized function as
// Vec[kind, contract address, function, Vec args].
func FunctionVal(f types.AuthorizedFunction) types.ScVal {
	kind := symContractFn
	if f.Kind == types.AuthCreateContract {
		kind = symCreateContract
	}
	return types.Vec{kind, f.Contract, f.Function, types.Vec(append([]types.ScVal{}, f.Args...))}
}

// InvocationVal renders an invocation tree as Vec[function, Vec children].
func InvocationVal(inv types.AuthorizedInvocation) types.ScVal {
	subs := make(types.Vec, 0, len(inv.SubInvocations))
	for _, s := range inv.SubInvocations {
		subs = append(subs, InvocationVal(s))
	}
	return types.Vec{FunctionVal(inv.Function), subs}
}

// EntryVal renders an authorization entry as Vec[credentials, invocation].
// Source account credentials carry no fields.
func EntryVal(e types.AuthorizationEntry) types.ScVal {
	creds := types.Vec{types.Symbol("source_account")}
	if c := e.Credentials; c.Kind == types.CredentialsAddress {
		sig := c.Signature
		if sig == nil {
			sig = types.Void{}
		}
		creds = types.Vec{types.Symbol("address"), c.Address, types.I64(c.Nonce), types.U32(c.SignatureExpirationLedger), sig}
	}
	return types.Vec{creds, InvocationVal(e.RootInvocation)}
}

type payloadPreimage struct {
	NetworkID  [32]byte
	Nonce      int64
	Expiration uint32
	Invocation []byte
}

// Payload is the hash an address signs to authorize root:
// sha256(borsh(network id, nonce, expiration ledger, canonical root)).
func Payload(networkID types.Hash, nonce int64, expiration uint32, root types.AuthorizedInvocation) (types.Hash, error) {
	inv, err := codec.Serialize(InvocationVal(root))
	if err != nil {
		return types.Hash{}, err
	}
	pre, err := borsh.Serialize(payloadPreimage{
		NetworkID:  networkID,
		Nonce:      nonce,
		Expiration: expiration,
		Invocation: inv,
	})
	if err != nil {
		return types.Hash{}, types.WrapError(types.ErrAuth, types.CodeInternal, err, "payload preimage")
	}
	return sha256.Sum256(pre), nil
}

func malformed(format string, args ...any) error {
	return types.Errorf(types.ErrValue, types.CodeInvalidInput, format, args...)
}

// ParseFunction is the inverse of FunctionVal.
func ParseFunction(v types.ScVal) (types.AuthorizedFunction, error) {
	var f types.AuthorizedFunction
	vec, ok := v.(types.Vec)
	if !ok || len(vec) != 4 {
		return f, malformed("authorized function must be a 4 element vec")
	}
	switch vec[0] {
	case symContractFn:
		f.Kind = types.AuthContractFn
	case symCreateContract:
		f.Kind = types.AuthCreateContract
	default:
		return f, malformed("unknown authorized function kind %v", vec[0])
	}
	addr, ok1 := vec[1].(types.Address)
	fn, ok2 := vec[2].(types.Symbol)
	args, ok3 := vec[3].(types.Vec)
	if !ok1 || !ok2 || !ok3 {
		return f, malformed("authorized function is Vec[kind, address, symbol, vec]")
	}
	f.Contract = addr
	f.Function = fn
	f.Args = append([]types.ScVal{}, args...)
	return f, nil
}

// ParseInvocation is the inverse of InvocationVal.
func ParseInvocation(v types.ScVal) (types.AuthorizedInvocation, error) {
	var inv types.AuthorizedInvocation
	vec, ok := v.(types.Vec)
	if !ok || len(vec) != 2 {
		return inv, malformed("authorized invocation must be a 2 element vec")
	}
	fn, err := ParseFunction(vec[0])
	if err != nil {
		return inv, err
	}
	subs, ok := vec[1].(types.Vec)
	if !ok {
		return inv, malformed("sub invocations must be a vec")
	}
	inv.Function = fn
	for _, s := range subs {
		child, err := ParseInvocation(s)
		if err != nil {
			return inv, err
		}
		inv.SubInvocations = append(inv.SubInvocations, child)
	}
	return inv, nil
}
