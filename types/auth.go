package types

// AuthorizedFunctionKind distinguishes contract calls from contract creation.
type AuthorizedFunctionKind uint8

const (
	AuthContractFn AuthorizedFunctionKind = iota
	AuthCreateContract
)

// AuthorizedFunction is the (contract, function, args) fingerprint a node
// authorizes. For AuthCreateContract, Contract is the deployer, Function is
// "create_contract" and Args are (executable, salt).
type AuthorizedFunction struct {
	Kind     AuthorizedFunctionKind
	Contract Address
	Function Symbol
	Args     []ScVal
}

// AuthorizedInvocation is one node of an authorization tree.
type AuthorizedInvocation struct {
	Function       AuthorizedFunction
	SubInvocations []AuthorizedInvocation
}

// CredentialsKind selects how an authorization entry is authenticated.
type CredentialsKind uint8

const (
	// CredentialsSourceAccount entries are authenticated by the transaction
	// source account signature and carry no nonce.
	CredentialsSourceAccount CredentialsKind = iota
	// CredentialsAddress entries carry their own nonce and signature.
	CredentialsAddress
)

// Credentials authenticate the root of an authorization tree.
type Credentials struct {
	Kind                      CredentialsKind
	Address                   Address
	Nonce                     int64
	SignatureExpirationLedger uint32
	Signature                 ScVal
}

// AuthorizationEntry is one tree of the authorization forest of a transaction.
type AuthorizationEntry struct {
	Credentials    Credentials
	RootInvocation AuthorizedInvocation
}
