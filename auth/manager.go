// Package auth matches require-auth calls against the authorization forest a
// transaction carries.
//
// Each tree is tracked separately. The first require-auth an address makes
// must match the root of one of its unconsumed trees; calls made deeper in
// the call stack must match a child of the node an enclosing frame matched.
// Nonces, expirations and signatures are checked lazily the first time a tree
// is used.
package auth

import (
	"context"
	"slices"

	"github.com/hdevalence/ed25519consensus"
	"go.uber.org/zap"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/codec"
	"github.com/govm-net/vmhost/types"
)

// Mode selects enforcement or recording.
type Mode uint8

const (
	Enforcing Mode = iota
	Recording
)

// Env is what the manager needs from the running invocation.
type Env interface {
	Info() types.LedgerInfo
	Budget() *budget.Budget
	// ConsumeNonce records a used nonce; reuse fails with Auth/NonceReplay.
	ConsumeNonce(addr types.Address, nonce int64, liveUntil uint32) error
	// CheckAuth runs the custom account check of a contract address.
	CheckAuth(ctx context.Context, account types.Hash, payload types.Hash, signature types.ScVal, contexts []types.AuthorizedFunction) error
}

type node struct {
	fn       types.AuthorizedFunction
	parent   int
	children []int
}

type tracker struct {
	address       types.Address
	creds         types.Credentials
	root          types.AuthorizedInvocation
	nodes         []node
	consumed      []bool
	authenticated bool
	// invoker trackers are granted by a contract for its own address and
	// live only while the granting frame does.
	invoker      bool
	grantedDepth int
	// matches holds, per call frame, the node that frame matched or -1.
	matches []int
}

func (t *tracker) clone() *tracker {
	c := *t
	c.nodes = make([]node, len(t.nodes))
	for i, n := range t.nodes {
		n.children = slices.Clone(n.children)
		c.nodes[i] = n
	}
	c.consumed = slices.Clone(t.consumed)
	c.matches = slices.Clone(t.matches)
	return &c
}

func (t *tracker) add(parent int, fn types.AuthorizedFunction) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{fn: fn, parent: parent})
	t.consumed = append(t.consumed, false)
	if parent >= 0 {
		t.nodes[parent].children = append(t.nodes[parent].children, idx)
	}
	return idx
}

func (t *tracker) addTree(parent int, inv types.AuthorizedInvocation) {
	idx := t.add(parent, inv.Function)
	for _, s := range inv.SubInvocations {
		t.addTree(idx, s)
	}
}

func (t *tracker) invocation(idx int) types.AuthorizedInvocation {
	inv := types.AuthorizedInvocation{Function: t.nodes[idx].fn}
	for _, c := range t.nodes[idx].children {
		inv.SubInvocations = append(inv.SubInvocations, t.invocation(c))
	}
	return inv
}

// lastMatch is the deepest node matched by frames [0, upTo).
func (t *tracker) lastMatch(upTo int) int {
	for i := min(upTo, len(t.matches)) - 1; i >= 0; i-- {
		if t.matches[i] >= 0 {
			return t.matches[i]
		}
	}
	return -1
}

type frame struct {
	contract types.Hash
	function types.Symbol
	args     []types.ScVal
}

// Manager tracks authorization state. One manager may serve several
// top-level invocations; consumed trees stay consumed.
type Manager struct {
	mode     Mode
	source   types.Address
	trackers []*tracker
	frames   []frame
	env      Env
	logger   *zap.Logger
}

// NewEnforcing creates a manager for the given forest. Source-account entries
// authorize source.
func NewEnforcing(entries []types.AuthorizationEntry, source types.Address, logger *zap.Logger) *Manager {
	m := newManager(Enforcing, source, logger)
	for _, e := range entries {
		t := &tracker{creds: e.Credentials, root: e.RootInvocation}
		t.address = e.Credentials.Address
		if e.Credentials.Kind == types.CredentialsSourceAccount {
			t.address = source
			t.authenticated = true
		}
		t.addTree(-1, e.RootInvocation)
		m.trackers = append(m.trackers, t)
	}
	return m
}

// NewRecording creates a manager that records require-auth calls instead of
// checking them.
func NewRecording(source types.Address, logger *zap.Logger) *Manager {
	return newManager(Recording, source, logger)
}

func newManager(mode Mode, source types.Address, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{mode: mode, source: source, logger: logger}
}

// Mode returns the manager mode.
func (m *Manager) Mode() Mode { return m.mode }

// SetEnv binds the manager to the running invocation.
func (m *Manager) SetEnv(env Env) { m.env = env }

// PushFrame records that contract started executing function with args.
func (m *Manager) PushFrame(contract types.Hash, function types.Symbol, args []types.ScVal) {
	m.frames = append(m.frames, frame{contract: contract, function: function, args: args})
	for _, t := range m.trackers {
		t.matches = append(t.matches, -1)
	}
}

// PopFrame ends the current frame and drops invoker grants it made.
func (m *Manager) PopFrame() {
	depth := len(m.frames)
	if depth == 0 {
		panic("auth: pop without frame")
	}
	m.frames = m.frames[:depth-1]
	kept := m.trackers[:0]
	for _, t := range m.trackers {
		if t.invoker && t.grantedDepth >= depth {
			continue
		}
		if len(t.matches) >= depth {
			t.matches = t.matches[:depth-1]
		}
		kept = append(kept, t)
	}
	m.trackers = kept
}

// Snapshot captures consumption state so a failed frame can be undone.
type Snapshot struct {
	trackers []*tracker
}

// Snapshot returns the current state. Take it before pushing a frame and
// restore it after popping that frame.
func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{trackers: make([]*tracker, len(m.trackers))}
	for i, t := range m.trackers {
		s.trackers[i] = t.clone()
	}
	return s
}

// Restore rolls back to s.
func (m *Manager) Restore(s Snapshot) {
	m.trackers = make([]*tracker, len(s.trackers))
	for i, t := range s.trackers {
		m.trackers[i] = t.clone()
	}
}

func (m *Manager) charge(n int) error {
	if m.env == nil {
		return nil
	}
	return m.env.Budget().Charge(budget.AuthMatch, uint64(n))
}

func invalidAction(format string, args ...any) error {
	return types.Errorf(types.ErrAuth, types.CodeInvalidAction, format, args...)
}

// RequireAuth requires addr to have authorized the current frame's call. When
// args is nil the frame's own arguments are used.
func (m *Manager) RequireAuth(ctx context.Context, addr types.Address, args []types.ScVal) error {
	if len(m.frames) == 0 {
		return invalidAction("require_auth outside a contract call")
	}
	cur := m.frames[len(m.frames)-1]
	if args == nil {
		args = cur.args
	}
	// The direct caller contract is implicitly authorized.
	if len(m.frames) >= 2 && addr.Kind == types.AddressContract && m.frames[len(m.frames)-2].contract == addr.ID {
		return nil
	}
	fn := types.AuthorizedFunction{
		Kind:     types.AuthContractFn,
		Contract: types.ContractAddress(cur.contract),
		Function: cur.function,
		Args:     args,
	}
	return m.require(ctx, addr, fn, len(m.frames)-1, true)
}

// RequireAuthForCreate requires deployer to have authorized a contract
// creation made by the current frame, or at top level when no frame runs.
func (m *Manager) RequireAuthForCreate(ctx context.Context, deployer types.Address, executable types.ContractExecutable, salt types.Hash) error {
	if len(m.frames) > 0 && deployer.Kind == types.AddressContract && m.frames[len(m.frames)-1].contract == deployer.ID {
		return nil
	}
	fn := types.AuthorizedFunction{
		Kind:     types.AuthCreateContract,
		Contract: deployer,
		Function: "create_contract",
		Args:     []types.ScVal{executable, types.Bytes(salt[:])},
	}
	return m.require(ctx, deployer, fn, len(m.frames), false)
}

func sameFunction(a, b types.AuthorizedFunction) bool {
	if a.Kind != b.Kind || a.Contract != b.Contract || a.Function != b.Function || len(a.Args) != len(b.Args) {
		return false
	}
	for i := range a.Args {
		if !codec.Equal(a.Args[i], b.Args[i]) {
			return false
		}
	}
	return true
}

// require consumes one node for addr. The parent is the deepest node matched
// by frames below depth; record marks the match at depth so nested calls can
// match children of it.
func (m *Manager) require(ctx context.Context, addr types.Address, fn types.AuthorizedFunction, depth int, record bool) error {
	if m.mode == Recording {
		return m.record(addr, fn, depth, record)
	}
	for _, t := range m.trackers {
		if t.address != addr {
			continue
		}
		parent := t.lastMatch(depth)
		var candidates []int
		switch {
		case parent >= 0:
			candidates = t.nodes[parent].children
		case t.invoker:
			for i, n := range t.nodes {
				if n.parent < 0 {
					candidates = append(candidates, i)
				}
			}
		default:
			candidates = []int{0}
		}
		if err := m.charge(len(candidates)); err != nil {
			return err
		}
		for _, c := range candidates {
			if t.consumed[c] || !sameFunction(t.nodes[c].fn, fn) {
				continue
			}
			if !t.authenticated {
				if err := m.authenticate(ctx, t); err != nil {
					return err
				}
				t.authenticated = true
			}
			t.consumed[c] = true
			if record && depth < len(t.matches) {
				t.matches[depth] = c
			}
			m.logger.Debug("authorization consumed",
				zap.Stringer("address", addr),
				zap.String("function", string(fn.Function)))
			return nil
		}
	}
	return invalidAction("no authorization of %s matches %s.%s", addr, fn.Contract, fn.Function)
}

func (m *Manager) authenticate(ctx context.Context, t *tracker) error {
	if m.env == nil {
		return types.Errorf(types.ErrAuth, types.CodeInternal, "no invocation bound")
	}
	if t.invoker || t.creds.Kind == types.CredentialsSourceAccount {
		return nil
	}
	info := m.env.Info()
	c := t.creds
	if c.SignatureExpirationLedger < info.Sequence {
		return types.Errorf(types.ErrAuth, types.CodeExpired,
			"signature of %s expired at ledger %d", c.Address, c.SignatureExpirationLedger)
	}
	if err := m.env.ConsumeNonce(c.Address, c.Nonce, c.SignatureExpirationLedger); err != nil {
		return err
	}
	payload, err := Payload(info.NetworkID, c.Nonce, c.SignatureExpirationLedger, t.root)
	if err != nil {
		return err
	}
	switch c.Address.Kind {
	case types.AddressAccount:
		if err := m.env.Budget().Charge(budget.VerifyEd25519, uint64(len(payload))); err != nil {
			return err
		}
		sig, ok := c.Signature.(types.Bytes)
		if !ok || len(sig) != 64 {
			return types.Errorf(types.ErrAuth, types.CodeSignatureInvalid, "account signature must be 64 bytes")
		}
		if !ed25519consensus.Verify(c.Address.ID[:], payload[:], sig) {
			return types.Errorf(types.ErrAuth, types.CodeSignatureInvalid, "bad signature for %s", c.Address)
		}
		return nil
	case types.AddressContract:
		// The account sees every node of the signed tree in pre-order, not
		// only the nodes consumed so far, because one authentication covers
		// the whole tree.
		contexts := make([]types.AuthorizedFunction, len(t.nodes))
		for i, n := range t.nodes {
			contexts[i] = n.fn
		}
		err := m.env.CheckAuth(ctx, c.Address.ID, payload, c.Signature, contexts)
		if err == nil {
			return nil
		}
		if !types.IsRecoverable(err) {
			return err
		}
		return types.WrapError(types.ErrAuth, types.CodeSignatureInvalid, err, "custom account %s rejected the authorization", c.Address)
	}
	return types.Errorf(types.ErrAuth, types.CodeSignatureInvalid, "unknown address kind")
}

// AuthorizeAsCurrentContract lets the current contract authorize calls that
// its callees make on its behalf deeper in the stack.
func (m *Manager) AuthorizeAsCurrentContract(invs []types.AuthorizedInvocation) error {
	if len(m.frames) == 0 {
		return invalidAction("authorize_as_curr_contract outside a contract call")
	}
	depth := len(m.frames)
	t := &tracker{
		address:       types.ContractAddress(m.frames[depth-1].contract),
		authenticated: true,
		invoker:       true,
		grantedDepth:  depth,
		matches:       make([]int, depth),
	}
	for i := range t.matches {
		t.matches[i] = -1
	}
	for _, inv := range invs {
		t.addTree(-1, inv)
	}
	if err := m.charge(len(t.nodes)); err != nil {
		return err
	}
	m.trackers = append(m.trackers, t)
	return nil
}

func (m *Manager) record(addr types.Address, fn types.AuthorizedFunction, depth int, mark bool) error {
	if err := m.charge(1); err != nil {
		return err
	}
	for _, t := range m.trackers {
		if t.address != addr {
			continue
		}
		parent := t.lastMatch(depth)
		if parent < 0 {
			continue
		}
		idx := t.add(parent, fn)
		t.consumed[idx] = true
		if mark && depth < len(t.matches) {
			t.matches[depth] = idx
		}
		return nil
	}
	t := &tracker{address: addr, matches: make([]int, len(m.frames))}
	for i := range t.matches {
		t.matches[i] = -1
	}
	t.creds = types.Credentials{Kind: types.CredentialsAddress, Address: addr}
	if addr == m.source {
		t.creds = types.Credentials{Kind: types.CredentialsSourceAccount}
	}
	idx := t.add(-1, fn)
	t.consumed[idx] = true
	if mark && depth < len(t.matches) {
		t.matches[depth] = idx
	}
	m.trackers = append(m.trackers, t)
	return nil
}

// Recorded returns the forest recorded so far. Nonces and signatures are left
// for the caller to fill in.
func (m *Manager) Recorded() []types.AuthorizationEntry {
	var out []types.AuthorizationEntry
	for _, t := range m.trackers {
		if t.invoker || len(t.nodes) == 0 {
			continue
		}
		out = append(out, types.AuthorizationEntry{Credentials: t.creds, RootInvocation: t.invocation(0)})
	}
	return out
}

// Unconsumed reports how many tree nodes remain unused.
func (m *Manager) Unconsumed() int {
	n := 0
	for _, t := range m.trackers {
		for _, c := range t.consumed {
			if !c {
				n++
			}
		}
	}
	return n
}
