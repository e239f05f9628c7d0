// Package api defines the interface between a ledger node and the contract
// host, and the configuration the host runs with. Contracts never see it.
package api

import (
	"context"

	"github.com/govm-net/vmhost/budget"
	"github.com/govm-net/vmhost/events"
	"github.com/govm-net/vmhost/types"
)

// VM executes contracts against a ledger.
type VM interface {
	// UploadWasm verifies contract code and stores it under its hash.
	UploadWasm(ctx context.Context, code []byte) (types.Hash, error)

	// Deploy creates a contract instance and runs its constructor.
	Deploy(ctx context.Context, req DeployRequest) (types.Address, *Result, error)

	// Invoke runs one top-level invocation and commits it on success.
	Invoke(ctx context.Context, req InvokeRequest) (*Result, error)

	// Simulate runs an invocation in recording auth mode without committing.
	Simulate(ctx context.Context, req InvokeRequest) (*Result, error)
}

// InvokeRequest is one top-level contract call.
type InvokeRequest struct {
	Contract types.Address
	Function string
	Args     []types.ScVal
	// Source is the account that submitted the call.
	Source types.Address
	// Auth is the authorization forest that accompanies the call.
	Auth []types.AuthorizationEntry
}

// DeployRequest creates a contract from uploaded code or a native executable.
type DeployRequest struct {
	Deployer   types.Address
	Executable types.ContractExecutable
	Salt       types.Hash
	Args       []types.ScVal
	Source     types.Address
	Auth       []types.AuthorizationEntry
}

// Result is what a top-level invocation produced. It is returned for failed
// invocations too so callers can inspect diagnostics and budget usage.
type Result struct {
	Value       types.ScVal
	Events      []events.Event
	Diagnostics []events.Event
	Budget      budget.Usage
	// RecordedAuth is the authorization forest a simulation observed.
	RecordedAuth []types.AuthorizationEntry
	Err          error
}
