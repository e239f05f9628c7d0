package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/govm-net/vmhost/api"
	"github.com/govm-net/vmhost/types"
	"github.com/govm-net/vmhost/vm"
)

var (
	deployer string
	salt     string
	ctorArgs []string
)

var deployCmd = &cobra.Command{
	Use:   "deploy <wasm-hash>",
	Short: "Deploy a contract from uploaded code",
	Long: `Deploy a contract from uploaded code and run its constructor.
The deployer is the source account and authorizes the creation.
Example: vm-cli deploy 3f5a... --deployer G... --salt 01 --arg u32:5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := types.HashFromString(args[0])
		if err != nil {
			return err
		}
		from, err := types.DecodeStrkey(deployer)
		if err != nil {
			return fmt.Errorf("invalid deployer: %w", err)
		}
		s, err := parseSalt(salt)
		if err != nil {
			return err
		}
		vals, err := parseArgs(ctorArgs)
		if err != nil {
			return err
		}
		exec := types.ContractExecutable{Kind: types.ExecutableWasm, Hash: hash}
		return withEngine(cmd, func(ctx context.Context, e *vm.Engine) error {
			addr, res, err := e.Deploy(ctx, api.DeployRequest{
				Deployer:   from,
				Executable: exec,
				Salt:       s,
				Args:       vals,
				Source:     from,
				Auth:       []types.AuthorizationEntry{createAuth(from, exec, s)},
			})
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}
			if err != nil {
				return fmt.Errorf("failed to deploy contract: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Contract deployed: %s\n", addr)
			return nil
		})
	},
}

// createAuth is the source account authorization of a contract creation.
func createAuth(deployer types.Address, exec types.ContractExecutable, salt types.Hash) types.AuthorizationEntry {
	return types.AuthorizationEntry{
		Credentials: types.Credentials{Kind: types.CredentialsSourceAccount},
		RootInvocation: types.AuthorizedInvocation{Function: types.AuthorizedFunction{
			Kind:     types.AuthCreateContract,
			Contract: deployer,
			Function: "create_contract",
			Args:     []types.ScVal{exec, types.Bytes(salt[:])},
		}},
	}
}

func init() {
	deployCmd.Flags().StringVarP(&deployer, "deployer", "d", "", "deployer account strkey (required)")
	deployCmd.Flags().StringVarP(&salt, "salt", "s", "", "hex salt, zero padded to 32 bytes")
	deployCmd.Flags().StringArrayVarP(&ctorArgs, "arg", "a", nil, "constructor argument as type:value, repeatable")
	_ = deployCmd.MarkFlagRequired("deployer")
}
