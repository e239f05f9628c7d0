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
	source   string
	simulate bool
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <contract> <function> [type:value...]",
	Short: "Invoke a contract function",
	Long: `Invoke a contract function. The call is simulated first and the
authorization it records is attached when the source account can provide all
of it. With --simulate nothing is committed.
Example: vm-cli invoke C... add i32:1 i32:2`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contract, err := types.DecodeStrkey(args[0])
		if err != nil {
			return fmt.Errorf("invalid contract address: %w", err)
		}
		vals, err := parseArgs(args[2:])
		if err != nil {
			return err
		}
		req := api.InvokeRequest{Contract: contract, Function: args[1], Args: vals}
		if source != "" {
			if req.Source, err = types.DecodeStrkey(source); err != nil {
				return fmt.Errorf("invalid source account: %w", err)
			}
		}
		out := cmd.OutOrStdout()
		return withEngine(cmd, func(ctx context.Context, e *vm.Engine) error {
			res, err := e.Simulate(ctx, req)
			if err != nil || simulate {
				if res != nil {
					printResult(out, res)
				}
				return err
			}
			for _, entry := range res.RecordedAuth {
				if entry.Credentials.Kind != types.CredentialsSourceAccount {
					return fmt.Errorf("call needs a signature from %s", entry.Credentials.Address)
				}
			}
			req.Auth = res.RecordedAuth
			res, err = e.Invoke(ctx, req)
			printResult(out, res)
			return err
		})
	},
}

func init() {
	invokeCmd.Flags().StringVar(&source, "source", "", "source account strkey")
	invokeCmd.Flags().BoolVar(&simulate, "simulate", false, "simulate without committing")
}
