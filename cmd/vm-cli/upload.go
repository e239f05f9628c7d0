package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/govm-net/vmhost/vm"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <contract.wasm>",
	Short: "Upload contract code to the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read wasm file: %w", err)
		}
		return withEngine(cmd, func(ctx context.Context, e *vm.Engine) error {
			hash, err := e.UploadWasm(ctx, code)
			if err != nil {
				return fmt.Errorf("failed to upload contract: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Code uploaded: %s\n", hash)
			return nil
		})
	},
}
