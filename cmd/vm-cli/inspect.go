package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/govm-net/vmhost/abi"
	"github.com/govm-net/vmhost/wasi"
)

var bindings string

var inspectCmd = &cobra.Command{
	Use:   "inspect <contract.wasm>",
	Short: "Print the interface of a contract module",
	Long: `Print the env meta, meta and spec sections of a contract module as JSON,
or a typed Go client with --bindings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read wasm file: %w", err)
		}
		ctx := cmd.Context()
		engine, err := wasi.NewEngine(ctx, wasi.DefaultConfig(), nil)
		if err != nil {
			return err
		}
		defer func(ctx context.Context) { _ = engine.Close(ctx) }(ctx)

		m, err := engine.Compile(ctx, code)
		if err != nil {
			return fmt.Errorf("invalid module: %w", err)
		}
		var out []byte
		if bindings != "" {
			src, err := abi.NewBindingGenerator(m.ABI, bindings).Generate()
			if err != nil {
				return err
			}
			out = []byte(src)
		} else if out, err = m.ABI.JSON(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&bindings, "bindings", "", "generate a Go client in the named package")
}
