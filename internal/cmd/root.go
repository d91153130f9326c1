// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dotandev/wasmvm/internal/config"
	"github.com/dotandev/wasmvm/internal/decode"
	"github.com/dotandev/wasmvm/internal/errors"
	"github.com/dotandev/wasmvm/internal/interp"
	"github.com/dotandev/wasmvm/internal/logger"
	"github.com/dotandev/wasmvm/internal/resolve"
	"github.com/dotandev/wasmvm/internal/wasm"
	"github.com/dotandev/wasmvm/internal/wat"
)

// Version is populated by main from the build's ldflags.
var Version = "dev"

// Global flag variables
var (
	VerboseFlag bool
	ConfigFlag  string
)

// rootCmd is the single entry point: `wasmvm <module-path> [export-name [arg...]]`.
var rootCmd = &cobra.Command{
	Use:   "wasmvm <module> [export] [arg...]",
	Short: "Decode and run exported functions from a WASM v1 binary module",
	Long: `wasmvm decodes a WASM v1 binary module and, when an export name is given,
calls it with the supplied arguments and prints the typed result.

With no export name, it only decodes and resolves the module -- useful for
validating a binary without running anything.

Examples:
  wasmvm add.wasm                 Decode and resolve only
  wasmvm add.wasm add 2 3         Call the "add" export with i32 args 2, 3
  wasmvm fact.wasm fact 5         Call the "fact" export with a single arg`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runModule,
}

func runModule(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if ConfigFlag != "" {
		cfg, err := config.LoadConfig(ConfigFlag)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("load config: log_level: %w", err)
		}
	}
	if VerboseFlag {
		level = slog.LevelDebug
	}
	logger.SetLevel(level)

	modulePath := args[0]
	data, err := os.ReadFile(modulePath)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	mod, err := decode.Decode(data)
	if err != nil {
		printDiagnostic(err)
		return err
	}
	if err := resolve.Module(mod); err != nil {
		printDiagnostic(err)
		return err
	}
	logger.Logger.Debug("module decoded and resolved", "path", modulePath, "exports", len(mod.Exports))

	if len(args) == 1 {
		return nil
	}

	exportName := args[1]
	callArgs := args[2:]

	vm := interp.New(mod)
	result, err := vm.RunExported(exportName, callArgs)
	if err != nil {
		printDiagnostic(err)
		var trap *errors.Trap
		if stderrors.As(err, &trap) {
			fmt.Fprintln(os.Stderr, color.New(color.FgYellow).Sprintf(
				"  at instruction %d in function %d (offset 0x%x)", trap.IP, trap.FuncIndex, trap.Offset))
			fmt.Fprintln(os.Stderr, wat.FormatTrapContext(data, uint64(trap.Offset), 3))
		}
		return err
	}

	if result != nil {
		fmt.Println(formatValue(*result))
	}
	return nil
}

func formatValue(v wasm.Value) string {
	switch v.Type {
	case wasm.I32:
		return fmt.Sprintf("%d", v.I32())
	case wasm.I64:
		return fmt.Sprintf("%d", v.I64())
	case wasm.F32:
		return fmt.Sprintf("%g", v.F32())
	case wasm.F64:
		return fmt.Sprintf("%g", v.F64())
	default:
		return fmt.Sprintf("0x%x", v.Bits)
	}
}

func printDiagnostic(err error) {
	fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("error:"), err)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(
		&VerboseFlag,
		"verbose", "v",
		false,
		"Enable debug-level logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&ConfigFlag,
		"config",
		"",
		"Path to a JSON config file",
	)
}
