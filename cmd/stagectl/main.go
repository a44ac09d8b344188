// Package main is stagectl, an offline tool for checking and compiling stage layouts.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/stage-forge/pkg/extract"
	"github.com/jwebster45206/stage-forge/pkg/layout"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stagectl",
		Short: "Validate, inspect and compile stage layouts",
		Long: `stagectl runs the layout validator and grid compiler locally, without an LLM.
Input files may be plain JSON or a model reply containing a JSON object.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newReachCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// readObject reads path ("-" for stdin) and extracts the JSON object in it.
func readObject(cmd *cobra.Command, path string) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	obj, err := extract.Object(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obj, nil
}

func readLayout(cmd *cobra.Command, path string) (*layout.Layout, error) {
	obj, err := readObject(cmd, path)
	if err != nil {
		return nil, err
	}
	l, err := layout.DecodeLayout(obj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// readConstraints accepts either a bare constraints object or a blueprint
// with a "constraints" key.
func readConstraints(cmd *cobra.Command, path string) (*layout.Constraints, error) {
	obj, err := readObject(cmd, path)
	if err != nil {
		return nil, err
	}
	var blueprint struct {
		Constraints json.RawMessage `json:"constraints"`
	}
	if err := json.Unmarshal(obj, &blueprint); err == nil && len(blueprint.Constraints) > 0 {
		obj = blueprint.Constraints
	}
	return layout.ParseConstraints(obj)
}
