package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/stage-forge/pkg/compiler"
	"github.com/jwebster45206/stage-forge/pkg/layout"
)

func newCompileCmd() *cobra.Command {
	var (
		layoutPath      string
		constraintsPath string
		preamblePath    string
		outputPath      string
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a layout into Stage.lua",
		Long: `Turn a layout grid into engine commands and print them as Lua. With --constraints
the layout is validated first and an invalid layout is refused.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := readLayout(cmd, layoutPath)
			if err != nil {
				return err
			}

			if constraintsPath != "" {
				c, err := readConstraints(cmd, constraintsPath)
				if err != nil {
					return err
				}
				result, err := layout.Validate(c, l)
				if err != nil {
					return err
				}
				if !result.Valid {
					return fmt.Errorf("%w: %s", errLayoutInvalid, result.Errors[0].Error())
				}
			}

			preamble := ""
			if preamblePath != "" {
				data, err := os.ReadFile(preamblePath)
				if err != nil {
					return fmt.Errorf("failed to read preamble: %w", err)
				}
				preamble = string(data)
			}

			script := compiler.Render(compiler.Compile(l, preamble))
			if err := compiler.CheckLua("Stage.lua", script); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			if outputPath == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), script)
				return err
			}
			if err := os.WriteFile(outputPath, []byte(script), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "layout file (- for stdin)")
	cmd.Flags().StringVarP(&constraintsPath, "constraints", "c", "", "validate against this constraints or blueprint file first")
	cmd.Flags().StringVarP(&preamblePath, "preamble", "p", "", "Lua file placed before the generated commands")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the script here instead of stdout")
	_ = cmd.MarkFlagRequired("layout")
	return cmd
}
