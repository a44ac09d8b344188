package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/stage-forge/pkg/layout"
)

var errLayoutInvalid = errors.New("layout is invalid")

func newValidateCmd() *cobra.Command {
	var (
		constraintsPath string
		layoutPath      string
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a layout against constraints",
		Long: `Run every structural and reachability check on a layout. The constraints file may
be a bare constraints object or a blueprint carrying a "constraints" key.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := readConstraints(cmd, constraintsPath)
			if err != nil {
				return err
			}

			var result *layout.ValidationResult
			l, err := readLayout(cmd, layoutPath)
			if err != nil {
				result = layout.InvalidFormat(err)
			} else if result, err = layout.Validate(c, l); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else if result.Valid {
				fmt.Fprintln(out, "Layout is valid")
			} else {
				for _, e := range result.Errors {
					fmt.Fprintf(out, "Layout is invalid: %s\n", e.Error())
				}
			}

			if !result.Valid {
				return errLayoutInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&constraintsPath, "constraints", "c", "", "constraints or blueprint file")
	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "layout file (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full validation result as JSON")
	_ = cmd.MarkFlagRequired("constraints")
	_ = cmd.MarkFlagRequired("layout")
	return cmd
}
