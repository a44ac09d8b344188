package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/stage-forge/pkg/layout"
)

func newReachCmd() *cobra.Command {
	var layoutPath string

	cmd := &cobra.Command{
		Use:   "reach",
		Short: "Report which doors the player start can reach",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := readLayout(cmd, layoutPath)
			if err != nil {
				return err
			}
			if l.Entities.PlayerStart == nil {
				return errors.New("layout has no player_start")
			}
			start := *l.Entities.PlayerStart
			out := cmd.OutOrStdout()

			if len(l.Entities.Doors) == 0 {
				fmt.Fprintln(out, "No doors to reach")
				return nil
			}

			blocked := 0
			for _, d := range l.Entities.Doors {
				status := "reachable"
				if !layout.Reachable(l.GridASCII, start, []layout.Coord{d.Coord()}) {
					status = "unreachable"
					blocked++
				}
				fmt.Fprintf(out, "door %s from %s: %s\n", d.Coord(), start, status)
			}

			// The validator only needs one door reachable.
			doors := make([]layout.Coord, 0, len(l.Entities.Doors))
			for _, d := range l.Entities.Doors {
				doors = append(doors, d.Coord())
			}
			if !layout.Reachable(l.GridASCII, start, doors) {
				return fmt.Errorf("no door is reachable from %s", start)
			}
			if blocked > 0 {
				fmt.Fprintf(out, "%d of %d doors unreachable\n", blocked, len(l.Entities.Doors))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "layout file (- for stdin)")
	_ = cmd.MarkFlagRequired("layout")
	return cmd
}
