package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clopapp/clop/internal/automation"
)

type optimiseFlags struct {
	recursive           bool
	aggressive          bool
	removeAudio         bool
	playbackSpeedFactor float64
	includeTypes        []string
	excludeTypes        []string
}

func newOptimiseCmd(root *rootFlags) *cobra.Command {
	flags := &optimiseFlags{}

	cmd := &cobra.Command{
		Use:   "optimise PATH [PATH...]",
		Short: "Optimise one or more files, directories, or type aliases (images/videos/pdfs) once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(resolvedConfigDir(root))
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(cmd.Context(), shutdownGrace)
				defer cancel()
				_ = eng.shutdown(ctx)
			}()

			dispatcher := &automation.Dispatcher{Settings: eng.settings, Coordinator: eng.coordinator, Resolver: eng.resolver}

			payload := automation.OptimisePayload{
				Paths:        args,
				Recursive:    flags.recursive,
				Aggressive:   flags.aggressive,
				RemoveAudio:  flags.removeAudio,
				IncludeTypes: flags.includeTypes,
				ExcludeTypes: flags.excludeTypes,
			}
			if cmd.Flags().Changed("playback-speed-factor") {
				payload.PlaybackSpeedFactor = &flags.playbackSpeedFactor
			}
			rawPayload, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("encoding optimise payload: %w", err)
			}

			resp := dispatcher.Handle(cmd.Context(), automation.Envelope{Intent: "optimise", Payload: rawPayload})
			return printOptimiseResponse(cmd, resolvedJSON(root), resp)
		},
	}

	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "r", false, "expand directory arguments recursively")
	cmd.Flags().BoolVar(&flags.aggressive, "aggressive", false, "allow more lossy settings for a larger size reduction")
	cmd.Flags().BoolVar(&flags.removeAudio, "remove-audio", false, "drop the audio stream from optimised video")
	cmd.Flags().Float64Var(&flags.playbackSpeedFactor, "playback-speed-factor", 1, "speed up or slow down video playback (0.5-2.0)")
	cmd.Flags().StringSliceVar(&flags.includeTypes, "include-types", nil, "restrict to these item types (image, video, pdf)")
	cmd.Flags().StringSliceVar(&flags.excludeTypes, "exclude-types", nil, "skip these item types (image, video, pdf)")

	return cmd
}

func printOptimiseResponse(cmd *cobra.Command, asJSON bool, resp automation.Response) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		outcomes, _ := resp.Data.([]automation.OptimiseOutcome)
		for _, o := range outcomes {
			line := fmt.Sprintf("%-10s %s", o.Status, o.SourcePath)
			if o.OutputPath != "" {
				line += " -> " + o.OutputPath
			}
			if o.Message != "" {
				line += " (" + o.Message + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "overall: %s\n", resp.Status)
	}
	if resp.Status == "failed" {
		return fmt.Errorf("optimisation failed for all inputs")
	}
	return nil
}
