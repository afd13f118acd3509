package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <source-id>",
	Short: "Print the current sync status of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		asJSON, _ := cmd.Flags().GetBool("json")

		sdk, err := newSDK()
		if err != nil {
			return err
		}

		snap, err := sdk.Status.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if snap == nil {
			if asJSON {
				fmt.Fprintln(out, "null")
				return nil
			}
			fmt.Fprintf(out, "%s no sync job for source %s\n", cyan("·"), args[0])
			return nil
		}

		if asJSON {
			pretty, err := jsonMarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\n", pretty)
			return nil
		}

		phase := green(snap.Phase.String())
		if !snap.IsActive {
			phase = cyan(snap.Phase.String())
			if snap.Errors > 0 {
				phase = red(snap.Phase.String())
			}
		}

		fmt.Fprintf(out, "source        %s\n", snap.SourceID)
		fmt.Fprintf(out, "phase         %s\n", phase)
		if snap.PhaseDescription != "" {
			fmt.Fprintf(out, "description   %s\n", snap.PhaseDescription)
		}
		fmt.Fprintf(out, "elapsed       %s\n", (time.Duration(snap.ElapsedSeconds) * time.Second).String())
		fmt.Fprintf(out, "directories   %s / %s\n", humanize.Comma(snap.DirectoriesProcessed), humanize.Comma(snap.DirectoriesFound))
		fmt.Fprintf(out, "files         %s / %s (%.1f%%)\n", humanize.Comma(snap.FilesProcessed), humanize.Comma(snap.FilesFound), snap.FilesProgressPercent)
		fmt.Fprintf(out, "data          %s\n", humanize.IBytes(uint64(snap.BytesProcessed)))
		if snap.EstimatedSecondsRemaining != nil {
			fmt.Fprintf(out, "remaining     ~%ds\n", *snap.EstimatedSecondsRemaining)
		}
		if snap.Warnings > 0 || snap.Errors > 0 {
			fmt.Fprintf(out, "issues        %d errors, %d warnings\n", snap.Errors, snap.Warnings)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the raw snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
