package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/docboxhq/docbox/internal/progress"
	"github.com/docboxhq/docbox/internal/syncsdk"
)

const keepaliveInterval = 30 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <source-id>",
	Short: "Follow a source's sync progress live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID := args[0]
		cmd.SilenceUsage = true

		transport, _ := cmd.Flags().GetString("transport")
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		attempts, _ := cmd.Flags().GetInt("reconnect-attempts")
		baseDelay, _ := cmd.Flags().GetDuration("reconnect-delay")
		tui, _ := cmd.Flags().GetBool("tui")

		sdk, err := newSDK()
		if err != nil {
			return err
		}

		client, err := sdk.Progress(sourceID,
			syncsdk.WithTransport(syncsdk.TransportKind(transport)),
			syncsdk.WithPollInterval(pollInterval),
			syncsdk.WithReconnect(syncsdk.ReconnectConfig{
				MaxAttempts: attempts,
				BaseDelay:   baseDelay,
			}),
		)
		if err != nil {
			return err
		}
		defer client.Disconnect()

		if tui {
			return runWatchTUI(cmd.Context(), client, sourceID)
		}
		return runWatchPlain(cmd, client, sourceID)
	},
}

func init() {
	watchCmd.Flags().SortFlags = false
	watchCmd.Flags().String("transport", string(syncsdk.TransportWebSocket), "stream transport: websocket, sse or poll")
	watchCmd.Flags().Duration("poll-interval", 2*time.Second, "refresh interval for the poll transport")
	watchCmd.Flags().Int("reconnect-attempts", 5, "reconnect attempts before giving up")
	watchCmd.Flags().Duration("reconnect-delay", time.Second, "base delay for reconnect backoff")
	watchCmd.Flags().Bool("tui", false, "render a full-screen progress view")
	rootCmd.AddCommand(watchCmd)
}

func runWatchPlain(cmd *cobra.Command, client *syncsdk.ProgressClient, sourceID string) error {
	out := cmd.OutOrStdout()
	done := make(chan *progress.Snapshot, 1)

	var bar *progressbar.ProgressBar
	var lastPhase progress.Phase

	client.OnSnapshot(func(snap *progress.Snapshot) {
		if snap.Phase != lastPhase {
			lastPhase = snap.Phase
			if bar != nil {
				bar.Finish()
				bar = nil
			}
			fmt.Fprintf(out, "%s %s\n", cyan("▸ "+snap.Phase.String()), snap.PhaseDescription)
		}

		if snap.Phase == progress.PhaseProcessingFiles && snap.FilesFound > 0 {
			if bar == nil {
				bar = progressbar.NewOptions64(snap.FilesFound,
					progressbar.OptionSetDescription("processing"),
					progressbar.OptionSetWriter(out),
					progressbar.OptionShowCount(),
					progressbar.OptionSetPredictTime(true),
				)
			}
			bar.Set64(snap.FilesProcessed)
		}

		if snap.Phase.Terminal() {
			select {
			case done <- snap:
			default:
			}
		}
	})

	client.OnConnectionState(func(s syncsdk.ConnState) {
		fmt.Fprintf(out, "%s\n", cyan("connection: "+string(s)))
	})

	client.OnError(func(err *syncsdk.StreamError) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", red("error:"), err.Error())
	})

	if err := client.Connect(cmd.Context()); err != nil {
		return err
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-keepalive.C:
			client.SendKeepalive()
		case snap := <-done:
			if bar != nil {
				bar.Finish()
			}
			printSummary(cmd, snap)
			if snap.Phase == progress.PhaseFailed {
				return fmt.Errorf("sync failed: %s", snap.PhaseDescription)
			}
			return nil
		}
	}
}

func printSummary(cmd *cobra.Command, snap *progress.Snapshot) {
	out := cmd.OutOrStdout()

	header := green("✔ sync completed")
	if snap.Phase == progress.PhaseFailed {
		header = red("✘ sync failed")
	}

	fmt.Fprintf(out, "\n%s in %s\n", header, (time.Duration(snap.ElapsedSeconds) * time.Second).String())
	fmt.Fprintf(out, "  directories  %s\n", humanize.Comma(snap.DirectoriesProcessed))
	fmt.Fprintf(out, "  files        %s\n", humanize.Comma(snap.FilesProcessed))
	fmt.Fprintf(out, "  data         %s\n", humanize.IBytes(uint64(snap.BytesProcessed)))
	if snap.Warnings > 0 {
		fmt.Fprintf(out, "  warnings     %s\n", humanize.Comma(snap.Warnings))
	}
	if snap.Errors > 0 {
		fmt.Fprintf(out, "  errors       %s\n", humanize.Comma(snap.Errors))
	}
}
