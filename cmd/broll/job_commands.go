package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"broll/internal/api"
	"broll/internal/jobs"
)

const defaultWatchInterval = 2 * time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Upload a video to the daemon for b-roll processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			id, err := client.Submit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted %s as task %s\n", args[0], id)
			if !wait {
				return nil
			}
			status, err := watchStatus(cmd, client, id, interval)
			if err != nil {
				return err
			}
			return terminalError(status)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the task finishes")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "Polling interval when waiting")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var asJSON bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the state of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()
			id := args[0]
			if watch && !asJSON {
				status, err := watchStatus(cmd, client, id, interval)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatusDetail(status, shouldColorize(cmd.OutOrStdout())))
				return nil
			}
			status, err := client.Status(cmd.Context(), id)
			if err != nil && !errors.Is(err, errTaskNotFound) {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			if errors.Is(err, errTaskNotFound) {
				return fmt.Errorf("task %s not found", id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatusDetail(status, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the task reaches a terminal state")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status payload")
	cmd.Flags().DurationVar(&interval, "interval", defaultWatchInterval, "Polling interval for --watch")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a queued or processing task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.client().Cancel(cmd.Context(), args[0])
			if errors.Is(err, errTaskNotFound) {
				return fmt.Errorf("task %s not found", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for %s (status: %s)\n", resp.TaskID, resp.Status)
			return nil
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <task-id>",
		Short: "Download the finished video for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.client().Download(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default current directory)")
	return cmd
}

// watchStatus polls until the task is completed or failed, printing a line
// whenever status, stage, or progress changes.
func watchStatus(cmd *cobra.Command, client *apiClient, id string, interval time.Duration) (api.StatusResponse, error) {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last string
	for {
		status, err := client.Status(cmd.Context(), id)
		if errors.Is(err, errTaskNotFound) {
			return status, fmt.Errorf("task %s not found", id)
		}
		if err != nil {
			return status, err
		}
		line := renderStatusLine(status, colorize)
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}
		if isTerminal(status.Status) {
			return status, nil
		}
		select {
		case <-cmd.Context().Done():
			return status, cmd.Context().Err()
		case <-ticker.C:
		}
	}
}

func isTerminal(status string) bool {
	return status == string(jobs.StatusCompleted) || status == string(jobs.StatusError)
}

func terminalError(status api.StatusResponse) error {
	if status.Status == string(jobs.StatusError) {
		if status.Error != "" {
			return fmt.Errorf("task %s failed: %s", status.TaskID, status.Error)
		}
		return fmt.Errorf("task %s failed", status.TaskID)
	}
	return nil
}
