package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"gantry/internal/ipc"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var since uint64
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show pipeline progress events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				cursor := since

				resp, err := client.Events(cursor, limit, false)
				if err != nil {
					return err
				}
				printEvents(stdout, resp.Events)
				cursor = resp.Next

				if !follow {
					return nil
				}

				for {
					if err := cmd.Context().Err(); err != nil {
						return err
					}
					resp, err := client.Events(cursor, limit, true)
					if err != nil {
						return err
					}
					printEvents(stdout, resp.Events)
					cursor = resp.Next
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new events")
	cmd.Flags().Uint64Var(&since, "since", 0, "Start after this event sequence number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum events per poll")
	return cmd
}

func printEvents(out io.Writer, events []ipc.EventRecord) {
	for _, event := range events {
		parts := []string{
			event.Timestamp.Format("15:04:05"),
			fmt.Sprintf("%-18s", event.Type),
			event.Email,
		}
		if event.Stage != "" {
			parts = append(parts, event.Stage)
		}
		if event.Attempt > 0 {
			parts = append(parts, fmt.Sprintf("attempt=%d", event.Attempt))
		}
		if event.Status != "" {
			parts = append(parts, "status="+event.Status)
		}
		if event.Message != "" {
			parts = append(parts, event.Message)
		}
		fmt.Fprintln(out, strings.Join(parts, "  "))
	}
}
