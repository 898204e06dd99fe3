package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gantry/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and account status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				runningKind := statusError
				runningMsg := "stopped"
				if resp.Running {
					runningKind = statusOK
					runningMsg = fmt.Sprintf("pid %d", resp.PID)
				}
				fmt.Fprintln(stdout, renderStatusLine("Running", runningKind, runningMsg, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, resp.DatabasePath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, resp.LockPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Workers", statusInfo, strconv.Itoa(resp.Workers), colorize))
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Browser Sessions", colorize) {
					fmt.Fprintln(stdout, line)
				}
				poolKind := statusOK
				if resp.PoolInUse >= resp.PoolCapacity {
					poolKind = statusWarn
				}
				fmt.Fprintln(stdout, renderStatusLine("Capacity", statusInfo, strconv.Itoa(resp.PoolCapacity), colorize))
				fmt.Fprintln(stdout, renderStatusLine("In use", poolKind, strconv.Itoa(resp.PoolInUse), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Idle", statusInfo, strconv.Itoa(resp.PoolIdle), colorize))
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Work", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout, renderStatusLine("Queued", statusInfo, strconv.Itoa(resp.QueueDepth), colorize))
				fmt.Fprintln(stdout, renderStatusLine("In flight", statusInfo, strconv.Itoa(len(resp.InFlight)), colorize))
				if len(resp.InFlight) > 0 {
					rows := make([][]string, 0, len(resp.InFlight))
					for _, item := range resp.InFlight {
						rows = append(rows, []string{
							item.Email,
							item.Stage,
							item.Mode,
							item.EnqueuedAt.Format("15:04:05"),
						})
					}
					table := renderTable([]string{"Email", "Stage", "Mode", "Enqueued"}, rows)
					fmt.Fprintln(stdout, table)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Accounts", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildAccountStatusRows(resp.AccountStats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No accounts stored")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, 1)
				fmt.Fprintln(stdout, table)
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the gantry daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Stop request sent")
				}
				return nil
			})
		},
	}
}
