package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gantry/internal/ipc"
)

// statusDisplayOrder fixes how account statuses are listed in tables.
var statusDisplayOrder = []string{
	"pending",
	"link_ready",
	"verified",
	"subscribed",
	"ineligible",
	"error",
}

// displayStatus formats a machine status name for table output.
func displayStatus(status string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(status, "_", " "))
}

func buildAccountStatusRows(stats ipc.StatsResponse) [][]string {
	if stats.Total == 0 {
		return nil
	}
	rows := make([][]string, 0, len(statusDisplayOrder)+2)
	for _, status := range statusDisplayOrder {
		count, ok := stats.ByStatus[status]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{displayStatus(status), strconv.Itoa(count)})
	}
	rows = append(rows, []string{"Total", strconv.Itoa(stats.Total)})
	rows = append(rows, []string{"With Browser", strconv.Itoa(stats.WithBrowser)})
	return rows
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show account counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stats()
				if err != nil {
					return err
				}
				rows := buildAccountStatusRows(*resp)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No accounts stored")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, 1)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}
