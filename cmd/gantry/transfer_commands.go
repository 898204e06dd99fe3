package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gantry/internal/config"
	"gantry/internal/ipc"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var separator string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import accounts from a credential file",
		Long:  "Import accounts from a text file with one record per line. Pass - to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content []byte
			var err error
			if args[0] == "-" {
				content, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			} else {
				path, pathErr := config.ExpandPath(args[0])
				if pathErr != nil {
					return pathErr
				}
				content, err = os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Import(string(content), separator)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Imported %d account(s)\n", resp.Imported)
				for _, line := range resp.Errors {
					fmt.Fprintf(stdout, "  skipped: %s\n", line)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&separator, "separator", "", "Field separator (auto-detected when empty)")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var status string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export accounts as credential text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Export(status)
				if err != nil {
					return err
				}
				if resp.Count == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No accounts matched")
					return nil
				}
				if strings.TrimSpace(outputPath) == "" {
					fmt.Fprint(cmd.OutOrStdout(), resp.Content)
					return nil
				}
				path, err := config.ExpandPath(outputPath)
				if err != nil {
					return err
				}
				if err := os.WriteFile(path, []byte(resp.Content), 0o600); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d account(s) to %s\n", resp.Count, path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Export only accounts with this status")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}
