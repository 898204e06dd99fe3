package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gantry/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var force bool

	cmd := &cobra.Command{
		Use:   "submit <email>",
		Short: "Schedule pipeline work for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			if email == "" {
				return fmt.Errorf("email is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(email, mode, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s starting at %s\n", email, resp.Stage)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Run mode: pipeline (default) or single_stage")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Restart from the first stage even if the account is in a terminal state")
	return cmd
}

func newSubmitAllCommand(ctx *commandContext) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "submit-all",
		Short: "Schedule pipeline work for every runnable account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SubmitAll(mode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %d account(s), skipped %d\n", resp.Submitted, resp.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Run mode: pipeline (default) or single_stage")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <email>",
		Short: "Cancel queued or running work for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Cancel(email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled work for %s\n", email)
				return nil
			})
		},
	}
}
