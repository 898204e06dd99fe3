package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gantry/internal/ipc"
)

func newAccountsCommand(ctx *commandContext) *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and manage stored accounts",
	}

	accountsCmd.AddCommand(newAccountsListCommand(ctx))
	accountsCmd.AddCommand(newAccountsShowCommand(ctx))
	accountsCmd.AddCommand(newAccountsAddCommand(ctx))
	accountsCmd.AddCommand(newAccountsRemoveCommand(ctx))

	return accountsCmd
}

func newAccountsListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var search string
	var page int
	var pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AccountList(ipc.AccountListRequest{
					Status:   status,
					Search:   search,
					Page:     page,
					PageSize: pageSize,
				})
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Accounts) == 0 {
					fmt.Fprintln(stdout, "No accounts found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Accounts))
				for _, acct := range resp.Accounts {
					rows = append(rows, []string{
						acct.Email,
						displayStatus(acct.Status),
						truncate(acct.Message, 48),
						yesNo(acct.BrowserID != ""),
						acct.UpdatedAt.Format("2006-01-02 15:04"),
					})
				}
				table := renderTable([]string{"Email", "Status", "Message", "Browser", "Updated"}, rows)
				fmt.Fprintln(stdout, table)
				if resp.Total > len(resp.Accounts) {
					fmt.Fprintf(stdout, "Showing %d of %d account(s)\n", len(resp.Accounts), resp.Total)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by account status")
	cmd.Flags().StringVar(&search, "search", "", "Filter by email substring")
	cmd.Flags().IntVar(&page, "page", 0, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Accounts per page")
	return cmd
}

func newAccountsShowCommand(ctx *commandContext) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "show <email>",
		Short: "Show one account in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AccountShow(email)
				if err != nil {
					return err
				}
				acct := resp.Account
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				fmt.Fprintln(stdout, renderStatusLine("Email", statusInfo, acct.Email, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Status", statusKindForAccount(acct.Status), acct.Status, colorize))
				if acct.Message != "" {
					fmt.Fprintln(stdout, renderStatusLine("Message", statusInfo, acct.Message, colorize))
				}
				if acct.RecoveryEmail != "" {
					fmt.Fprintln(stdout, renderStatusLine("Recovery email", statusInfo, acct.RecoveryEmail, colorize))
				}
				if showSecrets {
					fmt.Fprintln(stdout, renderStatusLine("Password", statusInfo, acct.Password, colorize))
					if acct.SecretKey != "" {
						fmt.Fprintln(stdout, renderStatusLine("Secret key", statusInfo, acct.SecretKey, colorize))
					}
				}
				fmt.Fprintln(stdout, renderStatusLine("Browser window", statusInfo, orDash(acct.BrowserID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Created", statusInfo, acct.CreatedAt.Format("2006-01-02 15:04:05"), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Updated", statusInfo, acct.UpdatedAt.Format("2006-01-02 15:04:05"), colorize))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "secrets", false, "Include password and 2FA secret in the output")
	return cmd
}

func newAccountsAddCommand(ctx *commandContext) *cobra.Command {
	var recoveryEmail string
	var secretKey string

	cmd := &cobra.Command{
		Use:   "add <email> <password>",
		Short: "Add or update an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AccountAdd(ipc.AccountAddRequest{
					Email:         strings.TrimSpace(args[0]),
					Password:      args[1],
					RecoveryEmail: recoveryEmail,
					SecretKey:     secretKey,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (status %s)\n", resp.Account.Email, resp.Account.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&recoveryEmail, "recovery-email", "", "Recovery email address")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "2FA secret key")
	return cmd
}

func newAccountsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <email>",
		Short: "Delete an account record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.AccountRemove(email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", email)
				return nil
			})
		},
	}
}

func statusKindForAccount(status string) statusKind {
	switch status {
	case "subscribed":
		return statusOK
	case "error":
		return statusError
	case "ineligible":
		return statusWarn
	default:
		return statusInfo
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
