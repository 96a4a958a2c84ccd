package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/notes/internal/auth"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the bearer token sent to the notes server",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return usagef("usage: notes auth <login|logout|status|whoami>")
		},
	}
	cmd.AddCommand(a.loginCmd(), a.logoutCmd(), a.statusCmd(), a.whoamiCmd())
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a token to ~/.notes/credentials.json",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Paste your token: ")
				sc := bufio.NewScanner(cmd.InOrStdin())
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return fmt.Errorf("read token: %w", err)
					}
					return usagef("no token given")
				}
				token = sc.Text()
			}
			if strings.TrimSpace(token) == "" {
				return usagef("empty token")
			}
			if err := a.env.Credentials.Save(token, nil); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			a.theme.OK(cmd.OutOrStdout(), "logged in")
			if ti, _ := a.env.Credentials.Token(); ti != nil && ti.Source == "env" {
				fmt.Fprintln(cmd.OutOrStdout(), a.theme.Muted.Render("note: NOTES_TOKEN is set and takes precedence"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "token to save instead of prompting")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the saved token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, _ := a.env.Credentials.Token()
			if ti != nil && ti.Source == "env" {
				a.theme.OK(cmd.OutOrStdout(), "token is provided by NOTES_TOKEN env var (nothing to delete)")
				return nil
			}
			if err := a.env.Credentials.Delete(); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			a.theme.OK(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the token comes from and when it expires",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ti, err := a.env.Credentials.Token()
			if err != nil {
				return err
			}
			if ti == nil {
				fmt.Fprintln(out, a.theme.Muted.Render("not logged in"))
				fmt.Fprintln(out, "Run: notes auth login")
				return nil
			}
			fmt.Fprintf(out, "source: %s\n", ti.Source)
			if ti.ExpiresAt != nil {
				fmt.Fprintf(out, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "expires: (unknown)")
			}
			fmt.Fprintln(out, "env override: NOTES_TOKEN")
			return nil
		},
	}
}

// whoamiCmd decodes a JWT locally without verifying it; opaque tokens
// print basic info.
func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the claims of the saved token",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ti, err := a.env.Credentials.Token()
			if err != nil {
				return err
			}
			if ti == nil {
				return usagef("not logged in. Run: notes auth login")
			}
			claims, err := auth.Inspect(ti.Token)
			if err != nil {
				fmt.Fprintln(out, "Opaque token (cannot introspect locally).")
				fmt.Fprintln(out, "source:", ti.Source)
				return nil
			}
			fmt.Fprintf(out, "subject: %s\n", claims.Subject)
			if claims.Email != "" {
				fmt.Fprintf(out, "email:   %s\n", claims.Email)
			}
			if claims.Issuer != "" {
				fmt.Fprintf(out, "issuer:  %s\n", claims.Issuer)
			}
			if !claims.ExpiresAt.IsZero() {
				exp := claims.ExpiresAt.UTC().Format(time.RFC3339)
				if claims.Expired(time.Now()) {
					exp += " " + a.theme.Error.Render("(expired)")
				}
				fmt.Fprintf(out, "expires: %s\n", exp)
			}
			return nil
		},
	}
}
