package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/notes/internal/model"
	"github.com/Makepad-fr/notes/internal/validation"
)

func (a *app) lsCmd() *cobra.Command {
	var group, asJSON bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List notes, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := a.loaded(cmd.Context(), s); err != nil {
				return err
			}
			st := s.State()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st.Notes)
			}

			lines := []string{
				a.theme.Counter(st.Completed(), st.Total()),
				a.theme.Muted.Render(progressBar(st.Completed(), st.Total())),
				"",
			}
			if group {
				lines = append(lines, a.groupLines(st.Notes)...)
			} else {
				lines = append(lines, a.flatLines(st.Notes, 0)...)
			}
			lines = append(lines, "", a.theme.Muted.Render(`Tip: add with `+"`notes add Milk \"2 litres\"`"))
			fmt.Fprintln(cmd.OutOrStdout(), a.theme.Panel(lines...))
			return nil
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "group output by pending/completed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print notes as JSON")
	return cmd
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <description...>",
		Short: "Create a note",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft := model.Draft{Name: args[0], Description: strings.Join(args[1:], " ")}
			if err := validation.Draft(draft); err != nil {
				return &usageError{err: err}
			}
			s, f, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			note, err := s.CreateNote(draft)
			if err != nil {
				if errors.Is(err, validation.ErrValidation) {
					return &usageError{err: err}
				}
				return err
			}
			if err := settle(s, f); err != nil {
				return err
			}
			a.theme.OK(cmd.OutOrStdout(), "added "+note.Name)
			return nil
		},
	}
}

func (a *app) doneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <index>",
		Short: "Toggle completion of the note at a 1-based index (as shown by ls)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, f, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := a.loaded(cmd.Context(), s); err != nil {
				return err
			}
			note, err := a.pick(cmd, s.State().Notes, args[0])
			if err != nil {
				return err
			}
			if err := s.ToggleCompleted(note); err != nil {
				return err
			}
			if err := settle(s, f); err != nil {
				return err
			}
			state := "pending"
			if !note.Completed {
				state = "completed"
			}
			a.theme.OK(cmd.OutOrStdout(), fmt.Sprintf("%s marked %s", note.Name, state))
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <index>",
		Short: "Delete the note at a 1-based index (as shown by ls)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, f, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := a.loaded(cmd.Context(), s); err != nil {
				return err
			}
			note, err := a.pick(cmd, s.State().Notes, args[0])
			if err != nil {
				return err
			}
			if err := s.DeleteNote(note.ID); err != nil {
				return err
			}
			if err := settle(s, f); err != nil {
				return err
			}
			a.theme.OK(cmd.OutOrStdout(), "removed "+note.Name)
			return nil
		},
	}
}

// watchCmd streams the server's change feeds until interrupted.
func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print notes as other clients create and delete them",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := a.token()
			if err != nil {
				return err
			}
			gw, err := a.env.Gateway(a.cfg, token, a.log)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			var mu sync.Mutex
			printf := func(format string, args ...any) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, format, args...)
			}

			created, err := gw.SubscribeCreations(ctx, func(n model.Note) {
				printf("%s %s %s: %s\n", a.theme.Success.Render("+"), a.theme.Muted.Render(n.ID), n.Name, n.Description)
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			defer created.Cancel()
			deleted, err := gw.SubscribeDeletions(ctx, func(id string) {
				printf("%s %s\n", a.theme.Error.Render("-"), a.theme.Muted.Render(id))
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			defer deleted.Cancel()

			printf("%s\n", a.theme.Muted.Render("watching "+a.cfg.ServerURL+" (ctrl+c to stop)"))
			<-ctx.Done()
			return nil
		},
	}
}

func (a *app) pick(cmd *cobra.Command, notes []model.Note, arg string) (model.Note, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return model.Note{}, usagef("not a number: %s", arg)
	}
	if n < 1 || n > len(notes) {
		fmt.Fprintln(cmd.ErrOrStderr(), a.theme.Muted.Render("Hint: run `notes ls` to see valid indexes"))
		return model.Note{}, usagef("index out of range: have %d, got %d", len(notes), n)
	}
	return notes[n-1], nil
}
