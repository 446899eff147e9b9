package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Folexy13/scholarhunter-sub001/internal/client"
	"github.com/spf13/cobra"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Manage locally saved essay drafts",
	Long: `Drafts live in the local session store under draft:<name> and survive
restarts. They are never sent to the API.`,
}

var draftSetCmd = &cobra.Command{
	Use:   "set <name> [text]",
	Short: "Save a draft, reading standard input when text is omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		text := ""
		if len(args) == 2 {
			text = args[1]
		} else {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read draft: %w", err)
			}
			text = string(raw)
		}

		debouncer := client.NewDebouncer(a.cfg.DraftDebounce)
		p := client.NewPersister(a.store, debouncer, args[0], "")
		p.Set(text)
		// Stop runs the pending write before the store is closed.
		debouncer.Stop()

		fmt.Fprintf(cmd.OutOrStdout(), "Saved draft %q (%d bytes)\n", args[0], len(text))
		return nil
	}),
}

var draftShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a draft",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		debouncer := client.NewDebouncer(a.cfg.DraftDebounce)
		defer debouncer.Stop()

		p := client.NewPersister(a.store, debouncer, args[0], "")
		fmt.Fprint(cmd.OutOrStdout(), p.Value())
		return nil
	}),
}

var draftClearCmd = &cobra.Command{
	Use:   "clear <name>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		debouncer := client.NewDebouncer(a.cfg.DraftDebounce)
		defer debouncer.Stop()

		if err := client.NewPersister(a.store, debouncer, args[0], "").Clear(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared draft %q\n", args[0])
		return nil
	}),
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved drafts",
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		keys, err := a.store.List(client.DraftPrefix)
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimPrefix(key, client.DraftPrefix))
		}
		return nil
	}),
}

func init() {
	draftCmd.AddCommand(draftSetCmd, draftShowCmd, draftClearCmd, draftListCmd)
}
