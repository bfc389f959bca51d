package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/timmy/scribe/internal/app"
	"github.com/timmy/scribe/internal/store"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print records as JSON")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List transcriptions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), 0, func(a *app.App) error {
			recs, err := a.Transcriptions.List(cmd.Context())
			if err != nil {
				return err
			}
			if listJSON {
				return printJSON(cmd, recs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tLENGTH\tMARKDOWN")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%s\n",
					r.ID, r.Status, r.CreatedAt.Format("2006-01-02 15:04"), r.AudioLengthSec, r.MarkdownFile)
			}
			return w.Flush()
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one transcription record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), 0, func(a *app.App) error {
			rec, err := a.Transcriptions.Get(cmd.Context(), recordID(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete transcription records",
	Long: `Delete transcription records and their engine output.

Generated markdown notes are kept.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), 0, func(a *app.App) error {
			for _, arg := range args {
				id := recordID(arg)
				if err := a.Transcriptions.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		})
	},
}

var polishCmd = &cobra.Command{
	Use:   "polish <id>",
	Short: "Regenerate the markdown note for a transcription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), 0, func(a *app.App) error {
			res, err := a.Transcriptions.GenerateMarkdown(cmd.Context(), recordID(args[0]))
			if err != nil {
				return err
			}
			if res.Empty {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s is empty\n", res.FileName)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", res.FileName)
			return nil
		})
	},
}

// recordID accepts either an id or its record file name.
func recordID(arg string) string {
	return store.IDFromFileName(arg)
}
