package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/timmy/scribe/internal/app"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/service"
)

var (
	transcribeSource  string
	transcribeWorkers int
)

func init() {
	transcribeCmd.Flags().StringVarP(&transcribeSource, "source", "s", "cli", "source tag stored on each record")
	transcribeCmd.Flags().IntVarP(&transcribeWorkers, "workers", "w", 0, "parallel transcriptions (default from config)")
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>...",
	Short: "Transcribe local audio files",
	Long: `Transcribe local audio files.

Each file goes through the same pipeline as an upload: it is archived,
normalized, transcribed and, when enabled, polished into a note. The
command waits for every queued file before exiting.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int

		err := withApp(cmd.Context(), transcribeWorkers, func(a *app.App) error {
			var ids []string
			for _, path := range args {
				id, err := ingestFile(cmd, a, path)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed++
					continue
				}
				ids = append(ids, id)
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", id)
			}

			drainCtx, cancel := context.WithTimeout(context.Background(), drainWait)
			defer cancel()
			if err := a.Executor.Shutdown(drainCtx); err != nil {
				return err
			}

			for _, id := range ids {
				rec, err := a.Transcriptions.Get(cmd.Context(), id)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
					failed++
					continue
				}
				if rec.Status != domain.StatusSuccess {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", id, rec.Status, rec.ErrorDetail())
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: success %s\n", id, rec.MarkdownFile)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func ingestFile(cmd *cobra.Command, a *app.App, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	rec, err := a.Transcriptions.Ingest(cmd.Context(), service.Upload{
		Filename: filepath.Base(path),
		Data:     data,
		Source:   transcribeSource,
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}
