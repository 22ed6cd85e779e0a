package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"assistant-engine/internal/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Chunk and index documents for the owner scope",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var failed int
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out, err := app.Ingest.Ingest(cmd.Context(), usecase.IngestInput{
				OwnerScope: ownerScope,
				Filename:   filepath.Base(path),
				Data:       data,
			})
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d chunks indexed\n", path, out.ChunksIndexed, out.ChunksProduced)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the owner's indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		out, err := app.Ask.Ask(cmd.Context(), usecase.AskInput{OwnerScope: ownerScope, Question: strings.Join(args, " ")})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out.Answer)
		return nil
	},
}

var (
	chatSession string
	chatFiles   []string
	chatOut     string
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Submit one turn and save any requested report",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		in := usecase.SubmitInput{OwnerScope: ownerScope, SessionID: chatSession, Text: strings.Join(args, " ")}
		for _, path := range chatFiles {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			in.Uploads = append(in.Uploads, usecase.Upload{Filename: filepath.Base(path), Data: data})
		}
		out, err := app.Chat.Submit(cmd.Context(), in)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "[session %s]\n%s\n", out.SessionID, out.Answer)
		for _, c := range out.Citations {
			fmt.Fprintf(w, "- %s <%s>: %s\n", c.Name, c.URL, c.Description)
		}
		if out.DownloadToken == "" {
			return nil
		}
		// The pending store may be process-local, so render before exiting.
		return saveReport(cmd, app.Reports, out.DownloadToken, chatOut)
	},
}

var renderOut string

var renderCmd = &cobra.Command{
	Use:   "render <token>",
	Short: "Render a pending report to a .docx file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()
		return saveReport(cmd, app.Reports, args[0], renderOut)
	},
}

var includeArchived bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the owner's sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		list, err := app.Sessions.List(cmd.Context(), ownerScope, includeArchived)
		if err != nil {
			return err
		}
		for _, s := range list {
			mark := ""
			if s.Archived {
				mark = " (archived)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d turns%s\n", s.ID, s.Title, len(s.Turns), mark)
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge-index",
	Short: "Drop every indexed chunk of the owner scope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(ownerScope) == "" {
			return errors.New("--owner is required")
		}
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		n, err := app.Sessions.PurgeIndex(cmd.Context(), ownerScope)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d chunks removed\n", n)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "continue this session id")
	chatCmd.Flags().StringSliceVarP(&chatFiles, "file", "f", nil, "attach a file (repeatable)")
	chatCmd.Flags().StringVar(&chatOut, "out", ".", "directory for generated reports")
	renderCmd.Flags().StringVar(&renderOut, "out", ".", "directory for the report")
	sessionsCmd.Flags().BoolVar(&includeArchived, "all", false, "include archived sessions")
}

func saveReport(cmd *cobra.Command, reports *usecase.ReportService, token, dir string) error {
	doc, err := reports.Render(cmd.Context(), token)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, doc.Filename)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", path)
	return nil
}
