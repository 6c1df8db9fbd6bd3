package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/sofim-uhk/sofim/internal/cli"
	"github.com/sofim-uhk/sofim/internal/ingest"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/storage"
)

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync [full|web|tabular]",
	Short: "Rebuild the index from the configured sources",
	Long: `Rebuild the index into staging and publish it atomically. A partial mode
refreshes one category and keeps the other category's passages.

Examples:
  sofim sync
  sofim sync web
  sofim sync csv -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := string(models.ModeFull)
		if len(args) == 1 {
			raw = args[0]
		}
		mode, err := models.ParseMode(raw)
		if err != nil {
			return err
		}
		out, err := format()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if busy, err := a.tracker.AnyRunning(ctx); err != nil {
			return err
		} else if busy {
			return ingest.ErrRunInProgress
		}
		rep, runErr := a.runner.Run(ctx, mode)
		if rep != nil {
			if err := cli.WriteReport(os.Stdout, rep, out); err != nil {
				return err
			}
		}
		return runErr
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-category sync state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := format()
		if err != nil {
			return err
		}
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		statuses, err := a.tracker.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		if out == cli.OutputText {
			fmt.Printf("Live passages: %d\n", a.index.Live().Len())
		}
		return cli.WriteStatus(os.Stdout, statuses, out)
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question from the live index",
	Long: `Answer a question from the live index. All arguments are joined into one
query, so quoting is optional.

Examples:
  sofim ask kdo je garant KIKM
  sofim ask --passages "podmínky přijetí"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := buildQuery(args)
		if query == "" {
			return errors.New("query is empty")
		}
		showPassages, _ := cmd.Flags().GetBool("passages")
		out, err := format()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return ask(ctx, os.Stdout, a, query, showPassages, out)
	},
}

func init() {
	askCmd.Flags().Bool("passages", false, "also print the ranked passages")
}

func ask(ctx context.Context, w io.Writer, a *app, query string, showPassages bool, out cli.OutputFormat) error {
	resp, err := a.engine.Answer(ctx, query)
	if err != nil {
		return err
	}
	answer := &cli.Answer{Query: query, Answer: resp.Response, Sources: resp.Sources}
	if showPassages {
		r, err := a.engine.Retrieve(ctx, query)
		if err != nil {
			return err
		}
		answer.Matches = r.Matches
	}
	return cli.WriteAnswer(w, answer, out)
}

// buildQuery joins all positional args with spaces so multi-word queries work
// the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// --- sources ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage operator seed URLs",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List seed URLs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := format()
		if err != nil {
			return err
		}
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		sources, err := a.storage.ListSources(cmd.Context())
		if err != nil {
			return err
		}
		return cli.WriteSources(os.Stdout, sources, out)
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a seed URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		src, err := addSource(cmd.Context(), a.storage, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Added source %d: %s\n", src.ID, src.URL)
		return nil
	},
}

var sourcesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a seed URL by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid source id %q", args[0])
		}
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.storage.DeleteSource(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Removed source %d\n", id)
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd, sourcesAddCmd, sourcesRemoveCmd)
}

var validate = validator.New()

func addSource(ctx context.Context, store storage.Storage, rawURL string) (*models.Source, error) {
	src := &models.Source{URL: strings.TrimSpace(rawURL)}
	if err := validate.Struct(src); err != nil {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}
	return store.AddSource(ctx, src.URL)
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sofim %s\n", version)
	},
}
