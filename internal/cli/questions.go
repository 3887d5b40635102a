package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"questionbank/internal/app"
	"questionbank/internal/domain"
)

// NewQuestionsCmd groups question commands.
func NewQuestionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Browse and import questions through the selected backend",
	}
	cmd.AddCommand(newQuestionsListCmd(configPath))
	cmd.AddCommand(newQuestionsImportCmd(configPath))
	return cmd
}

func newQuestionsListCmd(configPath *string) *cobra.Command {
	var (
		page, size               int
		keyword, qtype           string
		categoryID, difficultyID int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questions, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			repo, err := rt.factory.Questions()
			if err != nil {
				return err
			}
			filter := domain.QuestionFilter{Keyword: keyword}
			if cmd.Flags().Changed("category") {
				filter.CategoryID = domain.IntPtr(categoryID)
			}
			if cmd.Flags().Changed("difficulty") {
				filter.DifficultyID = domain.IntPtr(difficultyID)
			}
			if cmd.Flags().Changed("type") {
				filter.Type = domain.StringPtr(qtype)
			}

			svc := app.NewQuestionService(repo, rt.log)
			rows, last, err := svc.Browse(cmd.Context(), filter, page, size)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tDIFFICULTY\tCREATOR\tCONTENT")
			for _, q := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", q.ID, app.CategoryLabel(q), app.DifficultyLabel(q), app.CreatorLabel(q), domain.Snippet(q.Content, 60))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if last {
				fmt.Fprintln(cmd.OutOrStdout(), "(end of results)")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	cmd.Flags().StringVar(&keyword, "keyword", "", "substring of the question content")
	cmd.Flags().IntVar(&categoryID, "category", 0, "category id")
	cmd.Flags().IntVar(&difficultyID, "difficulty", 0, "difficulty id")
	cmd.Flags().StringVar(&qtype, "type", "", "question type")
	return cmd
}

func newQuestionsImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Insert questions from a JSON array file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var rows []domain.Question
			if err := json.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			repo, err := rt.factory.Questions()
			if err != nil {
				return err
			}
			report := app.NewQuestionService(repo, rt.log).Import(cmd.Context(), rows)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "inserted %d, failed %d\n", len(report.Inserted), len(report.Failures))
			for _, f := range report.Failures {
				fmt.Fprintf(out, "  row %d: %v\n", f.Index, f.Err)
			}
			if len(report.Failures) > 0 {
				return fmt.Errorf("%d rows failed", len(report.Failures))
			}
			return nil
		},
	}
}
