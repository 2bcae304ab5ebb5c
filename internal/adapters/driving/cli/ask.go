package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/logger"
)

var (
	askDocument  string
	askSaveTasks bool
	historyDoc   string
	historyLimit int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your documents",
	Long: `Answers a question using excerpts from your embedded documents.

With --doc the question is scoped to one document, which must be ready.
Without relevant excerpts a scoped question is declined; an unscoped one is
answered from general knowledge and marked as such.

With --save-tasks the answer's suggested actions are saved as tasks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past questions and answers",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	askCmd.Flags().StringVarP(&askDocument, "doc", "d", "", "scope the question to this document")
	askCmd.Flags().BoolVar(&askSaveTasks, "save-tasks", false, "save suggested actions as tasks")
	historyCmd.Flags().StringVarP(&historyDoc, "doc", "d", "", "only exchanges about this document")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum exchanges to show")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
}

type excerptOutput struct {
	Document string  `json:"document"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

type answerOutput struct {
	Answer      string          `json:"answer"`
	Mode        string          `json:"mode"`
	Provenance  string          `json:"provenance"`
	Excerpts    []excerptOutput `json:"excerpts"`
	Suggestions []string        `json:"suggestions"`
	Tasks       []taskOutput    `json:"tasks,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	if services == nil || services.Answer == nil {
		return notConfigured("answer service")
	}

	ctx := cmd.Context()
	answer, err := services.Answer.Ask(ctx, domain.AskRequest{
		Query:      strings.Join(args, " "),
		OwnerID:    currentUser(),
		DocumentID: askDocument,
	})
	if err != nil {
		return err
	}

	var saved []domain.Task
	if askSaveTasks && len(answer.Suggestions) > 0 {
		if services.Tasks == nil {
			return notConfigured("task service")
		}
		saved, err = services.Tasks.CreateFromSuggestions(ctx, currentUser(), askDocument, answer.Suggestions)
		if err != nil {
			saved = nil
			logger.Warn("save suggested tasks: %v", err)
			cmd.PrintErrf("Warning: could not save tasks: %v\n", err)
		}
	}

	if jsonOutput {
		out := answerOutput{
			Answer:      answer.Text,
			Mode:        string(answer.Mode),
			Provenance:  string(answer.Provenance),
			Excerpts:    make([]excerptOutput, len(answer.Excerpts)),
			Suggestions: answer.Suggestions,
		}
		for i, ex := range answer.Excerpts {
			out.Excerpts[i] = excerptOutput{ex.DocumentName, ex.Position, ex.Score, ex.Content}
		}
		for i := range saved {
			out.Tasks = append(out.Tasks, newTaskOutput(&saved[i]))
		}
		return printJSON(cmd, out)
	}

	cmd.Println(answer.Text)
	cmd.Println()
	if answer.Mode == domain.AnswerGeneral {
		cmd.Println("(No matching excerpts; answered from general knowledge.)")
	}
	if len(answer.Excerpts) > 0 {
		cmd.Println("Sources:")
		for i, ex := range answer.Excerpts {
			cmd.Printf("  [%d] %s #%d (%.2f)\n", i+1, ex.DocumentName, ex.Position, ex.Score)
		}
	}
	if len(saved) > 0 {
		cmd.Printf("\nSaved %d tasks:\n", len(saved))
		for i := range saved {
			cmd.Printf("  %s  %s\n", saved[i].ID, saved[i].Description)
		}
	} else if len(answer.Suggestions) > 0 {
		cmd.Println("\nSuggested actions (save with --save-tasks):")
		for _, s := range answer.Suggestions {
			cmd.Printf("  - %s\n", s)
		}
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if services == nil || services.Answer == nil {
		return notConfigured("answer service")
	}

	exchanges, err := services.Answer.History(cmd.Context(), currentUser(), historyDoc, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if jsonOutput {
		type exchangeOutput struct {
			ID       string `json:"id"`
			Document string `json:"document_id,omitempty"`
			Question string `json:"question"`
			Answer   string `json:"answer"`
			Mode     string `json:"mode"`
			Asked    string `json:"created_at"`
		}
		out := make([]exchangeOutput, len(exchanges))
		for i, ex := range exchanges {
			out[i] = exchangeOutput{ex.ID, ex.DocumentID, ex.Query, ex.Answer, string(ex.Mode), ex.CreatedAt.Format(timeFormat)}
		}
		return printJSON(cmd, out)
	}

	if len(exchanges) == 0 {
		cmd.Println("No questions asked yet.")
		return nil
	}
	for _, ex := range exchanges {
		cmd.Printf("%s  Q: %s\n", ex.CreatedAt.Format(timeFormat), ex.Query)
		cmd.Printf("  A: %s\n\n", ex.Answer)
	}
	return nil
}
