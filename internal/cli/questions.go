package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/capitalduel/internal/model"
)

func newQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Manage your question bank",
	}

	cmd.AddCommand(newQuestionsGetCmd())
	cmd.AddCommand(newQuestionsSetCmd())
	cmd.AddCommand(newQuestionsDefaultCmd())

	return cmd
}

func newQuestionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show your questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Questions

			if err := client.Get("/api/v1/questions", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newQuestionsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <file.json>",
		Short: "Replace your questions from a JSON file",
		Long: `Replace your question bank with the contents of a JSON file.

The file holds a list of {"country": ..., "capital": ...} objects.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qs, err := readQuestionsFile(args[0])
			if err != nil {
				return err
			}

			var result Questions
			if err := client.Put("/api/v1/questions", Questions{Questions: qs}, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newQuestionsDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Replace your questions with the default bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Questions

			if err := client.Post("/api/v1/questions/default", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func readQuestionsFile(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	var qs []model.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}
	return qs, nil
}
