package cli

import (
	"context"
	"encoding/json"
	"io"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"normalz-service/internal/app"
)

// NewQuestionCmd groups the question administration commands. They talk to the
// configured persistent store directly.
func NewQuestionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Create or inspect questions",
	}

	var prompt string
	var options []string
	create := &cobra.Command{
		Use:   "create",
		Short: "Add a question to the active pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQuestionStore(cmd.Context(), *configPath, func(ctx context.Context, questions app.QuestionRepository) error {
				q, err := questions.Create(ctx, prompt, options)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), q)
			})
		},
	}
	create.Flags().StringVar(&prompt, "prompt", "", "question text")
	create.Flags().StringArrayVar(&options, "option", nil, "option label (repeat for each option)")

	get := &cobra.Command{
		Use:   "get <question-id>",
		Short: "Print a question with its current tally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQuestionStore(cmd.Context(), *configPath, func(ctx context.Context, questions app.QuestionRepository) error {
				q, err := questions.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), q)
			})
		},
	}

	cmd.AddCommand(create, get)
	return cmd
}

func withQuestionStore(ctx context.Context, configPath string, fn func(context.Context, app.QuestionRepository) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	if !b.persistent {
		return errors.New("no persistent store configured: set postgres.url or redis.addr")
	}
	return fn(ctx, b.questions)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
