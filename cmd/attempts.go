package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/store"
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts <stage-id>",
	Short: "List locally graded final exam attempts for a stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		limit, _ := cmd.Flags().GetInt("limit")
		repo := e.store.AttemptRepo()
		list, err := repo.Attempts(ctx, args[0], store.QueryOpts{Limit: limit})
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No attempts yet.")
			return nil
		}
		for _, a := range list {
			verdict := "failed"
			if a.Passed {
				verdict = "passed"
			}
			fmt.Printf("#%d  %s  %5.1f%%  %d/%d  %s  %s\n",
				a.Sequence, a.SubmittedAt.Local().Format("2006-01-02 15:04"), a.Score, a.Correct, a.Total, a.Reason, verdict)
		}
		best, err := repo.BestAttempt(ctx, args[0])
		if err != nil {
			return err
		}
		if best != nil {
			fmt.Printf("Best: %.1f%% (#%d)\n", best.Score, best.Sequence)
		}
		return nil
	},
}

func init() {
	attemptsCmd.Flags().Int("limit", 20, "Maximum attempts to list (0 = all)")
}
