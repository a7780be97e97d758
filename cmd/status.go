package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/progress"
	"github.com/abhisek/prepcoach/internal/unlock"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show journey progress and what is unlocked",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	agg, err := e.aggregator(ctx)
	if err != nil {
		return err
	}
	j := agg.Snapshot()
	r := unlock.Evaluate(j, e.bundle.Stages)

	fmt.Printf("Journey: %s  [%s]  %.1f%%  %s\n",
		j.JourneyID, j.Status, j.OverallScore, formatSeconds(j.TimeSpent))
	if j.CurrentStageID != "" {
		fmt.Printf("Current: %s / %s\n", j.CurrentStageID, j.CurrentLessonID)
	}
	fmt.Println()

	for _, s := range r.Stages {
		lock := "locked"
		if s.Unlocked {
			lock = "open"
		}
		fmt.Printf("%s  %s (target %d)  [%s, %s]\n", s.StageID, s.Title, s.TargetScore, s.Status, lock)
		for _, d := range s.Days {
			mark := " "
			switch {
			case d.Status == progress.StatusCompleted:
				mark = "x"
			case d.Status == progress.StatusInProgress:
				mark = "~"
			case !d.Unlocked:
				mark = "-"
			}
			fmt.Printf("  [%s] Day %d  %s\n", mark, d.Number, d.ID)
		}
		switch {
		case s.FinalExamTaken:
			verdict := "failed"
			if s.Passed {
				verdict = "passed"
			}
			fmt.Printf("  Final exam: %.1f%% (min %.0f%%) %s\n", s.FinalExamScore, s.MinScore, verdict)
		case s.FinalExamUnlocked:
			fmt.Printf("  Final exam: available (min %.0f%%)\n", s.MinScore)
		default:
			fmt.Println("  Final exam: locked")
		}
		fmt.Println()
	}

	st := agg.SyncState()
	fmt.Printf("Sync: %s", st.Status)
	if st.LastError != "" {
		fmt.Printf(" (%s)", st.LastError)
	}
	fmt.Println()
	return nil
}

func formatSeconds(s int) string {
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	if s < 3600 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%dh %dm", s/3600, (s%3600)/60)
}
