package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/progress"
	"github.com/abhisek/prepcoach/internal/unlock"
)

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Record lesson (day) activity",
}

var lessonStartCmd = &cobra.Command{
	Use:   "start <stage-id> <day-id>",
	Short: "Mark a day as started and make it the current position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLesson(cmd, args[0], args[1], func(agg *progress.Aggregator) (*progress.JourneyProgress, error) {
			return agg.ApplyLessonStart(args[0], args[1])
		})
	},
}

var lessonCompleteCmd = &cobra.Command{
	Use:   "complete <stage-id> <day-id>",
	Short: "Record a finished day with its score and time spent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		score, _ := cmd.Flags().GetFloat64("score")
		secs, _ := cmd.Flags().GetInt("time")
		return runLesson(cmd, args[0], args[1], func(agg *progress.Aggregator) (*progress.JourneyProgress, error) {
			return agg.ApplyLessonComplete(args[0], args[1], score, secs)
		})
	},
}

func init() {
	lessonCompleteCmd.Flags().Float64("score", 0, "Score percentage (0-100)")
	lessonCompleteCmd.Flags().Int("time", 0, "Time spent in seconds")
	lessonCmd.PersistentFlags().Bool("force", false, "Record even when the day is locked")

	lessonCmd.AddCommand(lessonStartCmd)
	lessonCmd.AddCommand(lessonCompleteCmd)
}

func runLesson(cmd *cobra.Command, stageID, dayID string, apply func(*progress.Aggregator) (*progress.JourneyProgress, error)) error {
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

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		if err := checkDayUnlocked(e, agg.Snapshot(), stageID, dayID); err != nil {
			return err
		}
	}

	if _, err := apply(agg); err != nil {
		return err
	}
	j, err := agg.SetCurrentPosition(stageID, dayID)
	if err != nil {
		return err
	}
	e.save(ctx, agg)

	sp := j.Stage(stageID)
	fmt.Printf("%s / %s: %s\n", stageID, dayID, sp.LessonStatus(dayID))
	fmt.Printf("Stage %s: %s, %.1f%%, %s\n", stageID, sp.Status, sp.OverallScore, formatSeconds(sp.TimeSpent))
	fmt.Printf("Journey: %s, %.1f%%\n", j.Status, j.OverallScore)
	return nil
}

func checkDayUnlocked(e *env, j *progress.JourneyProgress, stageID, dayID string) error {
	sr := unlock.Evaluate(j, e.bundle.Stages).Stage(stageID)
	if sr == nil {
		return fmt.Errorf("unknown stage %q", stageID)
	}
	if !sr.Unlocked {
		return fmt.Errorf("stage %s is locked", stageID)
	}
	for _, d := range sr.Days {
		if d.ID != dayID {
			continue
		}
		if !d.Unlocked {
			return fmt.Errorf("day %s is locked: finish the previous day first", dayID)
		}
		return nil
	}
	return fmt.Errorf("unknown day %q in stage %s", dayID, stageID)
}
