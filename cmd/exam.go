package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/assessment"
	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/progress"
	"github.com/abhisek/prepcoach/internal/unlock"
)

var examCmd = &cobra.Command{
	Use:   "exam <stage-id>",
	Short: "Take a stage's timed final exam",
	Long: `Take a stage's timed final exam.

Commands while answering:
  <answer>        answer a single-item question
  <n>=<answer>    answer item n (1-based) of the current question
  n / p           next / previous question
  s               finish this section
  :submit         submit the whole exam now
  r               retry a failed submission
  q               abandon the exam`,
	Args: cobra.ExactArgs(1),
	RunE: runExam,
}

func init() {
	examCmd.Flags().Bool("force", false, "Take the exam even when it is locked")
}

func runExam(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stageID := args[0]

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	agg, err := e.aggregator(ctx)
	if err != nil {
		return err
	}

	idx, err := e.catalog.StageIndex(ctx, stageID)
	if err != nil {
		return err
	}
	ft, err := e.catalog.GetStageFinalTest(ctx, idx)
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if sr := unlock.Evaluate(agg.Snapshot(), e.bundle.Stages).Stage(stageID); !force && (sr == nil || !sr.FinalExamUnlocked) {
		return fmt.Errorf("final exam for %s is locked: complete every day first", stageID)
	}

	duration := ft.Duration()
	if e.cfg.ExamDuration > 0 {
		duration = e.cfg.ExamDuration
	}

	done := make(chan struct{})
	ctrl, err := assessment.NewController(stageID, ft.Questions, duration, e.submitter(),
		assessment.WithControllerLogger(e.log),
		assessment.WithOnSubmitted(func(res *assessment.Result) {
			recordExam(ctx, e, agg, res)
			close(done)
		}),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	fmt.Printf("Final exam %s: %d sections, %s, pass mark %.0f%%\n",
		stageID, len(ctrl.Sections()), duration, ft.MinScore)

	lines := readLines(os.Stdin)
	ctrl.Start(ctx)
	printExamState(ctrl)

	status := time.NewTicker(time.Second)
	defer status.Stop()
	reportedErr := false

	for {
		select {
		case <-done:
			printResult(ctrl)
			return nil
		case <-status.C:
			if ctrl.Phase() == assessment.PhaseSubmitting && ctrl.Err() != nil && !reportedErr {
				reportedErr = true
				fmt.Printf("Submission failed: %v. Type r to retry.\n", ctrl.Err())
			}
		case line, ok := <-lines:
			if !ok || line == "q" {
				fmt.Println("Exam abandoned.")
				return nil
			}
			if err := examInput(ctx, ctrl, line); err != nil {
				if errors.Is(err, assessment.ErrUnknownItem) || errors.Is(err, assessment.ErrWrongPhase) {
					fmt.Println(err)
					continue
				}
				var se *assessment.SubmitError
				if errors.As(err, &se) {
					reportedErr = true
					fmt.Printf("Submission failed: %v. Type r to retry.\n", se)
					continue
				}
				return err
			}
			select {
			case <-done:
			default:
				printExamState(ctrl)
			}
		}
	}
}

func examInput(ctx context.Context, ctrl *assessment.Controller, line string) error {
	switch line {
	case ":submit":
		return ctrl.SubmitAll(ctx)
	case "r":
		return ctrl.Retry(ctx)
	}

	switch ctrl.Phase() {
	case assessment.PhaseIntro:
		return ctrl.Continue()
	case assessment.PhaseAnswering:
	default:
		return nil
	}

	switch line {
	case "n":
		_, err := ctrl.Next()
		return err
	case "p":
		_, err := ctrl.Back()
		return err
	case "s":
		return ctrl.SubmitSection(ctx)
	case "":
		return nil
	}

	q, _ := ctrl.CurrentQuestion()
	item, answer, err := parseAnswer(q, line)
	if err != nil {
		fmt.Println(err)
		return nil
	}
	return ctrl.SelectAnswer(q.ID, item.ID, answer)
}

// parseAnswer resolves "<answer>" or "<n>=<answer>" to an item of q.
func parseAnswer(q content.Question, line string) (content.Item, string, error) {
	if k, v, ok := strings.Cut(line, "="); ok {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || n < 1 || n > len(q.Items) {
			return content.Item{}, "", fmt.Errorf("no item %q in this question", k)
		}
		return q.Items[n-1], strings.TrimSpace(v), nil
	}
	if len(q.Items) != 1 {
		return content.Item{}, "", fmt.Errorf("this question has %d items: use <n>=<answer>", len(q.Items))
	}
	return q.Items[0], line, nil
}

func printExamState(ctrl *assessment.Controller) {
	sec, si := ctrl.CurrentSection()
	answered, total := ctrl.Answered()
	header := fmt.Sprintf("[%s left, %d/%d answered]", formatSeconds(ctrl.RemainingSeconds()), answered, total)

	switch ctrl.Phase() {
	case assessment.PhaseIntro:
		fmt.Printf("\n%s Section %d/%d: %s (%d items). Press Enter to begin.\n",
			header, si+1, len(ctrl.Sections()), sec.Type, sec.ItemCount())
	case assessment.PhaseAnswering:
		q, qi := ctrl.CurrentQuestion()
		fmt.Printf("\n%s %s, question %d/%d\n", header, sec.Type, qi+1, len(sec.Questions))
		if q.Prompt != "" {
			fmt.Println(q.Prompt)
		}
		if q.HasAudio() {
			fmt.Println("Audio:", q.AudioURL)
		}
		if q.HasImage() {
			fmt.Println("Image:", q.ImageURL)
		}
		for i, it := range q.Items {
			fmt.Printf("  %d. %s", i+1, it.Text)
			if a := ctrl.Answer(it.ID); a != "" {
				fmt.Printf("  -> %s", a)
			}
			fmt.Println()
			if len(it.Options) > 0 {
				fmt.Printf("     %s\n", strings.Join(it.Options, "  "))
			}
		}
	case assessment.PhaseSubmitting:
		fmt.Println("Submitting...")
	}
}

func printResult(ctrl *assessment.Controller) {
	res := ctrl.Result()
	if res == nil {
		return
	}
	if res.Reason == assessment.ReasonTimeout {
		fmt.Println("\nTime is up. Your answers were submitted.")
	}
	verdict := "Not passed"
	if res.Passed {
		verdict = "Passed: the next stage is unlocked"
	}
	fmt.Printf("\nScore: %.1f%% (%d/%d correct). %s.\n", res.Score, res.CorrectAnswers, res.TotalQuestions, verdict)
}

// recordExam stores the result in the progress tree and saves it.
func recordExam(ctx context.Context, e *env, agg *progress.Aggregator, res *assessment.Result) {
	_, err := agg.RecordFinalExam(res.StageID, progress.FinalExamResult{
		Score:    res.Score,
		Passed:   res.Passed,
		Correct:  res.CorrectAnswers,
		Total:    res.TotalQuestions,
		TimedOut: res.Reason == assessment.ReasonTimeout,
	})
	if err != nil {
		e.log.Error("record final exam failed", "stage_id", res.StageID, "error", err)
		return
	}
	e.save(ctx, agg)
}

// readLines streams trimmed stdin lines until EOF.
func readLines(f *os.File) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			ch <- strings.TrimSpace(sc.Text())
		}
	}()
	return ch
}
