package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/practice"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <stage-id> <day-number>",
	Short: "Browse and self-check a day's questions",
	Long: `Browse and self-check a day's questions. Practice does not change progress.

Commands:
  n / p           next / previous question
  g <n>           go to question n
  back            return to the previously viewed question
  b               toggle a bookmark on the current question
  m               list bookmarked questions
  <answer>        check an answer to a single-item question
  <n>=<answer>    check an answer to item n
  q               quit`,
	Args: cobra.ExactArgs(2),
	RunE: runPractice,
}

func init() {
	practiceCmd.Flags().StringSlice("type", nil, "Only questions of these types (e.g. photographs,talks)")
	practiceCmd.Flags().Bool("audio", false, "Only questions with (true) or without (false) audio")
	practiceCmd.Flags().Bool("image", false, "Only questions with (true) or without (false) an image")
}

func practiceFilter(cmd *cobra.Command) content.Filter {
	var f content.Filter
	types, _ := cmd.Flags().GetStringSlice("type")
	for _, t := range types {
		f.Types = append(f.Types, content.QuestionType(t))
	}
	if cmd.Flags().Changed("audio") {
		v, _ := cmd.Flags().GetBool("audio")
		f.HasAudio = &v
	}
	if cmd.Flags().Changed("image") {
		v, _ := cmd.Flags().GetBool("image")
		f.HasImage = &v
	}
	return f
}

func runPractice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	day, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("day must be a number: %w", err)
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	qs, err := e.catalog.GetDayQuestions(ctx, args[0], day)
	if err != nil {
		return err
	}
	qs = content.FilterQuestions(qs, practiceFilter(cmd))
	if len(qs) == 0 {
		fmt.Println("No questions match.")
		return nil
	}

	s := practice.New(qs)
	printPracticeQuestion(s)
	for line := range readLines(os.Stdin) {
		verb, arg, _ := strings.Cut(line, " ")
		switch verb {
		case "q":
			return nil
		case "n":
			s.Next()
		case "p":
			s.Previous()
		case "back":
			s.Back()
		case "g":
			n, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("usage: g <n>")
				continue
			}
			s.Goto(n - 1)
		case "b":
			q, _ := s.Current()
			if s.ToggleBookmark(q.ID) {
				fmt.Println("Bookmarked.")
			} else {
				fmt.Println("Bookmark removed.")
			}
			continue
		case "m":
			fmt.Println("Bookmarks:", strings.Join(s.Bookmarks(), ", "))
			continue
		case "":
			continue
		default:
			q, _ := s.Current()
			it, answer, err := parseAnswer(q, line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if strings.EqualFold(strings.TrimSpace(it.Answer), answer) {
				fmt.Println("Correct.")
			} else {
				fmt.Printf("Incorrect: the answer is %s.\n", it.Answer)
			}
			continue
		}
		printPracticeQuestion(s)
	}
	return nil
}

func printPracticeQuestion(s *practice.Session) {
	q, ok := s.Current()
	if !ok {
		return
	}
	mark := ""
	if s.IsBookmarked(q.ID) {
		mark = " *"
	}
	fmt.Printf("\nQuestion %d/%d (%.0f%%) %s%s\n", s.Index()+1, s.Len(), s.Progress(), q.Type, mark)
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
		fmt.Printf("  %d. %s\n", i+1, it.Text)
		if len(it.Options) > 0 {
			fmt.Printf("     %s\n", strings.Join(it.Options, "  "))
		}
	}
}
