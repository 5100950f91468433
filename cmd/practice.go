package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rkondo/kaiwa/internal/compile"
	"github.com/rkondo/kaiwa/internal/guided"
	"github.com/rkondo/kaiwa/internal/lesson"
	"github.com/rkondo/kaiwa/internal/store"
)

var practiceCmd = &cobra.Command{
	Use:   "practice <cando-id>",
	Short: "Start a guided dialogue practice session",
	Long: "Opens an interactive practice loop over the latest compiled lesson for the\n" +
		"CanDo goal. Each turn is scored against the current stage goal; meeting the\n" +
		"goal advances to the next stage. Progress persists across runs.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		s, err := openStore(cmd, cfg, log)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		loop, err := newLoop(ctx, cfg, s)
		if err != nil {
			return err
		}

		rec, err := s.LessonRepo().Latest(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrLessonNotFound) {
				return fmt.Errorf("no compiled lesson for %s, run `kaiwa compile %s` first", args[0], args[0])
			}
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = cfg.User
		}

		ev := guided.New(loop, s.SessionRepo(), s.LessonRepo(), log)
		return runPractice(cmd, ev, rec, user)
	},
}

func init() {
	practiceCmd.Flags().String("user", "", "Learner identity for session progress (default from config)")
}

func runPractice(cmd *cobra.Command, ev *guided.Evaluator, rec *store.LessonRecord, user string) error {
	root, err := compile.LoadRoot(rec)
	if err != nil {
		return err
	}
	stages := root.Scaffold()

	stageIdx, err := ev.Progress(cmd.Context(), user, rec.ID)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	bold.Printf("Guided practice: %s (v%d)\n", root.Plan.Objective.Title, rec.Version)
	fmt.Printf("%d stages. Type your turn in Japanese. Commands: /hint, /quit\n\n", len(stages))
	printStage(stages, stageIdx)

	scanner := bufio.NewScanner(os.Stdin)
	prompt := color.New(color.FgCyan)
	for {
		prompt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "/quit":
			return nil
		case "/hint":
			if stageIdx < len(stages) {
				fmt.Printf("  %s\n  %s\n", stages[stageIdx].HintJA, stages[stageIdx].HintMeta)
			}
			continue
		}

		res, err := ev.Turn(cmd.Context(), user, rec.ID, text)
		if err != nil {
			var failed *guided.TurnEvaluationFailed
			if errors.As(err, &failed) {
				color.Yellow("Could not evaluate that turn, please resubmit: %v", failed.Cause)
				continue
			}
			return err
		}

		color.White("ai> %s", res.Reply)
		if res.Feedback != "" {
			fmt.Printf("    %s\n", res.Feedback)
		}
		printSignals(res.Signals)

		if res.Completed {
			color.Green("All stages complete. Use `kaiwa flush %s` to start over.", root.CanDoID)
			return nil
		}
		if res.StageIdx != stageIdx {
			stageIdx = res.StageIdx
			color.Green("Stage cleared!")
			printStage(stages, stageIdx)
		}
	}
}

func printStage(stages []lesson.StageGoal, idx int) {
	if idx >= len(stages) {
		return
	}
	color.New(color.Bold).Printf("Stage %d/%d: %s\n", idx+1, len(stages), stages[idx].Goal)
}

func printSignals(sig guided.Signals) {
	mark := func(ok bool) string {
		if ok {
			return color.GreenString("✓")
		}
		return color.RedString("✗")
	}
	fmt.Printf("    pattern %s  words %s (%d)  goal %s\n",
		mark(sig.PatternMatched), mark(sig.WordCountOK), sig.WordCount, mark(sig.GoalMet))
}
