package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rkondo/kaiwa/internal/compile"
	"github.com/rkondo/kaiwa/internal/lesson"
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Browse CanDo goals and compiled lessons",
}

var lessonsCandosCmd = &cobra.Command{
	Use:   "candos",
	Short: "List the CanDo goal catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%-8s  %-5s  %-12s  %s\n", "ID", "Level", "Topic", "Statement")
		fmt.Println(strings.Repeat("─", 90))
		for _, cd := range lesson.AllCanDos() {
			fmt.Printf("%-8s  %-5s  %-12s  %s\n", cd.ID, cd.Level, cd.Topic, cd.Statement)
		}
		return nil
	},
}

var lessonsVersionsCmd = &cobra.Command{
	Use:   "versions <cando-id>",
	Short: "List compiled versions of a lesson",
	Args:  cobra.ExactArgs(1),
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

		recs, err := s.LessonRepo().ListVersions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Printf("No compiled lessons for %s.\n", args[0])
			return nil
		}

		fmt.Printf("%-8s  %-36s  %-12s  %-24s  %s\n", "Version", "ID", "Language", "Model", "Created")
		fmt.Println(strings.Repeat("─", 100))
		for _, rec := range recs {
			fmt.Printf("%-8d  %-36s  %-12s  %-24s  %s\n",
				rec.Version, rec.ID, rec.Metalanguage, rec.Model,
				rec.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var lessonsShowCmd = &cobra.Command{
	Use:   "show <cando-id>",
	Short: "Show a compiled lesson's cards",
	Args:  cobra.ExactArgs(1),
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
		version, _ := cmd.Flags().GetInt("version")
		rec, err := s.LessonRepo().Latest(ctx, args[0])
		if version > 0 {
			rec, err = s.LessonRepo().Get(ctx, args[0], version)
		}
		if err != nil {
			return err
		}

		root, err := compile.LoadRoot(rec)
		if err != nil {
			return err
		}
		printLesson(root)
		return nil
	},
}

func init() {
	lessonsShowCmd.Flags().Int("version", 0, "Lesson version to show (default latest)")

	lessonsCmd.AddCommand(lessonsCandosCmd)
	lessonsCmd.AddCommand(lessonsVersionsCmd)
	lessonsCmd.AddCommand(lessonsShowCmd)
}

func printLesson(root *lesson.LessonRoot) {
	bold := color.New(color.Bold)
	obj := root.CardOf(lesson.KindObjective).Objective
	bold.Printf("%s (%s, v%d)\n", obj.Title, obj.Level, root.Version)
	fmt.Println(obj.Summary)

	if c := root.CardOf(lesson.KindVocabulary); c != nil {
		bold.Println("\nVocabulary")
		for _, it := range c.Vocabulary.Items {
			fmt.Printf("  %s（%s） %s\n", it.Surface, it.Reading, it.Meaning)
		}
	}

	if c := root.CardOf(lesson.KindGrammarPatterns); c != nil {
		bold.Println("\nGrammar patterns")
		for _, p := range c.GrammarPatterns.Patterns {
			linked := ""
			if p.NodeID != "" {
				linked = color.CyanString(" [%s]", p.NodeID)
			}
			fmt.Printf("  %s (%s) %s%s\n", p.Pattern, p.Romanization, p.Meaning, linked)
		}
	}

	if c := root.CardOf(lesson.KindDialogue); c != nil {
		bold.Printf("\nDialogue: %s\n", c.Dialogue.Title)
		for _, line := range c.Dialogue.Lines {
			fmt.Printf("  %s: %s\n      %s\n", line.Speaker, line.Text, line.Translation)
		}
	}

	if c := root.CardOf(lesson.KindReading); c != nil {
		bold.Printf("\nReading: %s\n", c.Reading.Title)
		fmt.Printf("  %s\n", c.Reading.Body)
	}

	if c := root.CardOf(lesson.KindGuidedScaffold); c != nil {
		bold.Println("\nGuided practice stages")
		for i, st := range c.GuidedScaffold.Stages {
			fmt.Printf("  %d. %s (patterns: %s, %d-%d words)\n",
				i+1, st.Goal, strings.Join(st.Patterns, "、"), st.MinWords, st.MaxWords)
		}
	}

	if c := root.CardOf(lesson.KindExercises); c != nil {
		bold.Println("\nExercises")
		for _, ex := range c.Exercises.Exercises {
			fmt.Printf("  [%s] %s\n", ex.Type, ex.Prompt)
		}
	}

	if c := root.CardOf(lesson.KindCulture); c != nil {
		bold.Printf("\nCulture: %s\n", c.Culture.Title)
		fmt.Printf("  %s\n", c.Culture.Body)
	}

	if c := root.CardOf(lesson.KindDrills); c != nil {
		bold.Println("\nDrills")
		for _, d := range c.Drills.Drills {
			fmt.Printf("  %s: %s\n", d.Pattern, d.Instruction)
			for _, it := range d.Items {
				fmt.Printf("    %s → %s\n", it.Cue, it.Expected)
			}
		}
	}
}
