package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rkondo/kaiwa/internal/compile"
	"github.com/rkondo/kaiwa/internal/lesson"
)

var compileCmd = &cobra.Command{
	Use:   "compile <cando-id>",
	Short: "Compile a new lesson version for a CanDo goal",
	Long: "Runs the full generation pipeline for the given CanDo goal and persists the\n" +
		"result as a new lesson version. Recompiling never overwrites prior versions.",
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

		if model, _ := cmd.Flags().GetString("model"); model != "" {
			cfg.Model = model
		}

		ctx := cmd.Context()
		loop, err := newLoop(ctx, cfg, s)
		if err != nil {
			return err
		}
		enricher, closeGraph := newEnricher(log)
		defer closeGraph(context.Background())

		if meta, _ := cmd.Flags().GetString("metalanguage"); meta != "" {
			cfg.Metalanguage = meta
		}

		cd, err := lesson.GetCanDo(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Compiling lesson for %s: %s\n", color.CyanString(cd.ID), cd.Statement)

		compiler := compile.New(loop, enricher, s.LessonRepo(), log)
		res, err := compiler.Compile(ctx, compile.Options{
			CanDoID:      cd.ID,
			Metalanguage: cfg.Metalanguage,
		})
		if err != nil {
			var failed *compile.CompileFailed
			if errors.As(err, &failed) {
				kind := "not retryable, the model keeps missing the schema"
				if failed.Retryable() {
					kind = "transient, retry the compile"
				}
				return fmt.Errorf("stage %s failed (%s): %w",
					color.RedString(failed.Stage), kind, failed.Cause)
			}
			return err
		}

		fmt.Printf("%s lesson %s version %d in %s\n",
			color.GreenString("Compiled"), res.LessonID, res.Version, res.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	compileCmd.Flags().String("metalanguage", "", "Support language for explanations (default from config)")
	compileCmd.Flags().String("model", "", "Model for the selected provider (default from config)")
}
