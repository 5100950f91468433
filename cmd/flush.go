package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rkondo/kaiwa/internal/store"
)

var flushCmd = &cobra.Command{
	Use:   "flush <cando-id>",
	Short: "Reset guided practice progress for a lesson",
	Long: "Resets the session for the latest lesson version back to stage 0 and clears\n" +
		"its turn history. The session itself is kept, only progress is discarded.",
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
		rec, err := s.LessonRepo().Latest(ctx, args[0])
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = cfg.User
		}

		sess, err := s.SessionRepo().Find(ctx, user, rec.ID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				fmt.Println("No practice session to flush.")
				return nil
			}
			return err
		}

		stamp, err := s.SessionRepo().Flush(ctx, sess.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s session %s at %s\n",
			color.GreenString("Flushed"), sess.ID, stamp.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	flushCmd.Flags().String("user", "", "Learner identity (default from config)")
}
