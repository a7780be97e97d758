package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "prepcoach",
	Short: "Test-prep progress and assessment engine",
	Long: "prepcoach tracks a learner's journey through staged test-prep content, " +
		"decides what is unlocked next and runs timed final exams.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is normal.
		_ = godotenv.Load()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PREPCOACH_DB env var)")
	rootCmd.PersistentFlags().String("content", "", "Path to a content bundle (overrides PREPCOACH_CONTENT; default: built-in bundle)")
	rootCmd.PersistentFlags().String("journey", "", "Journey id (overrides PREPCOACH_JOURNEY; default: the bundle's)")
	rootCmd.PersistentFlags().String("remote", "", "Sync server URL (overrides PREPCOACH_REMOTE_URL)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(lessonCmd)
	rootCmd.AddCommand(examCmd)
	rootCmd.AddCommand(practiceCmd)
	rootCmd.AddCommand(attemptsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}
