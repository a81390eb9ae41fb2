package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-matcher",
	Short: "A CLI tool for sorting photos by face similarity",
	Long: `Face Matcher classifies a directory of photos against one or more
reference faces. Each photo is compared to every reference using face
embeddings and copied into matched/, almost_matched/ or not_matched/
inside a timestamped run directory.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
