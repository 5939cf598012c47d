package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "capture --type <type> --credential <id> --court <id> [--from YYYY-MM-DD] [--to YYYY-MM-DD]",
	Short: "capture runs one PJE capture synchronously and prints its result as JSON.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
