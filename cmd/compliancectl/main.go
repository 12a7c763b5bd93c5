// Command compliancectl is the CLI entrypoint for running compliance
// analysis and chat against a contract PDF. Grounded on custodia-labs-
// sercha-cli's internal/adapters/driving/cli package (cobra root command
// with subcommands registered via init()), adapted to a single-binary
// cmd/ layout since 0xcro3dile-localrag-go ships no equivalent main package.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "compliancectl",
	Short: "Analyze contract PDFs for security-compliance and chat about them",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
