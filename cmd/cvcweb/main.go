// Command cvcweb serves the portfolio content API and runs the content
// maintenance tasks.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// reportedError is an error the maintenance runner has already printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	cfg := &cliConfig{}

	root := &cobra.Command{
		Use:           "cvcweb",
		Short:         "Portfolio content API and maintenance tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./cvcweb.yaml if present)")
	root.PersistentFlags().String("api-url", defaultAPIURL, "CMS base URL for API tasks")
	root.PersistentFlags().String("db", defaultDBPath, "CMS SQLite database for direct-store tasks")
	root.PersistentFlags().String("content-db", defaultContent, "content SQLite database holding portfolio_projects")
	root.PersistentFlags().Bool("dry-run", false, "report what would change without changing it")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(configFile, root.PersistentFlags())
		if err != nil {
			return err
		}
		*cfg = *loaded
		return nil
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMaintCmd(cfg))
	return root
}
