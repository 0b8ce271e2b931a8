// Command polymicro serves the pipeline editor API and offers offline
// catalog, validation and rendering tools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := NewCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewCommand builds the root command with every subcommand attached.
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:                  "polymicro",
		Usage:                 "Design and validate CI/CD pipelines",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			ServeCommand(),
			CatalogCommand(),
			ValidateCommand(),
			RenderCommand(),
		},
	}
}
