package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/polymicro/manager/pkg/cmd"
	"github.com/polymicro/manager/pkg/editor"
	"github.com/polymicro/manager/pkg/log"
	"github.com/polymicro/manager/pkg/models"
	"github.com/polymicro/manager/pkg/registry"
	"github.com/polymicro/manager/pkg/render"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrLintFailed      = errors.New("pipeline has problems")
	ErrMissingArgument = errors.New("pipeline file argument is required")
)

func catalogFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "catalog",
		Usage:   "JSON file with block definitions replacing the built-in catalog",
		Sources: cli.EnvVars("CATALOG"),
	}
}

func loadRegistry(command *cli.Command) (*registry.Registry, error) {
	logger := log.New(command.Root().ErrWriter, "warn", "text")

	return cmd.NewRegistry(logger, command.String("catalog"))
}

func readPipeline(command *cli.Command) (*models.Pipeline, error) {
	path := command.Args().First()
	if path == "" {
		return nil, ErrMissingArgument
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}

	var pipeline models.Pipeline
	if err := json.Unmarshal(data, &pipeline); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline %s: %w", path, err)
	}

	return &pipeline, nil
}

func CatalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "List the available block types",
		Flags: []cli.Flag{
			catalogFlag(),
			&cli.StringFlag{
				Name:  "category",
				Usage: "Only list blocks of this category",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the definitions as JSON",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			reg, err := loadRegistry(command)
			if err != nil {
				return err
			}

			definitions := reg.Definitions()

			if category := models.Category(command.String("category")); category != "" {
				if !category.Valid() {
					return fmt.Errorf("unknown category %q", category)
				}

				definitions = reg.ByCategory(category)
			}

			out := command.Root().Writer

			if command.Bool("json") {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(definitions)
			}

			for _, def := range definitions {
				fields := make([]string, len(def.Schema))
				for i, f := range def.Schema {
					fields[i] = f.Name
				}

				fmt.Fprintf(out, "%-10s  %-10s  %-12s  %s\n", def.ID, def.Category, def.Name, strings.Join(fields, ","))
			}

			return nil
		},
	}
}

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Lint a pipeline document",
		ArgsUsage: "<pipeline.json>",
		Flags: []cli.Flag{
			catalogFlag(),
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "Project global variable as NAME=VALUE",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			reg, err := loadRegistry(command)
			if err != nil {
				return err
			}

			pipeline, err := readPipeline(command)
			if err != nil {
				return err
			}

			globals := make(map[string]string)

			for _, kv := range command.StringSlice("var") {
				name, value, ok := strings.Cut(kv, "=")
				if !ok || name == "" {
					return fmt.Errorf("invalid variable %q, expected NAME=VALUE", kv)
				}

				globals[name] = value
			}

			out := command.Root().Writer

			lintErrors := editor.Lint(reg, editor.DefaultRules(), pipeline, globals)
			if len(lintErrors) == 0 {
				fmt.Fprintf(out, "%s: ok\n", command.Args().First())

				return nil
			}

			for _, e := range lintErrors {
				fmt.Fprintln(out, e.Error())
			}

			return fmt.Errorf("%w: %d found", ErrLintFailed, len(lintErrors))
		},
	}
}

func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a pipeline document as Graphviz DOT or text",
		ArgsUsage: "<pipeline.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (dot, text)",
				Value:   "dot",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			pipeline, err := readPipeline(command)
			if err != nil {
				return err
			}

			out := command.Root().Writer

			switch command.String("format") {
			case "dot":
				dot, err := render.DOT(pipeline)
				if err != nil {
					return err
				}

				_, err = fmt.Fprint(out, dot)

				return err
			case "text":
				_, err := fmt.Fprint(out, render.Text(pipeline))

				return err
			default:
				return fmt.Errorf("unsupported format %q", command.String("format"))
			}
		},
	}
}
