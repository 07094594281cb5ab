package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quire/internal"
	"github.com/starford/quire/internal/certs"
	"github.com/starford/quire/internal/postservice"
	pkgconfig "github.com/starford/quire/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cmd.Bool("drafts") {
		cfg.Build.Drafts = true
	}
	if cmd.Bool("future") {
		cfg.Build.Future = true
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

var buildFlags = []cli.Flag{
	&cli.BoolFlag{Name: "drafts", Usage: "Render posts from _drafts"},
	&cli.BoolFlag{Name: "future", Usage: "Render posts dated in the future"},
}

func build(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Build(ctx, opts...)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Serve(ctx, opts...)
}

func deploy(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if t := cmd.String("token"); t != "" {
		cfg.Deploy.Token = t
	}
	return internal.Deploy(ctx, internal.DeployOptions{
		SkipBuild: cmd.Bool("skip-build"),
		Message:   cmd.String("message"),
	}, internal.WithConfig(cfg))
}

func lint(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Lint(ctx, internal.LintOptions{
		Format: cmd.String("format"),
		Output: cmd.Bool("output"),
	}, opts...)
}

func cert(_ context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Cert(internal.CertOptions{
		Hosts:    cmd.StringSlice("host"),
		Validity: cmd.Duration("validity"),
		Force:    cmd.Bool("force"),
	}, opts...)
}

func newPost(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("usage: quire new [flags] <title>")
	}
	return internal.NewPost(ctx, postservice.NewPost{
		Title: cmd.Args().First(),
		Slug:  cmd.String("slug"),
		Tags:  cmd.StringSlice("tag"),
		Draft: cmd.Bool("draft"),
	}, opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	return internal.MCP(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogger(internal.NewLogger(os.Stderr, cfg.App.LogLevel)),
	)
}

func main() {
	cmd := &cli.Command{
		Name:    "quire",
		Usage:   "Static blog generator with live reload, linting and GitHub Pages publishing",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "quire.yaml",
				Value:       "quire.yaml",
				Sources:     cli.EnvVars("QUIRE_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Render the site into the destination directory",
				Flags:  buildFlags,
				Action: build,
			},
			{
				Name:   "serve",
				Usage:  "Build, watch and serve the site with live reload",
				Flags:  buildFlags,
				Action: serve,
			},
			{
				Name:  "deploy",
				Usage: "Build the site and push it to the GitHub Pages branch",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Usage: "GitHub token used for the push", Sources: cli.EnvVars("GITHUB_TOKEN")},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Commit message"},
					&cli.BoolFlag{Name: "skip-build", Usage: "Publish the destination directory as it is"},
				},
				Action: deploy,
			},
			{
				Name:  "lint",
				Usage: "Check posts, front matter and the built site",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Usage: "Report format: text or json", Value: "text"},
					&cli.BoolFlag{Name: "output", Usage: "Also build and check the rendered HTML"},
				},
				Action: lint,
			},
			{
				Name:  "cert",
				Usage: "Generate a self-signed certificate for the dev server",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "host", Usage: "Host name or IP to include", Value: certs.DefaultHosts},
					&cli.DurationFlag{Name: "validity", Usage: "Certificate lifetime", Value: certs.DefaultValidity},
					&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing certificate"},
				},
				Action: cert,
			},
			{
				Name:      "new",
				Usage:     "Create a post with front matter",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Post tag (repeatable)"},
					&cli.StringFlag{Name: "slug", Usage: "File name slug (derived from the title by default)"},
					&cli.BoolFlag{Name: "draft", Usage: "Create the post in _drafts"},
				},
				Action: newPost,
			},
			{
				Name:   "mcp",
				Usage:  "Serve post tools over MCP on stdin/stdout",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
