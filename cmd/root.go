// Package cmd wires the srcchunk command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"srcchunk/pkg/config"
	"srcchunk/pkg/history"
	"srcchunk/pkg/logging"
	"srcchunk/pkg/serialize"
	"srcchunk/pkg/version"
)

type rootFlags struct {
	configPath    string
	maxSize       string
	tokens        bool
	outputDir     string
	stream        bool
	workers       int
	noHistory     bool
	gitTimeout    string
	debug         bool
	historyRunner history.Runner
}

// RootCmd is the base command when called without any subcommands.
var RootCmd = NewRootCmd()

// NewRootCmd builds the root command with its flags and subcommands.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{historyRunner: history.GitRunner{}}

	cmd := &cobra.Command{
		Use:   "srcchunk [directory]",
		Short: "srcchunk packs a source tree into size-bounded text chunks",
		Long: `srcchunk walks a directory, drops ignored and binary files, orders the rest
by priority and recent commit activity, and packs their contents into chunk
files no larger than a configured size, or streams them to stdout.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.Setup(f.debug, version.AppName, version.Version); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			return runSerialize(cmd.Context(), cmd, root, f, logging.Logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "Path to a "+config.FileName+" file (default: searched from the directory upwards)")
	flags.StringVarP(&f.maxSize, "max-size", "m", "", "Chunk size threshold, e.g. 10MB, or 20K with --tokens")
	flags.BoolVarP(&f.tokens, "tokens", "t", false, "Measure chunk size in whitespace-separated tokens")
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for chunk files (default: <directory>/"+config.DefaultOutputDirName+")")
	flags.BoolVarP(&f.stream, "stream", "s", false, "Write chunks to stdout instead of files")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Number of file readers (default: number of CPUs)")
	flags.BoolVar(&f.noHistory, "no-history", false, "Do not boost recently committed files")
	flags.StringVar(&f.gitTimeout, "git-timeout", "", "Time limit for reading commit history (default: 30s)")
	cmd.PersistentFlags().BoolVar(&f.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs RootCmd.
func Execute() error {
	return RootCmd.ExecuteContext(context.Background())
}

func runSerialize(ctx context.Context, cmd *cobra.Command, root string, f *rootFlags, logger *zap.Logger) error {
	root, err := serialize.ResolveRoot(root)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(root, f.configPath, logger)
	if err != nil {
		return err
	}
	overrides, err := flagConfig(cmd, f, cfg.TokenMode || f.tokens)
	if err != nil {
		return err
	}
	cfg.Merge(overrides)

	out := cmd.OutOrStdout()
	if !cfg.Stream && cfg.OutputDir == "" && !isTerminal(out) {
		logger.Debug("Stdout is not a terminal, streaming chunks")
		cfg.Stream = true
	}

	_, err = serialize.Execute(ctx, root, cfg, serialize.Options{
		History: f.historyRunner,
		Stdout:  out,
	}, logger)
	return err
}

// loadConfig reads the explicit config file, or the nearest one found from
// root upwards. No file yields an empty configuration.
func loadConfig(root, explicit string, logger *zap.Logger) (*config.Config, error) {
	path := explicit
	if path == "" {
		found, ok := config.FindConfigFile(root)
		if !ok {
			logger.Debug("No config file found", zap.String("directory", root))
			return &config.Config{}, nil
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded config file", zap.String("path", path))
	return cfg, nil
}

// flagConfig collects the flags the user set explicitly. tokens selects how
// --max-size is parsed.
func flagConfig(cmd *cobra.Command, f *rootFlags, tokens bool) (config.Config, error) {
	var c config.Config
	flags := cmd.Flags()
	if flags.Changed("max-size") {
		size, err := config.ParseSize(f.maxSize, tokens)
		if err != nil {
			return c, fmt.Errorf("invalid --max-size: %w", err)
		}
		c.MaxSize = &size
	}
	if flags.Changed("output-dir") {
		c.OutputDir = f.outputDir
	}
	if flags.Changed("workers") {
		c.Workers = f.workers
	}
	if flags.Changed("git-timeout") {
		c.GitTimeout = f.gitTimeout
	}
	c.Stream = f.stream
	c.TokenMode = f.tokens
	c.NoHistory = f.noHistory
	return c, nil
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
