package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"symcheck/internal/config"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func errorText(msg string) string {
	return red("✗ " + msg)
}

// isTTY reports whether both ends of the session are an interactive terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	envFiles   []string
	logLevel   string
	indexDir   string
}

func (f *rootFlags) load() (config.Config, config.Metadata, error) {
	opts := []config.Option{config.WithEnvFiles(f.envFiles...)}
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	overrides := map[string]any{}
	if f.logLevel != "" {
		overrides["observability.logging.level"] = f.logLevel
	}
	if f.indexDir != "" {
		overrides["index.dir"] = f.indexDir
	}
	if len(overrides) > 0 {
		opts = append(opts, config.WithOverrides(overrides))
	}
	return config.Load(opts...)
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "symcheck",
		Short: "Symptom screening assistant backed by MedlinePlus and a clinical textbook",
		Long: `symcheck screens reported symptoms for emergencies, asks a few follow-up
questions and produces a preliminary assessment grounded in a local
reference index. It is not a substitute for professional medical advice.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "config file (default $HOME/.symcheck/config.yaml or ./config.yaml)")
	pf.StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment is read")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.indexDir, "index-dir", "", "reference index directory")

	root.AddCommand(
		newChatCommand(flags),
		newServeCommand(flags),
		newIndexCommand(flags),
		newVersionCommand(),
	)
	return root
}
