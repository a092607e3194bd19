// Command makerd is the maker execution engine's CLI entry point: it
// wires every external collaborator (git, filesystem, language model,
// tool runner, config persistence) into an engine.Engine and drives it
// from cobra subcommands, in the teacher's cmd/gh-aw/main.go layout.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/makercode/maker/pkg/console"
	"github.com/makercode/maker/pkg/engine"
	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/linter/providers"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/envutil"
	"github.com/makercode/maker/pkg/fileutil"
	"github.com/makercode/maker/pkg/fsmirror"
	"github.com/makercode/maker/pkg/llmclient"
	"github.com/makercode/maker/pkg/logger"
	"github.com/makercode/maker/pkg/makerconfig"
	"github.com/makercode/maker/pkg/makerui"
	"github.com/makercode/maker/pkg/rcs"
	"github.com/makercode/maker/pkg/toolrunner"
)

var envLog = logger.New("makerd:env")

var version = "dev"

var rootFlag string

var rootCmd = &cobra.Command{
	Use:     "makerd",
	Short:   "AI-assisted code generation execution engine",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func languageProviders() []ports.LanguageProvider {
	return []ports.LanguageProvider{
		providers.NewGo(),
		providers.TypeScript{},
		providers.Python{},
		providers.Rust{},
	}
}

func projectRoot() (string, error) {
	root := rootFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	abs, err := fileutil.ValidateAbsolutePath(root)
	if err != nil {
		return "", err
	}
	if !fileutil.DirExists(abs) {
		return "", fmt.Errorf("project root %s does not exist", abs)
	}
	return abs, nil
}

// applyEnvOverrides lets a few MAKER_* environment variables override the
// persisted config for the current invocation only, without writing them
// back to .maker/config.yaml.
func applyEnvOverrides(cfg config.MakerConfig) config.MakerConfig {
	cfg.MaxParallelism = envutil.GetIntFromEnv("MAKER_MAX_PARALLELISM", cfg.MaxParallelism, 1, 64, envLog)
	cfg.MaxAgents = envutil.GetIntFromEnv("MAKER_MAX_AGENTS", cfg.MaxAgents, 1, 64, envLog)
	cfg.UseGitWorktrees = envutil.GetBoolFromEnv("MAKER_USE_GIT_WORKTREES", cfg.UseGitWorktrees)
	cfg.AutoFixLinter = envutil.GetBoolFromEnv("MAKER_AUTO_FIX_LINTER", cfg.AutoFixLinter)
	cfg.LLMProvider = config.LLMProvider(envutil.GetStringFromEnv("MAKER_LLM_PROVIDER", string(cfg.LLMProvider)))
	return cfg
}

func buildEngine(root string) (*engine.Engine, error) {
	persister := makerconfig.New(root)
	cfg, err := persister.Load(context.Background())
	if err != nil {
		return nil, err
	}
	cfg = applyEnvOverrides(cfg)

	collab := engine.Collaborators{
		RCS:          rcs.New(root),
		FS:           fsmirror.New(root),
		Tools:        toolrunner.New(),
		Persister:    persister,
		Providers:    languageProviders(),
		NewLLMClient: llmclient.New,
	}

	return engine.New(cfg, collab)
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Start a task from a natural-language prompt and watch it run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		e, err := buildEngine(root)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		taskID, err := e.StartTask(ctx, args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(err.Error()))
			if taskID == "" {
				return err
			}
		}
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage("task "+taskID+" planned"))

		if err := e.ExecutePlan(ctx); err != nil {
			return err
		}

		snapshots, unsubscribe := e.Subscribe()
		dashboard := makerui.New(snapshots, unsubscribe)
		if _, err := tea.NewProgram(dashboard).Run(); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the project root's size and configuration state",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		if fileutil.IsDirEmpty(root) {
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage("project root has no files yet"))
		}
		configured := fileutil.FileExists(filepath.Join(root, ".maker", "config.yaml"))
		size := fileutil.CalculateDirectorySize(root)

		fmt.Printf("root: %s\n", root)
		fmt.Printf("sizeBytes: %d\n", size)
		fmt.Printf("configured: %v\n", configured)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or update the engine configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (credentials redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		cfg, err := makerconfig.New(root).Load(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("llmProvider: %s\n", cfg.LLMProvider)
		fmt.Printf("riskThreshold: %.2f\n", cfg.RiskThreshold)
		fmt.Printf("maxAgents: %d\n", cfg.MaxAgents)
		fmt.Printf("maxParallelism: %d\n", cfg.MaxParallelism)
		fmt.Printf("useGitWorktrees: %v\n", cfg.UseGitWorktrees)
		fmt.Printf("autoFixLinter: %v\n", cfg.AutoFixLinter)
		fmt.Printf("credentialsSet: %v\n", len(cfg.ProviderCredentials) > 0)
		return nil
	},
}

var setCredentialProvider string

var configSetCredentialCmd = &cobra.Command{
	Use:   "set-credential",
	Short: "Seal a provider API key into the project config without echoing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := projectRoot()
		if err != nil {
			return err
		}
		persister := makerconfig.New(root)
		cfg, err := persister.Load(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stderr, "API key: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading credential: %w", err)
		}

		sealed, err := config.Seal(string(raw))
		if err != nil {
			return fmt.Errorf("sealing credential: %w", err)
		}

		partial := config.MakerConfig{ProviderCredentials: sealed}
		if setCredentialProvider != "" {
			partial.LLMProvider = config.LLMProvider(setCredentialProvider)
		}
		cfg = cfg.Merge(partial)

		return persister.Save(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root (default: current directory)")
	configSetCredentialCmd.Flags().StringVar(&setCredentialProvider, "provider", "", "llm provider this credential is for (gemini, openai)")

	configCmd.AddCommand(configShowCmd, configSetCredentialCmd)
	rootCmd.AddCommand(runCmd, configCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
