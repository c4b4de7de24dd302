package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/clipboard"
	"github.com/vaultbook/vaultbook/internal/config"
	"github.com/vaultbook/vaultbook/internal/logging"
)

// app carries the state shared by every command of one invocation
type app struct {
	cfgFile string
	dataDir string
	verbose bool

	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
	clipboard clipboard.Backend

	// serviceOptions are applied after the ones derived from configuration
	serviceOptions []catalog.Option
}

func newApp() *app {
	return &app{
		log:       zerolog.Nop(),
		clipboard: clipboard.System,
	}
}

// NewRootCommand builds the complete command tree
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vaultbook",
		Short: "Organize your money into local vaults",
		Long: `Vaultbook keeps several independent money vaults on this machine.

Each vault has its own type, settings and transaction ledger. One vault is
active at a time; transaction commands always act on the active vault.

Vault types:
- cash          plain balance tracking
- anti_fragile  buffer vault with a volatility reserve
- shared        vault split between several members

All data lives in a local data directory and never leaves the machine.`,
		Version:            "1.0.0",
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/vaultbook/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory holding the catalog and vaults")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newCreateCommand(a))
	rootCmd.AddCommand(newListCommand(a))
	rootCmd.AddCommand(newShowCommand(a))
	rootCmd.AddCommand(newActiveCommand(a))
	rootCmd.AddCommand(newUseCommand(a))
	rootCmd.AddCommand(newUpdateCommand(a))
	rootCmd.AddCommand(newArchiveCommand(a))
	rootCmd.AddCommand(newUnarchiveCommand(a))
	rootCmd.AddCommand(newDeleteCommand(a))
	rootCmd.AddCommand(newReorderCommand(a))
	rootCmd.AddCommand(newTxCommand(a))
	rootCmd.AddCommand(newStatusCommand(a))
	rootCmd.AddCommand(newReconcileCommand(a))
	rootCmd.AddCommand(newDoctorCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))

	return rootCmd
}

// Execute builds the command tree and runs it against os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.cfgFile == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		a.cfgFile = path
	}

	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	// Set data directory from config if not provided
	if a.dataDir == "" {
		a.dataDir = cfg.DataDir
	}

	opts := logging.FromConfig(cfg.Log, a.verbose)
	opts.Console = cmd.ErrOrStderr()
	a.log, a.logCloser = logging.New(opts)
	a.log.Debug().Str("config", a.cfgFile).Str("data_dir", a.dataDir).Str("command", cmd.CommandPath()).Msg("starting")
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}
