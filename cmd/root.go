// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/steady/internal/config"
	"github.com/xkilldash9x/steady/internal/observability"
)

// cliContext carries what PersistentPreRunE prepared to the subcommands.
type cliContext struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
}

// newRootCmd builds the command tree around its own viper instance so tests
// can run it repeatedly.
func newRootCmd() *cobra.Command {
	cli := &cliContext{v: viper.New()}
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "steady",
		Short:         "steady asserts on page elements, waiting until they settle.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(cli.v, cfgFile); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(cli.v)
			if err != nil {
				observability.InitializeLogger(config.NewDefaultConfig().Logger())
				return err
			}
			cli.cfg = cfg

			observability.InitializeLogger(cfg.Logger())
			cli.logger = observability.GetLogger()
			cli.logger.Debug("Starting steady", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./steady.yaml, then ~/.steady.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newCheckCmd(cli), newVersionCmd())
	return rootCmd
}

// Execute runs the CLI with a signal aware context.
func Execute(ctx context.Context) int {
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	defer observability.Sync()
	if err == nil {
		return 0
	}

	var failed *checksFailedError
	if !errors.As(err, &failed) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

// initializeConfig loads defaults, the config file and STEADY_* environment
// variables into v.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName("steady")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STEADY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
