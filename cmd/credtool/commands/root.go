// Package commands holds the credtool cobra commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arhuman/tempunit/internal/config"
	"github.com/arhuman/tempunit/internal/logging"
	"github.com/arhuman/tempunit/internal/trust"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	envFile string
	cfg     *config.CredtoolConfig
	logger  *zap.Logger

	// flag values, applied over cfg when set
	credentials string
	debug       bool
}

// NewRootCmd builds the credtool command tree.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "credtool",
		Short: "Validate and prepare the temperature unit's MQTT TLS credentials",
		Long: `credtool checks the CA certificate and broker fingerprint the temperature unit
uses to secure its MQTT connection. Without --credentials it checks the values
compiled into the build; those ship as an unfilled template and fail validation
until a deployer fills them in.`,
		Example: `  $ credtool validate
  $ credtool fingerprint mqtt-serv.crt
  $ credtool probe --broker mqtt.example.com:8883
  $ credtool init --ca ca.crt --server-cert mqtt-serv.crt --out credentials.yaml
  $ credtool --credentials credentials.yaml probe --broker mqtt.example.com:8883 --verify`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file to load settings from")
	root.PersistentFlags().StringVar(&a.credentials, "credentials", "", "YAML credentials file (default: compiled-in values, or $TEMPUNIT_CREDENTIALS)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newValidateCmd(a),
		newFingerprintCmd(a),
		newProbeCmd(a),
		newInitCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads settings and applies the persistent flags over them. Commands
// that dial the broker call cfg.Validate after their own overrides.
func (a *app) setup(cmd *cobra.Command) error {
	logger, _, err := logging.SetupLogger(a.debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := config.LoadCredtoolConfig(a.envFile, logger.Named("config"))
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("credentials") {
		cfg.CredentialsFile = a.credentials
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = a.debug
	}
	a.cfg = cfg

	if cfg.Debug != a.debug {
		_ = logger.Sync()
		if logger, _, err = logging.SetupLogger(cfg.Debug); err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
	}
	a.logger = logger
	cfg.LogConfig(logger.Named("config"))
	return nil
}

// bundle loads the credentials file when one is configured, or the
// compiled-in template otherwise.
func (a *app) bundle() (*trust.Bundle, string, error) {
	if a.cfg.CredentialsFile == "" {
		return trust.Default(), "compiled-in template", nil
	}
	if err := config.NewConfigLoader().ValidateFile("credentials", a.cfg.CredentialsFile); err != nil {
		return nil, "", err
	}

	b, err := trust.LoadBundleFile(a.cfg.CredentialsFile)
	if err != nil {
		return nil, "", err
	}
	a.logger.Debug("Loaded credentials file", zap.String("file", a.cfg.CredentialsFile))
	return b, a.cfg.CredentialsFile, nil
}
