package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arhuman/tempunit/internal/config"
	"github.com/arhuman/tempunit/internal/trust"
)

func newInitCmd(a *app) *cobra.Command {
	var (
		caFile      string
		fingerprint string
		serverCert  string
		outFile     string
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init --ca <ca-file> [--fingerprint <text> | --server-cert <cert-file>] --out <file>",
		Short: "Write a credentials file from a CA certificate and an optional broker fingerprint",
		Long: `Init fills in the credentials template. The CA certificate is embedded inline.
The fingerprint is either given as text (openssl output, colon hex or a C array)
or computed from the broker certificate with --server-cert. The result is
validated before it is written.`,
		Example: `  $ credtool init --ca ca.crt --out credentials.yaml
  $ credtool init --ca ca.crt --server-cert mqtt-serv.crt --out credentials.yaml
  $ credtool init --fingerprint "SHA1 Fingerprint=AB:CD:..." --out credentials.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.NewConfigLoader().ValidateRequired("out", outFile); err != nil {
				return err
			}
			if fingerprint != "" && serverCert != "" {
				return fmt.Errorf("--fingerprint and --server-cert are mutually exclusive")
			}

			b := &trust.Bundle{Algorithm: trust.DefaultAlgorithm}

			if caFile != "" {
				data, err := os.ReadFile(caFile)
				if err != nil {
					return fmt.Errorf("failed to read CA certificate: %w", err)
				}
				b.CACertPEM = string(data)
			}

			switch {
			case fingerprint != "":
				fp, alg, err := trust.ParseFingerprint(fingerprint)
				if err != nil {
					return err
				}
				b.Fingerprint, b.Algorithm = fp, alg
			case serverCert != "":
				cert, err := readCertificate(serverCert)
				if err != nil {
					return err
				}
				fp, err := trust.CertificateFingerprint(cert, b.Algorithm)
				if err != nil {
					return err
				}
				b.Fingerprint = fp
			}

			if err := b.Validate(); err != nil {
				return fmt.Errorf("refusing to write invalid credentials: %w", err)
			}

			if !force {
				if _, err := os.Stat(outFile); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", outFile)
				}
			}
			if err := b.WriteFile(outFile); err != nil {
				return err
			}

			a.logger.Info("Wrote credentials file",
				zap.String("file", outFile),
				zap.Bool("ca", b.HasCACert()),
				zap.Bool("pinned", b.PinningConfigured()))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&caFile, "ca", "", "CA certificate PEM file")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Broker certificate fingerprint text")
	cmd.Flags().StringVar(&serverCert, "server-cert", "", "Broker certificate to compute the fingerprint from")
	cmd.Flags().StringVarP(&outFile, "out", "o", "credentials.yaml", "Output file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing output file")
	return cmd
}
