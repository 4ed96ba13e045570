package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arhuman/tempunit/internal/trust"
)

func newValidateCmd(a *app) *cobra.Command {
	var skipTime bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that the CA certificate and fingerprint are well formed",
		Long: `Validate parses the CA certificate as PEM/X.509 and checks that the fingerprint,
when set, has the length of its digest algorithm. An empty fingerprint means
pinning is disabled and is accepted. The CA validity window is checked against
the current time unless --skip-time is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, source, err := a.bundle()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Credentials: %s\n", source)
			describeBundle(out, b)

			if skipTime {
				err = b.Validate()
			} else {
				err = b.ValidateAt(time.Now())
			}
			if err != nil {
				a.logger.Warn("Credentials failed validation", zap.Error(err))
				fmt.Fprintln(out, "Problems:")
				for _, problem := range flatten(err) {
					fmt.Fprintf(out, "  - %v\n", problem)
				}
				return fmt.Errorf("credentials are not valid")
			}

			serverName := a.cfg.ResolvedServerName()
			creds, err := b.TransportCredentials(serverName)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Transport:   %s, server name %s\n", creds.Info().SecurityProtocol, serverName)
			fmt.Fprintln(out, "OK")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipTime, "skip-time", false, "Do not check the CA validity window")
	return cmd
}

func describeBundle(out io.Writer, b *trust.Bundle) {
	if cert, err := b.CACertificate(); err == nil {
		info := trust.Describe(cert)
		fmt.Fprintf(out, "CA subject:  %s\n", info.Subject)
		fmt.Fprintf(out, "CA validity: %s to %s\n",
			info.NotBefore.UTC().Format(time.RFC3339), info.NotAfter.UTC().Format(time.RFC3339))
		fmt.Fprintf(out, "CA is CA:    %t\n", info.IsCA)
	} else if b.HasCACert() {
		fmt.Fprintln(out, "CA subject:  (unparseable)")
	} else {
		fmt.Fprintln(out, "CA subject:  (none)")
	}

	if b.PinningConfigured() {
		fmt.Fprintf(out, "Pinning:     %s %s\n", b.Algorithm, trust.FormatFingerprint(b.Fingerprint))
	} else {
		fmt.Fprintln(out, "Pinning:     not configured")
	}
}

// flatten unpacks errors.Join results into their parts.
func flatten(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
