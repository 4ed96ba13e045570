package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arhuman/tempunit/internal/probe"
	"github.com/arhuman/tempunit/internal/trust"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		broker     string
		serverName string
		attempts   int
		timeout    time.Duration
		verify     bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Read the certificate a broker presents and print its fingerprints",
		Long: `Probe completes a TLS handshake with the broker, without trusting it, and
prints the presented chain with SHA-1 and SHA-256 fingerprints. Compare the
output with a fingerprint obtained out of band before pinning it.

With --verify, a second handshake uses the configured credentials and reports
whether the temperature unit would accept this broker. The MQTT protocol itself
is never spoken.`,
		Example: `  $ credtool probe --broker mqtt.example.com:8883
  $ credtool --credentials credentials.yaml probe --broker 10.0.0.5:8883 --server-name mqtt.lan --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("broker") {
				cfg.BrokerAddr = broker
			}
			if cmd.Flags().Changed("server-name") {
				cfg.ServerName = serverName
			}
			if cmd.Flags().Changed("attempts") {
				cfg.ProbeAttempts = attempts
			}
			if cmd.Flags().Changed("timeout") {
				cfg.ConnectTimeout = timeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			initial, max := cfg.ReconnectDelays()
			p, err := probe.New(probe.Options{
				Addr:       cfg.BrokerAddr,
				ServerName: cfg.ResolvedServerName(),
				Timeout:    cfg.ConnectTimeout,
				Attempts:   cfg.ProbeAttempts,
				Backoff:    probe.NewBackoff(initial, max, a.logger),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}

			result, err := p.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Broker:  %s (server name %s)\n", result.Addr, result.ServerName)
			fmt.Fprintf(out, "TLS:     %s, %s\n", result.TLSVersion, result.CipherSuite)
			for i, cert := range result.Chain {
				info := trust.Describe(cert)
				fmt.Fprintf(out, "[%d] subject: %s\n", i, info.Subject)
				fmt.Fprintf(out, "    issuer:  %s\n", info.Issuer)
				fmt.Fprintf(out, "    expires: %s\n", info.NotAfter.UTC().Format(time.RFC3339))
				fmt.Fprintf(out, "    SHA1 Fingerprint=%s\n", info.SHA1)
				fmt.Fprintf(out, "    SHA256 Fingerprint=%s\n", info.SHA256)
			}
			leafSHA1, err := result.Fingerprint(trust.SHA1)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pin:     %s\n", trust.FormatFingerprintArray(leafSHA1))

			if !verify {
				return nil
			}

			b, source, err := a.bundle()
			if err != nil {
				return err
			}
			if err := p.Verify(cmd.Context(), b); err != nil {
				fmt.Fprintf(out, "Verify:  FAILED with %s\n", source)
				return err
			}
			fmt.Fprintf(out, "Verify:  OK with %s\n", source)
			return nil
		},
	}

	cmd.Flags().StringVar(&broker, "broker", "", "Broker host:port (default $MQTT_BROKER or localhost:8883)")
	cmd.Flags().StringVar(&serverName, "server-name", "", "TLS server name (default: broker host)")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Dial attempts (default $PROBE_ATTEMPTS or 3)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-attempt timeout, e.g. 500ms or 10s (default $CONNECT_TIMEOUT or 5s)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Also check the broker against the configured credentials")
	return cmd
}
