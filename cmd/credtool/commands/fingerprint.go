package commands

import (
	"crypto/x509"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arhuman/tempunit/internal/trust"
)

func newFingerprintCmd(a *app) *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "fingerprint <cert-file>",
		Short: "Print the fingerprint of a certificate in openssl and C array form",
		Long: `Fingerprint hashes the DER encoding of the first certificate in <cert-file>
(PEM or DER), exactly like 'openssl x509 -noout -fingerprint'. The second output
line is the same value as a C array initializer for the firmware header.`,
		Example: `  $ credtool fingerprint mqtt-serv.crt
  $ credtool fingerprint --algorithm sha256 mqtt-serv.crt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := trust.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}

			cert, err := readCertificate(args[0])
			if err != nil {
				return err
			}

			fp, err := trust.CertificateFingerprint(cert, alg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, trust.FormatOpenSSL(fp, alg))
			fmt.Fprintln(out, trust.FormatFingerprintArray(fp))
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", string(trust.DefaultAlgorithm), "Digest algorithm: sha1 or sha256")
	return cmd
}

// readCertificate loads the first certificate of a PEM file, falling back
// to raw DER.
func readCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate %s: %w", path, err)
	}

	cert, pemErr := trust.ParseCACert(string(data))
	if pemErr == nil {
		return cert, nil
	}

	cert, derErr := x509.ParseCertificate(data)
	if derErr != nil {
		return nil, fmt.Errorf("%s: %w", path, pemErr)
	}
	return cert, nil
}
