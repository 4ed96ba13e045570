package trust

import (
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/credentials"

	"github.com/arhuman/tempunit/internal/certs"
)

// Bundle is the pair of values the sensor needs to trust its broker.
type Bundle struct {
	CACertPEM   string
	Fingerprint []byte
	Algorithm   Algorithm
}

// Default returns the bundle compiled into the build.
func Default() *Bundle {
	return &Bundle{
		CACertPEM:   certs.CACert,
		Fingerprint: certs.Fingerprint(),
		Algorithm:   SHA1,
	}
}

// HasCACert reports whether any CA text is configured. Placeholder text
// counts as configured so that Validate reports it.
func (b *Bundle) HasCACert() bool {
	return strings.TrimSpace(b.CACertPEM) != ""
}

// PinningConfigured reports whether a fingerprint is set.
func (b *Bundle) PinningConfigured() bool {
	return len(b.Fingerprint) > 0
}

// HasTrustAnchor reports whether the bundle can authenticate a broker at all.
func (b *Bundle) HasTrustAnchor() bool {
	return b.HasCACert() || b.PinningConfigured()
}

func (b *Bundle) algorithm() Algorithm {
	if b.Algorithm == "" {
		return DefaultAlgorithm
	}
	return b.Algorithm
}

// CACertificate parses the first certificate of the CA text.
func (b *Bundle) CACertificate() (*x509.Certificate, error) {
	return ParseCACert(b.CACertPEM)
}

// Validate checks the structural properties of both values.
func (b *Bundle) Validate() error {
	return b.validate(time.Time{})
}

// ValidateAt is Validate plus a check that the CA is valid at now.
func (b *Bundle) ValidateAt(now time.Time) error {
	return b.validate(now)
}

func (b *Bundle) validate(now time.Time) error {
	var errs []error

	if !b.HasTrustAnchor() {
		errs = append(errs, ErrNoTrustAnchor)
	}

	if b.HasCACert() {
		chain, err := ParseCACerts(b.CACertPEM)
		if err != nil {
			errs = append(errs, err)
		} else if !now.IsZero() {
			for _, cert := range chain {
				if err := CheckValidity(cert, now); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", cert.Subject.CommonName, err))
				}
			}
		}
	}

	if err := ValidateFingerprint(b.Fingerprint, b.algorithm()); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// CertPool returns a pool holding every certificate of the CA text.
func (b *Bundle) CertPool() (*x509.CertPool, error) {
	chain, err := ParseCACerts(b.CACertPEM)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	for _, cert := range chain {
		pool.AddCert(cert)
	}
	return pool, nil
}

// VerifyPinned compares the leaf of rawCerts with the configured fingerprint.
// Its signature matches tls.Config.VerifyPeerCertificate.
func (b *Bundle) VerifyPinned(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return ErrNoPeerCertificates
	}
	sum, err := b.algorithm().Sum(rawCerts[0])
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(sum, b.Fingerprint) != 1 {
		return fmt.Errorf("%w: got %s", ErrFingerprintMismatch, FormatFingerprint(sum))
	}
	return nil
}

// TLSConfig builds the client configuration for the broker connection.
//
// With a CA, the chain is verified against it. With a fingerprint, the leaf
// must also match the pin. A fingerprint without a CA skips chain
// verification and trusts the pin alone.
func (b *Bundle) TLSConfig(serverName string) (*tls.Config, error) {
	if !b.HasTrustAnchor() {
		return nil, ErrNoTrustAnchor
	}
	if err := ValidateFingerprint(b.Fingerprint, b.algorithm()); err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	if b.HasCACert() {
		pool, err := b.CertPool()
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	} else {
		//nolint:gosec // the pin replaces chain verification
		cfg.InsecureSkipVerify = true
	}

	if b.PinningConfigured() {
		cfg.VerifyPeerCertificate = b.VerifyPinned
	}

	return cfg, nil
}

// TransportCredentials wraps TLSConfig for gRPC clients.
func (b *Bundle) TransportCredentials(serverName string) (credentials.TransportCredentials, error) {
	cfg, err := b.TLSConfig(serverName)
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(cfg), nil
}
