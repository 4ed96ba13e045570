// Package trust validates the compiled-in broker credentials and turns them
// into TLS configuration: a CA trust anchor, a pinned certificate
// fingerprint, or both.
package trust

import "errors"

var (
	// ErrCACertMissing is returned when no CA certificate text is configured.
	ErrCACertMissing = errors.New("trust: CA certificate is empty")

	// ErrCACertPlaceholder is returned when the CA certificate is still the unfilled template.
	ErrCACertPlaceholder = errors.New("trust: CA certificate is the unfilled template")

	// ErrInvalidPEM is returned when the CA text holds no decodable CERTIFICATE block.
	ErrInvalidPEM = errors.New("trust: no PEM certificate block found")

	// ErrInvalidCertificate is returned when a PEM block does not hold a valid X.509 certificate.
	ErrInvalidCertificate = errors.New("trust: invalid X.509 certificate")

	// ErrCACertExpired is returned when the CA certificate is past its NotAfter date.
	ErrCACertExpired = errors.New("trust: CA certificate has expired")

	// ErrCACertNotYetValid is returned when the CA certificate is before its NotBefore date.
	ErrCACertNotYetValid = errors.New("trust: CA certificate is not yet valid")

	// ErrFingerprintLength is returned when a fingerprint does not match the digest size.
	ErrFingerprintLength = errors.New("trust: fingerprint length does not match algorithm")

	// ErrInvalidFingerprint is returned when fingerprint text cannot be parsed.
	ErrInvalidFingerprint = errors.New("trust: invalid fingerprint")

	// ErrUnknownAlgorithm is returned for an unsupported fingerprint algorithm.
	ErrUnknownAlgorithm = errors.New("trust: unknown fingerprint algorithm")

	// ErrFingerprintMismatch is returned when the peer certificate does not match the pinned fingerprint.
	ErrFingerprintMismatch = errors.New("trust: server certificate fingerprint mismatch")

	// ErrNoPeerCertificates is returned when the peer presents no certificate.
	ErrNoPeerCertificates = errors.New("trust: no peer certificates presented")

	// ErrNoTrustAnchor is returned when neither a CA nor a fingerprint is configured.
	ErrNoTrustAnchor = errors.New("trust: neither CA certificate nor fingerprint configured")
)
