package trust

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"
)

// placeholderMarker identifies the unfilled certificate template.
const placeholderMarker = "paste the contents of your ca cert file here"

// IsPlaceholder reports whether pemText is still the unfilled template.
func IsPlaceholder(pemText string) bool {
	return strings.Contains(pemText, placeholderMarker)
}

// ParseCACert parses the first certificate in pemText.
func ParseCACert(pemText string) (*x509.Certificate, error) {
	certs, err := ParseCACerts(pemText)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// ParseCACerts parses every CERTIFICATE block in pemText. Blocks of other
// types are skipped. At least one certificate is required.
func ParseCACerts(pemText string) ([]*x509.Certificate, error) {
	if strings.TrimSpace(pemText) == "" {
		return nil, ErrCACertMissing
	}
	if IsPlaceholder(pemText) {
		return nil, ErrCACertPlaceholder
	}

	var certs []*x509.Certificate
	rest := []byte(pemText)
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
		}
		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, ErrInvalidPEM
	}
	return certs, nil
}

// CheckValidity reports whether cert is inside its validity window at now.
func CheckValidity(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("%w: valid from %s", ErrCACertNotYetValid, cert.NotBefore.UTC().Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("%w: expired %s", ErrCACertExpired, cert.NotAfter.UTC().Format(time.RFC3339))
	}
	return nil
}

// CertInfo summarises a certificate for display.
type CertInfo struct {
	Subject    string    `json:"subject" yaml:"subject"`
	Issuer     string    `json:"issuer" yaml:"issuer"`
	NotBefore  time.Time `json:"not_before" yaml:"not_before"`
	NotAfter   time.Time `json:"not_after" yaml:"not_after"`
	IsCA       bool      `json:"is_ca" yaml:"is_ca"`
	DNSNames   []string  `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	SHA1       string    `json:"sha1" yaml:"sha1"`
	SHA256     string    `json:"sha256" yaml:"sha256"`
	SelfSigned bool      `json:"self_signed" yaml:"self_signed"`
}

// Describe builds a CertInfo for cert.
func Describe(cert *x509.Certificate) CertInfo {
	sha1Sum, _ := SHA1.Sum(cert.Raw)
	sha256Sum, _ := SHA256.Sum(cert.Raw)
	return CertInfo{
		Subject:    cert.Subject.String(),
		Issuer:     cert.Issuer.String(),
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
		IsCA:       cert.IsCA,
		DNSNames:   cert.DNSNames,
		SHA1:       FormatFingerprint(sha1Sum),
		SHA256:     FormatFingerprint(sha256Sum),
		SelfSigned: selfSigned(cert),
	}
}

// selfSigned requires the issuer to equal the subject and the signature to
// verify under the certificate's own key. Signatures Go refuses to check
// (SHA-1, still common on older broker CAs) are accepted on the name match.
func selfSigned(cert *x509.Certificate) bool {
	if !bytes.Equal(cert.RawIssuer, cert.RawSubject) {
		return false
	}
	err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature)
	var insecure x509.InsecureAlgorithmError
	return err == nil || errors.As(err, &insecure)
}
