package trust

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is what the sensor firmware pins
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// Algorithm names the digest used for certificate fingerprints.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

// DefaultAlgorithm is what the sensor firmware expects.
const DefaultAlgorithm = SHA1

// ParseAlgorithm accepts the usual spellings ("sha1", "SHA-1", "sha256", ...).
// An empty string yields DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case "":
		return DefaultAlgorithm, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Size returns the digest length in bytes, or 0 for an unknown algorithm.
func (a Algorithm) Size() int {
	switch a {
	case SHA1:
		return sha1.Size
	case SHA256:
		return sha256.Size
	}
	return 0
}

// Sum hashes der with the algorithm.
func (a Algorithm) Sum(der []byte) ([]byte, error) {
	switch a {
	case SHA1:
		sum := sha1.Sum(der) //nolint:gosec
		return sum[:], nil
	case SHA256:
		sum := sha256.Sum256(der)
		return sum[:], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
}

// opensslLabel is the prefix openssl prints before the fingerprint.
func (a Algorithm) opensslLabel() string {
	return strings.ToUpper(string(a)) + " Fingerprint="
}

// CertificateFingerprint hashes the DER encoding of cert, matching
// `openssl x509 -fingerprint`.
func CertificateFingerprint(cert *x509.Certificate, alg Algorithm) ([]byte, error) {
	return alg.Sum(cert.Raw)
}

// ValidateFingerprint checks fp against alg. An empty fingerprint is valid
// and means pinning is not configured.
func ValidateFingerprint(fp []byte, alg Algorithm) error {
	if len(fp) == 0 {
		return nil
	}
	size := alg.Size()
	if size == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(alg))
	}
	if len(fp) != size {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrFingerprintLength, alg, size, len(fp))
	}
	return nil
}

// ParseFingerprint decodes a fingerprint written in any of the forms a
// deployer is likely to paste:
//
//	SHA1 Fingerprint=AA:BB:...      (openssl output)
//	AA:BB:CC...  or  aabbcc...      (colon or bare hex)
//	{0xAA,0xBB,...}                 (C array initializer)
//	uint8_t fp[] = {0xAA,...};      (whole C declaration)
//
// The algorithm comes from the openssl label when present, otherwise from
// the decoded length. Empty input yields an empty fingerprint.
func ParseFingerprint(text string) ([]byte, Algorithm, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return []byte{}, DefaultAlgorithm, nil
	}

	var labelled Algorithm
	if i := strings.Index(s, "="); i >= 0 {
		label := strings.TrimSpace(s[:i])
		s = strings.TrimSpace(s[i+1:])

		// A C declaration such as "const uint8_t fp[] = {...}" carries no algorithm.
		if !strings.HasSuffix(label, "]") {
			name := strings.TrimSpace(strings.TrimSuffix(label, "Fingerprint"))
			alg, err := ParseAlgorithm(name)
			if err != nil || name == "" {
				return nil, "", fmt.Errorf("%w: unrecognised label %q", ErrInvalidFingerprint, label)
			}
			labelled = alg
		}
	}

	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "{}" {
		return []byte{}, orDefault(labelled), nil
	}

	var fp []byte
	var err error
	if strings.Contains(strings.ToLower(s), "0x") {
		fp, err = parseArray(s)
	} else {
		fp, err = hex.DecodeString(strings.NewReplacer(":", "", " ", "", "-", "").Replace(s))
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
		}
	}
	if err != nil {
		return nil, "", err
	}

	if len(fp) == 0 {
		return []byte{}, orDefault(labelled), nil
	}

	alg := labelled
	if alg == "" {
		switch len(fp) {
		case SHA1.Size():
			alg = SHA1
		case SHA256.Size():
			alg = SHA256
		default:
			return nil, "", fmt.Errorf("%w: %d bytes matches no known algorithm", ErrFingerprintLength, len(fp))
		}
	}
	if err := ValidateFingerprint(fp, alg); err != nil {
		return nil, "", err
	}
	return fp, alg, nil
}

func orDefault(alg Algorithm) Algorithm {
	if alg == "" {
		return DefaultAlgorithm
	}
	return alg
}

func parseArray(s string) ([]byte, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}"))

	var fp []byte
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		if !strings.HasPrefix(lower, "0x") || len(part) < 3 || len(part) > 4 {
			return nil, fmt.Errorf("%w: bad array element %q", ErrInvalidFingerprint, part)
		}
		digits := part[2:]
		if len(digits) == 1 {
			digits = "0" + digits
		}
		b, err := hex.DecodeString(digits)
		if err != nil {
			return nil, fmt.Errorf("%w: bad array element %q", ErrInvalidFingerprint, part)
		}
		fp = append(fp, b[0])
	}
	return fp, nil
}

// FormatFingerprint renders fp the way openssl does: upper-case hex pairs
// joined by colons.
func FormatFingerprint(fp []byte) string {
	parts := make([]string, len(fp))
	for i, b := range fp {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// FormatOpenSSL renders fp with the openssl label, e.g. "SHA1 Fingerprint=AA:BB".
func FormatOpenSSL(fp []byte, alg Algorithm) string {
	return alg.opensslLabel() + FormatFingerprint(fp)
}

// FormatFingerprintArray renders fp as a C array initializer, the form the
// firmware header uses.
func FormatFingerprintArray(fp []byte) string {
	parts := make([]string, len(fp))
	for i, b := range fp {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
