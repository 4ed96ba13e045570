package trust

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a Bundle.
type File struct {
	CACert               string `yaml:"ca_cert,omitempty"`
	CACertFile           string `yaml:"ca_cert_file,omitempty"`
	Fingerprint          string `yaml:"fingerprint,omitempty"`
	FingerprintAlgorithm string `yaml:"fingerprint_algorithm,omitempty"`
}

// LoadBundleFile reads a YAML credentials file. A relative ca_cert_file is
// resolved against the directory of path.
func LoadBundleFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}

	return f.Bundle(filepath.Dir(path))
}

// Bundle converts the file contents. baseDir resolves a relative CACertFile.
func (f File) Bundle(baseDir string) (*Bundle, error) {
	if f.CACert != "" && f.CACertFile != "" {
		return nil, fmt.Errorf("ca_cert and ca_cert_file are mutually exclusive")
	}

	caPEM := f.CACert
	if f.CACertFile != "" {
		p := f.CACertFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate %s: %w", p, err)
		}
		caPEM = string(data)
	}

	alg, err := ParseAlgorithm(f.FingerprintAlgorithm)
	if err != nil {
		return nil, err
	}

	fp, parsedAlg, err := ParseFingerprint(f.Fingerprint)
	if err != nil {
		return nil, err
	}
	if len(fp) > 0 && f.FingerprintAlgorithm != "" && parsedAlg != alg {
		return nil, fmt.Errorf("%w: fingerprint is %s but fingerprint_algorithm is %s", ErrFingerprintLength, parsedAlg, alg)
	}
	if len(fp) > 0 {
		alg = parsedAlg
	}

	return &Bundle{CACertPEM: caPEM, Fingerprint: fp, Algorithm: alg}, nil
}

// WriteFile stores b as YAML with the CA inline.
func (b *Bundle) WriteFile(path string) error {
	f := File{
		CACert:               b.CACertPEM,
		FingerprintAlgorithm: string(b.algorithm()),
	}
	if b.PinningConfigured() {
		f.Fingerprint = FormatFingerprint(b.Fingerprint)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file %s: %w", path, err)
	}
	return nil
}
