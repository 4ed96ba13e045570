package trust

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/credentials"

	"github.com/arhuman/tempunit/internal/testpki"
)

func TestDefaultBundle(t *testing.T) {
	b := Default()
	assert.Equal(t, SHA1, b.Algorithm)
	assert.False(t, b.PinningConfigured(), "template ships without a fingerprint")
	assert.True(t, b.HasTrustAnchor())

	// The template is not live credentials and must fail validation.
	err := b.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCACertPlaceholder)
	assert.NotErrorIs(t, err, ErrFingerprintLength)
}

func TestBundleValidate(t *testing.T) {
	ca := testpki.NewAuthority(t, "tempunit-test CA")

	t.Run("valid CA without pin", func(t *testing.T) {
		b := &Bundle{CACertPEM: string(ca.CertPEM)}
		assert.NoError(t, b.Validate())
		assert.NoError(t, b.ValidateAt(time.Now()))
	})

	t.Run("pin only", func(t *testing.T) {
		b := &Bundle{Fingerprint: sampleFingerprint, Algorithm: SHA1}
		assert.NoError(t, b.Validate())
	})

	t.Run("nothing configured", func(t *testing.T) {
		b := &Bundle{}
		assert.ErrorIs(t, b.Validate(), ErrNoTrustAnchor)
	})

	t.Run("every problem is reported", func(t *testing.T) {
		b := &Bundle{CACertPEM: "garbage", Fingerprint: []byte{0x01, 0x02}}
		err := b.Validate()
		assert.ErrorIs(t, err, ErrInvalidPEM)
		assert.ErrorIs(t, err, ErrFingerprintLength)
	})

	t.Run("expired CA", func(t *testing.T) {
		now := time.Now()
		old := testpki.NewAuthorityValidity(t, "old", now.Add(-48*time.Hour), now.Add(-24*time.Hour))
		b := &Bundle{CACertPEM: string(old.CertPEM)}
		assert.NoError(t, b.Validate(), "structural validation ignores time")
		assert.ErrorIs(t, b.ValidateAt(now), ErrCACertExpired)
	})
}

func TestTLSConfig(t *testing.T) {
	ca := testpki.NewAuthority(t, "tempunit-test CA")

	t.Run("no trust anchor", func(t *testing.T) {
		_, err := (&Bundle{}).TLSConfig("broker")
		assert.ErrorIs(t, err, ErrNoTrustAnchor)
	})

	t.Run("placeholder CA", func(t *testing.T) {
		_, err := Default().TLSConfig("broker")
		assert.ErrorIs(t, err, ErrCACertPlaceholder)
	})

	t.Run("bad fingerprint length", func(t *testing.T) {
		_, err := (&Bundle{Fingerprint: []byte{0x01}}).TLSConfig("broker")
		assert.ErrorIs(t, err, ErrFingerprintLength)
	})

	t.Run("CA only", func(t *testing.T) {
		cfg, err := (&Bundle{CACertPEM: string(ca.CertPEM)}).TLSConfig("broker")
		require.NoError(t, err)
		assert.NotNil(t, cfg.RootCAs)
		assert.False(t, cfg.InsecureSkipVerify)
		assert.Nil(t, cfg.VerifyPeerCertificate)
		assert.Equal(t, "broker", cfg.ServerName)
		assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	})

	t.Run("pin only", func(t *testing.T) {
		cfg, err := (&Bundle{Fingerprint: sampleFingerprint}).TLSConfig("broker")
		require.NoError(t, err)
		assert.Nil(t, cfg.RootCAs)
		assert.True(t, cfg.InsecureSkipVerify)
		assert.NotNil(t, cfg.VerifyPeerCertificate)
	})
}

func TestVerifyPinned(t *testing.T) {
	ca := testpki.NewAuthority(t, "tempunit-test CA")
	leaf := ca.Issue(t, "broker", "localhost")

	fp, err := CertificateFingerprint(leaf.Cert, SHA1)
	require.NoError(t, err)
	b := &Bundle{Fingerprint: fp, Algorithm: SHA1}

	assert.NoError(t, b.VerifyPinned([][]byte{leaf.Cert.Raw, ca.Cert.Raw}, nil))
	assert.ErrorIs(t, b.VerifyPinned([][]byte{ca.Cert.Raw}, nil), ErrFingerprintMismatch)
	assert.ErrorIs(t, b.VerifyPinned(nil, nil), ErrNoPeerCertificates)
}

func TestTLSConfigHandshake(t *testing.T) {
	ca := testpki.NewAuthority(t, "tempunit-test CA")
	stranger := testpki.NewAuthority(t, "stranger CA")
	leaf := ca.Issue(t, "broker", "localhost")
	addr := testpki.Serve(t, leaf)

	leafSHA1, err := CertificateFingerprint(leaf.Cert, SHA1)
	require.NoError(t, err)
	leafSHA256, err := CertificateFingerprint(leaf.Cert, SHA256)
	require.NoError(t, err)

	tests := []struct {
		name      string
		bundle    *Bundle
		wantErrIs error
		wantErr   bool
	}{
		{name: "CA", bundle: &Bundle{CACertPEM: string(ca.CertPEM)}},
		{name: "CA and pin", bundle: &Bundle{CACertPEM: string(ca.CertPEM), Fingerprint: leafSHA1, Algorithm: SHA1}},
		{name: "pin only", bundle: &Bundle{Fingerprint: leafSHA1, Algorithm: SHA1}},
		{name: "sha256 pin", bundle: &Bundle{Fingerprint: leafSHA256, Algorithm: SHA256}},
		{name: "wrong pin", bundle: &Bundle{Fingerprint: sampleFingerprint, Algorithm: SHA1}, wantErrIs: ErrFingerprintMismatch},
		{name: "right CA wrong pin", bundle: &Bundle{CACertPEM: string(ca.CertPEM), Fingerprint: sampleFingerprint}, wantErrIs: ErrFingerprintMismatch},
		{name: "untrusted CA", bundle: &Bundle{CACertPEM: string(stranger.CertPEM)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.bundle.TLSConfig("localhost")
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: cfg}
			conn, err := dialer.DialContext(ctx, "tcp", addr)

			switch {
			case tt.wantErrIs != nil:
				assert.ErrorIs(t, err, tt.wantErrIs)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
			}
			if conn != nil {
				conn.Close()
			}
		})
	}
}

func TestTransportCredentials(t *testing.T) {
	ca := testpki.NewAuthority(t, "tempunit-test CA")

	creds, err := (&Bundle{CACertPEM: string(ca.CertPEM)}).TransportCredentials("broker")
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)

	_, err = (&Bundle{}).TransportCredentials("broker")
	assert.ErrorIs(t, err, ErrNoTrustAnchor)
}

func TestTransportCredentialsHandshake(t *testing.T) {
	ca := testpki.NewAuthority(t, "tempunit-test CA")
	leaf := ca.Issue(t, "broker", "localhost")
	// gRPC clients require the server to select h2.
	addr := testpki.Serve(t, leaf, "h2")

	pin, err := CertificateFingerprint(leaf.Cert, SHA1)
	require.NoError(t, err)
	wrongPin := bytes.Repeat([]byte{0xAB}, SHA1.Size())

	tests := []struct {
		name    string
		bundle  *Bundle
		wantErr string
	}{
		{"ca and pin", &Bundle{CACertPEM: string(ca.CertPEM), Fingerprint: pin, Algorithm: SHA1}, ""},
		{"pin only", &Bundle{Fingerprint: pin, Algorithm: SHA1}, ""},
		{"wrong pin", &Bundle{CACertPEM: string(ca.CertPEM), Fingerprint: wrongPin, Algorithm: SHA1}, "fingerprint mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := tt.bundle.TransportCredentials("localhost")
			require.NoError(t, err)

			raw, err := net.Dial("tcp", addr)
			require.NoError(t, err)
			defer raw.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			conn, authInfo, err := creds.ClientHandshake(ctx, "localhost", raw)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer conn.Close()

			info, ok := authInfo.(credentials.TLSInfo)
			require.True(t, ok)
			require.NotEmpty(t, info.State.PeerCertificates)
			assert.Equal(t, leaf.Cert.Raw, info.State.PeerCertificates[0].Raw)
		})
	}
}
