// Package probe connects to an MQTT broker's TLS port to read the
// certificate it presents, and to check that a credentials bundle accepts
// it. Only the TLS handshake is performed.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/arhuman/tempunit/internal/logging"
	"github.com/arhuman/tempunit/internal/trust"
)

// ErrNoCertificates is returned when the broker completes a handshake
// without presenting a certificate.
var ErrNoCertificates = errors.New("probe: broker presented no certificates")

// Options configures a Prober.
type Options struct {
	Addr       string
	ServerName string // defaults to the host part of Addr
	Timeout    time.Duration
	Attempts   int
	Backoff    *Backoff
	Logger     *zap.Logger
}

// Prober dials a broker address with retries.
type Prober struct {
	addr       string
	serverName string
	timeout    time.Duration
	attempts   int
	backoff    *Backoff
	logger     *zap.Logger
}

// Result describes the chain a broker presented.
type Result struct {
	Addr        string
	ServerName  string
	TLSVersion  string
	CipherSuite string
	Chain       []*x509.Certificate
}

// Leaf returns the broker's own certificate.
func (r *Result) Leaf() *x509.Certificate {
	if len(r.Chain) == 0 {
		return nil
	}
	return r.Chain[0]
}

// Fingerprint returns the leaf fingerprint with alg.
func (r *Result) Fingerprint(alg trust.Algorithm) ([]byte, error) {
	leaf := r.Leaf()
	if leaf == nil {
		return nil, ErrNoCertificates
	}
	return trust.CertificateFingerprint(leaf, alg)
}

// New validates opts and returns a Prober.
func New(opts Options) (*Prober, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("probe: address is required")
	}
	host, _, err := net.SplitHostPort(opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("probe: invalid address %q: %w", opts.Addr, err)
	}

	p := &Prober{
		addr:       opts.Addr,
		serverName: opts.ServerName,
		timeout:    opts.Timeout,
		attempts:   opts.Attempts,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}
	if p.serverName == "" {
		p.serverName = host
	}
	if p.timeout <= 0 {
		p.timeout = 5 * time.Second
	}
	if p.attempts < 1 {
		p.attempts = 1
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.backoff == nil {
		p.backoff = NewBackoff(time.Second, 30*time.Second, p.logger)
	}
	return p, nil
}

// Fetch handshakes without verifying the broker and returns what it
// presented. Use it to learn the fingerprint to pin, never to trust.
func (p *Prober) Fetch(ctx context.Context) (*Result, error) {
	logger, start := logging.FuncLogger(p.logger, "Prober.Fetch")
	defer logging.FuncExit(logger, start)

	cfg := &tls.Config{
		ServerName: p.serverName,
		MinVersion: tls.VersionTLS12,
		//nolint:gosec // the chain is only observed, not trusted
		InsecureSkipVerify: true,
	}

	conn, err := p.dial(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, ErrNoCertificates
	}

	result := &Result{
		Addr:        p.addr,
		ServerName:  p.serverName,
		TLSVersion:  tls.VersionName(state.Version),
		CipherSuite: tls.CipherSuiteName(state.CipherSuite),
		Chain:       state.PeerCertificates,
	}
	logger.Info("Fetched broker certificate",
		zap.String("addr", p.addr),
		zap.String("subject", result.Leaf().Subject.String()),
		zap.String("tls_version", result.TLSVersion))
	return result, nil
}

// Verify handshakes using the bundle's TLS configuration. A nil error means
// a sensor holding bundle would accept this broker.
func (p *Prober) Verify(ctx context.Context, bundle *trust.Bundle) error {
	logger, start := logging.FuncLogger(p.logger, "Prober.Verify")
	defer logging.FuncExit(logger, start)

	cfg, err := bundle.TLSConfig(p.serverName)
	if err != nil {
		return fmt.Errorf("failed to build TLS configuration: %w", err)
	}

	conn, err := p.dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger.Info("Broker accepted by credentials",
		zap.String("addr", p.addr),
		zap.Bool("ca", bundle.HasCACert()),
		zap.Bool("pinned", bundle.PinningConfigured()))
	return nil
}

// dial retries network failures with backoff. Handshake and verification
// failures are returned at once since retrying cannot fix them.
func (p *Prober) dial(ctx context.Context, cfg *tls.Config, logger *zap.Logger) (*tls.Conn, error) {
	p.backoff.Reset()

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			delay := p.backoff.Next()
			logger.Warn("Dial failed, retrying",
				zap.Error(lastErr),
				zap.Int("attempt", attempt),
				zap.Duration("retry_delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: cfg}
		conn, err := dialer.DialContext(attemptCtx, "tcp", p.addr)
		cancel()
		if err == nil {
			return conn.(*tls.Conn), nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !isNetworkError(err) {
			logger.Error("TLS handshake failed", zap.Error(err), zap.String("addr", p.addr))
			return nil, fmt.Errorf("handshake with %s failed: %w", p.addr, err)
		}
	}

	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", p.addr, p.attempts, lastErr)
}

// isNetworkError reports whether err came from the TCP layer rather than
// from TLS negotiation or certificate checks.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return errors.Is(err, context.DeadlineExceeded)
	}
	return opErr.Op == "dial"
}
