// Package tls builds TLS configurations for the HTTP server and for outbound
// calls to remote scorers.
//
// Both sides enforce TLS 1.3. The server requires and verifies client
// certificates when a CA file is configured (mutual TLS); without one it
// serves plain server-authenticated TLS. Clients present a certificate when
// one is configured and verify the server against the CA file, or against
// the system roots when no CA file is given.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// Config holds TLS certificate file paths for client or server configuration.
type Config struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// Mutual reports whether peers are verified against CAFile.
func (c Config) Mutual() bool {
	return c.CAFile != ""
}

// Validate checks that every configured file exists and that the
// certificate and key are set together.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("tls cert and key files must be set together")
	}

	for _, path := range []string{c.CertFile, c.KeyFile, c.CAFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("tls file %q: %w", path, err)
		}
	}

	return nil
}

// NewServerTLSConfig creates the server TLS configuration. The certificate
// and key are loaded by the server itself (see httpx.Server.StartTLS), so
// only the client verification settings live here.
func NewServerTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("server TLS requires a certificate and key")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	config := baseConfig()
	if cfg.Mutual() {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		config.ClientCAs = pool
		config.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return config, nil
}

// NewClientTLSConfig creates a TLS configuration for outbound HTTPS calls.
func NewClientTLSConfig(cfg Config) (*tls.Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	config := baseConfig()

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	if cfg.Mutual() {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		config.RootCAs = pool
	}

	return config, nil
}

func baseConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
	}
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}
