// Package security builds TLS configurations for the blob store's network
// surfaces from a declarative configuration bundle. The bundle is validated
// once, up front; the resulting factory is immutable and hands out
// per-role *tls.Config values.
package security

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Client authentication policies for the server role.
const (
	ClientAuthNone      = "none"
	ClientAuthRequested = "requested"
	ClientAuthRequired  = "required"
)

// Config is the TLS configuration bundle. Zero value means TLS disabled.
type Config struct {
	Protocol                 string        `yaml:"protocol"`           // "TLS" or a specific version, e.g. "TLSv1.3"
	CipherSuites             []string      `yaml:"cipher_suites,omitempty"`      // empty = library defaults
	EnabledProtocols         []string      `yaml:"enabled_protocols,omitempty"`  // empty = library defaults
	EndpointIdentification   string        `yaml:"endpoint_identification_algorithm"` // "" disables hostname checks for clients
	ClientAuth               string        `yaml:"client_auth"`        // none | requested | required
	Keystore                 SecurityStore `yaml:"keystore"`
	KeyPassword              string        `yaml:"key_password"`
	Truststore               SecurityStore `yaml:"truststore"`
}

// Enabled reports whether the bundle asks for TLS at all.
func (c Config) Enabled() bool {
	return c.Protocol != "" || c.Keystore.Path != "" || c.Truststore.Path != ""
}

// SecurityStore names one PEM store on disk: the keystore holds a
// certificate chain and its private key, the truststore holds trusted CA
// certificates. Path and password go together: both set or both unset.
type SecurityStore struct {
	Type     string `yaml:"type"` // only "pem" is recognized; empty defaults to it
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
}

func (s SecurityStore) isSet() bool {
	return s.Path != ""
}

// validate enforces the path/password pairing rule, naming the store and the
// missing half precisely.
func (s SecurityStore) validate(name string) error {
	if s.Path != "" && s.Password == "" {
		return fmt.Errorf("TLS %s path is set but no %s password is specified", name, name)
	}
	if s.Path == "" && s.Password != "" {
		return fmt.Errorf("TLS %s password is set but no %s path is specified", name, name)
	}
	if s.Type != "" && !strings.EqualFold(s.Type, "pem") {
		return fmt.Errorf("TLS %s type %q is not supported, only pem stores are", name, s.Type)
	}
	return nil
}

// load reads the PEM file behind the store.
func (s SecurityStore) load() ([]byte, error) {
	return os.ReadFile(s.Path)
}

var protocolVersions = map[string]uint16{
	"TLSv1.2": tls.VersionTLS12,
	"TLSv1.3": tls.VersionTLS13,
}

// Factory turns a validated bundle into per-role TLS configurations. Build
// it with NewFactory; a factory that exists is fully validated, with no
// observable half-constructed state.
type Factory struct {
	certificates           []tls.Certificate
	trustPool              *x509.CertPool
	cipherSuites           []uint16
	minVersion             uint16
	maxVersion             uint16
	clientAuth             tls.ClientAuthType
	endpointIdentification string
}

// NewFactory validates the whole bundle once and returns an immutable
// factory, or an error naming the first violated rule.
func NewFactory(cfg Config) (*Factory, error) {
	if err := cfg.Keystore.validate("key store"); err != nil {
		return nil, err
	}
	if err := cfg.Truststore.validate("trust store"); err != nil {
		return nil, err
	}

	f := &Factory{}

	switch cfg.ClientAuth {
	case "", ClientAuthNone:
		f.clientAuth = tls.NoClientCert
	case ClientAuthRequested:
		f.clientAuth = tls.VerifyClientCertIfGiven
	case ClientAuthRequired:
		f.clientAuth = tls.RequireAndVerifyClientCert
	default:
		return nil, fmt.Errorf("TLS client_auth %q is not one of none, requested, required", cfg.ClientAuth)
	}

	if cfg.Protocol != "" && cfg.Protocol != "TLS" {
		version, ok := protocolVersions[cfg.Protocol]
		if !ok {
			return nil, fmt.Errorf("TLS protocol %q is not supported", cfg.Protocol)
		}
		f.minVersion = version
		f.maxVersion = version
	}

	for _, name := range cfg.EnabledProtocols {
		version, ok := protocolVersions[name]
		if !ok {
			return nil, fmt.Errorf("TLS enabled protocol %q is not supported", name)
		}
		if f.minVersion == 0 || version < f.minVersion {
			f.minVersion = version
		}
		if version > f.maxVersion {
			f.maxVersion = version
		}
	}

	suites, err := cipherSuiteIDs(cfg.CipherSuites)
	if err != nil {
		return nil, err
	}
	f.cipherSuites = suites

	if cfg.Keystore.isSet() {
		keyPassword := cfg.KeyPassword
		if keyPassword == "" {
			keyPassword = cfg.Keystore.Password
		}
		cert, err := loadCertificate(cfg.Keystore, keyPassword)
		if err != nil {
			return nil, fmt.Errorf("loading TLS key store %s: %w", cfg.Keystore.Path, err)
		}
		f.certificates = []tls.Certificate{cert}
	}

	if cfg.Truststore.isSet() {
		pool, err := loadCertPool(cfg.Truststore)
		if err != nil {
			return nil, fmt.Errorf("loading TLS trust store %s: %w", cfg.Truststore.Path, err)
		}
		f.trustPool = pool
	}

	f.endpointIdentification = cfg.EndpointIdentification
	return f, nil
}

func cipherSuiteIDs(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]uint16)
	for _, suite := range tls.CipherSuites() {
		known[suite.Name] = suite.ID
	}
	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("TLS cipher suite %q is not supported", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loadCertificate(store SecurityStore, keyPassword string) (tls.Certificate, error) {
	pemBytes, err := store.load()
	if err != nil {
		return tls.Certificate{}, err
	}
	// The keystore PEM carries both the chain and the key; the key password
	// is accepted for configuration parity but PEM key encryption is not
	// supported.
	_ = keyPassword
	cert, err := tls.X509KeyPair(pemBytes, pemBytes)
	if err != nil {
		return tls.Certificate{}, err
	}
	return cert, nil
}

func loadCertPool(store SecurityStore) (*x509.CertPool, error) {
	pemBytes, err := store.load()
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, errors.New("no certificates found in trust store")
	}
	return pool, nil
}

func (f *Factory) base() *tls.Config {
	return &tls.Config{
		Certificates: f.certificates,
		CipherSuites: f.cipherSuites,
		MinVersion:   f.minVersion,
		MaxVersion:   f.maxVersion,
	}
}

// ServerConfig returns the TLS configuration for the server role, applying
// the configured client authentication policy.
func (f *Factory) ServerConfig() (*tls.Config, error) {
	if len(f.certificates) == 0 {
		return nil, errors.New("server role requires a key store")
	}
	cfg := f.base()
	cfg.ClientAuth = f.clientAuth
	cfg.ClientCAs = f.trustPool
	return cfg, nil
}

// ClientConfig returns the TLS configuration for the client role, verifying
// the peer against the trust store. With no endpoint identification
// configured the certificate chain is still verified but the hostname is
// not, matching the server-to-server replication setups this store runs in.
func (f *Factory) ClientConfig(peerHost string) *tls.Config {
	cfg := f.base()
	cfg.RootCAs = f.trustPool
	cfg.ServerName = peerHost

	if f.endpointIdentification == "" {
		cfg.InsecureSkipVerify = true
		pool := f.trustPool
		cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return errors.New("peer presented no certificate")
			}
			certs := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					return err
				}
				certs = append(certs, cert)
			}
			opts := x509.VerifyOptions{
				Roots:         pool,
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range certs[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := certs[0].Verify(opts)
			return err
		}
	}
	return cfg
}
