// Package testpki issues throwaway certificates and mutual-TLS stub servers
// for tests. Nothing here is meant for production key material.
package testpki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Test keys are small; they only need to survive a handshake.
const keyBits = 2048

// CA is an in-memory certificate authority.
type CA struct {
	cert *x509.Certificate
	key  *rsa.PrivateKey
}

// NewCA generates a self-signed CA named cn.
func NewCA(cn string) (*CA, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"nnas test"}},
		NotBefore:             time.Now().UTC().Add(-time.Hour),
		NotAfter:              time.Now().UTC().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}
	return &CA{cert: cert, key: key}, nil
}

// Cert returns the CA certificate.
func (ca *CA) Cert() *x509.Certificate { return ca.cert }

// CertPEM returns the CA certificate encoded as PEM.
func (ca *CA) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.cert.Raw})
}

// CertPool returns a pool holding only this CA.
func (ca *CA) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.cert)
	return pool
}

// Leaf is an issued certificate and its key in DER form.
type Leaf struct {
	CertDER []byte
	Key     *rsa.PrivateKey
}

// CertPEM encodes the certificate as PEM.
func (l *Leaf) CertPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: l.CertDER})
}

// KeyPEM encodes the key as a PKCS#1 PEM block.
func (l *Leaf) KeyPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(l.Key)})
}

// KeyDER returns the key as raw PKCS#1 DER.
func (l *Leaf) KeyDER() []byte { return x509.MarshalPKCS1PrivateKey(l.Key) }

// TLSCertificate returns the pair ready for a tls.Config.
func (l *Leaf) TLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(l.CertPEM(), l.KeyPEM())
}

// WriteFiles writes cert.pem and key.pem into dir and returns their paths.
func (l *Leaf) WriteFiles(dir string) (certPath, keyPath string, err error) {
	return writePair(dir, "cert.pem", "key.pem", l.CertPEM(), l.KeyPEM())
}

// WriteDERFiles writes cert.der and key.der into dir and returns their paths.
func (l *Leaf) WriteDERFiles(dir string) (certPath, keyPath string, err error) {
	return writePair(dir, "cert.der", "key.der", l.CertDER, l.KeyDER())
}

// IssueOption adjusts an issued certificate.
type IssueOption func(*x509.Certificate)

// ValidUntil overrides the expiry. A time in the past yields an expired leaf.
func ValidUntil(t time.Time) IssueOption {
	return func(c *x509.Certificate) {
		c.NotAfter = t
		if !c.NotBefore.Before(t) {
			c.NotBefore = t.Add(-time.Hour)
		}
	}
}

// IssueClient signs a client-auth certificate for cn.
func (ca *CA) IssueClient(cn string, opts ...IssueOption) (*Leaf, error) {
	return ca.issue(cn, x509.ExtKeyUsageClientAuth, nil, nil, opts)
}

// IssueServer signs a server-auth certificate valid for 127.0.0.1 and localhost.
func (ca *CA) IssueServer(opts ...IssueOption) (*Leaf, error) {
	ips := []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback}
	return ca.issue("localhost", x509.ExtKeyUsageServerAuth, []string{"localhost"}, ips, opts)
}

func (ca *CA) issue(cn string, usage x509.ExtKeyUsage, dns []string, ips []net.IP, opts []IssueOption) (*Leaf, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().UTC().Add(-time.Hour),
		NotAfter:     time.Now().UTC().Add(12 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
		DNSNames:     dns,
		IPAddresses:  ips,
	}
	for _, o := range opts {
		o(template)
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		return nil, fmt.Errorf("sign certificate: %w", err)
	}
	return &Leaf{CertDER: der, Key: key}, nil
}

func writePair(dir, certName, keyName string, certData, keyData []byte) (string, string, error) {
	certPath := filepath.Join(dir, certName)
	keyPath := filepath.Join(dir, keyName)
	if err := os.WriteFile(certPath, certData, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", certName, err)
	}
	if err := os.WriteFile(keyPath, keyData, 0o600); err != nil {
		return "", "", fmt.Errorf("write %s: %w", keyName, err)
	}
	return certPath, keyPath, nil
}

// randomSerial generates a random 128-bit certificate serial.
func randomSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	return serial, nil
}
