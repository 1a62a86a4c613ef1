package client

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"
)

// Identity is the parsed client certificate and key presented during the
// TLS handshake. It is read-only after construction and safe to share.
type Identity struct {
	cert tls.Certificate
	leaf *x509.Certificate
}

// LoadIdentity reads a certificate and its private key from disk. Both files
// may be PEM or raw DER, which is how consoles dump them. Unreadable or
// malformed files, and keys that do not match the certificate, fail with an
// error matching ErrCertLoad.
//
//	id, err := client.LoadIdentity("ctr-common-1.crt", "ctr-common-1.key")
func LoadIdentity(certPath, keyPath string) (*Identity, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return nil, certLoadError(fmt.Errorf("read certificate %q: %w", certPath, err))
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, certLoadError(fmt.Errorf("read key %q: %w", keyPath, err))
	}
	return ParseIdentity(certData, keyData)
}

// ParseIdentity is LoadIdentity for in-memory material.
func ParseIdentity(certData, keyData []byte) (*Identity, error) {
	certPEM, err := certToPEM(certData)
	if err != nil {
		return nil, certLoadError(err)
	}
	keyPEM, err := keyToPEM(keyData)
	if err != nil {
		return nil, certLoadError(err)
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, certLoadError(fmt.Errorf("parse key pair: %w", err))
	}
	leaf := pair.Leaf
	if leaf == nil {
		leaf, err = x509.ParseCertificate(pair.Certificate[0])
		if err != nil {
			return nil, certLoadError(fmt.Errorf("parse certificate: %w", err))
		}
		pair.Leaf = leaf
	}
	return &Identity{cert: pair, leaf: leaf}, nil
}

// Certificate returns the pair for use in a tls.Config.
func (id *Identity) Certificate() tls.Certificate { return id.cert }

// Leaf returns the parsed client certificate.
func (id *Identity) Leaf() *x509.Certificate { return id.leaf }

// Expired reports whether the certificate is outside its validity window at t.
func (id *Identity) Expired(t time.Time) bool {
	return t.Before(id.leaf.NotBefore) || t.After(id.leaf.NotAfter)
}

func certLoadError(err error) *Error {
	return &Error{Kind: KindCertLoad, Op: "load identity", Err: err}
}

var pemPrefix = []byte("-----BEGIN")

func isPEM(data []byte) bool {
	return bytes.Contains(data, pemPrefix)
}

func certToPEM(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("certificate file is empty")
	}
	if isPEM(data) {
		return data, nil
	}
	if _, err := x509.ParseCertificate(data); err != nil {
		return nil, fmt.Errorf("certificate is neither PEM nor DER: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: data}), nil
}

func keyToPEM(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("key file is empty")
	}
	if isPEM(data) {
		return data, nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(data); err == nil {
		return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: data}), nil
	}
	if _, err := x509.ParsePKCS8PrivateKey(data); err == nil {
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: data}), nil
	}
	if _, err := x509.ParseECPrivateKey(data); err == nil {
		return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: data}), nil
	}
	return nil, errors.New("private key is neither PEM nor a PKCS#1, PKCS#8 or SEC 1 DER key")
}
