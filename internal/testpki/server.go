package testpki

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Fixture is a running mutual-TLS server plus a client identity it trusts.
type Fixture struct {
	Server *httptest.Server
	CA     *CA
	Client *Leaf

	// Paths of the client certificate and key in PEM form.
	CertPath string
	KeyPath  string
}

// URL is the server's base URL.
func (f *Fixture) URL() string { return f.Server.URL }

// StartMTLS starts an httptest server that requires a client certificate
// signed by a fresh CA. The server only speaks TLS 1.2 so certificate
// rejections surface during the handshake.
func StartMTLS(t testing.TB, h http.Handler) *Fixture {
	t.Helper()

	ca, err := NewCA("nnas test CA")
	if err != nil {
		t.Fatalf("create CA: %v", err)
	}
	serverLeaf, err := ca.IssueServer()
	if err != nil {
		t.Fatalf("issue server cert: %v", err)
	}
	serverCert, err := serverLeaf.TLSCertificate()
	if err != nil {
		t.Fatalf("load server cert: %v", err)
	}
	clientLeaf, err := ca.IssueClient("console")
	if err != nil {
		t.Fatalf("issue client cert: %v", err)
	}
	certPath, keyPath, err := clientLeaf.WriteFiles(t.TempDir())
	if err != nil {
		t.Fatalf("write client cert: %v", err)
	}

	srv := httptest.NewUnstartedServer(h)
	srv.TLS = &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    ca.CertPool(),
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
	}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	return &Fixture{
		Server:   srv,
		CA:       ca,
		Client:   clientLeaf,
		CertPath: certPath,
		KeyPath:  keyPath,
	}
}
