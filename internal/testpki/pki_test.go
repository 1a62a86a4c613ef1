package testpki_test

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/jmerrifield20/nnas/internal/testpki"
)

func TestIssueClient_verifiesAgainstCA(t *testing.T) {
	ca, err := testpki.NewCA("test")
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := ca.IssueClient("console")
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(leaf.CertDER)
	if err != nil {
		t.Fatal(err)
	}
	_, err = cert.Verify(x509.VerifyOptions{
		Roots:     ca.CertPool(),
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	})
	if err != nil {
		t.Errorf("client cert does not verify: %v", err)
	}
}

func TestValidUntil_expired(t *testing.T) {
	ca, err := testpki.NewCA("test")
	if err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-48 * time.Hour)
	leaf, err := ca.IssueClient("old", testpki.ValidUntil(past))
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(leaf.CertDER)
	if err != nil {
		t.Fatal(err)
	}
	if !cert.NotAfter.Before(time.Now()) {
		t.Errorf("NotAfter = %v, want a time in the past", cert.NotAfter)
	}
}
