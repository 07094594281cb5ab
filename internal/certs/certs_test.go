package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/quire/internal/apperr"
)

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		CertFile: filepath.Join(dir, "certs", "localhost.pem"),
		KeyFile:  filepath.Join(dir, "certs", "localhost-key.pem"),
		Validity: 48 * time.Hour,
	}
	if err := Generate(opts); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	pair, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		t.Fatalf("LoadX509KeyPair: %v", err)
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if err := cert.VerifyHostname("localhost"); err != nil {
		t.Errorf("localhost: %v", err)
	}
	if err := cert.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("127.0.0.1: %v", err)
	}
	if err := cert.VerifyHostname("::1"); err != nil {
		t.Errorf("::1: %v", err)
	}
	if left := time.Until(cert.NotAfter); left > 49*time.Hour || left < 47*time.Hour {
		t.Errorf("NotAfter = %v", cert.NotAfter)
	}

	if err := Generate(opts); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second Generate err = %v, want ErrAlreadyExists", err)
	}
	opts.Force = true
	opts.Hosts = []string{"blog.test"}
	if err := Generate(opts); err != nil {
		t.Fatalf("forced Generate: %v", err)
	}
	pair, err = tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
	if err != nil {
		t.Fatal(err)
	}
	cert, _ = x509.ParseCertificate(pair.Certificate[0])
	if err := cert.VerifyHostname("blog.test"); err != nil {
		t.Errorf("blog.test: %v", err)
	}
}
