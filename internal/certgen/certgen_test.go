package certgen

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/mecsync/internal/client/transport"
)

func TestIssueServer_VerifiesAgainstCA(t *testing.T) {
	ca, err := NewAuthority("MEC Test CA")
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}

	certPEM, keyPEM, err := ca.IssueServer("localhost", "127.0.0.1")
	if err != nil {
		t.Fatalf("IssueServer: %v", err)
	}
	if !strings.Contains(string(keyPEM), "EC PRIVATE KEY") {
		t.Errorf("unexpected key PEM: %s", keyPEM)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		t.Fatal("certificate PEM does not decode")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != "localhost" {
		t.Errorf("DNSNames = %v", cert.DNSNames)
	}
	if len(cert.IPAddresses) != 1 || !cert.IPAddresses[0].Equal([]byte{127, 0, 0, 1}) {
		t.Errorf("IPAddresses = %v", cert.IPAddresses)
	}

	roots := x509.NewCertPool()
	roots.AddCert(ca.Cert)
	if _, err := cert.Verify(x509.VerifyOptions{DNSName: "localhost", Roots: roots}); err != nil {
		t.Errorf("server cert does not verify: %v", err)
	}
}

func TestIssueServer_NoHosts(t *testing.T) {
	ca, err := NewAuthority("MEC Test CA")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := ca.IssueServer(); err == nil {
		t.Error("expected error without hosts")
	}
}

func TestLoadAuthority_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ca, err := NewAuthority("MEC Test CA")
	if err != nil {
		t.Fatal(err)
	}
	if err := ca.WriteServerSet(dir, "localhost"); err != nil {
		t.Fatalf("WriteServerSet: %v", err)
	}

	for _, name := range []string{"ca.crt", "ca.key", "server.crt", "server.key"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	info, err := os.Stat(filepath.Join(dir, "server.key"))
	if err == nil && info.Mode().Perm() != 0o600 {
		t.Errorf("server.key mode = %v; want 0600", info.Mode().Perm())
	}

	loaded, err := LoadAuthority(filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key"))
	if err != nil {
		t.Fatalf("LoadAuthority: %v", err)
	}
	if !loaded.Cert.Equal(ca.Cert) {
		t.Error("loaded CA differs from the written one")
	}
}

func TestLoadAuthority_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(bad, []byte("not a pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name       string
		cert, key  string
		wantSubstr string
	}{
		{"missing cert", filepath.Join(dir, "nope.crt"), bad, "read ca cert"},
		{"missing key", bad, filepath.Join(dir, "nope.key"), "read ca key"},
		{"invalid cert", bad, bad, "invalid CA cert PEM"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadAuthority(tc.cert, tc.key)
			if err == nil || !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("error = %v; want substring %q", err, tc.wantSubstr)
			}
		})
	}
}

// A client trusting ca.crt through its CA file reaches a server using the
// issued certificate.
func TestServerSet_TrustedByClient(t *testing.T) {
	dir := t.TempDir()
	ca, err := NewAuthority("MEC Test CA")
	if err != nil {
		t.Fatal(err)
	}
	if err := ca.WriteServerSet(dir, "127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	pair, err := tls.LoadX509KeyPair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"))
	if err != nil {
		t.Fatalf("load key pair: %v", err)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}
	srv.StartTLS()
	defer srv.Close()

	client, err := transport.NewHTTPClient(filepath.Join(dir, "ca.crt"), 5*time.Second)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("TLS request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
