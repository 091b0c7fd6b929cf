package security

import (
	"testing"
	"time"
)

func TestValidateURL_AllowsPublicHTTPS(t *testing.T) {
	g := NewSSRFGuard()
	if err := g.ValidateURL("https://example.com/feed.xml"); err != nil {
		t.Errorf("公開HTTPSのURLは許可されるべき: %v", err)
	}
}

func TestValidateURL_AllowsPublicHTTP(t *testing.T) {
	g := NewSSRFGuard()
	if err := g.ValidateURL("http://example.com/feed.xml"); err != nil {
		t.Errorf("公開HTTPのURLは許可されるべき: %v", err)
	}
}

func TestValidateURL_RejectsEmptyURL(t *testing.T) {
	g := NewSSRFGuard()
	if err := g.ValidateURL(""); err == nil {
		t.Error("空のURLは拒否されるべき")
	}
}

func TestValidateURL_RejectsDisallowedScheme(t *testing.T) {
	g := NewSSRFGuard()
	for _, rawURL := range []string{
		"ftp://example.com/feed",
		"file:///etc/passwd",
		"gopher://example.com",
	} {
		if err := g.ValidateURL(rawURL); err == nil {
			t.Errorf("スキーム %q は拒否されるべき", rawURL)
		}
	}
}

func TestValidateURL_RejectsPrivateIPs(t *testing.T) {
	g := NewSSRFGuard()
	for _, rawURL := range []string{
		"http://10.0.0.1/feed",
		"http://172.16.0.1/feed",
		"http://192.168.1.1/feed",
		"http://127.0.0.1/feed",
		"http://169.254.169.254/latest/meta-data/",
		"http://0.0.0.0/feed",
	} {
		if err := g.ValidateURL(rawURL); err == nil {
			t.Errorf("プライベート/メタデータIP %q は拒否されるべき", rawURL)
		}
	}
}

func TestValidateURL_RejectsLocalhost(t *testing.T) {
	g := NewSSRFGuard()
	for _, rawURL := range []string{
		"http://localhost/feed",
		"http://LOCALHOST:8080/feed",
	} {
		if err := g.ValidateURL(rawURL); err == nil {
			t.Errorf("%q は拒否されるべき", rawURL)
		}
	}
}

func TestValidateURL_RejectsIPv6Loopback(t *testing.T) {
	g := NewSSRFGuard()
	if err := g.ValidateURL("http://[::1]/feed"); err == nil {
		t.Error("IPv6ループバックは拒否されるべき")
	}
}

func TestNewSafeClient_ReturnsClient(t *testing.T) {
	g := NewSSRFGuard()
	c := g.NewSafeClient(10 * time.Second)
	if c == nil {
		t.Fatal("NewSafeClient は nil を返してはならない")
	}
}
