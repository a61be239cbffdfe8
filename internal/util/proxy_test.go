package util

import (
	"net/http"
	"testing"
)

func TestProxyFunc(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"explicit http", "http://proxy.internal:3128", "http://proxy.internal:3128", false},
		{"socks", "socks5://127.0.0.1:1080", "socks5://127.0.0.1:1080", false},
		{"bad scheme", "ftp://proxy.internal", "", true},
		{"no host", "http://", "", true},
		{"unparsable", "http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := ProxyFunc(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ProxyFunc(%q): %v", tt.raw, err)
			}
			req, _ := http.NewRequest(http.MethodGet, "https://research.example.com/api/tree", nil)
			u, err := fn(req)
			if err != nil {
				t.Fatalf("proxy lookup: %v", err)
			}
			if u == nil || u.String() != tt.want {
				t.Errorf("expected %s, got %v", tt.want, u)
			}
		})
	}
}

func TestProxyFunc_EmptyUsesEnvironment(t *testing.T) {
	fn, err := ProxyFunc("")
	if err != nil {
		t.Fatalf("ProxyFunc: %v", err)
	}
	if fn == nil {
		t.Fatal("expected a proxy func")
	}
}
