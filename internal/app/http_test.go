package app

import (
	"net/http"
	"reflect"
	"testing"
)

func TestNewHTTPClient_Config(t *testing.T) {
	c := newHTTPClient(true)
	if c.Timeout == 0 {
		t.Fatalf("expected non-zero timeout")
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected http.Transport")
	}
	if tr.MaxIdleConnsPerHost < 16 {
		t.Fatalf("expected a large MaxIdleConnsPerHost, got %d", tr.MaxIdleConnsPerHost)
	}
	// Ensure we didn't return the default client's transport
	if reflect.ValueOf(http.DefaultTransport).Pointer() == reflect.ValueOf(tr).Pointer() {
		t.Fatalf("transport should not be default")
	}
}

func TestNewHTTPClient_SSLVerify(t *testing.T) {
	tests := []struct {
		name      string
		sslVerify bool
		wantSkip  bool
	}{
		{"verification enabled", true, false},
		{"verification disabled", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newHTTPClient(tt.sslVerify).Transport.(*http.Transport)
			var skip bool
			if tr.TLSClientConfig != nil {
				skip = tr.TLSClientConfig.InsecureSkipVerify
			}
			if skip != tt.wantSkip {
				t.Errorf("sslVerify=%v: InsecureSkipVerify=%v, want %v", tt.sslVerify, skip, tt.wantSkip)
			}
		})
	}
}

func TestDefaultConfig_VerifiesTLS(t *testing.T) {
	if !DefaultConfig().SSLVerify {
		t.Fatal("certificate verification must be on by default")
	}
}
