package api

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/net/http2"
)

func TestServe_HTTP1AndH2C(t *testing.T) {
	s := NewServer(Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()
	url := "http://" + ln.Addr().String() + "/api/health"

	h1, err := http.Get(url)
	if err != nil {
		t.Fatalf("HTTP/1.1 GET: %v", err)
	}
	h1.Body.Close()
	if h1.StatusCode != http.StatusOK || h1.ProtoMajor != 1 {
		t.Errorf("HTTP/1.1: status %d proto %s", h1.StatusCode, h1.Proto)
	}

	h2client := &http.Client{Transport: &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}}
	h2, err := h2client.Get(url)
	if err != nil {
		t.Fatalf("h2c GET: %v", err)
	}
	h2.Body.Close()
	if h2.StatusCode != http.StatusOK || h2.ProtoMajor != 2 {
		t.Errorf("h2c: status %d proto %s", h2.StatusCode, h2.Proto)
	}

	if err := s.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve returned %v after Stop", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
