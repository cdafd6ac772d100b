package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/die-net/proxycache/internal/cache"
	"github.com/die-net/proxycache/internal/testutil"
)

const originBody = "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\n\r\nline one\nline two\n"

func startProxy(t *testing.T, ctx context.Context, cfg Config) (*Server, string) {
	t.Helper()

	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: false})
	if err != nil {
		t.Fatal(err)
	}

	cfg.Logger = zerolog.Nop()
	srvCtx, cancel := context.WithCancel(ctx)
	srv := NewServer(srvCtx, cfg)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
	return srv, ln.Addr().String()
}

// fetch sends raw to the proxy and returns everything read until the proxy
// closes the connection.
func fetch(t *testing.T, proxyAddr, raw string) []byte {
	t.Helper()

	c, err := net.DialTimeout("tcp", proxyAddr, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := io.WriteString(c, raw); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(c)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func get(uri string) string {
	return "GET " + uri + " HTTP/1.1\r\nHost: ignored\r\nUser-Agent: test\r\n\r\n"
}

func TestServerServesRepeatFromCache(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	origin := testutil.StartOrigin(t, ctx, []byte(originBody))
	srv, addr := startProxy(t, ctx, Config{Workers: 2, QueueDepth: 2})

	uri := "http://" + origin.Addr() + "/x"
	first := fetch(t, addr, get(uri))
	second := fetch(t, addr, get(uri))

	if string(first) != originBody {
		t.Fatalf("first response %q want %q", first, originBody)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second response %q differs from first %q", second, first)
	}
	if got := origin.Conns(); got != 1 {
		t.Fatalf("origin saw %d connections want 1", got)
	}

	host, _, _ := net.SplitHostPort(origin.Addr())
	wantReq := []string{
		"GET /x HTTP/1.0",
		"Host: " + host,
		"User-Agent: " + UserAgent,
		"Connection: close",
		"Proxy-Connection: close",
	}
	reqs := origin.Requests()
	if len(reqs) != 1 || strings.Join(reqs[0], "\n") != strings.Join(wantReq, "\n") {
		t.Fatalf("origin requests %q want %q", reqs, wantReq)
	}

	st := srv.Stats()
	if st.Cache.Hits != 1 || st.Cache.Misses != 1 || st.Cache.Entries != 1 {
		t.Fatalf("cache stats %+v", st.Cache)
	}
}

func TestServerDistinctPathsMiss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	origin := testutil.StartOrigin(t, ctx, []byte(originBody))
	_, addr := startProxy(t, ctx, Config{})

	base := "http://" + origin.Addr()
	for _, p := range []string{"/a", "/b", "/a", "/b/", "/b"} {
		if got := fetch(t, addr, get(base+p)); string(got) != originBody {
			t.Fatalf("%s: got %q", p, got)
		}
	}
	if got := origin.Conns(); got != 3 {
		t.Fatalf("origin saw %d connections want 3", got)
	}
}

func TestServerOversizedResponseNotCached(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body := "HTTP/1.0 200 OK\r\n\r\n" + strings.Repeat("0123456789abcdef\n", 20)
	origin := testutil.StartOrigin(t, ctx, []byte(body))
	srv, addr := startProxy(t, ctx, Config{Cache: cache.New(4, 64)})

	uri := "http://" + origin.Addr() + "/big"
	for range 2 {
		if got := fetch(t, addr, get(uri)); string(got) != body {
			t.Fatalf("got %d bytes want %d", len(got), len(body))
		}
	}
	if got := origin.Conns(); got != 2 {
		t.Fatalf("origin saw %d connections want 2", got)
	}
	if n := srv.Cache().Len(); n != 0 {
		t.Fatalf("cache holds %d entries want 0", n)
	}
}

func TestServerErrorResponses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Reserve a port nobody listens on.
	lc := net.ListenConfig{}
	dead, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := dead.Addr().String()
	_ = dead.Close()

	_, addr := startProxy(t, ctx, Config{Workers: 1})

	tests := []struct {
		name       string
		raw        string
		wantStatus string
	}{
		{name: "post", raw: "POST http://example.com/ HTTP/1.0\r\n\r\n", wantStatus: "HTTP/1.0 501 "},
		{name: "head", raw: "HEAD http://example.com/ HTTP/1.0\r\n\r\n", wantStatus: "HTTP/1.0 501 "},
		{name: "https scheme", raw: get("https://example.com/"), wantStatus: "HTTP/1.0 400 "},
		{name: "origin form", raw: get("/index.html"), wantStatus: "HTTP/1.0 400 "},
		{name: "garbage", raw: "hello\r\n\r\n", wantStatus: "HTTP/1.0 400 "},
		{name: "origin down", raw: get("http://" + deadAddr + "/"), wantStatus: "HTTP/1.0 502 "},
		{name: "client sends nothing", raw: "", wantStatus: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			if tt.raw == "" {
				c, err := net.Dial("tcp", addr)
				if err != nil {
					t.Fatal(err)
				}
				_ = c.(*net.TCPConn).CloseWrite()
				_ = c.SetDeadline(time.Now().Add(5 * time.Second))
				got, _ = io.ReadAll(c)
				_ = c.Close()
			} else {
				got = fetch(t, addr, tt.raw)
			}

			if tt.wantStatus == "" {
				if len(got) != 0 {
					t.Fatalf("expected no response, got %q", got)
				}
				return
			}
			if !strings.HasPrefix(string(got), tt.wantStatus) {
				t.Fatalf("got %q want prefix %q", got, tt.wantStatus)
			}
		})
	}
}

func TestServerWorkersRunConcurrently(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The stalled origin holds one worker; the second must still serve.
	release := make(chan struct{})
	stalled, waitStalled := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		<-release
	})
	origin := testutil.StartOrigin(t, ctx, []byte(originBody))
	_, addr := startProxy(t, ctx, Config{Workers: 2})

	slow, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer slow.Close()
	if _, err := io.WriteString(slow, get("http://"+stalled.Addr().String()+"/")); err != nil {
		t.Fatal(err)
	}

	if got := fetch(t, addr, get("http://"+origin.Addr()+"/")); string(got) != originBody {
		t.Fatalf("got %q", got)
	}

	close(release)
	waitStalled()
}

func TestServerCancelAbortsInFlight(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	stalled, _ := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		<-release
	})

	ln, err := ListenTCP(ctx, "tcp", "127.0.0.1:0", net.KeepAliveConfig{Enable: false})
	if err != nil {
		t.Fatal(err)
	}
	srvCtx, srvCancel := context.WithCancel(ctx)
	srv := NewServer(srvCtx, Config{Workers: 1, Logger: zerolog.Nop()})
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, err := io.WriteString(c, get("http://"+stalled.Addr().String()+"/")); err != nil {
		t.Fatal(err)
	}

	// Give the worker time to reach the stalled origin.
	time.Sleep(100 * time.Millisecond)
	srvCancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
