package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// UserAgent is sent to every origin in place of the client's.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:10.0.3) Gecko/20120305 Firefox/10.0.3"

// errOrigin marks failures reaching the origin before any response byte
// was relayed, which still allow a 502 to the client.
var errOrigin = errors.New("origin unavailable")

// originRequest renders the fixed HTTP/1.0 request sent upstream.
func originRequest(t Target) string {
	var b strings.Builder
	b.WriteString("GET " + t.Path + " HTTP/1.0\r\n")
	b.WriteString("Host: " + t.Host + "\r\n")
	b.WriteString("User-Agent: " + UserAgent + "\r\n")
	b.WriteString("Connection: close\r\n")
	b.WriteString("Proxy-Connection: close\r\n")
	b.WriteString("\r\n")
	return b.String()
}

// forward fetches t from its origin, relays the response to client, and
// caches it if it fits. It reports how many bytes were relayed.
func (w *worker) forward(ctx context.Context, client net.Conn, t Target) (int, error) {
	up, err := w.cfg.Dialer.DialContext(ctx, "tcp", t.Addr())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errOrigin, err)
	}
	defer up.Close()

	stop := context.AfterFunc(ctx, func() { _ = up.Close() })
	defer stop()

	if _, err := io.WriteString(up, originRequest(t)); err != nil {
		return 0, fmt.Errorf("%w: write request: %w", errOrigin, err)
	}

	w.origin.Reset(up)
	defer w.origin.Reset(nil)

	limit := w.cfg.Cache.MaxObjectSize()
	obj, total, err := relayLines(client, w.origin, w.capture[:0], limit)
	w.capture = obj
	if err != nil {
		return total, err
	}

	if total > 0 && total <= limit {
		if err := w.cfg.Cache.Insert(t.Host, t.Path, obj); err != nil {
			return total, err
		}
	}
	return total, nil
}
