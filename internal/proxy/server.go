package proxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/proxycache/internal/cache"
	"github.com/die-net/proxycache/internal/queue"
)

// Server is the caching forward proxy.
type Server struct {
	ctx   context.Context
	cfg   Config
	conns *queue.Queue[net.Conn]
	log   zerolog.Logger
}

// Stats describes the server's current load.
type Stats struct {
	Workers  int         `json:"workers"`
	Queued   int         `json:"queued"`
	QueueCap int         `json:"queue_capacity"`
	Cache    cache.Stats `json:"cache"`
}

// NewServer builds a proxy server. Canceling ctx stops Serve and aborts
// transactions in flight.
func NewServer(ctx context.Context, cfg Config) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.withDefaults()
	return &Server{
		ctx:   ctx,
		cfg:   cfg,
		conns: queue.New[net.Conn](cfg.QueueDepth),
		log:   cfg.Logger,
	}
}

// Cache returns the shared object cache.
func (s *Server) Cache() *cache.Cache {
	return s.cfg.Cache
}

// Stats returns a snapshot of queue and cache counters.
func (s *Server) Stats() Stats {
	return Stats{
		Workers:  s.cfg.Workers,
		Queued:   s.conns.Len(),
		QueueCap: s.conns.Cap(),
		Cache:    s.cfg.Cache.Stats(),
	}
}

// Serve accepts connections on ln until ln is closed or the server's
// context is canceled. Accepted connections are queued for the worker pool;
// a full queue blocks accepting. Serve returns once every queued
// connection has been handled.
func (s *Server) Serve(ln net.Listener) error {
	stop := context.AfterFunc(s.ctx, func() { _ = ln.Close() })
	defer stop()

	var g errgroup.Group
	for id := range s.cfg.Workers {
		w := newWorker(id, s)
		g.Go(func() error {
			w.run()
			return nil
		})
	}

	err := s.accept(ln)
	s.conns.Close()
	_ = g.Wait()
	return err
}

// accept is the only reader of ln. Accept errors other than a closed
// listener are logged and retried with backoff.
func (s *Server) accept(ln net.Listener) error {
	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			s.log.Error().Err(err).Dur("retry_in", delay).Msg("accept failed")
			time.Sleep(delay)
			continue
		}
		delay = 0

		s.log.Debug().Stringer("remote", c.RemoteAddr()).Msg("accepted connection")
		if !s.conns.Insert(c) {
			_ = c.Close()
			return nil
		}
	}
}

// worker serves one transaction at a time. Its buffers are reused across
// transactions and never shared.
type worker struct {
	id  int
	cfg Config
	ctx context.Context
	log zerolog.Logger

	conns   *queue.Queue[net.Conn]
	client  *bufio.Reader
	origin  *bufio.Reader
	capture []byte
}

func newWorker(id int, s *Server) *worker {
	return &worker{
		id:     id,
		cfg:    s.cfg,
		ctx:    s.ctx,
		log:    s.log.With().Int("worker", id).Logger(),
		conns:  s.conns,
		client: bufio.NewReaderSize(nil, maxLineLength),
		origin: bufio.NewReaderSize(nil, maxLineLength),
	}
}

func (w *worker) run() {
	for {
		c, ok := w.conns.Remove()
		if !ok {
			return
		}
		w.serve(c)
	}
}

// serve runs one request/response transaction and always closes c.
func (w *worker) serve(c net.Conn) {
	defer c.Close()

	stop := context.AfterFunc(w.ctx, func() { _ = c.Close() })
	defer stop()

	w.client.Reset(c)
	defer w.client.Reset(nil)

	req, err := ReadRequest(w.client)
	if err != nil {
		w.abort(c, nil, err)
		return
	}
	t := req.Target

	if obj, ok := w.cfg.Cache.Lookup(t.Host, t.Path); ok {
		if _, err := c.Write(obj); err != nil {
			w.abort(c, req, err)
			return
		}
		w.log.Debug().Str("host", t.Host).Str("path", t.Path).Int("bytes", len(obj)).Msg("cache hit")
		return
	}

	n, err := w.forward(w.ctx, c, t)
	if err != nil {
		w.abort(c, req, err)
		return
	}
	w.log.Debug().Str("host", t.Host).Str("path", t.Path).Int("bytes", n).
		Bool("cached", n > 0 && n <= w.cfg.Cache.MaxObjectSize()).Msg("cache miss")
}

// abort logs a failed transaction and, when the client can still make use
// of one, writes an error status.
func (w *worker) abort(c net.Conn, req *Request, err error) {
	if errors.Is(err, io.EOF) {
		return
	}

	ev := w.log.Debug().Err(err)
	if req != nil {
		ev = ev.Str("host", req.Target.Host).Str("path", req.Target.Path)
	}
	ev.Msg("transaction aborted")

	if code := statusFor(err); code != 0 {
		_ = writeError(c, code, err)
	}
}
