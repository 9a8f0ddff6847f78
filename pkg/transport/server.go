package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/joripage/fixmatch/pkg/fixsession"
	"github.com/joripage/fixmatch/pkg/fixwire"
	"github.com/joripage/fixmatch/pkg/gateway"
	"github.com/joripage/fixmatch/pkg/logging"
)

const (
	readBufferSize = 64 * 1024
	timerTick      = time.Second
)

type Config struct {
	ListenAddr        string
	SenderCompID      string
	HeartbeatInterval time.Duration
	Codec             *fixwire.Codec
}

// Server accepts raw connections, frames the byte stream, and binds each
// connection to one session. The gateway sees only logged-on sessions.
type Server struct {
	cfg *Config
	log *logging.Logger
	gw  *gateway.Gateway

	listener net.Listener
	conns    sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewServer(cfg *Config, log *logging.Logger, gw *gateway.Gateway) *Server {
	if cfg.Codec == nil {
		cfg.Codec = fixwire.NewCodec()
	}
	return &Server{
		cfg:    cfg,
		log:    log,
		gw:     gw,
		stopCh: make(chan struct{}),
	}
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Info(ctx, "listening", zap.String("addr", ln.Addr().String()))

	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.conns.Wait()
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			wait := bo.NextBackOff()
			s.log.Warn(ctx, "accept failed", zap.Error(err), zap.Duration("retry_in", wait))
			time.Sleep(wait)
			continue
		}
		bo.Reset()

		s.conns.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.conns.Done()
	defer conn.Close()

	sess := fixsession.NewSession(fixsession.Config{
		SenderCompID:      s.cfg.SenderCompID,
		HeartbeatInterval: s.cfg.HeartbeatInterval,
		Codec:             s.cfg.Codec,
	})

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	remote := conn.RemoteAddr().String()
	s.log.Info(ctx, "connection accepted", zap.String("remote", remote))

	var wg sync.WaitGroup
	wg.Add(2)

	// writer: session outbound bytes to the socket
	go func() {
		defer wg.Done()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-s.stopCh:
				return
			case raw := <-sess.Outbound():
				if _, err := conn.Write(raw); err != nil {
					s.log.Warn(ctx, "write failed", zap.String("remote", remote), zap.Error(err))
					cancel()
					return
				}
			}
		}
	}()

	// timers: heartbeat emission and liveness checks
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(timerTick)
		defer ticker.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-s.stopCh:
				return
			case now := <-ticker.C:
				if !sess.CheckTimers(now) {
					s.log.Warn(ctx, "session timed out", zap.String("remote", remote))
					cancel()
					conn.Close()
					return
				}
			}
		}
	}()

	s.readLoop(connCtx, conn, sess)

	cancel()
	conn.Close()
	wg.Wait()

	if clientID := sess.RemoteCompID(); clientID != "" {
		s.gw.DetachSession(clientID)
	}
	s.log.Info(ctx, "connection closed", zap.String("remote", remote))
}

// readLoop frames the inbound stream and feeds complete messages to the
// session, attaching it to the gateway once the logon completes.
func (s *Server) readLoop(ctx context.Context, conn net.Conn, sess *fixsession.Session) {
	buf := make([]byte, 0, readBufferSize)
	chunk := make([]byte, readBufferSize)
	attached := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(timerTick))
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			frames, rest := fixwire.ExtractFrames(buf, s.cfg.Codec.Delimiter)
			// frames alias buf, so the partial tail is copied out and
			// compaction waits until every frame is consumed
			rest = append([]byte(nil), rest...)

			for _, frame := range frames {
				if perr := sess.ProcessIncoming(frame); perr != nil {
					s.log.Warn(ctx, "inbound message rejected", zap.Error(perr))
				}
				switch sess.State() {
				case fixsession.StateLoggedIn:
					if !attached {
						attached = true
						s.gw.AttachSession(ctx, sess)
					}
				case fixsession.StateError, fixsession.StateLoggedOut:
					return
				}
			}
			buf = append(buf[:0], rest...)
		}
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			return
		}
	}
}
