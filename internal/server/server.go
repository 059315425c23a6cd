// Package server hands out identifiers over the Redis wire protocol. One
// server owns one enumeration; every identifier is issued at most once
// between resets, no matter how many clients are connected.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/antithesishq/pairgen/internal/op"
	"github.com/antithesishq/pairgen/internal/pair"
	"github.com/antithesishq/pairgen/internal/vocab"
	"github.com/tidwall/redcon"
)

// MaxBatch caps the n accepted by NEXT n.
const MaxBatch = 1 << 16

type Config struct {
	Rows  vocab.Vocabulary
	Cols  vocab.Vocabulary
	Pairs pair.Config // N1 and N2 are taken from Rows and Cols
}

type Server struct {
	logger *slog.Logger
	rows   vocab.Vocabulary
	cols   vocab.Vocabulary

	mu   sync.Mutex // guards enum
	enum *pair.Enumerator

	lifecycle sync.Mutex   // guards close, ln and closed
	close     func() error // set in ServeTCP
	ln        net.Listener
	closed    bool
}

// New validates the enumeration up front, so capacity errors surface before
// the server starts listening.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	pcfg := cfg.Pairs
	pcfg.N1 = uint64(cfg.Rows.Len())
	pcfg.N2 = uint64(cfg.Cols.Len())
	enum, err := pair.New(pcfg)
	if err != nil {
		return nil, err
	}
	return &Server{
		logger: logger,
		rows:   cfg.Rows,
		cols:   cfg.Cols,
		enum:   enum,
	}, nil
}

// ServeTCP serves on ln until Close. It returns nil after a Close, even one
// that happened before serving started.
func (s *Server) ServeTCP(ln net.Listener) error {
	rs := redcon.NewServerNetwork("tcp", ln.Addr().String(), s.handle, s.accept, s.onClosed)
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		_ = ln.Close()
		return nil
	}
	s.close = rs.Close
	s.ln = ln
	s.lifecycle.Unlock()

	err := rs.Serve(ln)
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.closed {
		return nil
	}
	return err
}

func (s *Server) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.closed = true
	if s.close == nil {
		return nil
	}
	if err := s.close(); err != nil {
		// redcon refuses to close a server whose accept loop hasn't started
		// yet. Closing the listener stops that loop as soon as it does.
		if lnErr := s.ln.Close(); lnErr != nil && !errors.Is(lnErr, net.ErrClosed) {
			return errors.Join(err, lnErr)
		}
	}
	return nil
}

func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	name := op.New(cmd.Args[0])
	var args []string
	if len(cmd.Args) > 1 {
		args = make([]string, 0, len(cmd.Args)-1)
		for _, arg := range cmd.Args[1:] {
			args = append(args, string(arg))
		}
	}
	s.logger.Debug("command", "op", name, "args", len(args), "remote", conn.RemoteAddr())
	switch name {
	case op.Next:
		s.next(conn, args)
	case op.Remaining:
		s.remaining(conn, args)
	case op.Reset:
		s.reset(conn, args)
	case op.Info:
		s.info(conn, args)
	case op.Ping:
		s.ping(conn, args)
	case op.Quit:
		s.quit(conn, args)
	default:
		conn.WriteError(fmt.Sprintf("ERR unknown command '%s'", name))
	}
}

func (s *Server) accept(conn redcon.Conn) bool {
	s.logger.Debug("client connected", "remote", conn.RemoteAddr())
	return true
}

func (s *Server) onClosed(conn redcon.Conn, err error) {
	s.logger.Debug("client disconnected", "remote", conn.RemoteAddr(), "err", err)
}

func (s *Server) next(conn redcon.Conn, args []string) {
	switch len(args) {
	case 0:
		s.mu.Lock()
		p, ok := s.enum.Next()
		s.mu.Unlock()
		if !ok {
			conn.WriteNull()
			return
		}
		conn.WriteBulkString(pair.Join(s.rows, s.cols, p))
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 || n > MaxBatch {
			conn.WriteError(fmt.Sprintf("ERR count must be an integer between 1 and %d", MaxBatch))
			return
		}
		batch := make([]pair.Pair, 0, n)
		s.mu.Lock()
		for range n {
			p, ok := s.enum.Next()
			if !ok {
				break
			}
			batch = append(batch, p)
		}
		s.mu.Unlock()
		conn.WriteArray(len(batch))
		for _, p := range batch {
			conn.WriteBulkString(pair.Join(s.rows, s.cols, p))
		}
	default:
		writeErrArity(conn, op.Next)
	}
}

func (s *Server) remaining(conn redcon.Conn, args []string) {
	if len(args) > 0 {
		writeErrArity(conn, op.Remaining)
		return
	}
	s.mu.Lock()
	n := s.enum.Remaining()
	s.mu.Unlock()
	conn.WriteUint64(n)
}

func (s *Server) reset(conn redcon.Conn, args []string) {
	if len(args) > 0 {
		writeErrArity(conn, op.Reset)
		return
	}
	s.mu.Lock()
	s.enum.Reset()
	s.mu.Unlock()
	s.logger.Info("enumeration reset")
	conn.WriteString("OK")
}

func (s *Server) info(conn redcon.Conn, args []string) {
	if len(args) > 0 {
		writeErrArity(conn, op.Info)
		return
	}
	s.mu.Lock()
	e := s.enum
	fields := []struct {
		key string
		val any
	}{
		{"mode", e.Mode()},
		{"rows", s.rows.Len()},
		{"cols", s.cols.Len()},
		{"total", e.Total()},
		{"count", e.Count()},
		{"start", e.Start()},
		{"step", e.Step()},
		{"coprime", e.Coprime()},
		{"emitted", e.Emitted()},
		{"state", e.State()},
	}
	s.mu.Unlock()

	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s:%v\r\n", f.key, f.val)
	}
	conn.WriteBulkString(b.String())
}

func (s *Server) ping(conn redcon.Conn, args []string) {
	if len(args) == 1 {
		conn.WriteBulkString(args[0])
		return
	}
	conn.WriteString("PONG")
}

func (s *Server) quit(conn redcon.Conn, args []string) {
	conn.WriteString("OK")
	conn.Close()
}

func writeErrArity(conn redcon.Conn, op op.Op) {
	conn.WriteError(fmt.Sprintf("ERR wrong number of arguments for '%s' command", op))
}
