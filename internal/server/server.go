// Package server is the composition root: it owns the TCP listener,
// the per-connection read/dispatch/write loop, and — on a secondary —
// the outbound replication task that maintains the primary connection.
package server

import (
	"context"
	"net"

	"golang.org/x/sync/errgroup"

	"redisd/internal/dispatch"
	"redisd/internal/rlog"
)

var log = rlog.New("server")

// Server accepts client connections on a TCP listener and, when the
// dispatcher is running as a secondary, drives the outbound
// replication task alongside it.
type Server struct {
	Dispatcher *dispatch.Dispatcher
	Addr       string
}

func New(d *dispatch.Dispatcher, addr string) *Server {
	return &Server{Dispatcher: d, Addr: addr}
}

// Run blocks until ctx is canceled or a fatal error occurs in the
// accept loop or the outbound replication task, whichever comes first.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	log.Infof("listening on %s", s.Addr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		return s.acceptLoop(ctx, ln)
	})

	if s.Dispatcher.Role == dispatch.RoleSecondary {
		g.Go(func() error {
			return RunReplicationClient(ctx, s.Dispatcher)
		})
	}

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}
