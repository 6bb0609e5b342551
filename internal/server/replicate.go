package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"redisd/internal/dispatch"
	"redisd/internal/rerr"
	"redisd/internal/resp"
)

// rdbMagic is the header marker the PSYNC response's RDB blob begins
// with; used as the fallback boundary scan when the bulk-length prefix
// can't be trusted.
var rdbMagic = []byte("REDIS0011")

// RunReplicationClient drives the secondary's outbound connection to
// its primary: the four-step handshake, then a continuous read loop
// feeding propagated commands to the dispatcher with propagated=true.
// It returns (nil) only when ctx is canceled; any handshake or I/O
// failure is a fatal error for the calling errgroup, which tears down
// the whole process rather than leave a secondary silently diverged.
func RunReplicationClient(ctx context.Context, d *dispatch.Dispatcher) error {
	host, port, ok := d.PrimaryAddr()
	if !ok {
		return rerr.New(rerr.CodeReplicationConnection, "dispatcher has no configured primary")
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 5*time.Second)
	if err != nil {
		return rerr.New(rerr.CodeReplicationConnection, err.Error())
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	r := &handshakeReader{conn: conn}

	if err := sendAndExpectSimple(conn, r, []string{"PING"}, "PONG"); err != nil {
		return err
	}
	if err := sendAndExpectSimple(conn, r, []string{"REPLCONF", "listening-port", strconv.Itoa(d.Cfg.Port)}, "OK"); err != nil {
		return err
	}
	if err := sendAndExpectSimple(conn, r, []string{"REPLCONF", "capa", "psync2"}, "OK"); err != nil {
		return err
	}

	if err := writeCommand(conn, []string{"PSYNC", "?", "-1"}); err != nil {
		return rerr.New(rerr.CodeReplicationConnection, err.Error())
	}
	tail, err := r.readPsyncResponse()
	if err != nil {
		return rerr.New(rerr.CodeReplicationHandshake, err.Error())
	}

	log.Infof("full resync with primary at %s:%s complete", host, port)

	buf := tail
	chunk := make([]byte, readChunk)
	for {
		reply, consumed, herr := d.Handle(buf, conn, true)
		if len(reply) > 0 {
			if _, werr := conn.Write(reply); werr != nil {
				return rerr.New(rerr.CodeReplicationPrimaryClosed, werr.Error())
			}
		}
		buf = buf[consumed:]
		if herr != nil {
			return rerr.New(rerr.CodeReplicationHandshake, herr.Error())
		}

		n, rerr2 := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr2 != nil {
			if ctx.Err() != nil {
				return nil
			}
			return rerr.New(rerr.CodeReplicationPrimaryClosed, rerr2.Error())
		}
	}
}

// handshakeReader buffers bytes read from the primary during the
// handshake, since a reply and the start of the propagated stream (or
// even the RDB blob) can arrive in the same TCP segment.
type handshakeReader struct {
	conn net.Conn
	buf  []byte
}

func (r *handshakeReader) fill() error {
	chunk := make([]byte, readChunk)
	n, err := r.conn.Read(chunk)
	if n > 0 {
		r.buf = append(r.buf, chunk[:n]...)
	}
	return err
}

// readReply decodes exactly one RESP value, reading more from the
// connection as needed, and leaves any trailing bytes buffered.
func (r *handshakeReader) readReply() (resp.Value, error) {
	for {
		v, n, err := resp.Decode(r.buf)
		if err == nil {
			r.buf = r.buf[n:]
			return v, nil
		}
		if !rerr.IsIncomplete(err) {
			return resp.Value{}, err
		}
		if ferr := r.fill(); ferr != nil {
			return resp.Value{}, ferr
		}
	}
}

// readPsyncResponse consumes the "+FULLRESYNC <replid> <offset>\r\n"
// line and the RDB blob that follows, returning any bytes left over —
// already-propagated commands that arrived in the same read. The RDB
// boundary is located by the bulk-length prefix the framing carries;
// if that prefix is absent (a non-conforming primary), the marker scan
// described by the protocol's own design notes is the fallback.
func (r *handshakeReader) readPsyncResponse() ([]byte, error) {
	for {
		idx := bytes.Index(r.buf, []byte("\r\n"))
		if idx >= 0 {
			break
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
	lineEnd := bytes.Index(r.buf, []byte("\r\n"))
	line := string(r.buf[:lineEnd])
	if !strings.HasPrefix(line, "+FULLRESYNC") {
		return nil, fmt.Errorf("unexpected PSYNC reply: %q", line)
	}
	r.buf = r.buf[lineEnd+2:]

	for {
		dollar := bytes.IndexByte(r.buf, '$')
		if dollar >= 0 {
			crlf := bytes.Index(r.buf[dollar:], []byte("\r\n"))
			if crlf >= 0 {
				lengthStr := string(r.buf[dollar+1 : dollar+crlf])
				length, err := strconv.Atoi(lengthStr)
				if err == nil {
					blobStart := dollar + crlf + 2
					need := blobStart + length
					for len(r.buf) < need {
						if err := r.fill(); err != nil {
							return nil, err
						}
					}
					return r.buf[need:], nil
				}
			}
		}
		if idx := bytes.Index(r.buf, rdbMagic); idx >= 0 {
			eof := bytes.IndexByte(r.buf[idx:], 0xFF)
			for eof < 0 {
				if err := r.fill(); err != nil {
					return nil, err
				}
				eof = bytes.IndexByte(r.buf[idx:], 0xFF)
			}
			need := idx + eof + 1 + 8
			for len(r.buf) < need {
				if err := r.fill(); err != nil {
					return nil, err
				}
			}
			return r.buf[need:], nil
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

func writeCommand(conn net.Conn, args []string) error {
	_, err := conn.Write(resp.EncodeBulkStringArray(args))
	return err
}

// sendAndExpectSimple sends one handshake command and reads the
// primary's reply. A reply that doesn't match what was expected is a
// HandshakeMismatch: logged as a warning and otherwise ignored, per the
// handshake's PING/REPLCONF steps, which are not fatal. Only a failure
// to write the command or read a reply at all — the connection itself
// is broken — returns an error.
func sendAndExpectSimple(conn net.Conn, r *handshakeReader, args []string, want string) error {
	if err := writeCommand(conn, args); err != nil {
		return rerr.New(rerr.CodeReplicationConnection, err.Error())
	}
	v, err := r.readReply()
	if err != nil {
		return rerr.New(rerr.CodeReplicationHandshake, err.Error())
	}
	if v.Kind != resp.KindSimpleString || v.Str != want {
		log.Warnf("handshake mismatch: expected +%s, got %+v", want, v)
	}
	return nil
}
