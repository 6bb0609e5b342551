package dispatch

import (
	"bytes"
	"strings"
	"testing"

	"redisd/internal/config"
	"redisd/internal/resp"
)

func newTestDispatcher(role Role) *Dispatcher {
	d := New(role, config.DefaultConfig())
	d.Now = func() uint64 { return 1000 }
	return d
}

func mustHandle(t *testing.T, d *Dispatcher, w *bytes.Buffer, cmd []byte) []byte {
	t.Helper()
	reply, consumed, err := d.Handle(cmd, w, false)
	if err != nil {
		t.Fatalf("Handle(%q) error: %v", cmd, err)
	}
	if consumed != len(cmd) {
		t.Fatalf("Handle(%q) consumed %d, want %d", cmd, consumed, len(cmd))
	}
	return reply
}

func encodeCommand(args ...string) []byte {
	return resp.EncodeBulkStringArray(args)
}

func TestPingAndEcho(t *testing.T) {
	d := newTestDispatcher(RolePrimary)
	w := &bytes.Buffer{}

	if got := string(mustHandle(t, d, w, encodeCommand("PING"))); got != "+PONG\r\n" {
		t.Fatalf("PING reply = %q", got)
	}
	if got := string(mustHandle(t, d, w, encodeCommand("ECHO", "hey"))); got != "$3\r\nhey\r\n" {
		t.Fatalf("ECHO reply = %q", got)
	}
}

func TestSetGetDel(t *testing.T) {
	d := newTestDispatcher(RolePrimary)
	w := &bytes.Buffer{}

	mustHandle(t, d, w, encodeCommand("SET", "k", "v"))
	if got := string(mustHandle(t, d, w, encodeCommand("GET", "k"))); got != "$1\r\nv\r\n" {
		t.Fatalf("GET reply = %q", got)
	}
	if got := string(mustHandle(t, d, w, encodeCommand("DEL", "k", "missing"))); got != ":1\r\n" {
		t.Fatalf("DEL reply = %q", got)
	}
	if got := string(mustHandle(t, d, w, encodeCommand("GET", "k"))); got != "$-1\r\n" {
		t.Fatalf("GET after DEL = %q", got)
	}
}

func TestSetAdvancesOffsetAndGetDoesNot(t *testing.T) {
	d := newTestDispatcher(RolePrimary)
	w := &bytes.Buffer{}
	cmd := encodeCommand("SET", "a", "b")

	mustHandle(t, d, w, cmd)
	if got := d.Offset.Load(); got != uint64(len(cmd)) {
		t.Fatalf("Offset after SET = %d, want %d", got, len(cmd))
	}

	mustHandle(t, d, w, encodeCommand("GET", "a"))
	if got := d.Offset.Load(); got != uint64(len(cmd)) {
		t.Fatalf("Offset after GET = %d, want unchanged %d", got, len(cmd))
	}
}

func TestSecondarySuppressesPropagatedReplies(t *testing.T) {
	d := newTestDispatcher(RoleSecondary)
	w := &bytes.Buffer{}
	cmd := encodeCommand("SET", "a", "b")

	reply, consumed, err := d.Handle(cmd, w, true)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if consumed != len(cmd) {
		t.Fatalf("consumed = %d, want %d", consumed, len(cmd))
	}
	if len(reply) != 0 {
		t.Fatalf("reply = %q, want empty (propagated SET must not reply)", reply)
	}
	if v, ok := d.Store.Get("a"); !ok || string(v) != "b" {
		t.Fatalf("propagated SET did not apply: %v %v", v, ok)
	}
}

func TestReplconfGetackRepliesEvenWhenPropagated(t *testing.T) {
	d := newTestDispatcher(RoleSecondary)
	w := &bytes.Buffer{}
	cmd := encodeCommand("REPLCONF", "GETACK", "*")

	reply, _, err := d.Handle(cmd, w, true)
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !strings.Contains(string(reply), "REPLCONF") {
		t.Fatalf("reply = %q, want a REPLCONF ACK", reply)
	}
}

func TestHandleReturnsPartialCommandUnconsumed(t *testing.T) {
	d := newTestDispatcher(RolePrimary)
	w := &bytes.Buffer{}
	full := encodeCommand("PING")
	partial := full[:len(full)-2]

	reply, consumed, err := d.Handle(partial, w, false)
	if err != nil {
		t.Fatalf("Handle error on partial buffer: %v", err)
	}
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0 for a buffer with no complete command", consumed)
	}
	if len(reply) != 0 {
		t.Fatalf("reply = %q, want none yet", reply)
	}
}

func TestUnknownCommandReturnsError(t *testing.T) {
	d := newTestDispatcher(RolePrimary)
	w := &bytes.Buffer{}
	reply := mustHandle(t, d, w, encodeCommand("NOSUCHCOMMAND"))
	if !strings.HasPrefix(string(reply), "-ERR") {
		t.Fatalf("reply = %q, want a -ERR line", reply)
	}
}

func TestWaitWithZeroOffsetReturnsReplicaCountImmediately(t *testing.T) {
	d := newTestDispatcher(RolePrimary)
	w := &bytes.Buffer{}
	d.Registry.Add(&bytes.Buffer{}, "r1", 0)
	d.Registry.Add(&bytes.Buffer{}, "r2", 0)

	reply := mustHandle(t, d, w, encodeCommand("WAIT", "0", "100"))
	if got := string(reply); got != ":2\r\n" {
		t.Fatalf("WAIT reply = %q, want :2", got)
	}
}

func TestInfoReplicationReportsRole(t *testing.T) {
	primary := newTestDispatcher(RolePrimary)
	w := &bytes.Buffer{}
	reply := mustHandle(t, primary, w, encodeCommand("INFO", "replication"))
	if !strings.Contains(string(reply), "role:master") {
		t.Fatalf("primary INFO reply = %q", reply)
	}

	secondary := newTestDispatcher(RoleSecondary)
	secondary.PrimaryHost, secondary.PrimaryPort = "127.0.0.1", "6380"
	reply = mustHandle(t, secondary, w, encodeCommand("INFO", "replication"))
	if !strings.Contains(string(reply), "role:slave") || !strings.Contains(string(reply), "master_port:6380") {
		t.Fatalf("secondary INFO reply = %q", reply)
	}
}
