// Package dispatch implements the command dispatcher: the mapping from
// decoded RESP commands to handlers, primary/secondary role
// enforcement, and replication offset accounting.
package dispatch

import (
	"strings"
	"sync"
	"time"

	"redisd/internal/config"
	"redisd/internal/rdb"
	"redisd/internal/replica"
	"redisd/internal/rerr"
	"redisd/internal/resp"
	"redisd/internal/rlog"
	"redisd/internal/store"
	"redisd/internal/types"
)

var log = rlog.New("dispatch")

// Role is fixed for the lifetime of the process.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

// Dispatcher is the single composition point the connection loop and
// the outbound replication task both call into.
type Dispatcher struct {
	Role Role
	Cfg  *config.Config

	Store    *store.Store
	Registry *replica.Registry

	ReplicationID string
	Offset        types.Counter // primary: replication_offset
	BytesProcessed types.Counter // secondary: bytes_processed

	// PrimaryHost and PrimaryPort are set on a secondary for INFO
	// replication's master_host/master_port fields and PrimaryAddr.
	PrimaryHost string
	PrimaryPort string

	// Now supplies the millisecond clock used for stream ID
	// auto-generation; overridable in tests.
	Now func() uint64

	// pendingCapa holds REPLCONF capa announcements made before PSYNC,
	// when the connection is not yet a registered replica. Moved onto
	// the replica.Record at registration time.
	pendingCapaMu sync.Mutex
	pendingCapa   map[replica.Writer]*types.Set[string]
}

func New(role Role, cfg *config.Config) *Dispatcher {
	d := &Dispatcher{
		Role:        role,
		Cfg:         cfg,
		Store:       store.New(),
		Registry:    replica.NewRegistry(),
		Now:         func() uint64 { return uint64(time.Now().UnixMilli()) },
		pendingCapa: make(map[replica.Writer]*types.Set[string]),
	}
	if role == RolePrimary {
		d.ReplicationID = newReplicationID()
	} else if r, ok := cfg.ReplicaOf(); ok {
		d.PrimaryHost, d.PrimaryPort = r.Host, r.Port
	}
	return d
}

// PrimaryAddr returns the configured primary's host and port for a
// secondary dispatcher.
func (d *Dispatcher) PrimaryAddr() (host, port string, ok bool) {
	if d.PrimaryHost == "" {
		return "", "", false
	}
	return d.PrimaryHost, d.PrimaryPort, true
}

// recordCapa appends a capability token announced on w before PSYNC
// registers it as a replica.
func (d *Dispatcher) recordCapa(w replica.Writer, token string) {
	d.pendingCapaMu.Lock()
	set, ok := d.pendingCapa[w]
	if !ok {
		set = types.NewSet[string]()
		d.pendingCapa[w] = set
	}
	d.pendingCapaMu.Unlock()
	set.Add(token)
}

// takeCapa returns and forgets the capability set accumulated for w,
// for cmdPsync to graft onto the freshly created replica.Record.
func (d *Dispatcher) takeCapa(w replica.Writer) *types.Set[string] {
	d.pendingCapaMu.Lock()
	defer d.pendingCapaMu.Unlock()
	set, ok := d.pendingCapa[w]
	if !ok {
		return types.NewSet[string]()
	}
	delete(d.pendingCapa, w)
	return set
}

// PreloadRDB loads the configured RDB file (if any) into Store,
// consuming only the default database.
func (d *Dispatcher) PreloadRDB() error {
	path, ok := d.Cfg.RDBPath()
	if !ok {
		return nil
	}
	dbs, err := rdb.Load(path)
	if err != nil {
		return err
	}
	for _, entry := range dbs[0] {
		d.Store.Set(entry.Key, entry.Value, entry.ExpiresAt)
	}
	return nil
}

// Handle is the dispatcher's single public entry point. raw may
// contain one or more concatenated RESP-encoded commands (a
// secondary's primary connection batches propagation, and a pipelining
// client may do the same) plus a trailing partial command the caller
// hasn't finished reading yet. Handle dispatches every complete
// command it finds in order and returns how many leading bytes of raw
// it consumed; the caller retains raw[consumed:] and appends the next
// read to it. An error is only returned for a genuinely malformed
// command, not for a buffer that simply ends mid-command.
func (d *Dispatcher) Handle(raw []byte, w replica.Writer, propagated bool) (reply []byte, consumed int, err error) {
	for consumed < len(raw) {
		v, n, derr := resp.Decode(raw[consumed:])
		if derr != nil {
			if rerr.IsIncomplete(derr) {
				return reply, consumed, nil
			}
			return reply, consumed, derr
		}
		rawCmd := raw[consumed : consumed+n]
		consumed += n

		if r := d.dispatchOne(v, rawCmd, w, propagated); r != nil {
			reply = append(reply, r...)
		}
	}
	return reply, consumed, nil
}

func (d *Dispatcher) dispatchOne(v resp.Value, rawCmd []byte, w replica.Writer, propagated bool) []byte {
	args := v.StringArray()
	if len(args) == 0 {
		return nil
	}
	verb := strings.ToUpper(args[0])

	if d.Role == RoleSecondary && propagated {
		d.BytesProcessed.Add(uint64(len(rawCmd)))
	}

	handler, ok := commandTable[verb]
	if !ok {
		return d.suppressUnless(propagated, verb, resp.EncodeError("ERR", "Invalid command"))
	}

	replyBody, broadcast, err := handler(d, args, w)
	if err != nil {
		encoded := resp.EncodeError(errCode(err), err.Error())
		return d.suppressUnless(propagated, verb, encoded)
	}

	if broadcast && d.Role == RolePrimary {
		d.Registry.Broadcast(rawCmd)
		d.Offset.Add(uint64(len(rawCmd)))
	}

	return d.suppressUnless(propagated, verb, replyBody)
}

// suppressUnless implements the reply-suppression rule: a secondary
// only replies to propagated traffic for REPLCONF (the ACK path);
// every other propagated command is mutated locally but answered with
// nothing.
func (d *Dispatcher) suppressUnless(propagated bool, verb string, reply []byte) []byte {
	if !propagated || verb == "REPLCONF" {
		return reply
	}
	return nil
}

func errCode(err error) string {
	if re, ok := err.(*rerr.RedisError); ok {
		return re.RESPCode()
	}
	return "ERR"
}
