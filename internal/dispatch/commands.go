package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"redisd/internal/rdb"
	"redisd/internal/rerr"
	"redisd/internal/replica"
	"redisd/internal/resp"
	"redisd/internal/stream"
)

// handlerFunc runs one command's logic and reports whether it belongs
// to the broadcast set; broadcasting only has an effect when the
// dispatcher's role is primary.
type handlerFunc func(d *Dispatcher, args []string, w replica.Writer) (reply []byte, broadcast bool, err error)

var commandTable = map[string]handlerFunc{
	"PING":     cmdPing,
	"ECHO":     cmdEcho,
	"SET":      cmdSet,
	"GET":      cmdGet,
	"DEL":      cmdDel,
	"KEYS":     cmdKeys,
	"TYPE":     cmdType,
	"CONFIG":   cmdConfig,
	"INFO":     cmdInfo,
	"XADD":     cmdXAdd,
	"XRANGE":   cmdXRange,
	"XLEN":     cmdXLen,
	"COMMAND":  cmdCommand,
	"REPLCONF": cmdReplConf,
	"PSYNC":    cmdPsync,
	"WAIT":     cmdWait,
}

func cmdPing(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	return resp.EncodeSimpleString("PONG"), false, nil
}

func cmdEcho(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, rerr.Argument("wrong number of arguments for 'echo' command")
	}
	return resp.EncodeBulk([]byte(args[1])), false, nil
}

func cmdSet(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) < 3 {
		return nil, false, rerr.Argument("wrong number of arguments for 'set' command")
	}
	key, value := args[1], args[2]

	var expiresAt *time.Time
	for i := 3; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "PX":
			if i+1 >= len(args) {
				return nil, false, rerr.Argument("syntax error")
			}
			ms, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return nil, false, rerr.Argument("value is not an integer or out of range")
			}
			t := time.Now().Add(time.Duration(ms) * time.Millisecond)
			expiresAt = &t
			i++
		case "EX":
			if i+1 >= len(args) {
				return nil, false, rerr.Argument("syntax error")
			}
			secs, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return nil, false, rerr.Argument("value is not an integer or out of range")
			}
			t := time.Now().Add(time.Duration(secs) * time.Second)
			expiresAt = &t
			i++
		default:
			return nil, false, rerr.Argument("syntax error")
		}
	}

	d.Store.Set(key, []byte(value), expiresAt)
	return resp.EncodeSimpleString("OK"), true, nil
}

func cmdGet(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, rerr.Argument("wrong number of arguments for 'get' command")
	}
	v, ok := d.Store.Get(args[1])
	if !ok {
		return resp.EncodeBulk(nil), false, nil
	}
	return resp.EncodeBulk(v), false, nil
}

func cmdDel(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) < 2 {
		return nil, false, rerr.Argument("wrong number of arguments for 'del' command")
	}
	var n int64
	for _, key := range args[1:] {
		if d.Store.Del(key) {
			n++
		}
	}
	return resp.EncodeInteger(n), false, nil
}

func cmdKeys(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, rerr.Argument("wrong number of arguments for 'keys' command")
	}
	keys, err := d.Store.Keys(args[1])
	if err != nil {
		return nil, false, rerr.Argument("invalid glob pattern")
	}
	return resp.EncodeBulkStringArray(keys), false, nil
}

func cmdType(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, rerr.Argument("wrong number of arguments for 'type' command")
	}
	return resp.EncodeSimpleString(d.Store.Type(args[1])), false, nil
}

func cmdConfig(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) < 3 || strings.ToUpper(args[1]) != "GET" {
		return nil, false, rerr.Argument("wrong number of arguments for 'config|get' command")
	}
	var pairs [][]byte
	for _, name := range args[2:] {
		pairs = append(pairs, resp.EncodeBulk([]byte(name)))
		pairs = append(pairs, resp.EncodeBulk([]byte(d.configValue(strings.ToLower(name)))))
	}
	return resp.EncodeArray(pairs), false, nil
}

func (d *Dispatcher) configValue(name string) string {
	switch name {
	case "dir":
		return d.Cfg.Dir
	case "dbfilename":
		return d.Cfg.DBFilename
	case "replicaof":
		if r, ok := d.Cfg.ReplicaOf(); ok {
			return r.Host + " " + r.Port
		}
		return ""
	case "port":
		return strconv.Itoa(d.Cfg.Port)
	default:
		return ""
	}
}

func cmdInfo(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) >= 2 && strings.ToLower(args[1]) != "replication" {
		return nil, false, rerr.Argument("unsupported INFO section")
	}
	var lines []string
	if d.Role == RolePrimary {
		lines = []string{
			"role:master",
			"connected_slaves:" + strconv.Itoa(d.Registry.Len()),
			"master_replid:" + d.ReplicationID,
			"master_repl_offset:" + strconv.FormatUint(d.Offset.Load(), 10),
		}
	} else {
		lines = []string{
			"role:slave",
			"master_host:" + d.PrimaryHost,
			"master_port:" + d.PrimaryPort,
		}
	}
	return resp.EncodeBulk([]byte(strings.Join(lines, "\r\n"))), false, nil
}

func cmdXAdd(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) < 5 || (len(args)-3)%2 != 0 {
		return nil, false, rerr.Argument("wrong number of arguments for 'xadd' command")
	}
	key, idSpec := args[1], args[2]
	fields := make([]stream.FieldValue, 0, (len(args)-3)/2)
	for i := 3; i+1 < len(args); i += 2 {
		fields = append(fields, stream.FieldValue{Field: args[i], Value: args[i+1]})
	}

	st, err := d.Store.Stream(key)
	if err != nil {
		return nil, false, err
	}
	id, err := st.Add(idSpec, fields, d.Now)
	if err != nil {
		return nil, false, err
	}
	return resp.EncodeBulk([]byte(id.String())), true, nil
}

func cmdXRange(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) != 4 {
		return nil, false, rerr.Argument("wrong number of arguments for 'xrange' command")
	}
	st, ok, err := d.Store.StreamIfExists(args[1])
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return resp.EncodeArray(nil), false, nil
	}
	records, err := st.Range(args[2], args[3])
	if err != nil {
		return nil, false, err
	}
	entries := make([][]byte, 0, len(records))
	for _, r := range records {
		fieldPairs := make([]string, 0, len(r.Fields)*2)
		for _, fv := range r.Fields {
			fieldPairs = append(fieldPairs, fv.Field, fv.Value)
		}
		entry := resp.EncodeArray([][]byte{
			resp.EncodeBulk([]byte(r.ID.String())),
			resp.EncodeBulkStringArray(fieldPairs),
		})
		entries = append(entries, entry)
	}
	return resp.EncodeArray(entries), false, nil
}

func cmdXLen(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, rerr.Argument("wrong number of arguments for 'xlen' command")
	}
	st, ok, err := d.Store.StreamIfExists(args[1])
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return resp.EncodeInteger(0), false, nil
	}
	return resp.EncodeInteger(int64(st.Len())), false, nil
}

func cmdCommand(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	// Satisfies redis-cli / client libraries that probe COMMAND DOCS on
	// connect; no command introspection is implemented.
	return resp.EncodeArray(nil), false, nil
}

// cmdReplConf handles both directions REPLCONF travels: a secondary
// announcing itself to a primary (listening-port, capa — answered with
// +OK), a primary probing a secondary for its ingest progress (GETACK,
// answered with the secondary's own REPLCONF ACK), and a secondary
// reporting that progress back (ACK, which updates the registry and
// draws no reply at all).
func cmdReplConf(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) < 2 {
		return nil, false, rerr.Argument("wrong number of arguments for 'replconf' command")
	}
	switch strings.ToUpper(args[1]) {
	case "GETACK":
		ack := resp.EncodeBulkStringArray([]string{"REPLCONF", "ACK", strconv.FormatUint(d.BytesProcessed.Load(), 10)})
		return ack, false, nil
	case "ACK":
		if len(args) != 3 {
			return nil, false, rerr.Argument("wrong number of arguments for 'replconf|ack' command")
		}
		offset, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return nil, false, rerr.Argument("value is not an integer or out of range")
		}
		d.Registry.UpdateOffset(w, offset)
		return nil, false, nil
	case "CAPA":
		if len(args) >= 3 {
			d.recordCapa(w, strings.ToLower(args[2]))
		}
		return resp.EncodeSimpleString("OK"), false, nil
	default:
		return resp.EncodeSimpleString("OK"), false, nil
	}
}

// cmdPsync answers the handshake's final step: a FULLRESYNC reply
// naming the primary's replication ID and current offset, immediately
// followed by the framed RDB blob with no trailing terminator. The
// connection is registered as a replica right after, at the offset
// named in the reply, so nothing broadcast after this point is missed.
func cmdPsync(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if d.Role != RolePrimary {
		return nil, false, rerr.Argument("PSYNC is only valid against a primary")
	}
	offset := d.Offset.Load()
	fullresync := resp.EncodeSimpleString(fmt.Sprintf("FULLRESYNC %s %d", d.ReplicationID, offset))
	blob := resp.EncodeFile(rdb.Empty())
	rec := d.Registry.Add(w, d.ReplicationID, offset)
	rec.Capabilities = d.takeCapa(w)
	return append(fullresync, blob...), false, nil
}

// cmdWait implements the WAIT primitive: capture the primary's current
// offset, ask every replica to report its progress against it, and
// poll the registry until enough have caught up or the deadline
// passes.
func cmdWait(d *Dispatcher, args []string, w replica.Writer) ([]byte, bool, error) {
	if len(args) != 3 {
		return nil, false, rerr.Argument("wrong number of arguments for 'wait' command")
	}
	numReplicas, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, false, rerr.Argument("value is not an integer or out of range")
	}
	timeoutMS, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, false, rerr.Argument("value is not an integer or out of range")
	}

	target := d.Offset.Load()
	if target == 0 {
		return resp.EncodeInteger(int64(d.Registry.Len())), false, nil
	}

	getack := resp.EncodeArray([][]byte{
		resp.EncodeBulk([]byte("REPLCONF")),
		resp.EncodeBulk([]byte("GETACK")),
		resp.EncodeBulk([]byte("*")),
	})
	d.Registry.Broadcast(getack)

	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)
	for {
		if n := d.Registry.CountAtLeast(target); n >= numReplicas || time.Now().After(deadline) {
			return resp.EncodeInteger(int64(n)), false, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}
