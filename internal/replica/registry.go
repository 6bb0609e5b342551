// Package replica implements the replication registry: the primary's
// bookkeeping of attached secondaries — a mutex-guarded registry keyed
// by the writable handle, with a broadcast operation that writes to
// every member and tolerates per-member failures.
package replica

import (
	"io"
	"sync"
	"time"

	"redisd/internal/rlog"
	"redisd/internal/types"
)

var log = rlog.New("repl")

// Writer is the writable half of a replica's connection — the handle
// that doubles as the record's identity.
type Writer io.Writer

// Record is one attached replica.
type Record struct {
	Writer        Writer
	ReplicationID string
	RegisteredAt  time.Time

	// Capabilities collects the REPLCONF capa tokens the replica
	// announced during its handshake (e.g. "psync2"). Nothing currently
	// branches on membership; it exists so INFO replication and future
	// capability-gated behavior have somewhere to look.
	Capabilities *types.Set[string]

	mu     sync.Mutex
	offset uint64
}

// Offset returns the last acknowledged byte offset for this replica.
func (r *Record) Offset() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

// setOffset keeps a replica's offset monotone non-decreasing for the
// lifetime of the connection.
func (r *Record) setOffset(offset uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset > r.offset {
		r.offset = offset
	}
}

// Registry is the process-wide shared collection of replica records,
// mutex-guarded since the connection loop and the WAIT poll both read
// and mutate it concurrently.
type Registry struct {
	mu      sync.Mutex
	records map[Writer]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[Writer]*Record)}
}

// Add registers a new replica connection at the given starting offset,
// typically the primary's replication_offset at the moment PSYNC was
// answered.
func (reg *Registry) Add(w Writer, replicationID string, offset uint64) *Record {
	rec := &Record{
		Writer:        w,
		ReplicationID: replicationID,
		RegisteredAt:  time.Now(),
		Capabilities:  types.NewSet[string](),
		offset:        offset,
	}
	reg.mu.Lock()
	reg.records[w] = rec
	reg.mu.Unlock()
	return rec
}

// Remove detaches a replica connection. Idempotent — removing a writer
// that is not registered is a no-op, so a connection loop's cleanup
// path can call it unconditionally on every exit.
func (reg *Registry) Remove(w Writer) {
	reg.mu.Lock()
	delete(reg.records, w)
	reg.mu.Unlock()
}

// GetAll returns a point-in-time snapshot of the attached replicas.
func (reg *Registry) GetAll() []*Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Record, 0, len(reg.records))
	for _, rec := range reg.records {
		out = append(out, rec)
	}
	return out
}

// UpdateOffset records a newly acknowledged offset for the replica
// identified by w, ignoring writers that are no longer registered
// (the connection may have already been torn down).
func (reg *Registry) UpdateOffset(w Writer, offset uint64) {
	reg.mu.Lock()
	rec := reg.records[w]
	reg.mu.Unlock()
	if rec != nil {
		rec.setOffset(offset)
	}
}

// Broadcast writes b to every attached replica. A per-writer failure is
// logged and that replica is dropped from the registry rather than
// propagated to the caller.
func (reg *Registry) Broadcast(b []byte) {
	for _, rec := range reg.GetAll() {
		if _, err := rec.Writer.Write(b); err != nil {
			log.Errorf("replica write failed, dropping: %v", err)
			reg.Remove(rec.Writer)
		}
	}
}

// CountAtLeast returns the number of replicas whose last acknowledged
// offset is at or beyond offset — the primitive WAIT polls.
func (reg *Registry) CountAtLeast(offset uint64) int {
	n := 0
	for _, rec := range reg.GetAll() {
		if rec.Offset() >= offset {
			n++
		}
	}
	return n
}

// Len reports the number of attached replicas.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.records)
}
