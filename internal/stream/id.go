// Package stream implements the append-only stream data type: ID
// parsing, validation, auto-generation, insertion, and range queries.
package stream

import (
	"strconv"
	"strings"

	"redisd/internal/rerr"
)

// ID is the (timestamp, sequence) pair that orders entries within a
// stream.
type ID struct {
	Ms  uint64
	Seq uint64
}

// Zero is the reserved ID that can never be inserted.
var Zero = ID{0, 0}

func (id ID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// Less reports whether id sorts strictly before other, lexicographic on
// (Ms, Seq).
func (id ID) Less(other ID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// Equal reports value equality.
func (id ID) Equal(other ID) bool {
	return id.Ms == other.Ms && id.Seq == other.Seq
}

// incoming describes one side of an XADD ID argument as given by the
// caller, before it is resolved against the stream's current top.
type incoming struct {
	full    bool   // "*" — both fields generated by the server
	seqWild bool   // "<ts>-*" — sequence generated by the server
	ms      uint64 // parsed timestamp, meaningful unless full
	seq     uint64 // parsed sequence, meaningful unless full or seqWild
}

func parseIncoming(raw string) (incoming, error) {
	if raw == "*" {
		return incoming{full: true}, nil
	}
	msPart, seqPart, hasSeq := strings.Cut(raw, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return incoming{}, rerr.Argument("Invalid stream ID specified as stream command argument")
	}
	if !hasSeq {
		return incoming{ms: ms}, nil
	}
	if seqPart == "*" {
		return incoming{ms: ms, seqWild: true}, nil
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return incoming{}, rerr.Argument("Invalid stream ID specified as stream command argument")
	}
	return incoming{ms: ms, seq: seq}, nil
}

// Validate reports whether an incoming ID spec would be accepted: true
// unconditionally for "*"; otherwise true iff the incoming ID sorts
// strictly after currentTop, treating a wildcard sequence as "the
// server will pick something greater".
func Validate(currentTop ID, incomingRaw string) (bool, error) {
	in, err := parseIncoming(incomingRaw)
	if err != nil {
		return false, err
	}
	if in.full {
		return true, nil
	}
	if in.ms > currentTop.Ms {
		return true, nil
	}
	if in.ms < currentTop.Ms {
		return false, nil
	}
	if in.seqWild {
		return true, nil
	}
	return in.seq > currentTop.Seq, nil
}

// Generate resolves an incoming ID spec to a concrete ID, given the
// stream's current top. Callers must have already validated the
// incoming spec.
func Generate(incomingRaw string, currentTop ID, now func() uint64) (ID, error) {
	in, err := parseIncoming(incomingRaw)
	if err != nil {
		return ID{}, err
	}
	if in.full {
		ms := now()
		if ms <= currentTop.Ms {
			// Same millisecond as the current top (or a clock that
			// has not advanced): keep the top's timestamp and bump the
			// sequence so IDs stay strictly increasing.
			return ID{Ms: currentTop.Ms, Seq: currentTop.Seq + 1}, nil
		}
		return ID{Ms: ms, Seq: 0}, nil
	}
	if in.seqWild {
		// currentTop is 0-0 before any insert, so ts==0 here still
		// yields 0-1 rather than 0-0.
		if currentTop.Ms == in.ms {
			return ID{Ms: in.ms, Seq: currentTop.Seq + 1}, nil
		}
		return ID{Ms: in.ms, Seq: 0}, nil
	}
	return ID{Ms: in.ms, Seq: in.seq}, nil
}
