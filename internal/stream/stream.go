package stream

import "redisd/internal/rerr"

// FieldValue is one (field, value) pair within a stream entry, ordered
// by insertion.
type FieldValue struct {
	Field string
	Value string
}

// Record is one stream entry: a concrete ID plus its ordered fields.
type Record struct {
	ID     ID
	Fields []FieldValue
}

// Stream is an ordered sequence of Records. Insertion order equals ID
// order: every Add either appends at the end or is rejected, so the
// backing slice never needs resorting.
type Stream struct {
	records []Record
	top     ID
}

func New() *Stream {
	return &Stream{top: Zero}
}

// Add validates and inserts one entry, returning its concrete ID. now
// supplies the current millisecond timestamp for "*"-style IDs.
func (s *Stream) Add(incomingRaw string, fields []FieldValue, now func() uint64) (ID, error) {
	ok, err := Validate(s.top, incomingRaw)
	if err != nil {
		return ID{}, err
	}
	if !ok {
		if s.top.Equal(Zero) {
			return ID{}, rerr.StreamLessOrEqualZero()
		}
		return ID{}, rerr.StreamTooSmall()
	}

	id, err := Generate(incomingRaw, s.top, now)
	if err != nil {
		return ID{}, err
	}
	if id.Equal(Zero) {
		return ID{}, rerr.StreamLessOrEqualZero()
	}
	if !s.top.Equal(Zero) && !s.top.Less(id) {
		return ID{}, rerr.StreamTooSmall()
	}

	s.records = append(s.records, Record{ID: id, Fields: fields})
	s.top = id
	return id, nil
}

// Range returns every record whose ID falls within [start, end]. The
// two bound strings accept "-", "+", "<ts>", "<ts>-<seq>", and an
// optional "(" exclusive prefix.
func (s *Stream) Range(startRaw, endRaw string) ([]Record, error) {
	lo, err := parseStart(startRaw)
	if err != nil {
		return nil, err
	}
	hi, err := parseEnd(endRaw)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range s.records {
		if lo.includes(r.ID, true) && hi.includes(r.ID, false) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len reports the number of entries (backs XLEN).
func (s *Stream) Len() int {
	return len(s.records)
}

// Top returns the current top ID, mainly for tests.
func (s *Stream) Top() ID {
	return s.top
}
