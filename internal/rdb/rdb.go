// Package rdb parses a (subset of a) Redis RDB snapshot file to seed
// the store at startup. Only string values are decoded; LZF-compressed
// strings and non-string value types fail with an Unsupported error
// that the bootstrap logs and falls back from.
package rdb

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"time"

	"redisd/internal/rerr"
	"redisd/internal/rlog"
)

var log = rlog.New("rdb")

// Entry is one decoded string value, ready to seed the store.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt *time.Time
}

const (
	opAux          = 0xFA
	opResizeDB     = 0xFB
	opExpireMS     = 0xFC
	opExpireSec    = 0xFD
	opSelectDB     = 0xFE
	opEOF          = 0xFF
	typeString     = 0
)

// Load reads an RDB file and returns, per database index, the string
// entries it contains. Only databases[0] is consumed by the server;
// the rest are preserved in the return value but otherwise unused.
func Load(path string) (map[int][]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := readHeader(r); err != nil {
		return nil, err
	}

	dbs := map[int][]Entry{}
	currentDB := 0

	for {
		opcode, err := r.ReadByte()
		if err == io.EOF {
			return dbs, nil
		}
		if err != nil {
			return nil, err
		}

		switch opcode {
		case opEOF:
			// 8-byte checksum follows; read but not validated.
			checksum := make([]byte, 8)
			_, _ = io.ReadFull(r, checksum)
			return dbs, nil
		case opAux:
			if _, err := readString(r); err != nil {
				return nil, err
			}
			if _, err := readString(r); err != nil {
				return nil, err
			}
		case opSelectDB:
			n, _, err := readLength(r)
			if err != nil {
				return nil, err
			}
			currentDB = int(n)
		case opResizeDB:
			if _, _, err := readLength(r); err != nil {
				return nil, err
			}
			if _, _, err := readLength(r); err != nil {
				return nil, err
			}
		default:
			entry, err := readEntry(r, opcode)
			if err != nil {
				return nil, err
			}
			dbs[currentDB] = append(dbs[currentDB], entry)
		}
	}
}

// Empty returns the bytes of a minimal, valid, empty RDB file: a
// header, no database sections, and an EOF opcode with an
// all-zero (unvalidated) checksum. PSYNC hands this to every freshly
// attached replica; the store's current contents are not included.
func Empty() []byte {
	out := append([]byte("REDIS0011"), opEOF)
	return append(out, make([]byte, 8)...)
}

func readHeader(r *bufio.Reader) error {
	header := make([]byte, 9)
	if _, err := io.ReadFull(r, header); err != nil {
		return rerr.New(rerr.CodeRDBFormat, "short read on RDB header")
	}
	if string(header[:5]) != "REDIS" {
		return rerr.New(rerr.CodeRDBFormat, "wrong signature trying to load DB from file")
	}
	log.Debugf("RDB version %s", string(header[5:]))
	return nil
}

// readEntry decodes one [expiry] type key value triple. opcode is
// either the type byte itself, or an expiry opcode that the caller has
// already consumed the tag for; in the latter case the expiry payload
// is read here followed by the real type byte.
func readEntry(r *bufio.Reader, opcode byte) (Entry, error) {
	var expiresAt *time.Time

	switch opcode {
	case opExpireSec:
		var secs uint32
		if err := binary.Read(r, binary.LittleEndian, &secs); err != nil {
			return Entry{}, rerr.New(rerr.CodeRDBFormat, "short read on expire seconds")
		}
		t := time.Unix(int64(secs), 0)
		expiresAt = &t
		var err error
		opcode, err = r.ReadByte()
		if err != nil {
			return Entry{}, rerr.New(rerr.CodeRDBFormat, "missing type byte after expiry")
		}
	case opExpireMS:
		var ms uint64
		if err := binary.Read(r, binary.LittleEndian, &ms); err != nil {
			return Entry{}, rerr.New(rerr.CodeRDBFormat, "short read on expire milliseconds")
		}
		t := time.UnixMilli(int64(ms))
		expiresAt = &t
		var err error
		opcode, err = r.ReadByte()
		if err != nil {
			return Entry{}, rerr.New(rerr.CodeRDBFormat, "missing type byte after expiry")
		}
	}

	if opcode != typeString {
		return Entry{}, rerr.New(rerr.CodeUnsupported, "unsupported RDB value type "+strconv.Itoa(int(opcode)))
	}

	key, err := readString(r)
	if err != nil {
		return Entry{}, err
	}
	value, err := readBytes(r)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: key, Value: value, ExpiresAt: expiresAt}, nil
}
