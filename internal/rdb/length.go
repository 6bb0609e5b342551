package rdb

import (
	"bufio"
	"encoding/binary"
	"strconv"

	"redisd/internal/rerr"
)

// readLength decodes one RDB length-prefixed integer. When the top two
// bits are 11, the value is not a length but a
// special-format selector; isSpecial reports that case so the caller
// can dispatch to integer/LZF decoding instead of treating n as a byte
// count.
func readLength(r *bufio.Reader) (n uint64, isSpecial bool, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, false, rerr.New(rerr.CodeRDBFormat, "short read on length byte")
	}
	switch b >> 6 {
	case 0b00:
		return uint64(b & 0x3F), false, nil
	case 0b01:
		next, err := r.ReadByte()
		if err != nil {
			return 0, false, rerr.New(rerr.CodeRDBFormat, "short read on 14-bit length")
		}
		return (uint64(b&0x3F) << 8) | uint64(next), false, nil
	case 0b10:
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return 0, false, rerr.New(rerr.CodeRDBFormat, "short read on 32-bit length")
		}
		return uint64(v), false, nil
	default: // 0b11
		return uint64(b & 0x3F), true, nil
	}
}

// readString decodes one RDB string object: either a plain byte run or
// (when the length encoding signals a special format) an integer
// rendered to its decimal form.
func readString(r *bufio.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	n, special, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if !special {
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return nil, rerr.New(rerr.CodeRDBFormat, "short read on string payload")
		}
		return buf, nil
	}

	switch n {
	case 0:
		v, err := r.ReadByte()
		if err != nil {
			return nil, rerr.New(rerr.CodeRDBFormat, "short read on 1-byte integer string")
		}
		return []byte(strconv.FormatInt(int64(int8(v)), 10)), nil
	case 1:
		buf := make([]byte, 2)
		if _, err := readFull(r, buf); err != nil {
			return nil, rerr.New(rerr.CodeRDBFormat, "short read on 2-byte integer string")
		}
		v := int16(binary.LittleEndian.Uint16(buf))
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case 2:
		buf := make([]byte, 4)
		if _, err := readFull(r, buf); err != nil {
			return nil, rerr.New(rerr.CodeRDBFormat, "short read on 4-byte integer string")
		}
		v := int32(binary.LittleEndian.Uint32(buf))
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case 3:
		return nil, rerr.New(rerr.CodeUnsupported, "LZF-compressed RDB strings are not supported")
	default:
		return nil, rerr.New(rerr.CodeRDBFormat, "unknown special string format")
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
