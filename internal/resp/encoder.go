package resp

import (
	"strconv"
	"strings"
)

// EncodeSimpleString encodes a "+<str>\r\n" reply.
func EncodeSimpleString(s string) []byte {
	return []byte("+" + s + "\r\n")
}

// EncodeError encodes a "-<code> <msg>\r\n" reply. code defaults to ERR.
func EncodeError(code, msg string) []byte {
	if code == "" {
		code = "ERR"
	}
	return []byte("-" + code + " " + msg + "\r\n")
}

// EncodeInteger encodes a ":<n>\r\n" reply.
func EncodeInteger(i int64) []byte {
	return []byte(":" + formatInt(i) + "\r\n")
}

// EncodeBulk encodes a "$<len>\r\n<bytes>\r\n" reply, or the null bulk
// "$-1\r\n" when b is nil.
func EncodeBulk(b []byte) []byte {
	if b == nil {
		return []byte("$-1\r\n")
	}
	var sb strings.Builder
	sb.WriteByte('$')
	sb.WriteString(strconv.Itoa(len(b)))
	sb.WriteString("\r\n")
	sb.Write(b)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// EncodeArray joins pre-encoded items under an array header.
func EncodeArray(items [][]byte) []byte {
	var sb strings.Builder
	sb.WriteByte('*')
	sb.WriteString(strconv.Itoa(len(items)))
	sb.WriteString("\r\n")
	for _, it := range items {
		sb.Write(it)
	}
	return []byte(sb.String())
}

// EncodeFile frames a raw byte blob as "$<len>\r\n<bytes>" with no
// trailing terminator, used exactly once for the RDB handoff during
// PSYNC.
func EncodeFile(b []byte) []byte {
	var sb strings.Builder
	sb.WriteByte('$')
	sb.WriteString(strconv.Itoa(len(b)))
	sb.WriteString("\r\n")
	sb.Write(b)
	return []byte(sb.String())
}

// EncodeBulkStringArray is a convenience wrapper used by commands whose
// reply is an array of bulk strings (KEYS, XRANGE field lists, …).
func EncodeBulkStringArray(items []string) []byte {
	encoded := make([][]byte, len(items))
	for i, s := range items {
		encoded[i] = EncodeBulk([]byte(s))
	}
	return EncodeArray(encoded)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}
