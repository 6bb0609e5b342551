package resp

import (
	"bytes"
	"reflect"
	"testing"
)

func TestDecodeSimpleString(t *testing.T) {
	v, n, err := Decode([]byte("+OK\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindSimpleString || v.Str != "OK" {
		t.Errorf("got %+v, want simple string OK", v)
	}
	if n != 5 {
		t.Errorf("consumed = %d, want 5", n)
	}
}

func TestDecodeBulkString(t *testing.T) {
	v, n, err := Decode([]byte("$5\r\nhello\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindBulkString || string(v.Bulk) != "hello" {
		t.Errorf("got %+v, want bulk hello", v)
	}
	if n != 11 {
		t.Errorf("consumed = %d, want 11", n)
	}
}

func TestDecodeNullBulk(t *testing.T) {
	v, n, err := Decode([]byte("$-1\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindBulkString || !v.Null {
		t.Errorf("got %+v, want null bulk", v)
	}
	if n != 5 {
		t.Errorf("consumed = %d, want 5", n)
	}
}

func TestDecodeArray(t *testing.T) {
	buf := []byte("*2\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	v, n, err := Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != KindArray || len(v.Array) != 2 {
		t.Fatalf("got %+v, want array of 2", v)
	}
	if string(v.Array[0].Bulk) != "foo" || string(v.Array[1].Bulk) != "bar" {
		t.Errorf("unexpected array contents: %+v", v.Array)
	}
	if n != len(buf) {
		t.Errorf("consumed = %d, want %d", n, len(buf))
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte("?bad\r\n"),
		[]byte("$abc\r\n"),
		[]byte("$5\r\nhi\r\n"),
		[]byte(":notanumber\r\n"),
	}
	for _, c := range cases {
		if _, _, err := Decode(c); err == nil {
			t.Errorf("Decode(%q) expected error, got nil", c)
		}
	}
}

func TestMultiDecode(t *testing.T) {
	a := EncodeArray([][]byte{EncodeBulk([]byte("SET")), EncodeBulk([]byte("k")), EncodeBulk([]byte("v"))})
	b := EncodeArray([][]byte{EncodeBulk([]byte("GET")), EncodeBulk([]byte("k"))})
	c := EncodeArray([][]byte{EncodeBulk([]byte("PING"))})
	buf := append(append(append([]byte{}, a...), b...), c...)

	values, counts, err := MultiDecode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("got %d values, want 3", len(values))
	}
	sum := 0
	for _, n := range counts {
		sum += n
	}
	if sum != len(buf) {
		t.Errorf("byte-count invariant violated: sum=%d, len(buf)=%d", sum, len(buf))
	}
	if values[0].StringArray()[0] != "SET" || values[1].StringArray()[0] != "GET" || values[2].StringArray()[0] != "PING" {
		t.Errorf("unexpected decoded verbs: %+v", values)
	}
}

func TestEncodeFileNoTrailingTerminator(t *testing.T) {
	got := EncodeFile([]byte("abc"))
	want := []byte("$3\r\nabc")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFile = %q, want %q", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want Value
	}{
		{"simple", EncodeSimpleString("PONG"), Value{Kind: KindSimpleString, Str: "PONG"}},
		{"error", EncodeError("ERR", "boom"), Value{Kind: KindError, Str: "ERR boom"}},
		{"integer", EncodeInteger(42), Value{Kind: KindInteger, Int: 42}},
		{"bulk", EncodeBulk([]byte("value")), Value{Kind: KindBulkString, Bulk: []byte("value")}},
		{"null-bulk", EncodeBulk(nil), Value{Kind: KindBulkString, Null: true}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, n, err := Decode(c.buf)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n != len(c.buf) {
				t.Errorf("consumed = %d, want %d", n, len(c.buf))
			}
			if !reflect.DeepEqual(v, c.want) {
				t.Errorf("decoded = %+v, want %+v", v, c.want)
			}
		})
	}
}
