package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Wire encoding of a packet:
//
//	[2B LE PacketType][2B LE var count]
//	  for each var: [2B LE VarID][1B kind][payload]
//
// String payloads carry an explicit encoding tag so older and newer
// clients can be served from the same dictionary: [1B encoding][2B LE
// byte length][bytes]. Encode tags a string 8859-1 whenever it is
// representable in Latin-1 and UTF-8 otherwise; Decode accepts either.
const (
	stringEncodingUTF8    byte = 0
	stringEncodingLatin1  byte = 1
	maxVarCount                = 1<<16 - 1
	maxStringOrDataLength      = 1<<16 - 1
)

var (
	utf8Codec   = unicode.UTF8
	latin1Codec = charmap.ISO8859_1
)

// Encode serializes a packet deterministically. Field order within the
// dictionary does not affect the decoded result, but Encode always walks
// vars in VarID order so two calls on an identical packet produce
// byte-identical output.
func Encode(p *Packet) ([]byte, error) {
	ids := make([]VarID, 0, len(p.vars))
	for id := range p.vars {
		ids = append(ids, id)
	}
	sortVarIDs(ids)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(p.Type))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(ids)))

	for _, id := range ids {
		v := p.vars[id]
		encoded, err := encodeValue(id, v)
		if err != nil {
			return nil, fmt.Errorf("encode var %d: %w", id, err)
		}
		buf = append(buf, encoded...)
	}
	return buf, nil
}

func encodeValue(id VarID, v Value) ([]byte, error) {
	head := make([]byte, 3)
	binary.LittleEndian.PutUint16(head[0:2], uint16(id))
	head[2] = byte(v.kind)

	switch v.kind {
	case kindByte:
		return append(head, v.b), nil
	case kindInt32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.i))
		return append(head, b[:]...), nil
	case kindUint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v.u)
		return append(head, b[:]...), nil
	case kindFloat:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v.f))
		return append(head, b[:]...), nil
	case kindString:
		return encodeString(head, v.s)
	case kindData:
		if len(v.bytes) > maxStringOrDataLength {
			return nil, fmt.Errorf("data too long: %d bytes", len(v.bytes))
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v.bytes)))
		out := append(head, lenBuf[:]...)
		return append(out, v.bytes...), nil
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

func encodeString(head []byte, s string) ([]byte, error) {
	raw, err := latin1Codec.NewEncoder().String(s)
	encTag := stringEncodingLatin1
	if err != nil {
		// Not representable in Latin-1 — fall back to UTF-8.
		raw, err = utf8Codec.NewEncoder().String(s)
		encTag = stringEncodingUTF8
		if err != nil {
			return nil, fmt.Errorf("encode string: %w", err)
		}
	}
	if len(raw) > maxStringOrDataLength {
		return nil, fmt.Errorf("string too long: %d bytes", len(raw))
	}
	out := append(head, encTag)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(raw)))
	out = append(out, lenBuf[:]...)
	return append(out, raw...), nil
}

// Decode parses a packet from its wire form. An unrecognized VarID is
// kept in the dictionary; callers that never ask for it simply never
// observe it.
func Decode(data []byte) (*Packet, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	p := &Packet{
		Type: PacketType(binary.LittleEndian.Uint16(data[0:2])),
		vars: make(map[VarID]Value),
	}
	count := int(binary.LittleEndian.Uint16(data[2:4]))
	if count > maxVarCount {
		return nil, fmt.Errorf("var count too large: %d", count)
	}
	off := 4
	for i := 0; i < count; i++ {
		if off+3 > len(data) {
			return nil, fmt.Errorf("truncated var header at offset %d", off)
		}
		id := VarID(binary.LittleEndian.Uint16(data[off : off+2]))
		kind := valueKind(data[off+2])
		off += 3

		v, n, err := decodeValue(kind, data[off:])
		if err != nil {
			return nil, fmt.Errorf("decode var %d: %w", id, err)
		}
		off += n
		p.vars[id] = v
	}
	return p, nil
}

func decodeValue(kind valueKind, data []byte) (Value, int, error) {
	switch kind {
	case kindByte:
		if len(data) < 1 {
			return Value{}, 0, fmt.Errorf("truncated byte")
		}
		return Value{kind: kindByte, b: data[0]}, 1, nil
	case kindInt32:
		if len(data) < 4 {
			return Value{}, 0, fmt.Errorf("truncated int32")
		}
		return Value{kind: kindInt32, i: int32(binary.LittleEndian.Uint32(data[:4]))}, 4, nil
	case kindUint32:
		if len(data) < 4 {
			return Value{}, 0, fmt.Errorf("truncated uint32")
		}
		return Value{kind: kindUint32, u: binary.LittleEndian.Uint32(data[:4])}, 4, nil
	case kindFloat:
		if len(data) < 4 {
			return Value{}, 0, fmt.Errorf("truncated float")
		}
		return Value{kind: kindFloat, f: math.Float32frombits(binary.LittleEndian.Uint32(data[:4]))}, 4, nil
	case kindString:
		return decodeString(data)
	case kindData:
		if len(data) < 4 {
			return Value{}, 0, fmt.Errorf("truncated data length")
		}
		n := int(binary.LittleEndian.Uint32(data[:4]))
		if n < 0 || 4+n > len(data) {
			return Value{}, 0, fmt.Errorf("truncated data payload")
		}
		b := make([]byte, n)
		copy(b, data[4:4+n])
		return Value{kind: kindData, bytes: b}, 4 + n, nil
	default:
		return Value{}, 0, fmt.Errorf("unknown value kind %d", kind)
	}
}

func decodeString(data []byte) (Value, int, error) {
	if len(data) < 3 {
		return Value{}, 0, fmt.Errorf("truncated string header")
	}
	encTag := data[0]
	n := int(binary.LittleEndian.Uint16(data[1:3]))
	if 3+n > len(data) {
		return Value{}, 0, fmt.Errorf("truncated string payload")
	}
	raw := data[3 : 3+n]

	var s string
	var err error
	switch encTag {
	case stringEncodingLatin1:
		s, err = latin1Codec.NewDecoder().String(string(raw))
	default:
		s, err = utf8Codec.NewDecoder().String(string(raw))
	}
	if err != nil {
		s = string(raw)
	}
	return Value{kind: kindString, s: s}, 3 + n, nil
}

// sortVarIDs sorts in ascending order without pulling in sort for a tiny slice.
func sortVarIDs(ids []VarID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
