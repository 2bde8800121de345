package types

import (
	"encoding/binary"
	"fmt"
)

// Persistence encoding: one discriminant byte per node followed by variant
// data. Sequence and string lengths are unsigned varints; TypeVar ids are
// big-endian u16. Deserialization re-interns every node, so a round trip
// yields pointer-identical terms.
//
// The same encoding doubles as the interner's lookup key: because record
// fields and symbol parts are sorted before encoding, two structurally equal
// terms always encode to the same bytes.

const (
	tagTypeVar  byte = 0x00
	tagInt      byte = 0x01
	tagFloat    byte = 0x02
	tagBool     byte = 0x03
	tagStr      byte = 0x04
	tagBytes    byte = 0x05
	tagArray    byte = 0x06
	tagMap      byte = 0x07
	tagRecord   byte = 0x08
	tagFunction byte = 0x09
	tagSymbol   byte = 0x0A
)

func encodeType(t *Type) []byte {
	return appendType(nil, t)
}

func appendType(buf []byte, t *Type) []byte {
	switch t.kind {
	case KindTypeVar:
		buf = append(buf, tagTypeVar)
		buf = binary.BigEndian.AppendUint16(buf, t.id)
	case KindInt:
		buf = append(buf, tagInt)
	case KindFloat:
		buf = append(buf, tagFloat)
	case KindBool:
		buf = append(buf, tagBool)
	case KindStr:
		buf = append(buf, tagStr)
	case KindBytes:
		buf = append(buf, tagBytes)
	case KindArray:
		buf = append(buf, tagArray)
		buf = appendType(buf, t.elem)
	case KindMap:
		buf = append(buf, tagMap)
		buf = appendType(buf, t.elem)
		buf = appendType(buf, t.value)
	case KindRecord:
		buf = append(buf, tagRecord)
		buf = binary.AppendUvarint(buf, uint64(len(t.fields)))
		for _, f := range t.fields {
			buf = binary.AppendUvarint(buf, uint64(len(f.Name)))
			buf = append(buf, f.Name...)
			buf = appendType(buf, f.Type)
		}
	case KindFunction:
		buf = append(buf, tagFunction)
		buf = binary.AppendUvarint(buf, uint64(len(t.params)))
		for _, p := range t.params {
			buf = appendType(buf, p)
		}
		buf = appendType(buf, t.value)
	case KindSymbol:
		buf = append(buf, tagSymbol)
		buf = binary.AppendUvarint(buf, uint64(len(t.parts)))
		for _, p := range t.parts {
			buf = binary.AppendUvarint(buf, uint64(len(p)))
			buf = append(buf, p...)
		}
	}
	return buf
}

// Serialize encodes t in the persistence format.
func (m *Manager) Serialize(t *Type) []byte {
	return encodeType(t)
}

// Deserialize decodes a type from the persistence format, re-interning every
// node through the manager.
func (m *Manager) Deserialize(data []byte) (*Type, error) {
	dec := &decoder{mgr: m, data: data}
	t, err := dec.decode()
	if err != nil {
		return nil, err
	}
	if dec.pos != len(data) {
		return nil, fmt.Errorf("trailing bytes after type encoding at offset %d", dec.pos)
	}
	return t, nil
}

type decoder struct {
	mgr  *Manager
	data []byte
	pos  int
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("unexpected end of type encoding at offset %d", d.pos)
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("invalid length prefix at offset %d", d.pos)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) str() (string, error) {
	n, err := d.uvarint()
	if err != nil {
		return "", err
	}
	if d.pos+int(n) > len(d.data) {
		return "", fmt.Errorf("string length %d exceeds remaining input", n)
	}
	s := string(d.data[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *decoder) decode() (*Type, error) {
	tag, err := d.byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagTypeVar:
		if d.pos+2 > len(d.data) {
			return nil, fmt.Errorf("truncated type variable id at offset %d", d.pos)
		}
		id := binary.BigEndian.Uint16(d.data[d.pos:])
		d.pos += 2
		return d.mgr.TypeVar(id), nil
	case tagInt:
		return d.mgr.Int(), nil
	case tagFloat:
		return d.mgr.Float(), nil
	case tagBool:
		return d.mgr.Bool(), nil
	case tagStr:
		return d.mgr.Str(), nil
	case tagBytes:
		return d.mgr.Bytes(), nil
	case tagArray:
		elem, err := d.decode()
		if err != nil {
			return nil, err
		}
		return d.mgr.Array(elem), nil
	case tagMap:
		key, err := d.decode()
		if err != nil {
			return nil, err
		}
		value, err := d.decode()
		if err != nil {
			return nil, err
		}
		return d.mgr.Map(key, value)
	case tagRecord:
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		fields := make([]Field, 0, n)
		for i := uint64(0); i < n; i++ {
			name, err := d.str()
			if err != nil {
				return nil, err
			}
			ft, err := d.decode()
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Name: name, Type: ft})
		}
		return d.mgr.Record(fields)
	case tagFunction:
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		params := make([]*Type, 0, n)
		for i := uint64(0); i < n; i++ {
			p, err := d.decode()
			if err != nil {
				return nil, err
			}
			params = append(params, p)
		}
		ret, err := d.decode()
		if err != nil {
			return nil, err
		}
		return d.mgr.Function(params, ret), nil
	case tagSymbol:
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		parts := make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			p, err := d.str()
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		return d.mgr.Symbol(parts)
	}
	return nil, fmt.Errorf("unknown type discriminant 0x%02X at offset %d", tag, d.pos-1)
}
