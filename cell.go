package hbase

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/freeeve/msgpck"
	"github.com/vmihailenco/msgpack/v5"
)

// CellType identifies what kind of write a Cell records.
type CellType uint8

const (
	// CellTypePut is a regular value write.
	CellTypePut CellType = iota + 1
	// CellTypeDeleteColumn shadows every version of one qualifier at or
	// before its timestamp.
	CellTypeDeleteColumn
	// CellTypeDeleteFamilyVersion shadows exactly one timestamp across an
	// entire family.
	CellTypeDeleteFamilyVersion
	// CellTypeDeleteFamily shadows every qualifier of a family at or
	// before its timestamp.
	CellTypeDeleteFamily
)

// IsDelete reports whether this type marks a tombstone rather than a value.
func (t CellType) IsDelete() bool {
	return t == CellTypeDeleteColumn || t == CellTypeDeleteFamilyVersion || t == CellTypeDeleteFamily
}

// ValueKind distinguishes how a Put cell's payload is encoded.
type ValueKind uint8

const (
	ValueKindBytes ValueKind = iota
	ValueKindRecord
)

// Cell is the unit record merged by the scanner: a fully qualified
// row/family/qualifier/timestamp coordinate, its type, and (for puts) a
// payload.
type Cell struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Timestamp int64
	Type      CellType
	Sequence  uint64

	ValKind ValueKind
	Value   []byte         // used when ValKind == ValueKindBytes
	Record  map[string]any // used when ValKind == ValueKindRecord
}

// IsTombstone reports whether this cell shadows rather than carries data.
func (c Cell) IsTombstone() bool {
	return c.Type.IsDelete()
}

// Comparator orders Cells the way a column family's store does: row asc,
// family asc, qualifier asc, timestamp desc, type desc (deletes before
// puts at the same coordinate so shadowing is seen before the value).
type Comparator interface {
	Compare(a, b Cell) int
	CompareRows(a, b []byte) int
}

// storeComparator is the default Comparator, grounded on CompareKeys in
// the original store's flat-byte key ordering, generalized to the
// multi-part Cell coordinate.
type storeComparator struct{}

// DefaultComparator is the Comparator used by every Store in this package
// unless a caller substitutes another.
var DefaultComparator Comparator = storeComparator{}

func (storeComparator) CompareRows(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (storeComparator) Compare(a, b Cell) int {
	if c := bytes.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Family, b.Family); c != 0 {
		return c
	}
	if c := bytes.Compare(a.Qualifier, b.Qualifier); c != 0 {
		return c
	}
	// Newer (larger) timestamps sort first.
	if a.Timestamp != b.Timestamp {
		if a.Timestamp > b.Timestamp {
			return -1
		}
		return 1
	}
	// Deletes before puts at the same coordinate/timestamp, so a tracker
	// sees the shadow before the value it shadows.
	if a.Type != b.Type {
		if a.Type > b.Type {
			return -1
		}
		return 1
	}
	// Higher sequence (newer write) first.
	if a.Sequence != b.Sequence {
		if a.Sequence > b.Sequence {
			return -1
		}
		return 1
	}
	return 0
}

// SameRow reports whether a and b share a row under cmp.
func SameRow(cmp Comparator, a, b Cell) bool {
	return cmp.CompareRows(a.Row, b.Row) == 0
}

// PutCell builds a Put cell carrying a raw byte value.
func PutCell(row, family, qualifier []byte, ts int64, value []byte) Cell {
	return Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: ts, Type: CellTypePut, ValKind: ValueKindBytes, Value: value}
}

// PutRecordCell builds a Put cell carrying a structured record value,
// encoded with msgpack on the wire (EncodeCellValue/DecodeCellValue).
func PutRecordCell(row, family, qualifier []byte, ts int64, record map[string]any) Cell {
	return Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: ts, Type: CellTypePut, ValKind: ValueKindRecord, Record: record}
}

// DeleteColumnCell builds a tombstone shadowing every version of one
// qualifier at or before ts.
func DeleteColumnCell(row, family, qualifier []byte, ts int64) Cell {
	return Cell{Row: row, Family: family, Qualifier: qualifier, Timestamp: ts, Type: CellTypeDeleteColumn}
}

// DeleteFamilyCell builds a tombstone shadowing an entire family at or
// before ts.
func DeleteFamilyCell(row, family []byte, ts int64) Cell {
	return Cell{Row: row, Family: family, Timestamp: ts, Type: CellTypeDeleteFamily}
}

// EncodedSize returns the serialized size of the cell's value payload,
// mirroring the teacher's Value.EncodedSize layered-size idiom.
func (c Cell) EncodedSize() int {
	switch c.ValKind {
	case ValueKindRecord:
		encoded, _ := msgpck.MarshalCopy(c.Record)
		return 1 + 4 + len(encoded)
	default:
		return 1 + 4 + len(c.Value)
	}
}

// EncodeCellValue serializes a cell's value payload to bytes, used by
// StoreFile block writers.
func EncodeCellValue(c Cell) []byte {
	buf := make([]byte, 0, c.EncodedSize())
	buf = append(buf, byte(c.ValKind))
	switch c.ValKind {
	case ValueKindRecord:
		encoded, err := msgpack.Marshal(c.Record)
		if err != nil {
			encoded, _ = msgpck.MarshalCopy(c.Record)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(encoded)))
		buf = append(buf, encoded...)
	default:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.Value)))
		buf = append(buf, c.Value...)
	}
	return buf
}

// DecodeCellValue parses a value payload produced by EncodeCellValue,
// returning the kind/value/record fields and the number of bytes consumed.
func DecodeCellValue(data []byte) (ValueKind, []byte, map[string]any, int, error) {
	if len(data) < 5 {
		return 0, nil, nil, 0, ErrCorrupt
	}
	kind := ValueKind(data[0])
	length := binary.LittleEndian.Uint32(data[1:])
	if int(length) > maxCellValueLength || len(data) < 5+int(length) {
		return 0, nil, nil, 0, ErrCorrupt
	}
	payload := data[5 : 5+int(length)]
	switch kind {
	case ValueKindRecord:
		var rec map[string]any
		if len(payload) > 0 {
			if err := msgpack.Unmarshal(payload, &rec); err != nil {
				return 0, nil, nil, 0, ErrCorrupt
			}
		}
		return kind, nil, rec, 5 + int(length), nil
	default:
		value := make([]byte, length)
		copy(value, payload)
		return kind, value, nil, 5 + int(length), nil
	}
}

const maxCellValueLength = 64 * 1024 * 1024

// compareEncodedKeys compares two EncodeCellKey outputs in
// DefaultComparator order by decoding both keys; a key that does not
// decode falls back to plain byte comparison.
func compareEncodedKeys(a, b []byte) int {
	ca, _, errA := DecodeCellKey(a)
	cb, _, errB := DecodeCellKey(b)
	if errA != nil || errB != nil {
		return bytes.Compare(a, b)
	}
	return DefaultComparator.Compare(ca, cb)
}

// EncodeCellKey serializes a Cell's coordinate (row/family/qualifier/
// timestamp/type/sequence) for storage as a block entry key. Row, family
// and qualifier each carry a 4-byte big-endian length prefix, so the
// plain byte order of two keys is not DefaultComparator's order (a
// shorter row sorts first whatever its bytes); blocks, the sparse index
// and the memstore order keys with compareEncodedKeys instead.
// Timestamp, type and sequence are stored bit-flipped.
func EncodeCellKey(c Cell) []byte {
	buf := make([]byte, 0, 4+len(c.Row)+4+len(c.Family)+4+len(c.Qualifier)+8+1+8)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Row)))
	buf = append(buf, c.Row...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Family)))
	buf = append(buf, c.Family...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Qualifier)))
	buf = append(buf, c.Qualifier...)
	// Timestamp descending: store bit-flipped so ascending byte order
	// walks timestamps newest-first.
	buf = binary.BigEndian.AppendUint64(buf, uint64(^c.Timestamp))
	buf = append(buf, ^byte(c.Type))
	buf = binary.BigEndian.AppendUint64(buf, ^c.Sequence)
	return buf
}

// DecodeCellKey parses a key produced by EncodeCellKey.
func DecodeCellKey(data []byte) (Cell, int, error) {
	pos := 0
	readField := func() ([]byte, error) {
		if pos+4 > len(data) {
			return nil, ErrCorrupt
		}
		n := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if n < 0 || pos+n > len(data) {
			return nil, ErrCorrupt
		}
		f := data[pos : pos+n]
		pos += n
		return f, nil
	}
	row, err := readField()
	if err != nil {
		return Cell{}, 0, err
	}
	family, err := readField()
	if err != nil {
		return Cell{}, 0, err
	}
	qualifier, err := readField()
	if err != nil {
		return Cell{}, 0, err
	}
	if pos+17 > len(data) {
		return Cell{}, 0, ErrCorrupt
	}
	ts := int64(^binary.BigEndian.Uint64(data[pos:]))
	pos += 8
	typ := CellType(^data[pos])
	pos++
	seq := ^binary.BigEndian.Uint64(data[pos:])
	pos += 8
	return Cell{
		Row:       append([]byte(nil), row...),
		Family:    append([]byte(nil), family...),
		Qualifier: append([]byte(nil), qualifier...),
		Timestamp: ts,
		Type:      typ,
		Sequence:  seq,
	}, pos, nil
}

// EncodeJSON renders a Cell for human-readable diagnostics (shell output,
// tests); not used on the hot scan path.
func (c Cell) EncodeJSON() ([]byte, error) {
	type alias struct {
		Row       string         `json:"row"`
		Family    string         `json:"family"`
		Qualifier string         `json:"qualifier"`
		Timestamp int64          `json:"timestamp"`
		Type      CellType       `json:"type"`
		Value     string         `json:"value,omitempty"`
		Record    map[string]any `json:"record,omitempty"`
	}
	a := alias{
		Row:       string(c.Row),
		Family:    string(c.Family),
		Qualifier: string(c.Qualifier),
		Timestamp: c.Timestamp,
		Type:      c.Type,
	}
	switch c.ValKind {
	case ValueKindRecord:
		a.Record = c.Record
	default:
		a.Value = string(c.Value)
	}
	return json.Marshal(a)
}
