package hbase

import "github.com/bits-and-blooms/bloom/v3"

// BloomFilter wraps a row-level bloom filter over a StoreFile, letting a
// StoreFileScanner prove a row is absent from the file without touching
// disk.
type BloomFilter struct {
	filter *bloom.BloomFilter
}

func NewBloomFilter(numKeys uint, fpRate float64) *BloomFilter {
	return &BloomFilter{filter: bloom.NewWithEstimates(numKeys, fpRate)}
}

func (bf *BloomFilter) Add(key []byte) { bf.filter.Add(key) }

// MayContain reports whether key might be present; false means it
// definitely is not.
func (bf *BloomFilter) MayContain(key []byte) bool {
	if bf == nil || bf.filter == nil {
		return true
	}
	return bf.filter.Test(key)
}

func (bf *BloomFilter) Serialize() ([]byte, error) { return bf.filter.MarshalBinary() }

func DeserializeBloomFilter(data []byte) (*BloomFilter, error) {
	filter := &bloom.BloomFilter{}
	if err := filter.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &BloomFilter{filter: filter}, nil
}

// RowColBloomFilter additionally keys on row+qualifier, letting a scan
// naming exactly one explicit column prove absence at column
// granularity instead of only row granularity.
type RowColBloomFilter struct {
	filter *bloom.BloomFilter
}

func NewRowColBloomFilter(numKeys uint, fpRate float64) *RowColBloomFilter {
	return &RowColBloomFilter{filter: bloom.NewWithEstimates(numKeys, fpRate)}
}

func rowColKey(row, qualifier []byte) []byte {
	buf := make([]byte, 0, len(row)+1+len(qualifier))
	buf = append(buf, row...)
	buf = append(buf, 0)
	buf = append(buf, qualifier...)
	return buf
}

func (bf *RowColBloomFilter) Add(row, qualifier []byte) { bf.filter.Add(rowColKey(row, qualifier)) }

func (bf *RowColBloomFilter) MayContain(row, qualifier []byte) bool {
	if bf == nil || bf.filter == nil {
		return true
	}
	return bf.filter.Test(rowColKey(row, qualifier))
}

func (bf *RowColBloomFilter) Serialize() ([]byte, error) { return bf.filter.MarshalBinary() }

func DeserializeRowColBloomFilter(data []byte) (*RowColBloomFilter, error) {
	filter := &bloom.BloomFilter{}
	if err := filter.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &RowColBloomFilter{filter: filter}, nil
}
