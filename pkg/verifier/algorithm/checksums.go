package algorithm

import (
	"encoding/binary"
	"hash"
)

// sum32 holds the state shared by the small 32-bit checksums below.
type sum32 struct {
	h     uint32
	init  uint32
	step  func(h uint32, c byte) uint32
	final func(h uint32) uint32
	size  int
}

func (s *sum32) Write(b []byte) (int, error) {
	h := s.h
	for _, c := range b {
		h = s.step(h, c)
	}
	s.h = h
	return len(b), nil
}

func (s *sum32) Sum(in []byte) []byte {
	v := s.h
	if s.final != nil {
		v = s.final(v)
	}
	return appendBigEndian(in, v, s.size)
}

func (s *sum32) Reset()         { s.h = s.init }
func (s *sum32) Size() int      { return s.size }
func (s *sum32) BlockSize() int { return 1 }

const (
	fnvPrime32 = 16777619
	fnvPrime64 = 1099511628211
)

// newFNV0_32 is FNV-1 with a zero offset basis.
func newFNV0_32() hash.Hash {
	return &sum32{
		size: 4,
		step: func(h uint32, c byte) uint32 { return h*fnvPrime32 ^ uint32(c) },
	}
}

type fnv0_64 uint64

func newFNV0_64() hash.Hash {
	var f fnv0_64
	return &f
}

func (f *fnv0_64) Write(b []byte) (int, error) {
	h := *f
	for _, c := range b {
		h = h*fnvPrime64 ^ fnv0_64(c)
	}
	*f = h
	return len(b), nil
}

func (f *fnv0_64) Sum(in []byte) []byte { return binary.BigEndian.AppendUint64(in, uint64(*f)) }
func (f *fnv0_64) Reset()               { *f = 0 }
func (f *fnv0_64) Size() int            { return 8 }
func (f *fnv0_64) BlockSize() int       { return 1 }

// newELF is the PJW hash as used by ELF symbol tables.
func newELF() hash.Hash {
	return &sum32{
		size: 4,
		step: func(h uint32, c byte) uint32 {
			h = h<<4 + uint32(c)
			if g := h & 0xF0000000; g != 0 {
				h ^= g >> 24
				h &^= g
			}
			return h
		},
	}
}

// newJenkins is Bob Jenkins' one-at-a-time hash.
func newJenkins() hash.Hash {
	return &sum32{
		size: 4,
		step: func(h uint32, c byte) uint32 {
			h += uint32(c)
			h += h << 10
			h ^= h >> 6
			return h
		},
		final: func(h uint32) uint32 {
			h += h << 3
			h ^= h >> 11
			h += h << 15
			return h
		},
	}
}

// newSumBSD is the 16-bit rotating checksum of BSD sum(1).
func newSumBSD() hash.Hash {
	return &sum32{
		size: 2,
		step: func(h uint32, c byte) uint32 {
			h = h>>1 + (h&1)<<15
			return (h + uint32(c)) & 0xFFFF
		},
	}
}

// newSumSysV is the System V sum(1) checksum: a byte sum folded to 16 bits.
func newSumSysV() hash.Hash {
	return &sum32{
		size: 2,
		step: func(h uint32, c byte) uint32 { return h + uint32(c) },
		final: func(h uint32) uint32 {
			r := h&0xFFFF + h>>16
			return r&0xFFFF + r>>16
		},
	}
}
