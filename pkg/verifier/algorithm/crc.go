package algorithm

import "hash"

// crcParams describes a CRC in the Rocksoft model. Input and output
// reflection are always equal for the variants used by list formats.
type crcParams struct {
	width   uint
	poly    uint32
	init    uint32
	reflect bool
	xorOut  uint32
}

// CRC variants. "Rev." variants are the reflected form of the same polynomial.
var (
	crc8                = crcParams{width: 8, poly: 0x07}
	crc8Reflected       = crcParams{width: 8, poly: 0x07, reflect: true}
	crc16               = crcParams{width: 16, poly: 0x8005}
	crc16Reflected      = crcParams{width: 16, poly: 0x8005, reflect: true}
	crc16ARC            = crcParams{width: 16, poly: 0x8005, reflect: true}
	crc16CCITT          = crcParams{width: 16, poly: 0x1021, init: 0xFFFF}
	crc16CCITTReflected = crcParams{width: 16, poly: 0x1021, init: 0xFFFF, reflect: true}
	crc16ZModem         = crcParams{width: 16, poly: 0x1021}
	crc32MPEG2          = crcParams{width: 32, poly: 0x04C11DB7, init: 0xFFFFFFFF}
	crc32BZip2          = crcParams{width: 32, poly: 0x04C11DB7, init: 0xFFFFFFFF, xorOut: 0xFFFFFFFF}
	crc32JamCRC         = crcParams{width: 32, poly: 0x04C11DB7, init: 0xFFFFFFFF, reflect: true}
	fcs16               = crcParams{width: 16, poly: 0x1021, init: 0xFFFF, reflect: true, xorOut: 0xFFFF}
	cksumParams         = crcParams{width: 32, poly: 0x04C11DB7, xorOut: 0xFFFFFFFF}
)

func (p crcParams) mask() uint32 {
	if p.width == 32 {
		return 0xFFFFFFFF
	}
	return 1<<p.width - 1
}

func (p crcParams) table() *[256]uint32 {
	var t [256]uint32
	if p.reflect {
		rpoly := reflectBits(p.poly, p.width)
		for i := range t {
			c := uint32(i)
			for range 8 {
				if c&1 != 0 {
					c = c>>1 ^ rpoly
				} else {
					c >>= 1
				}
			}
			t[i] = c
		}
		return &t
	}

	top := uint32(1) << (p.width - 1)
	for i := range t {
		c := uint32(i) << (p.width - 8)
		for range 8 {
			if c&top != 0 {
				c = c<<1 ^ p.poly
			} else {
				c <<= 1
			}
		}
		t[i] = c & p.mask()
	}
	return &t
}

func reflectBits(v uint32, width uint) uint32 {
	var r uint32
	for i := uint(0); i < width; i++ {
		if v&(1<<i) != 0 {
			r |= 1 << (width - 1 - i)
		}
	}
	return r
}

// crcDigest is a table-driven CRC implementing hash.Hash.
type crcDigest struct {
	p   crcParams
	tab *[256]uint32
	crc uint32
}

func crcFactory(p crcParams) Factory {
	tab := p.table()
	return func() hash.Hash {
		return &crcDigest{p: p, tab: tab, crc: p.init}
	}
}

func (d *crcDigest) update(b []byte) {
	crc := d.crc
	if d.p.reflect {
		for _, c := range b {
			crc = d.tab[byte(crc)^c] ^ crc>>8
		}
	} else {
		shift := d.p.width - 8
		mask := d.p.mask()
		for _, c := range b {
			crc = (d.tab[byte(crc>>shift)^c] ^ crc<<8) & mask
		}
	}
	d.crc = crc
}

func (d *crcDigest) Write(b []byte) (int, error) {
	d.update(b)
	return len(b), nil
}

func (d *crcDigest) Sum32() uint32 { return (d.crc ^ d.p.xorOut) & d.p.mask() }

func (d *crcDigest) Sum(in []byte) []byte {
	return appendBigEndian(in, d.Sum32(), d.Size())
}

func (d *crcDigest) Reset()         { d.crc = d.p.init }
func (d *crcDigest) Size() int      { return int(d.p.width / 8) }
func (d *crcDigest) BlockSize() int { return 1 }

// cksumDigest is the POSIX cksum: a non-reflected CRC-32 over the data
// followed by the data length, least significant byte first.
type cksumDigest struct {
	crcDigest
	n uint64
}

var cksumTable = cksumParams.table()

func newCksum() hash.Hash {
	return &cksumDigest{crcDigest: crcDigest{p: cksumParams, tab: cksumTable}}
}

func (d *cksumDigest) Write(b []byte) (int, error) {
	d.update(b)
	d.n += uint64(len(b))
	return len(b), nil
}

func (d *cksumDigest) Sum(in []byte) []byte {
	tail := crcDigest{p: d.p, tab: d.tab, crc: d.crc}
	var lenBytes []byte
	for n := d.n; n > 0; n >>= 8 {
		lenBytes = append(lenBytes, byte(n))
	}
	tail.update(lenBytes)
	return appendBigEndian(in, tail.Sum32(), 4)
}

func (d *cksumDigest) Reset() {
	d.crcDigest.Reset()
	d.n = 0
}

func appendBigEndian(in []byte, v uint32, size int) []byte {
	for i := size - 1; i >= 0; i-- {
		in = append(in, byte(v>>(8*uint(i))))
	}
	return in
}
