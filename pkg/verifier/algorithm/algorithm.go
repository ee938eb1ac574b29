// Package algorithm defines the closed set of digest algorithms understood by
// verification lists, their display names, and a registry that constructs
// streaming hashers for them.
//
// Every ID has exactly one display name, one short (grouping) name, and one
// serialization token. Display names and tokens are unique, so both can be
// used to recover an ID.
package algorithm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAlgorithm is returned for identifiers, names, or tokens outside the closed set.
var ErrUnknownAlgorithm = errors.New("unknown algorithm")

// ErrUnavailable is returned when an algorithm is part of the set but no
// implementation has been registered for it.
var ErrUnavailable = errors.New("algorithm not available")

// ID identifies a digest algorithm.
type ID uint8

// Algorithm identifiers. The order follows the historical list format and must
// not change; new algorithms are appended.
const (
	Adler32 ID = iota
	Cksum
	CRC8
	CRC8Reversed
	CRC16
	CRC16Reversed
	CRC16CCITT
	CRC16CCITTReversed
	CRC16ARC
	CRC16ZModem
	CRC32
	CRC32Reversed
	CRC32BZip2
	CRC32JamCRC
	ELFHash
	FCS16
	FCS32
	FNV0_32
	FNV0_64
	FNV1_32
	FNV1_64
	FNV1a32
	FNV1a64
	GHash3
	GHash5
	GOSTHash
	HAVAL3_128
	HAVAL3_160
	HAVAL3_192
	HAVAL3_224
	HAVAL3_256
	HAVAL4_128
	HAVAL4_160
	HAVAL4_192
	HAVAL4_224
	HAVAL4_256
	HAVAL5_128
	HAVAL5_160
	HAVAL5_192
	HAVAL5_224
	HAVAL5_256
	JHash
	MD2
	MD4
	MD5
	RIPEMD128
	RIPEMD160
	RIPEMD256
	RIPEMD320
	SHA0
	SHA1
	SHA224
	SHA256
	SHA384
	SHA512
	Snefru2_4_128
	Snefru2_4_256
	Snefru2_8_128
	Snefru2_8_256
	SumBSD
	SumSysV
	Tiger
	Whirlpool
	XUM32
	SHA3_224
	SHA3_256
	SHA3_384
	SHA3_512
	BLAKE2b256
	BLAKE2b512
	BLAKE2s256
	BLAKE3
	XXH64

	count
)

// Info describes one algorithm.
type Info struct {
	ID ID

	// Name is the canonical display name, e.g. "CRC (32bit Rev.)".
	Name string

	// ShortName groups related algorithms, e.g. "CRC".
	ShortName string

	// Token is the identifier used by the XML list format, e.g. "CRC32-REVERSED".
	Token string

	// Size is the digest width in bytes.
	Size int
}

// HexLen returns the number of hex characters in a rendered digest.
func (i Info) HexLen() int {
	return i.Size * 2
}

var infos = [count]Info{
	Adler32:            {Adler32, "Adler-32", "Adler32", "ADLER32", 4},
	Cksum:              {Cksum, "Cksum", "Cksum", "CKSUM", 4},
	CRC8:               {CRC8, "CRC (8bit)", "CRC", "CRC8", 1},
	CRC8Reversed:       {CRC8Reversed, "CRC (8bit Rev.)", "CRC", "CRC8-REVERSED", 1},
	CRC16:              {CRC16, "CRC (16bit)", "CRC", "CRC16", 2},
	CRC16Reversed:      {CRC16Reversed, "CRC (16bit Rev.)", "CRC", "CRC16-REVERSED", 2},
	CRC16CCITT:         {CRC16CCITT, "CRC (16bit CCITT)", "CRC", "CRC16-CCITT", 2},
	CRC16CCITTReversed: {CRC16CCITTReversed, "CRC (16bit CCITT Rev.)", "CRC", "CRC16-CCITT-REVERSED", 2},
	CRC16ARC:           {CRC16ARC, "CRC (16bit ARC)", "CRC", "CRC16-ARC", 2},
	CRC16ZModem:        {CRC16ZModem, "CRC (16bit ZMODEM)", "CRC", "CRC16-ZMODEM", 2},
	CRC32:              {CRC32, "CRC (32bit)", "CRC", "CRC32", 4},
	CRC32Reversed:      {CRC32Reversed, "CRC (32bit Rev.)", "CRC", "CRC32-REVERSED", 4},
	CRC32BZip2:         {CRC32BZip2, "CRC (32bit BZip2)", "CRC", "CRC32-BZIP2", 4},
	CRC32JamCRC:        {CRC32JamCRC, "CRC (32bit JAMCRC)", "CRC", "CRC32-JAMCRC", 4},
	ELFHash:            {ELFHash, "ELF Hash", "ELF", "ELFHASH", 4},
	FCS16:              {FCS16, "FCS (16bit)", "FCS", "FCS16", 2},
	FCS32:              {FCS32, "FCS (32bit)", "FCS", "FCS32", 4},
	FNV0_32:            {FNV0_32, "FNV-0 (32bit)", "FNV", "FNV0-32", 4},
	FNV0_64:            {FNV0_64, "FNV-0 (64bit)", "FNV", "FNV0-64", 8},
	FNV1_32:            {FNV1_32, "FNV-1 (32bit)", "FNV", "FNV1-32", 4},
	FNV1_64:            {FNV1_64, "FNV-1 (64bit)", "FNV", "FNV1-64", 8},
	FNV1a32:            {FNV1a32, "FNV-1a (32bit)", "FNV", "FNV1A-32", 4},
	FNV1a64:            {FNV1a64, "FNV-1a (64bit)", "FNV", "FNV1A-64", 8},
	GHash3:             {GHash3, "GHash-3", "GHash", "GHASH-3", 4},
	GHash5:             {GHash5, "GHash-5", "GHash", "GHASH-5", 4},
	GOSTHash:           {GOSTHash, "GOSTHash", "GOST", "GOSTHASH", 32},
	HAVAL3_128:         {HAVAL3_128, "HAVAL (3 / 128bit)", "HAVAL", "HAVAL-3-128", 16},
	HAVAL3_160:         {HAVAL3_160, "HAVAL (3 / 160bit)", "HAVAL", "HAVAL-3-160", 20},
	HAVAL3_192:         {HAVAL3_192, "HAVAL (3 / 192bit)", "HAVAL", "HAVAL-3-192", 24},
	HAVAL3_224:         {HAVAL3_224, "HAVAL (3 / 224bit)", "HAVAL", "HAVAL-3-224", 28},
	HAVAL3_256:         {HAVAL3_256, "HAVAL (3 / 256bit)", "HAVAL", "HAVAL-3-256", 32},
	HAVAL4_128:         {HAVAL4_128, "HAVAL (4 / 128bit)", "HAVAL", "HAVAL-4-128", 16},
	HAVAL4_160:         {HAVAL4_160, "HAVAL (4 / 160bit)", "HAVAL", "HAVAL-4-160", 20},
	HAVAL4_192:         {HAVAL4_192, "HAVAL (4 / 192bit)", "HAVAL", "HAVAL-4-192", 24},
	HAVAL4_224:         {HAVAL4_224, "HAVAL (4 / 224bit)", "HAVAL", "HAVAL-4-224", 28},
	HAVAL4_256:         {HAVAL4_256, "HAVAL (4 / 256bit)", "HAVAL", "HAVAL-4-256", 32},
	HAVAL5_128:         {HAVAL5_128, "HAVAL (5 / 128bit)", "HAVAL", "HAVAL-5-128", 16},
	HAVAL5_160:         {HAVAL5_160, "HAVAL (5 / 160bit)", "HAVAL", "HAVAL-5-160", 20},
	HAVAL5_192:         {HAVAL5_192, "HAVAL (5 / 192bit)", "HAVAL", "HAVAL-5-192", 24},
	HAVAL5_224:         {HAVAL5_224, "HAVAL (5 / 224bit)", "HAVAL", "HAVAL-5-224", 28},
	HAVAL5_256:         {HAVAL5_256, "HAVAL (5 / 256bit)", "HAVAL", "HAVAL-5-256", 32},
	JHash:              {JHash, "Jenkins Hash", "JHash", "JHASH", 4},
	MD2:                {MD2, "MD2", "MD2", "MD2", 16},
	MD4:                {MD4, "MD4", "MD4", "MD4", 16},
	MD5:                {MD5, "MD5", "MD5", "MD5", 16},
	RIPEMD128:          {RIPEMD128, "RIPEMD (128bit)", "RIPEMD", "RIPEMD128", 16},
	RIPEMD160:          {RIPEMD160, "RIPEMD (160bit)", "RIPEMD", "RIPEMD160", 20},
	RIPEMD256:          {RIPEMD256, "RIPEMD (256bit)", "RIPEMD", "RIPEMD256", 32},
	RIPEMD320:          {RIPEMD320, "RIPEMD (320bit)", "RIPEMD", "RIPEMD320", 40},
	SHA0:               {SHA0, "SHA0", "SHA0", "SHA0", 20},
	SHA1:               {SHA1, "SHA1", "SHA1", "SHA1", 20},
	SHA224:             {SHA224, "SHA224", "SHA2", "SHA224", 28},
	SHA256:             {SHA256, "SHA256", "SHA2", "SHA256", 32},
	SHA384:             {SHA384, "SHA384", "SHA2", "SHA384", 48},
	SHA512:             {SHA512, "SHA512", "SHA2", "SHA512", 64},
	Snefru2_4_128:      {Snefru2_4_128, "Snefru2 (4 / 128bit)", "Snefru2", "SNEFRU2-4-128", 16},
	Snefru2_4_256:      {Snefru2_4_256, "Snefru2 (4 / 256bit)", "Snefru2", "SNEFRU2-4-256", 32},
	Snefru2_8_128:      {Snefru2_8_128, "Snefru2 (8 / 128bit)", "Snefru2", "SNEFRU2-8-128", 16},
	Snefru2_8_256:      {Snefru2_8_256, "Snefru2 (8 / 256bit)", "Snefru2", "SNEFRU2-8-256", 32},
	SumBSD:             {SumBSD, "Sum (BSD)", "Sum", "SUM-BSD", 2},
	SumSysV:            {SumSysV, "Sum (SysV)", "Sum", "SUM-SYSV", 2},
	Tiger:              {Tiger, "Tiger", "Tiger", "TIGER", 24},
	Whirlpool:          {Whirlpool, "Whirlpool", "Whirlpool", "WHIRLPOOL", 64},
	XUM32:              {XUM32, "XUM32", "XUM32", "XUM32", 4},
	SHA3_224:           {SHA3_224, "SHA3 (224bit)", "SHA3", "SHA3-224", 28},
	SHA3_256:           {SHA3_256, "SHA3 (256bit)", "SHA3", "SHA3-256", 32},
	SHA3_384:           {SHA3_384, "SHA3 (384bit)", "SHA3", "SHA3-384", 48},
	SHA3_512:           {SHA3_512, "SHA3 (512bit)", "SHA3", "SHA3-512", 64},
	BLAKE2b256:         {BLAKE2b256, "BLAKE2b (256bit)", "BLAKE2", "BLAKE2B-256", 32},
	BLAKE2b512:         {BLAKE2b512, "BLAKE2b (512bit)", "BLAKE2", "BLAKE2B-512", 64},
	BLAKE2s256:         {BLAKE2s256, "BLAKE2s (256bit)", "BLAKE2", "BLAKE2S-256", 32},
	BLAKE3:             {BLAKE3, "BLAKE3", "BLAKE3", "BLAKE3", 32},
	XXH64:              {XXH64, "xxHash (64bit)", "xxHash", "XXH64", 8},
}

var (
	byName  = make(map[string]ID, count)
	byToken = make(map[string]ID, count)
)

func init() {
	for _, info := range infos {
		byName[info.Name] = info.ID
		byToken[info.Token] = info.ID
	}
}

// Valid reports whether id is part of the closed set.
func (id ID) Valid() bool {
	return id < count
}

// String returns the display name, or a placeholder for invalid ids.
func (id ID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("algorithm(%d)", uint8(id))
	}
	return infos[id].Name
}

// Lookup returns the description of id.
func Lookup(id ID) (Info, error) {
	if !id.Valid() {
		return Info{}, fmt.Errorf("%w: id %d", ErrUnknownAlgorithm, uint8(id))
	}
	return infos[id], nil
}

// NameOf returns the canonical display name of id.
func NameOf(id ID) (string, error) {
	info, err := Lookup(id)
	if err != nil {
		return "", err
	}
	return info.Name, nil
}

// ShortNameOf returns the grouping name of id.
func ShortNameOf(id ID) (string, error) {
	info, err := Lookup(id)
	if err != nil {
		return "", err
	}
	return info.ShortName, nil
}

// IDOf returns the id whose display name matches name exactly.
// The comparison is case-sensitive.
func IDOf(name string) (ID, error) {
	if id, ok := byName[name]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Token returns the serialization token of id.
func Token(id ID) (string, error) {
	info, err := Lookup(id)
	if err != nil {
		return "", err
	}
	return info.Token, nil
}

// ParseToken returns the id for a serialization token such as "CRC32-REVERSED".
// Surrounding whitespace is ignored; case is not.
func ParseToken(token string) (ID, error) {
	if id, ok := byToken[strings.TrimSpace(token)]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, token)
}

// Parse resolves user input to an id. It accepts a display name, a token, or a
// token written in any case ("sha256", "crc32-reversed").
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if id, err := IDOf(s); err == nil {
		return id, nil
	}
	if id, err := ParseToken(strings.ToUpper(s)); err == nil {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// All returns every id in the closed set, in declaration order.
func All() []ID {
	ids := make([]ID, 0, count)
	for id := ID(0); id < count; id++ {
		ids = append(ids, id)
	}
	return ids
}

// MarshalText implements encoding.TextMarshaler using the serialization token.
func (id ID) MarshalText() ([]byte, error) {
	tok, err := Token(id)
	if err != nil {
		return nil, err
	}
	return []byte(tok), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using the serialization token.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseToken(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
