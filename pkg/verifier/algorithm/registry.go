package algorithm

import (
	"crypto/md5"  //nolint:gosec // legacy list formats
	"crypto/sha1" //nolint:gosec // legacy list formats
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"hash/fnv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/jzelinskie/whirlpool"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/md4"       //nolint:staticcheck // legacy list formats
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // legacy list formats
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Factory creates a fresh streaming hasher.
type Factory func() hash.Hash

// Registry maps algorithm ids to hasher factories.
// The table is fixed at construction; Register replaces individual slots.
type Registry struct {
	mu        sync.RWMutex
	factories [count]Factory
}

// NewRegistry creates a registry populated with every built-in implementation.
func NewRegistry() *Registry {
	r := &Registry{}
	for id, f := range builtins() {
		r.factories[id] = f
	}
	return r
}

// Register installs a factory for id, replacing any existing one.
// It returns ErrUnknownAlgorithm for ids outside the closed set.
func (r *Registry) Register(id ID, factory Factory) error {
	if !id.Valid() {
		return fmt.Errorf("%w: id %d", ErrUnknownAlgorithm, uint8(id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
	return nil
}

// New returns a fresh hasher for id.
func (r *Registry) New(id ID) (hash.Hash, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownAlgorithm, uint8(id))
	}

	r.mu.RLock()
	factory := r.factories[id]
	r.mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, infos[id].Name)
	}
	return factory(), nil
}

// Supports reports whether a hasher can be constructed for id.
func (r *Registry) Supports(id ID) bool {
	if !id.Valid() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[id] != nil
}

// Available returns the ids that have an implementation, in declaration order.
func (r *Registry) Available() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []ID
	for id, f := range r.factories {
		if f != nil {
			ids = append(ids, ID(id))
		}
	}
	return ids
}

// Default is the process-wide registry used by the CLI.
var Default = NewRegistry()

// New returns a fresh hasher for id from the default registry.
func New(id ID) (hash.Hash, error) {
	return Default.New(id)
}

func builtins() map[ID]Factory {
	return map[ID]Factory{
		Adler32:            func() hash.Hash { return adler32.New() },
		Cksum:              newCksum,
		CRC8:               crcFactory(crc8),
		CRC8Reversed:       crcFactory(crc8Reflected),
		CRC16:              crcFactory(crc16),
		CRC16Reversed:      crcFactory(crc16Reflected),
		CRC16CCITT:         crcFactory(crc16CCITT),
		CRC16CCITTReversed: crcFactory(crc16CCITTReflected),
		CRC16ARC:           crcFactory(crc16ARC),
		CRC16ZModem:        crcFactory(crc16ZModem),
		CRC32:              crcFactory(crc32MPEG2),
		CRC32Reversed:      func() hash.Hash { return crc32.NewIEEE() },
		CRC32BZip2:         crcFactory(crc32BZip2),
		CRC32JamCRC:        crcFactory(crc32JamCRC),
		ELFHash:            newELF,
		FCS16:              crcFactory(fcs16),
		FCS32:              func() hash.Hash { return crc32.NewIEEE() },
		FNV0_32:            newFNV0_32,
		FNV0_64:            newFNV0_64,
		FNV1_32:            func() hash.Hash { return fnv.New32() },
		FNV1_64:            func() hash.Hash { return fnv.New64() },
		FNV1a32:            func() hash.Hash { return fnv.New32a() },
		FNV1a64:            func() hash.Hash { return fnv.New64a() },
		JHash:              newJenkins,
		MD4:                md4.New,
		MD5:                md5.New,
		RIPEMD160:          ripemd160.New,
		SHA1:               sha1.New,
		SHA224:             sha256.New224,
		SHA256:             sha256.New,
		SHA384:             sha512.New384,
		SHA512:             sha512.New,
		SumBSD:             newSumBSD,
		SumSysV:            newSumSysV,
		Whirlpool:          whirlpool.New,
		SHA3_224:           func() hash.Hash { return sha3.New224() },
		SHA3_256:           func() hash.Hash { return sha3.New256() },
		SHA3_384:           func() hash.Hash { return sha3.New384() },
		SHA3_512:           func() hash.Hash { return sha3.New512() },
		BLAKE2b256:         func() hash.Hash { return mustHash(blake2b.New256(nil)) },
		BLAKE2b512:         func() hash.Hash { return mustHash(blake2b.New512(nil)) },
		BLAKE2s256:         func() hash.Hash { return mustHash(blake2s.New256(nil)) },
		BLAKE3:             func() hash.Hash { return blake3.New(32, nil) },
		XXH64:              func() hash.Hash { return xxhash.New() },
	}
}

// mustHash unwraps constructors that only fail on an invalid key.
func mustHash(h hash.Hash, err error) hash.Hash {
	if err != nil {
		panic(err)
	}
	return h
}
