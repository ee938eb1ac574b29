package algorithm

import (
	"crypto/md5" //nolint:gosec // test vectors
	"encoding/hex"
	"hash"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameRoundTrip(t *testing.T) {
	for _, id := range All() {
		name, err := NameOf(id)
		require.NoError(t, err)

		got, err := IDOf(name)
		require.NoError(t, err, "IDOf(%q)", name)
		assert.Equal(t, id, got, "round trip through %q", name)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	for _, id := range All() {
		tok, err := Token(id)
		require.NoError(t, err)

		got, err := ParseToken(tok)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestNamesAreUnique(t *testing.T) {
	names := make(map[string]ID)
	tokens := make(map[string]ID)
	for _, id := range All() {
		info, err := Lookup(id)
		require.NoError(t, err)
		assert.NotEmpty(t, info.ShortName)
		assert.Positive(t, info.Size)

		if prev, ok := names[info.Name]; ok {
			t.Errorf("display name %q shared by %d and %d", info.Name, prev, id)
		}
		if prev, ok := tokens[info.Token]; ok {
			t.Errorf("token %q shared by %d and %d", info.Token, prev, id)
		}
		names[info.Name] = id
		tokens[info.Token] = id
	}
}

func TestLookupOutOfRange(t *testing.T) {
	bad := ID(200)
	assert.False(t, bad.Valid())

	_, err := NameOf(bad)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = ShortNameOf(bad)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = NewRegistry().New(bad)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	assert.ErrorIs(t, NewRegistry().Register(bad, nil), ErrUnknownAlgorithm)
}

func TestIDOfIsCaseSensitive(t *testing.T) {
	id, err := IDOf("CRC (32bit Rev.)")
	require.NoError(t, err)
	assert.Equal(t, CRC32Reversed, id)

	_, err = IDOf("crc (32bit rev.)")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = IDOf("")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  ID
	}{
		{"MD5", MD5},
		{"md5", MD5},
		{"SHA256", SHA256},
		{"crc32-reversed", CRC32Reversed},
		{"Adler-32", Adler32},
		{" blake3 ", BLAKE3},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("nope")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestTextMarshaling(t *testing.T) {
	b, err := CRC16CCITT.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CRC16-CCITT", string(b))

	var id ID
	require.NoError(t, id.UnmarshalText([]byte("HAVAL-5-256")))
	assert.Equal(t, HAVAL5_256, id)

	assert.Error(t, id.UnmarshalText([]byte("HAVAL-6-256")))
}

func sumHex(t *testing.T, id ID, input string) string {
	t.Helper()
	h, err := NewRegistry().New(id)
	require.NoError(t, err)
	_, _ = h.Write([]byte(input))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

func TestCheckValues(t *testing.T) {
	const check = "123456789"
	tests := []struct {
		id   ID
		want string
	}{
		{CRC8, "F4"},
		{CRC16, "FEE8"},
		{CRC16ARC, "BB3D"},
		{CRC16Reversed, "BB3D"},
		{CRC16CCITT, "29B1"},
		{CRC16CCITTReversed, "6F91"},
		{CRC16ZModem, "31C3"},
		{CRC32, "0376E6E7"},
		{CRC32Reversed, "CBF43926"},
		{CRC32BZip2, "FC891918"},
		{CRC32JamCRC, "340BC6D9"},
		{FCS16, "906E"},
		{FCS32, "CBF43926"},
		{Cksum, "377A6011"},
		{Adler32, "091E01DE"},
		{MD5, "25F9E794323B453885F5181F1B624D0B"},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, sumHex(t, tt.id, check))
		})
	}
}

func TestSmallChecksums(t *testing.T) {
	tests := []struct {
		id    ID
		input string
		want  string
	}{
		{JHash, "a", "CA2E9442"},
		{SumBSD, "abc", "40AC"},
		{SumSysV, "abc", "0126"},
		{FNV0_32, "", "00000000"},
		{FNV0_64, "", "0000000000000000"},
		{FNV1a32, "a", "E40C292C"},
		{ELFHash, "", "00000000"},
	}
	for _, tt := range tests {
		t.Run(tt.id.String()+"/"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, sumHex(t, tt.id, tt.input))
		})
	}
}

func TestHashersIncrementalMatchesOneShot(t *testing.T) {
	reg := NewRegistry()
	data := []byte(strings.Repeat("verify me ", 1000))

	for _, id := range reg.Available() {
		t.Run(id.String(), func(t *testing.T) {
			whole, err := reg.New(id)
			require.NoError(t, err)
			_, _ = whole.Write(data)

			parts, err := reg.New(id)
			require.NoError(t, err)
			for i := 0; i < len(data); i += 77 {
				end := min(i+77, len(data))
				_, _ = parts.Write(data[i:end])
			}

			assert.Equal(t, whole.Sum(nil), parts.Sum(nil))

			info, _ := Lookup(id)
			assert.Len(t, whole.Sum(nil), info.Size, "digest width")
		})
	}
}

func TestHashersReset(t *testing.T) {
	reg := NewRegistry()
	for _, id := range reg.Available() {
		h, err := reg.New(id)
		require.NoError(t, err)

		empty := h.Sum(nil)
		_, _ = h.Write([]byte("some data"))
		h.Reset()
		assert.Equal(t, empty, h.Sum(nil), "%s after Reset", id)
	}
}

func TestUnavailable(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []ID{GOSTHash, HAVAL3_128, MD2, RIPEMD128, SHA0, Snefru2_4_128, Tiger, GHash3, XUM32} {
		assert.False(t, reg.Supports(id), "%s", id)
		_, err := reg.New(id)
		assert.ErrorIs(t, err, ErrUnavailable, "%s", id)
	}
}

func TestRegisterOverride(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	require.NoError(t, reg.Register(MD2, func() hash.Hash {
		calls++
		return md5.New()
	}))

	assert.True(t, reg.Supports(MD2))
	_, err := reg.New(MD2)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, reg.Available(), MD2)
}
