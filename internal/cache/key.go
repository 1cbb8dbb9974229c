package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Namespace tags. The tag is the first byte of every key and decides the
// on-disk namespace the blob lands in.
const (
	TagRemoteIndex     byte = 0x42
	TagExportedImage   byte = 0x43
	TagDownloadedImage byte = 0x44
	TagByproduct       byte = 0x45
)

// Key identifies one cached blob: a namespace tag plus a 64-bit xxh64
// fingerprint over the inputs that produced it.
type Key struct {
	tag byte
	sum uint64
}

func (k Key) Tag() byte    { return k.tag }
func (k Key) Sum() uint64  { return k.sum }
func (k Key) IsZero() bool { return k.tag == 0 && k.sum == 0 }

func (k Key) String() string {
	return fmt.Sprintf("%02x%016x", k.tag, k.sum)
}

// KeyBuilder accumulates stable parameters into a fingerprint. Write
// methods are chainable; the write order is part of the key.
type KeyBuilder struct {
	tag byte
	h   *xxhash.Digest
}

func NewKey(tag byte) *KeyBuilder {
	return &KeyBuilder{tag: tag, h: xxhash.New()}
}

func (b *KeyBuilder) WriteString(s string) *KeyBuilder {
	_, _ = b.h.WriteString(s)
	// Separator keeps ("ab","c") distinct from ("a","bc").
	_, _ = b.h.Write([]byte{0x1f})
	return b
}

func (b *KeyBuilder) WriteBytes(p []byte) *KeyBuilder {
	_, _ = b.h.Write(p)
	_, _ = b.h.Write([]byte{0x1f})
	return b
}

func (b *KeyBuilder) WriteUint64(v uint64) *KeyBuilder {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = b.h.Write(buf[:])
	return b
}

func (b *KeyBuilder) WriteFloat64(v float64) *KeyBuilder {
	return b.WriteUint64(math.Float64bits(v))
}

func (b *KeyBuilder) WriteBool(v bool) *KeyBuilder {
	if v {
		_, _ = b.h.Write([]byte{1})
	} else {
		_, _ = b.h.Write([]byte{2})
	}
	return b
}

func (b *KeyBuilder) WriteKey(k Key) *KeyBuilder {
	_, _ = b.h.Write([]byte{k.tag})
	return b.WriteUint64(k.sum)
}

func (b *KeyBuilder) Build() Key {
	return Key{tag: b.tag, sum: b.h.Sum64()}
}
