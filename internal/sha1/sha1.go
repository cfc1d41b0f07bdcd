// File: internal/sha1/sha1.go
// Package sha1 implements the SHA-1 hash function (RFC 3174) without
// relying on the platform crypto facilities.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Used only to derive the Sec-WebSocket-Accept value during the opening
// handshake. Not suitable for any security-sensitive purpose.

package sha1

import (
	"encoding/binary"
	"hash"
	"math/bits"
)

// Size is the size of a SHA-1 digest in bytes.
const Size = 20

// BlockSize is the block size of SHA-1 in bytes.
const BlockSize = 64

const (
	init0 = 0x67452301
	init1 = 0xEFCDAB89
	init2 = 0x98BADCFE
	init3 = 0x10325476
	init4 = 0xC3D2E1F0
)

const (
	k0 = 0x5A827999
	k1 = 0x6ED9EBA1
	k2 = 0x8F1BBCDC
	k3 = 0xCA62C1D6
)

// digest is the streaming SHA-1 state.
type digest struct {
	h   [5]uint32
	x   [BlockSize]byte // pending partial block
	nx  int
	len uint64 // total bytes written
}

var _ hash.Hash = (*digest)(nil)

// New returns a new hash.Hash computing the SHA-1 checksum.
func New() hash.Hash {
	d := new(digest)
	d.Reset()
	return d
}

// Sum returns the SHA-1 checksum of data.
func Sum(data []byte) [Size]byte {
	var d digest
	d.Reset()
	d.Write(data)
	return d.checkSum()
}

func (d *digest) Reset() {
	d.h = [5]uint32{init0, init1, init2, init3, init4}
	d.nx = 0
	d.len = 0
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return BlockSize }

// Write absorbs p, compressing every complete 64-byte block. Never fails.
func (d *digest) Write(p []byte) (int, error) {
	n := len(p)
	d.len += uint64(n)
	if d.nx > 0 {
		c := copy(d.x[d.nx:], p)
		d.nx += c
		p = p[c:]
		if d.nx == BlockSize {
			d.block(d.x[:])
			d.nx = 0
		}
	}
	for len(p) >= BlockSize {
		d.block(p[:BlockSize])
		p = p[BlockSize:]
	}
	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}
	return n, nil
}

// Sum appends the current digest to in without changing the running state.
func (d *digest) Sum(in []byte) []byte {
	d0 := *d
	sum := d0.checkSum()
	return append(in, sum[:]...)
}

// checkSum pads the message and produces the final digest.
func (d *digest) checkSum() [Size]byte {
	bitLen := d.len << 3

	// 0x80 terminator, zeros up to 56 mod 64, then the 64-bit length.
	var tmp [BlockSize + 8]byte
	tmp[0] = 0x80
	pad := 56 - int(d.len%BlockSize)
	if pad <= 0 {
		pad += BlockSize
	}
	binary.BigEndian.PutUint64(tmp[pad:], bitLen)
	d.Write(tmp[:pad+8])

	if d.nx != 0 {
		panic("sha1: padding left a partial block")
	}

	var out [Size]byte
	for i, v := range d.h {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// block runs the 80-round compression function over one 512-bit block.
func (d *digest) block(p []byte) {
	var w [80]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(p[i*4:])
	}
	for i := 16; i < 80; i++ {
		w[i] = bits.RotateLeft32(w[i-3]^w[i-8]^w[i-14]^w[i-16], 1)
	}

	a, b, c, dd, e := d.h[0], d.h[1], d.h[2], d.h[3], d.h[4]
	for i := 0; i < 80; i++ {
		var f, k uint32
		switch {
		case i < 20:
			f = (b & c) | (^b & dd)
			k = k0
		case i < 40:
			f = b ^ c ^ dd
			k = k1
		case i < 60:
			f = (b & c) | (b & dd) | (c & dd)
			k = k2
		default:
			f = b ^ c ^ dd
			k = k3
		}
		t := bits.RotateLeft32(a, 5) + f + e + k + w[i]
		e, dd, c, b, a = dd, c, bits.RotateLeft32(b, 30), a, t
	}

	d.h[0] += a
	d.h[1] += b
	d.h[2] += c
	d.h[3] += dd
	d.h[4] += e
}
