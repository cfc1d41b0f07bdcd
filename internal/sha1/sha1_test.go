package sha1_test

import (
	"bytes"
	stdsha1 "crypto/sha1"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/momentics/hioload-bridge/internal/sha1"
)

func TestSumVectors(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq", "84983e441c3bd26ebaae4aa1f95129e5e54670f1"},
		{"The quick brown fox jumps over the lazy dog", "2fd4e1c67a2d28fced849ee1bb76e7391b93eb12"},
	}
	for _, c := range cases {
		got := sha1.Sum([]byte(c.in))
		if hex.EncodeToString(got[:]) != c.want {
			t.Errorf("Sum(%q) = %x, want %s", c.in, got, c.want)
		}
	}
}

// Lengths around the 55/56/64 byte padding boundaries are the usual failure points.
func TestSumMatchesReferenceAcrossPaddingBoundaries(t *testing.T) {
	for n := 0; n <= 300; n++ {
		msg := bytes.Repeat([]byte{byte(n)}, n)
		got := sha1.Sum(msg)
		want := stdsha1.Sum(msg)
		if got != want {
			t.Fatalf("len %d: got %x, want %x", n, got, want)
		}
	}
}

func TestStreamingWriteEqualsOneShot(t *testing.T) {
	msg := []byte(strings.Repeat("dGhlIHNhbXBsZSBub25jZQ==258EAFA5-E914-47DA-95CA-C5AB0DC85B11", 7))
	h := sha1.New()
	for i := 0; i < len(msg); i += 13 {
		end := i + 13
		if end > len(msg) {
			end = len(msg)
		}
		h.Write(msg[i:end])
	}
	want := sha1.Sum(msg)
	if got := h.Sum(nil); !bytes.Equal(got, want[:]) {
		t.Fatalf("streaming digest %x, want %x", got, want)
	}
	// Sum must not disturb the running state.
	if got := h.Sum(nil); !bytes.Equal(got, want[:]) {
		t.Fatalf("second Sum %x, want %x", got, want)
	}
	if h.Size() != sha1.Size || h.BlockSize() != sha1.BlockSize {
		t.Errorf("Size/BlockSize = %d/%d", h.Size(), h.BlockSize())
	}
}

func TestResetRestartsDigest(t *testing.T) {
	h := sha1.New()
	h.Write([]byte("garbage"))
	h.Reset()
	h.Write([]byte("abc"))
	if got := hex.EncodeToString(h.Sum(nil)); got != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("after Reset got %s", got)
	}
}
