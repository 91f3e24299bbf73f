package proc

import (
	"strings"
	"testing"
)

func TestTailBufferBounded(t *testing.T) {
	b := newTailBuffer(16)
	for i := 0; i < 100; i++ {
		b.Write([]byte("0123456789"))
	}
	s := b.String()
	if !strings.HasPrefix(s, "[... earlier output dropped ...]") {
		t.Errorf("expected drop marker, got %q", s)
	}
	if tail := s[strings.IndexByte(s, '\n')+1:]; len(tail) > 16 {
		t.Errorf("retained %d bytes, max 16", len(tail))
	}
}

func TestTailBufferKeepsLastBytes(t *testing.T) {
	b := newTailBuffer(8)
	b.Write([]byte("aaaa"))
	b.Write([]byte("bbbb"))
	b.Write([]byte("cccc"))
	if !strings.HasSuffix(b.String(), "bbbbcccc") {
		t.Errorf("tail = %q, want suffix bbbbcccc", b.String())
	}
}

func TestTailBufferSmallWrites(t *testing.T) {
	b := newTailBuffer(64)
	b.Write([]byte("hello "))
	b.Write([]byte("world"))
	if b.String() != "hello world" {
		t.Errorf("tail = %q", b.String())
	}
}

func TestTailBufferOversizeWrite(t *testing.T) {
	b := newTailBuffer(4)
	b.Write([]byte("0123456789"))
	if got := b.String(); !strings.HasSuffix(got, "6789") {
		t.Errorf("tail = %q, want suffix 6789", got)
	}
}
