package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestRingBufferSimple(t *testing.T) {
	rb := NewRingBuffer(32)

	n, err := rb.Write([]byte("scan complete"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 13 {
		t.Errorf("expected n=13, got %d", n)
	}
	if got := string(rb.Bytes()); got != "scan complete" {
		t.Errorf("expected 'scan complete', got %q", got)
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	rb := NewRingBuffer(10)

	_, _ = rb.Write([]byte("abcdefghij"))
	_, _ = rb.Write([]byte("12345"))

	if got := string(rb.Bytes()); got != "fghij12345" {
		t.Errorf("expected 'fghij12345', got %q", got)
	}
}

func TestRingBufferOversizedWrite(t *testing.T) {
	rb := NewRingBuffer(4)

	n, _ := rb.Write([]byte("0123456789"))
	if n != 10 {
		t.Errorf("Write should report full length, got %d", n)
	}
	if got := string(rb.Bytes()); got != "6789" {
		t.Errorf("expected '6789', got %q", got)
	}
}

func TestRingBufferManyWrapArounds(t *testing.T) {
	rb := NewRingBuffer(8)

	for i := 0; i < 50; i++ {
		_, _ = rb.Write([]byte("ab"))
	}
	got := string(rb.Bytes())
	if got != "abababab" {
		t.Errorf("expected 'abababab', got %q", got)
	}
}

func TestRingBufferDumpToFile(t *testing.T) {
	rb := NewRingBuffer(64)
	_, _ = rb.Write([]byte("crash context line\n"))

	path := filepath.Join(t.TempDir(), "crash.log")
	if err := rb.DumpToFile(path); err != nil {
		t.Fatalf("DumpToFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read dump: %v", err)
	}
	if !strings.Contains(string(data), "crash context") {
		t.Errorf("dump missing content: %q", string(data))
	}
}

func TestRingBufferConcurrentWrites(t *testing.T) {
	rb := NewRingBuffer(4096)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = rb.Write([]byte("z"))
			}
		}()
	}
	wg.Wait()

	if got := len(rb.Bytes()); got != 1600 {
		t.Errorf("expected 1600 bytes, got %d", got)
	}
}
