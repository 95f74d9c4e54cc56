package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteVideo creates a placeholder match video of size bytes at path and
// returns the path. The bytes are not decodable; tests that need frames stub
// the frame source instead.
func WriteVideo(t testing.TB, path string, size int) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, max(size, 1)), 0o644); err != nil {
		t.Fatalf("write video %s: %v", path, err)
	}
	return path
}

// WriteTranscript stores text as dir/transcript.txt and returns its path.
func WriteTranscript(t testing.TB, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "transcript.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}
