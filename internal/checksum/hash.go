// ABOUTME: Content fingerprinting for change detection.
// ABOUTME: Full xxhash for ordinary files, bounded stat+window hash for huge ones.
package checksum

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// DefaultLargeFileThreshold is the size above which files get the
// bounded hash instead of a full content read.
const DefaultLargeFileThreshold = 256 << 20 // 256 MiB

// windowSize is how much of the head and tail of a large file feeds the
// bounded hash.
const windowSize = 1 << 20 // 1 MiB

// Hasher computes file fingerprints. Threshold is tunable because the
// acceptable false-negative rate of the bounded hash is workload
// dependent; zero means DefaultLargeFileThreshold.
type Hasher struct {
	Threshold int64
}

// HashFile fingerprints a file. Ordinary files are hashed over their
// full content. Files larger than the threshold are hashed over
// (size, mtime, first window, last window) instead: a weaker but
// bounded-cost freshness check, since fully reading a multi-gigabyte
// export would defeat the streaming path it feeds. The two modes use
// distinct prefixes so a threshold change forces reprocessing.
func (h Hasher) HashFile(path string) (string, error) {
	threshold := h.Threshold
	if threshold <= 0 {
		threshold = DefaultLargeFileThreshold
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if info.Size() > threshold {
		return boundedHash(f, info)
	}
	return fullHash(f)
}

func fullHash(r io.Reader) (string, error) {
	d := xxhash.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return fmt.Sprintf("f:%016x", d.Sum64()), nil
}

func boundedHash(f *os.File, info os.FileInfo) (string, error) {
	d := xxhash.New()

	var meta [16]byte
	binary.LittleEndian.PutUint64(meta[:8], uint64(info.Size()))
	binary.LittleEndian.PutUint64(meta[8:], uint64(info.ModTime().UnixNano()))
	_, _ = d.Write(meta[:])

	window := int64(windowSize)
	if info.Size() < window {
		window = info.Size()
	}

	buf := make([]byte, window)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read head window: %w", err)
	}
	_, _ = d.Write(buf[:n])

	if _, err := f.Seek(-window, io.SeekEnd); err != nil {
		return "", fmt.Errorf("seek tail window: %w", err)
	}
	n, err = io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("read tail window: %w", err)
	}
	_, _ = d.Write(buf[:n])

	return fmt.Sprintf("b:%016x", d.Sum64()), nil
}
