// ABOUTME: Bounded-memory streaming sampler for oversized tag-based markup.
// ABOUTME: Pull-style scanner yielding every Nth entry, never buffering the document.
package sampler

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// ErrStream marks an underlying byte-source failure mid-read. Entries
// already yielded are kept by the caller; the rest of the file is
// abandoned.
var ErrStream = errors.New("stream failed")

// State is the scanner's lifecycle position.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed" // stream ended naturally
	StateLimited   State = "limited"   // MaxEntries reached, source closed early
	StateFailed    State = "failed"    // read error, partial results stand
)

const (
	defaultMaxEntries  = 1000
	defaultSampleEvery = 10
	defaultMaxBuffer   = 4 << 20 // 4 MiB working buffer cap
	chunkSize          = 64 << 10
)

// Config tunes one scan. Zero values take the defaults above.
type Config struct {
	// MaxEntries caps how many entries are yielded; reaching it closes
	// the source instead of draining it.
	MaxEntries int
	// SampleEvery yields every Nth entry seen, spreading the sample
	// across the whole stream instead of over-representing its start.
	SampleEvery int
	// MaxBuffer bounds the working buffer. When it fills with no
	// complete entry, the front is discarded: an intentional lossy
	// trade-off, counted in Stats.Truncations.
	MaxBuffer int
	// Tags are the entry element names to look for. Both self-closing
	// and open/close-paired shapes are recognized.
	Tags []string

	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxEntries <= 0 {
		c.MaxEntries = defaultMaxEntries
	}
	if c.SampleEvery <= 0 {
		c.SampleEvery = defaultSampleEvery
	}
	if c.MaxBuffer <= 0 {
		c.MaxBuffer = defaultMaxBuffer
	}
	if len(c.Tags) == 0 {
		c.Tags = []string{"Record", "Workout"}
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Stats is a snapshot of scan progress, safe to read after Scan returns
// false.
type Stats struct {
	// TotalSeen counts every complete entry located in the stream,
	// sampled or not.
	TotalSeen int
	// Yielded counts entries handed to the caller.
	Yielded int
	// Truncations counts buffer-pressure discards; each one means
	// entries were likely skipped.
	Truncations int
	State       State
}

// Scanner walks a byte stream and yields a sampled subset of its
// entries, bufio.Scanner style:
//
//	sc := sampler.NewScanner(f, cfg)
//	for sc.Scan() {
//		e := sc.Entry()
//	}
//	err := sc.Err()
//
// The sequence is single-pass; restarting requires reopening the
// source. The scanner closes the source on every terminal state.
type Scanner struct {
	r   io.ReadCloser
	cfg Config

	buf   []byte
	chunk []byte
	eof   bool

	entry Entry
	err   error

	state       State
	totalSeen   int
	yielded     int
	truncations int
}

// NewScanner wraps a byte stream. The caller must not read from r while
// the scanner is in use.
func NewScanner(r io.ReadCloser, cfg Config) *Scanner {
	return &Scanner{
		r:     r,
		cfg:   cfg.withDefaults(),
		chunk: make([]byte, chunkSize),
		state: StateRunning,
	}
}

// Scan advances to the next sampled entry. It returns false at a
// terminal state; check Err to distinguish Failed from the others.
func (s *Scanner) Scan() bool {
	for s.state == StateRunning {
		if s.scanBuffer() {
			return true
		}
		if s.eof {
			s.finish(StateCompleted)
			return false
		}
		s.enforceBufferBound()
		if !s.fill() {
			return false
		}
	}
	return false
}

// Entry returns the entry located by the last successful Scan.
func (s *Scanner) Entry() Entry { return s.entry }

// Err returns the stream error after a Failed scan, nil otherwise.
func (s *Scanner) Err() error { return s.err }

// Stats reports scan progress.
func (s *Scanner) Stats() Stats {
	return Stats{
		TotalSeen:   s.totalSeen,
		Yielded:     s.yielded,
		Truncations: s.truncations,
		State:       s.state,
	}
}

// scanBuffer consumes complete entries already in the buffer until one
// is sampled or the buffer runs dry.
func (s *Scanner) scanBuffer() bool {
	for {
		loc, ok := findEntry(s.buf, s.cfg.Tags)
		if !ok {
			return false
		}
		fragment := s.buf[loc.start:loc.end]
		s.totalSeen++
		sampled := s.totalSeen%s.cfg.SampleEvery == 0

		var entry Entry
		parsed := false
		if sampled {
			entry, parsed = parseEntry(loc.tag, fragment)
			if !parsed {
				s.cfg.Logger.Debug("skipping undecodable entry fragment", "tag", loc.tag)
			}
		}

		// Trim everything up to and including the consumed entry.
		s.buf = s.buf[loc.end:]

		if sampled && parsed {
			s.entry = entry
			s.yielded++
			if s.yielded >= s.cfg.MaxEntries {
				// Cap reached: close the source instead of draining a
				// multi-gigabyte remainder.
				s.finish(StateLimited)
			}
			return true
		}
	}
}

// enforceBufferBound truncates the buffer front when it exceeds the cap
// with no complete entry inside. Unconsumed bytes are lost; the count
// surfaces in Stats so the loss is reported, not silent.
func (s *Scanner) enforceBufferBound() {
	if len(s.buf) <= s.cfg.MaxBuffer {
		return
	}
	keep := s.cfg.MaxBuffer / 2
	s.buf = s.buf[len(s.buf)-keep:]
	s.truncations++
	s.cfg.Logger.Warn("buffer pressure, dropping buffered bytes",
		"kept", keep, "truncations", s.truncations)
}

// fill reads one chunk. It returns false when the scanner reached a
// terminal state through a read error.
func (s *Scanner) fill() bool {
	n, err := s.r.Read(s.chunk)
	if n > 0 {
		s.buf = append(s.buf, s.chunk[:n]...)
	}
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF):
		s.eof = true
		return true
	default:
		s.err = fmt.Errorf("%w: %v", ErrStream, err)
		s.finish(StateFailed)
		return false
	}
}

func (s *Scanner) finish(state State) {
	if s.state != StateRunning {
		return
	}
	s.state = state
	if err := s.r.Close(); err != nil && s.err == nil && state != StateFailed {
		s.cfg.Logger.Warn("closing sampled stream", "err", err)
	}
}

// entryLoc is a located complete entry within the buffer.
type entryLoc struct {
	tag        string
	start, end int
}

// findEntry locates the earliest entry start of any configured tag and
// reports it only once it is complete. Two shapes are recognized:
// self-terminating <Tag ... /> and paired <Tag ...> ... </Tag>. When the
// earliest entry's close has not arrived yet, nothing is reported and the
// caller reads more bytes; skipping ahead to a later complete entry would
// trim the pending one out of the buffer.
func findEntry(buf []byte, tags []string) (entryLoc, bool) {
	earliest := entryLoc{start: -1}
	for _, tag := range tags {
		start := indexTagStart(buf, tag)
		if start < 0 {
			continue
		}
		if earliest.start < 0 || start < earliest.start {
			earliest = entryLoc{tag: tag, start: start}
		}
	}
	if earliest.start < 0 {
		return entryLoc{}, false
	}
	end, ok := entryEnd(buf, earliest.start, earliest.tag)
	if !ok {
		return entryLoc{}, false
	}
	earliest.end = end
	return earliest, true
}

// indexTagStart finds "<Tag" followed by a delimiter, so a search for
// Record does not match RecordSet.
func indexTagStart(buf []byte, tag string) int {
	needle := []byte("<" + tag)
	from := 0
	for {
		i := bytes.Index(buf[from:], needle)
		if i < 0 {
			return -1
		}
		i += from
		rest := i + len(needle)
		if rest >= len(buf) {
			return -1
		}
		switch buf[rest] {
		case ' ', '\t', '\n', '\r', '>', '/':
			return i
		}
		from = i + 1
	}
}

// entryEnd returns the exclusive end offset of a complete entry starting
// at start, or false when more bytes are needed.
func entryEnd(buf []byte, start int, tag string) (int, bool) {
	gt := bytes.IndexByte(buf[start:], '>')
	if gt < 0 {
		return 0, false
	}
	gt += start
	if buf[gt-1] == '/' {
		return gt + 1, true
	}
	closing := []byte("</" + tag + ">")
	k := bytes.Index(buf[gt+1:], closing)
	if k < 0 {
		return 0, false
	}
	return gt + 1 + k + len(closing), true
}
