package obslog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Sources. Each source is one logical append-only sequence backed by a live
// JSONL file plus zero or more archive files produced by size rotation.
const (
	SourceObservations = "observations"
	SourceStructural   = "structural"
)

// ErrOffsetOutOfRange is returned when a stored offset points past the end
// of a source — the log was truncated or replaced underneath us.
var ErrOffsetOutOfRange = errors.New("offset beyond end of observation log")

// maxLineBytes bounds a single observation record on read.
const maxLineBytes = 256 * 1024

// Log reads and writes line-delimited observation records under a directory.
// Offsets are logical record indexes per source, stable across rotation:
// archives sort before the live file and records are only ever appended.
type Log struct {
	Dir string
}

// Open returns a Log rooted at dir. The directory is created lazily on the
// first append.
func Open(dir string) *Log {
	return &Log{Dir: dir}
}

// DefaultDir returns the observation log directory for a project:
// <project>/.instinct
func DefaultDir(projectDir string) string {
	return filepath.Join(projectDir, ".instinct")
}

func (l *Log) livePath(source string) string {
	return filepath.Join(l.Dir, source+".jsonl")
}

// files returns the physical files of a source in logical order.
func (l *Log) files(source string) ([]string, error) {
	archives, err := filepath.Glob(filepath.Join(l.Dir, source+".archive-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("glob archives: %w", err)
	}
	sort.Strings(archives) // archive names embed a timestamp

	live := l.livePath(source)
	if _, err := os.Stat(live); err == nil {
		archives = append(archives, live)
	}
	return archives, nil
}

// ReadFrom returns all records of a source after the given logical offset,
// the new end offset, and the number of malformed lines skipped. Malformed
// lines still occupy one logical slot so offsets stay stable.
func (l *Log) ReadFrom(source string, offset int64) ([]Observation, int64, int, error) {
	files, err := l.files(source)
	if err != nil {
		return nil, 0, 0, err
	}

	var (
		records   []Observation
		index     int64
		malformed int
	)

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("open %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := scanner.Bytes()
			cur := index
			index++

			if cur < offset {
				continue
			}
			if len(line) == 0 {
				continue
			}

			var obs Observation
			if err := json.Unmarshal(line, &obs); err != nil {
				malformed++
				continue
			}
			records = append(records, obs)
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return nil, 0, 0, fmt.Errorf("scan %s: %w", path, err)
		}
		f.Close()
	}

	if offset > index {
		return nil, index, 0, fmt.Errorf("%w: offset %d, log has %d records", ErrOffsetOutOfRange, offset, index)
	}
	return records, index, malformed, nil
}

// Len returns the number of logical records in a source.
func (l *Log) Len(source string) (int64, error) {
	_, end, _, err := l.ReadFrom(source, 0)
	return end, err
}

// Append writes one record to the live file of a source, rotating first if
// the live file already exceeds maxBytes. maxBytes <= 0 disables rotation.
func (l *Log) Append(source string, obs *Observation, maxBytes int64) error {
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	live := l.livePath(source)
	if maxBytes > 0 {
		if info, err := os.Stat(live); err == nil && info.Size() >= maxBytes {
			stamp := time.Now().Format("20060102-150405")
			archive := filepath.Join(l.Dir, fmt.Sprintf("%s.archive-%s.jsonl", source, stamp))
			if err := os.Rename(live, archive); err != nil {
				return fmt.Errorf("rotate %s: %w", source, err)
			}
		}
	}

	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}

	f, err := os.OpenFile(live, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", live, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append observation: %w", err)
	}
	return nil
}
