// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/segmentio/encoding/json"
)

// maxRawLine bounds a single payload when reading the raw log back.
const maxRawLine = 16 * 1024 * 1024

// RawLog is the append-only payload log: one compact JSON document per line,
// in harvest order.
type RawLog struct {
	path string
}

// NewRawLog returns a log that appends to path.
func NewRawLog(path string) *RawLog {
	return &RawLog{path: path}
}

// Path returns the log file location.
func (l *RawLog) Path() string { return l.path }

// Append writes payload as one line. The file is opened and closed on every
// call so a crash never leaves a buffered record behind.
func (l *RawLog) Append(payload []byte) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return fmt.Errorf("compacting payload: %w", err)
	}
	buf.WriteByte('\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening raw log for append: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("writing raw log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing raw log: %w", err)
	}
	return nil
}

// Each calls fn for every payload in the log, in order.
func (l *RawLog) Each(fn func(line int, payload []byte) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening raw log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRawLine)
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		if err := fn(line, b); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading raw log: %w", err)
	}
	return nil
}
