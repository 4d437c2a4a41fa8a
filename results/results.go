// Package results records how long a player survived. Writers are
// asynchronous: Write returns at once and the returned channel yields the
// outcome when the write has finished.
package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Format selects the shape of a result line.
type Format string

const (
	// Plain is "Result: Level L Time survived: T seconds".
	Plain Format = "plain"
	// Dated prefixes the plain line with the date as YYYY_MM_DD.
	Dated Format = "dated"
)

const dateLayout = "2006_01_02"

// ParseFormat accepts "plain" or "dated", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case Plain:
		return Plain, nil
	case Dated:
		return Dated, nil
	default:
		return "", fmt.Errorf("unknown results format %q (want %q or %q)", s, Plain, Dated)
	}
}

// Line renders one result.
func (f Format) Line(level, seconds int, now time.Time) string {
	line := fmt.Sprintf("Result: Level %d Time survived: %d seconds", level, seconds)
	if f == Dated {
		return now.Format(dateLayout) + " " + line
	}
	return line
}

// Writer persists a result in the background.
type Writer interface {
	Write(level, seconds int) <-chan error
}

// FileWriter appends result lines to a text file, creating it and its
// directory on first use.
type FileWriter struct {
	path   string
	format Format
	now    func() time.Time

	mu sync.Mutex
}

func NewFileWriter(path string, format Format) *FileWriter {
	return &FileWriter{path: path, format: format, now: time.Now}
}

func (w *FileWriter) Path() string {
	return w.path
}

func (w *FileWriter) Write(level, seconds int) <-chan error {
	line := w.format.Line(level, seconds, w.now())
	errc := make(chan error, 1)
	go func() {
		errc <- w.append(line)
		close(errc)
	}()
	return errc
}

func (w *FileWriter) append(line string) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close results file: %w", cerr)
		}
	}()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// Clear removes a results file. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove results file: %w", err)
	}
	return nil
}

// MultiWriter writes to every writer and reports all of their failures.
type MultiWriter []Writer

func (m MultiWriter) Write(level, seconds int) <-chan error {
	pending := make([]<-chan error, 0, len(m))
	for _, w := range m {
		pending = append(pending, w.Write(level, seconds))
	}

	errc := make(chan error, 1)
	go func() {
		var errs []error
		for _, c := range pending {
			if err := <-c; err != nil {
				errs = append(errs, err)
			}
		}
		errc <- errors.Join(errs...)
		close(errc)
	}()
	return errc
}
