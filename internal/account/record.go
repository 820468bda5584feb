// internal/account/record.go
package account

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
)

// recordLayout is the timestamp format inside an output line.
const recordLayout = "2006-01-02 15:04:05"

// missingPassword is written when a run produced a key without ever setting
// a password (e.g. a session restored from cookies).
const missingPassword = "N/A"

// Record is one completed registration.
type Record struct {
	Email     string
	Password  string
	Key       string
	CreatedAt time.Time
}

// Line renders the record in the append-file format:
// email,password,key,timestamp;
func (r Record) Line() string {
	pw := r.Password
	if pw == "" {
		pw = missingPassword
	}
	ts := r.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("%s,%s,%s,%s;\n", r.Email, pw, r.Key, ts.Format(recordLayout))
}

// Writer appends completed records to a single file. Records are written
// only for fully successful runs, so a partial pipeline never leaves a
// half-true line behind.
type Writer struct {
	path string
}

// NewWriter resolves path (expanding a leading ~) into a Writer. The file
// is created on first append.
func NewWriter(path string) (*Writer, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("account: resolving output path: %w", err)
	}
	return &Writer{path: expanded}, nil
}

// Path returns the resolved output location.
func (w *Writer) Path() string { return w.path }

// Append writes one record, opening and closing the file per call so that
// concurrent processes and abrupt exits cannot corrupt earlier lines.
func (w *Writer) Append(r Record) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("account: opening %s: %w", w.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(r.Line()); err != nil {
		return fmt.Errorf("account: appending record: %w", err)
	}
	return nil
}
