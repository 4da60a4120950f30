package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/monitoring"
)

// Writer appends records to the day log for one camera and detail mode.
// The target file is chosen from each record's timestamp, so a stream that
// runs past midnight continues in the next day's file. Every record is
// flushed before Write returns.
type Writer struct {
	fs       fsutil.FileSystem
	root     string
	host     string
	detailed bool

	path string
	file io.WriteCloser
	csv  *csv.Writer
}

// NewWriter returns a Writer rooted at root for the camera identified by
// hostToken. No file is opened until the first Write.
func NewWriter(fs fsutil.FileSystem, root, hostToken string, detailed bool) *Writer {
	return &Writer{fs: fs, root: root, host: hostToken, detailed: detailed}
}

// Path returns the file the last record went to, or "" before any write.
func (w *Writer) Path() string {
	return w.path
}

// Write appends r as a single line and flushes it.
func (w *Writer) Write(r Record) error {
	path := LogPath(w.root, w.host, r.Timestamp, w.detailed)
	if path != w.path {
		if err := w.open(path); err != nil {
			return err
		}
	}

	if err := w.csv.Write(r.Fields()); err != nil {
		return fmt.Errorf("write record to %s: %w", w.path, err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush record to %s: %w", w.path, err)
	}
	return nil
}

func (w *Writer) open(path string) error {
	if err := w.Close(); err != nil {
		return err
	}
	if err := w.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := w.fs.OpenAppend(path)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	if w.path != "" {
		monitoring.Logf("records: rolled over to %s", path)
	}
	w.path = path
	w.file = f
	w.csv = csv.NewWriter(f)
	return nil
}

// Close releases the current file handle. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.csv = nil
	if err != nil {
		return fmt.Errorf("close log %s: %w", w.path, err)
	}
	return nil
}
