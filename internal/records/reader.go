package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/camera.report/internal/fsutil"
)

// Read parses every line of a day log.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)
	cr.ReuseRecord = true

	var out []Record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse log: %w", err)
		}
		rec, err := ParseFields(fields)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("parse log line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

// ReadFile opens path on fs and parses it with Read.
func ReadFile(fs fsutil.FileSystem, path string) ([]Record, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	recs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}
