package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/testutil"
)

const camDir = "/Results/10.0.0.5_554"

func memLog(t *testing.T, name string, rows ...testutil.LogRow) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile(filepath.Join(camDir, name), testutil.LogContent(rows...), 0o644))
	return mfs
}

func params(start, end string, threshold float64) Params {
	return Params{
		Date:                "2024-01-01",
		StartTime:           start,
		EndTime:             end,
		ConfidenceThreshold: threshold,
		Dir:                 camDir,
	}
}

func TestRun_ExcludesLowConfidence(t *testing.T) {
	mfs := memLog(t, "2024-01-01.txt", testutil.SampleRows()...)

	res, err := Run(mfs, params("10:00:00", "10:10:00", 0.3))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, filepath.Join(camDir, "2024-01-01.txt"), res.Path)
}

func TestRun_InclusiveBounds(t *testing.T) {
	mfs := memLog(t, "2024-01-01.txt",
		testutil.LogRow{ObjectID: 1, Type: "car", Confidence: 0.9, Timestamp: "2024-01-01 09:59:59.999999"},
		testutil.LogRow{ObjectID: 2, Type: "car", Confidence: 0.9, Timestamp: "2024-01-01 10:00:00.000000"},
		testutil.LogRow{ObjectID: 3, Type: "bus", Confidence: 0.9, Timestamp: "2024-01-01 10:30:00.000000"},
		testutil.LogRow{ObjectID: 4, Type: "truck", Confidence: 0.9, Timestamp: "2024-01-01 10:30:00.000001"},
	)

	res, err := Run(mfs, params("10:00:00", "10:30:00", 0.3))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count, "rows exactly at start and end are kept")
	assert.Equal(t, map[string]int{"car": 1, "bus": 1}, res.ByType)
}

func TestRun_ConfidenceAtThresholdIsKept(t *testing.T) {
	mfs := memLog(t, "2024-01-01.txt",
		testutil.LogRow{ObjectID: 1, Type: "car", Confidence: 0.3, Timestamp: "2024-01-01 10:00:00.000000"},
	)
	res, err := Run(mfs, params("00:00:00", "23:59:59", 0.3))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestRun_VehicleWhitelist(t *testing.T) {
	ts := "2024-01-01 12:00:00.000000"
	mfs := memLog(t, "2024-01-01.txt",
		testutil.LogRow{ObjectID: 1, Type: "person", Confidence: 0.99, Timestamp: ts},
		testutil.LogRow{ObjectID: 2, Type: "traffic light", Confidence: 0.99, Timestamp: ts},
		testutil.LogRow{ObjectID: 3, Type: "autorickshaw", Confidence: 0.99, Timestamp: ts},
		testutil.LogRow{ObjectID: 4, Type: "caravan", Confidence: 0.99, Timestamp: ts},
		testutil.LogRow{ObjectID: 5, Type: "motorcycle", Confidence: 0.99, Timestamp: ts},
		testutil.LogRow{ObjectID: 6, Type: "bicycle", Confidence: 0.99, Timestamp: ts},
	)

	res, err := Run(mfs, params("11:00:00", "13:00:00", 0.3))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	assert.NotContains(t, res.ByType, "person")
}

func TestRun_CountsDistinctIDs(t *testing.T) {
	rows := make([]testutil.LogRow, 0, 10)
	for i := 0; i < 10; i++ {
		id := 1 + i%3
		ts := time.Date(2024, 1, 1, 10, 0, i, 0, time.Local).Format("2006-01-02 15:04:05.000000")
		rows = append(rows, testutil.LogRow{Frame: i + 1, ObjectID: id, Type: "car", Confidence: 0.8, Timestamp: ts})
	}
	mfs := memLog(t, "2024-01-01_detailed.txt", rows...)

	p := params("10:00:00", "10:01:00", 0.3)
	p.Detailed = true
	res, err := Run(mfs, p)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 10, res.Rows)
	assert.InDelta(t, 0.8, res.MeanConfidence, 1e-9)
	assert.InDelta(t, 0.8, res.MedianConfidence, 1e-9)
}

func TestRun_InvalidRange(t *testing.T) {
	// no log exists; the range check must come first
	_, err := Run(fsutil.NewMemoryFileSystem(), params("10:10:00", "10:00:00", 0.3))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestRun_EqualBoundsAllowed(t *testing.T) {
	mfs := memLog(t, "2024-01-01.txt", testutil.SampleRows()...)
	res, err := Run(mfs, params("10:00:00", "10:00:00", 0.3))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestRun_BadTimeFormat(t *testing.T) {
	_, err := Run(fsutil.NewMemoryFileSystem(), params("10:00", "11:00:00", 0.3))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRange)
}

func TestRun_NotFound(t *testing.T) {
	mfs := memLog(t, "2024-01-01.txt", testutil.SampleRows()...)

	p := params("10:00:00", "11:00:00", 0.3)
	p.Date = "2024-01-02"
	_, err := Run(mfs, p)
	require.ErrorIs(t, err, ErrLogNotFound)
	assert.Contains(t, err.Error(), camDir)

	// the detailed log is a different file
	p = params("10:00:00", "11:00:00", 0.3)
	p.Detailed = true
	_, err = Run(mfs, p)
	require.ErrorIs(t, err, ErrLogNotFound)
}

func TestRun_TrackerLayout(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	path := filepath.Join(camDir, "2024-01-01", "2024-01-01.txt")
	require.NoError(t, mfs.WriteFile(path, testutil.LogContent(testutil.SampleRows()...), 0o644))

	res, err := Run(mfs, params("10:00:00", "10:10:00", 0.3))
	require.NoError(t, err)
	assert.Equal(t, path, res.Path)
	assert.Equal(t, 1, res.Count)
}

func TestRun_MalformedLog(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile(filepath.Join(camDir, "2024-01-01.txt"), []byte("not,a,log\n"), 0o644))

	_, err := Run(mfs, params("10:00:00", "10:10:00", 0.3))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLogNotFound)
}

func TestRun_FirstSightingOutsideWindowUndercounts(t *testing.T) {
	// a first-sighting log holds one row per vehicle; a window that starts
	// after that row does not see the vehicle at all
	mfs := memLog(t, "2024-01-01.txt", testutil.SampleRows()[0])

	res, err := Run(mfs, params("10:00:01", "11:00:00", 0.3))
	require.NoError(t, err)
	assert.Zero(t, res.Count)
}

func TestRun_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "10.0.0.5_554")
	testutil.WriteLog(t, filepath.Join(dir, "2024-01-01"), "2024-01-01.txt", testutil.SampleRows()...)

	p := params("10:00:00", "10:10:00", 0.3)
	p.Dir = dir
	res, err := Run(fsutil.OSFileSystem{}, p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestSummarize_Hourly(t *testing.T) {
	mfs := memLog(t, "2024-01-01.txt",
		testutil.LogRow{ObjectID: 1, Type: "car", Confidence: 0.9, Timestamp: "2024-01-01 08:15:00.000000"},
		testutil.LogRow{ObjectID: 2, Type: "car", Confidence: 0.9, Timestamp: "2024-01-01 08:45:00.000000"},
		testutil.LogRow{ObjectID: 3, Type: "bus", Confidence: 0.9, Timestamp: "2024-01-01 10:05:00.000000"},
	)

	res, err := Run(mfs, params("08:00:00", "10:30:00", 0.3))
	require.NoError(t, err)

	require.Len(t, res.Hourly, 3)
	got := []int{res.Hourly[0].Count, res.Hourly[1].Count, res.Hourly[2].Count}
	assert.Equal(t, []int{2, 0, 1}, got)
	assert.Equal(t, 8, res.Hourly[0].Hour.Hour())
	assert.InDelta(t, 0.9, res.MeanConfidence, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	res := Summarize(nil, start, start.Add(30*time.Minute), 0.3)

	assert.Zero(t, res.Count)
	assert.Zero(t, res.MeanConfidence)
	assert.Len(t, res.Hourly, 1)
}

func TestPlotHourly(t *testing.T) {
	mfs := memLog(t, "2024-01-01.txt", testutil.SampleRows()...)
	res, err := Run(mfs, params("09:00:00", "12:00:00", 0.1))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "hourly.png")
	require.NoError(t, PlotHourly(res, out))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, PlotHourly(&Result{}, out))
}
