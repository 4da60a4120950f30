package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/banshee-data/camera.report/internal/api"
	"github.com/banshee-data/camera.report/internal/db"
	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/httputil"
	"github.com/banshee-data/camera.report/internal/labels"
	"github.com/banshee-data/camera.report/internal/query"
	"github.com/banshee-data/camera.report/internal/security"
)

// Options is one count request from the command line.
type Options struct {
	Date                string
	StartTime           string
	EndTime             string
	ConfidenceThreshold float64
	FilePath            string
	Detailed            bool
	Summary             bool   // also print the per-type breakdown
	Plot                string // PNG of hourly counts
	DBPath              string // count from SQLite instead of the day log
	Camera              string // camera token for DBPath queries
	Remote              string // count through a running query --listen
}

// CLI runs counts and prints the outcome to Out.
type CLI struct {
	FS   fsutil.FileSystem
	Out  io.Writer
	HTTP httputil.HTTPClient
}

// Run validates usage, then counts and prints. Query failures are printed
// and do not produce an error; only bad usage does.
func (c *CLI) Run(ctx context.Context, o Options) error {
	if o.Date == "" || o.StartTime == "" || o.EndTime == "" {
		return errors.New("--date, --start_time and --end_time are required")
	}
	if o.Plot != "" {
		if err := security.ValidateExportPath(o.Plot); err != nil {
			return fmt.Errorf("invalid --plot path: %w", err)
		}
	}

	res, err := c.count(ctx, o)
	if err != nil {
		c.report(o, err)
		return nil
	}

	fmt.Fprintf(c.Out, "Number of unique vehicles detected: %d\n", res.Count)
	if o.Summary {
		c.printSummary(res)
	}
	if o.Plot != "" {
		if err := query.PlotHourly(res, o.Plot); err != nil {
			c.report(o, err)
			return nil
		}
		fmt.Fprintf(c.Out, "Hourly chart written to %s\n", o.Plot)
	}
	return nil
}

func (c *CLI) params(o Options) query.Params {
	return query.Params{
		Date:                o.Date,
		StartTime:           o.StartTime,
		EndTime:             o.EndTime,
		ConfidenceThreshold: o.ConfidenceThreshold,
		Dir:                 o.FilePath,
		Detailed:            o.Detailed,
	}
}

func (c *CLI) count(ctx context.Context, o Options) (*query.Result, error) {
	p := c.params(o)
	switch {
	case o.Remote != "":
		return api.NewClient(o.Remote, c.HTTP).Count(ctx, p)
	case o.DBPath != "":
		return c.countDB(ctx, o, p)
	default:
		return query.Run(c.FS, p)
	}
}

func (c *CLI) countDB(ctx context.Context, o Options, p query.Params) (*query.Result, error) {
	start, end, err := p.Window()
	if err != nil {
		return nil, err
	}
	database, err := db.NewDB(o.DBPath)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	q := db.CountQuery{
		Camera:    o.Camera,
		Start:     start,
		End:       end,
		Threshold: o.ConfidenceThreshold,
		Types:     labels.VehicleTypes(),
	}
	n, err := database.CountUniqueVehicles(ctx, q)
	if err != nil {
		return nil, err
	}
	byType, err := database.CountByType(ctx, q)
	if err != nil {
		return nil, err
	}
	return &query.Result{Path: o.DBPath, Start: start, End: end, Count: n, ByType: byType}, nil
}

func (c *CLI) report(o Options, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidRange):
		fmt.Fprintln(c.Out, "Error: Start time must be less than or equal to end time.")
	case errors.Is(err, query.ErrLogNotFound):
		where := o.FilePath
		if o.Remote != "" {
			where = o.Remote
		}
		fmt.Fprintf(c.Out, "No data file found for the given date in %s.\n", where)
	default:
		fmt.Fprintf(c.Out, "An error occurred: %v\n", err)
	}
}

func (c *CLI) printSummary(res *query.Result) {
	types := make([]string, 0, len(res.ByType))
	for t := range res.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(c.Out, "  %-12s %d\n", t, res.ByType[t])
	}
	if res.Rows > 0 {
		fmt.Fprintf(c.Out, "Rows kept: %d of %d, confidence mean %.3f median %.3f\n",
			res.Rows, res.Total, res.MeanConfidence, res.MedianConfidence)
	}
}
