package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/banshee-data/camera.report/internal/httputil"
	"github.com/banshee-data/camera.report/internal/query"
)

// Client runs log queries against a remote Server.
type Client struct {
	base string
	http httputil.HTTPClient
}

// NewClient returns a client for the server at base, e.g. http://host:8080.
// A nil c uses httputil.NewClient.
func NewClient(base string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewClient()
	}
	return &Client{base: strings.TrimRight(base, "/"), http: c}
}

// Count runs p on the server. Dir is ignored: the server queries its own
// results directory. Not-found and invalid-range replies come back as
// query.ErrLogNotFound and query.ErrInvalidRange.
func (c *Client) Count(ctx context.Context, p query.Params) (*query.Result, error) {
	v := url.Values{}
	v.Set("date", p.Date)
	v.Set("start_time", p.StartTime)
	v.Set("end_time", p.EndTime)
	v.Set("confidence_threshold", strconv.FormatFloat(p.ConfidenceThreshold, 'f', -1, 64))
	v.Set("detailed", strconv.FormatBool(p.Detailed))

	var res query.Result
	err := httputil.GetJSON(ctx, c.http, c.base+"/api/count?"+v.Encode(), &res)
	var se *httputil.StatusError
	switch {
	case err == nil:
		return &res, nil
	case errors.As(err, &se) && se.Reason == CodeLogNotFound:
		return nil, fmt.Errorf("%w on %s", query.ErrLogNotFound, c.base)
	case errors.As(err, &se) && se.Reason == CodeInvalidRange:
		return nil, query.ErrInvalidRange
	default:
		return nil, fmt.Errorf("count on %s: %w", c.base, err)
	}
}
