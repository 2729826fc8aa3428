package records

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// TrackerClient pulls resolved prediction records from the tracker HTTP API.
// It is used by the collect tool to seed the local record store.
type TrackerClient struct {
	base string
	rest *resty.Client
}

// NewTrackerClient builds a client for the tracker API at base. The API key
// may be empty for unauthenticated deployments.
func NewTrackerClient(base, apiKey string, timeout time.Duration) *TrackerClient {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	if apiKey != "" {
		r.SetHeader("X-API-Key", apiKey)
	}
	return &TrackerClient{base: base, rest: r}
}

type trackerResp struct {
	Code    int         `json:"code"`
	Msg     string      `json:"msg"`
	Records []RawRecord `json:"records"`
	Total   int         `json:"total"`
}

// FetchResolved pages through resolved predictions for a sport made within
// the lookback window and returns them oldest first.
func (c *TrackerClient) FetchResolved(sport string, since time.Time, pageSize int) ([]RawRecord, error) {
	if pageSize <= 0 {
		pageSize = 500
	}

	var all []RawRecord
	for page := 0; ; page++ {
		resp := &trackerResp{}
		_, err := c.rest.R().
			SetQueryParam("sport", sport).
			SetQueryParam("resolved", "true").
			SetQueryParam("since", since.UTC().Format(time.RFC3339)).
			SetQueryParam("limit", strconv.Itoa(pageSize)).
			SetQueryParam("offset", strconv.Itoa(page*pageSize)).
			SetResult(resp).
			Get(c.base + "/api/v1/predictions")
		if err != nil {
			return nil, fmt.Errorf("fetch predictions: %w", err)
		}
		if resp.Code != 0 {
			return nil, fmt.Errorf("tracker: %d %s", resp.Code, resp.Msg)
		}
		all = append(all, resp.Records...)
		if len(resp.Records) < pageSize {
			break
		}
	}

	sortByMadeAt(all)
	return all, nil
}
