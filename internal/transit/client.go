package transit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/denizatli/hattakip/internal/domain"
)

// DefaultTimeout bounds every upstream call. A timed-out fetch inside a
// tracking loop is treated as a fetch failure, terminal for the session.
const DefaultTimeout = 15 * time.Second

// Client talks to the municipal transit service's form-encoded AJAX
// endpoints. The service is browser-oriented, so requests carry the headers
// its origin checks expect.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient constructs a Client for the given base URL
// (e.g. "https://ulasim.mersin.bel.tr"). Pass nil to use a default
// http.Client with DefaultTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// StopStatus fetches the live line records for a stop. The response is an
// arbitrarily nested JSON document with no guaranteed shape; callers match
// lines out of it with FindLine. Network failures, non-2xx statuses, and
// undecodable bodies all surface as domain.ErrUpstream.
func (c *Client) StopStatus(ctx context.Context, stopID string) (any, error) {
	form := url.Values{
		"durak_no": {stopID},
		"tipi":     {"durakhatbilgisi"},
	}
	body, err := c.postForm(ctx, "/ajax/bilgi.php", form)
	if err != nil {
		return nil, fmt.Errorf("transit.Client.StopStatus: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("transit.Client.StopStatus: decode: %w: %w", domain.ErrUpstream, err)
	}
	return payload, nil
}

// LineList fetches the full line catalogue. The response is a JSON array of
// line records with the upstream's usual loose typing; callers decode it
// with ParseBusLines.
func (c *Client) LineList(ctx context.Context) (any, error) {
	form := url.Values{
		"aranan": {"TUM"},
		"tipi":   {"hatbilgisi"},
	}
	body, err := c.postForm(ctx, "/ajax/bilgi.php", form)
	if err != nil {
		return nil, fmt.Errorf("transit.Client.LineList: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("transit.Client.LineList: decode: %w: %w", domain.ErrUpstream, err)
	}
	return payload, nil
}

// LineSchedule fetches the timetable for one line+direction (the catalogue's
// post key). Callers group and sort it with ParseSchedule.
func (c *Client) LineSchedule(ctx context.Context, post string) (any, error) {
	form := url.Values{
		"hat_no": {post},
		"tipi":   {"tarifeler"},
	}
	body, err := c.postForm(ctx, "/ajax/bilgi.php", form)
	if err != nil {
		return nil, fmt.Errorf("transit.Client.LineSchedule: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("transit.Client.LineSchedule: decode: %w: %w", domain.ErrUpstream, err)
	}
	return payload, nil
}

// RouteSuggestions asks the planner for route alternatives between two
// coordinates and returns the raw route objects. An empty slice means the
// planner found no route; that is not an error.
func (c *Client) RouteSuggestions(ctx context.Context, origin, dest domain.Coordinates) ([]map[string]any, error) {
	form := url.Values{
		"baslangic": {fmt.Sprintf("%.12f,%.12f", origin.Lat, origin.Lng)},
		"bitis":     {fmt.Sprintf("%.12f,%.12f", dest.Lat, dest.Lng)},
	}
	body, err := c.postForm(ctx, "/nasilgiderim/nasilgiderim.php", form)
	if err != nil {
		return nil, fmt.Errorf("transit.Client.RouteSuggestions: %w", err)
	}

	// The planner answers with a JSON array on success and free-form text
	// when it has nothing; the latter decodes to no routes.
	var routes []map[string]any
	if err := json.Unmarshal(body, &routes); err != nil {
		return nil, nil
	}
	return routes, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", "Mozilla/5.0 (hattakip)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", domain.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrUpstream, err)
	}
	return body, nil
}
