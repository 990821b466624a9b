// Package ingest uploads generated composites to the ingestion service.
//
// Each image is sent as one multipart POST to <base>/api/<category>/files with the
// PNG in the "data" field. Run metadata and the image's bounding boxes travel as JSON
// headers. An upload only succeeds when the service answers 200 with a success
// envelope for the request and for the single file.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ironsheep/composite-gen/internal/scene"
)

// ErrUpload is returned for any upload the service did not accept.
var ErrUpload = errors.New("upload failed")

// DefaultHost is the ingestion host used when none is configured.
const DefaultHost = "edgeimpulse.com"

// DefaultTimeout bounds one upload request.
const DefaultTimeout = 60 * time.Second

// Categories accepted by the service.
var Categories = []string{"split", "training", "testing"}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// BaseURL derives the ingestion endpoint from a host name. Test hosts and the docker
// host are served over plain HTTP.
func BaseURL(host string) string {
	switch {
	case host == "":
		host = DefaultHost
	case host == "host.docker.internal":
		return "http://host.docker.internal:4810"
	case strings.HasSuffix(host, ".test.edgeimpulse.com"):
		return "http://ingestion." + host
	}
	return "https://ingestion." + host
}

// Options configures a Client.
type Options struct {
	// BaseURL overrides the endpoint derived from Host.
	BaseURL  string
	Host     string
	APIKey   string
	Category string
	// Timeout bounds each request. 0 uses DefaultTimeout.
	Timeout time.Duration
	// Rate limits uploads per second. 0 disables limiting.
	Rate float64
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Client uploads images. It is safe for concurrent use.
type Client struct {
	url     string
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
	http    *http.Client
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("ingestion API key is not set")
	}
	if !ValidCategory(opts.Category) {
		return nil, fmt.Errorf("invalid upload category %q, should be one of %s", opts.Category, strings.Join(Categories, ", "))
	}

	base := opts.BaseURL
	if base == "" {
		base = BaseURL(opts.Host)
	}
	c := &Client{
		url:     strings.TrimSuffix(base, "/") + "/api/" + opts.Category + "/files",
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Inf, 1),
		http:    opts.HTTPClient,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.Rate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c, nil
}

// URL returns the upload endpoint.
func (c *Client) URL() string { return c.url }

// Upload is one image to send.
type Upload struct {
	Filename string
	PNG      []byte
	// Metadata is encoded into the x-metadata header.
	Metadata map[string]string
	// JobID is sent as x-synthetic-data-job-id when non-empty.
	JobID string
	Boxes []scene.PlacedObject
}

// envelope is the service response body.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Files   []struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	} `json:"files"`
}

// Upload sends u and waits for the service verdict. Every failure wraps ErrUpload
// except context cancellation while waiting for the rate limiter.
func (c *Client) Upload(ctx context.Context, u Upload) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, u)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpload, u.Filename, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %v", ErrUpload, u.Filename, err)
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s (status_code=%d): %s", ErrUpload, u.Filename, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %s: malformed response: %v", ErrUpload, u.Filename, err)
	}
	if !env.Success {
		return fmt.Errorf("%w: %s: %s", ErrUpload, u.Filename, env.Error)
	}
	if len(env.Files) == 0 {
		return fmt.Errorf("%w: %s: response lists no files", ErrUpload, u.Filename)
	}
	if !env.Files[0].Success {
		return fmt.Errorf("%w: %s: %s", ErrUpload, u.Filename, env.Files[0].Error)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, u Upload) (*http.Request, error) {
	boxes := u.Boxes
	if boxes == nil {
		boxes = []scene.PlacedObject{}
	}
	boxJSON, err := json.Marshal(boxes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bounding boxes: %w", err)
	}
	metaJSON, err := json.Marshal(u.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="data"; filename=%q`, u.Filename)},
		"Content-Type":        {"image/png"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := part.Write(u.PNG); err != nil {
		return nil, fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("x-metadata", string(metaJSON))
	req.Header.Set("x-bounding-boxes", string(boxJSON))
	if u.JobID != "" {
		req.Header.Set("x-synthetic-data-job-id", u.JobID)
	}
	return req, nil
}
