// Package uplink implements the destination transport for upload units: a
// JSON envelope POSTed over HTTP(S), optionally with an mTLS client.
package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/opswatchhq/engine/pkg/types"
)

const (
	defaultUploadPath = "/api/v1/logs"
	defaultTimeout    = 30 * time.Second
	userAgent         = "opswatch-engine/0.1.0"
)

// Config holds the static configuration for a destination client.
type Config struct {
	DestinationURL string
	Timeout        time.Duration

	// Optional mTLS client identity.
	CertPath string
	KeyPath  string
	CAPath   string
}

// Dependencies allow test overrides for HTTP client, clock, and logging.
type Dependencies struct {
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *log.Logger
	UploadPath string
}

// Client POSTs upload units to the destination. It implements the delivery
// pipeline's Destination contract.
type Client struct {
	httpClient *http.Client
	uploadURL  string
	now        func() time.Time
	logger     *log.Logger
}

// NewClient builds a destination client from configuration and dependencies.
func NewClient(cfg Config, deps Dependencies) (*Client, error) {
	if cfg.DestinationURL == "" {
		return nil, fmt.Errorf("destination URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: 10,
		}
		if cfg.CertPath != "" || cfg.KeyPath != "" {
			tlsConfig, err := LoadClientTLSConfig(cfg.CertPath, cfg.KeyPath, cfg.CAPath, cfg.DestinationURL)
			if err != nil {
				return nil, fmt.Errorf("load TLS config: %w", err)
			}
			transport.TLSClientConfig = tlsConfig
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	uploadPath := deps.UploadPath
	if uploadPath == "" {
		uploadPath = defaultUploadPath
	}

	return &Client{
		httpClient: httpClient,
		uploadURL:  joinURL(cfg.DestinationURL, uploadPath),
		now:        now,
		logger:     logger,
	}, nil
}

// uploadEnvelope is the wire format one unit is delivered in.
type uploadEnvelope struct {
	RunID     string    `json:"run_id"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	Chunk     int       `json:"chunk"`
	Size      int       `json:"size"`
	Content   string    `json:"content"`
}

// Send posts one unit and reports the response status. Transport failures
// carry no status; the retry layer classifies them.
func (c *Client) Send(ctx context.Context, runID string, unit types.UploadUnit) (int, error) {
	envelope := uploadEnvelope{
		RunID:     runID,
		Filename:  unit.Name(),
		Timestamp: c.now().UTC(),
		Chunk:     unit.Index,
		Size:      unit.Size,
		Content:   string(unit.Data),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return 0, fmt.Errorf("marshal upload envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send unit %s: %w", unit.Name(), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.logger.Printf("uploaded %s (%d bytes): %s", unit.Name(), unit.Size, resp.Status)
	return resp.StatusCode, nil
}

func joinURL(base, path string) string {
	if base == "" {
		return path
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
