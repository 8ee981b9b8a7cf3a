package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is a small HTTP client talking to either a unix socket or a TCP
// endpoint. It is shared by the daemon API client and the engine client.
type Client struct {
	endpoint   string
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for endpoint, which is one of:
//
//   - unix:///path/to/socket or an absolute socket path
//   - http://host:port or https://host:port
func New(endpoint string) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(endpoint, "unix://"):
		return newUnix(endpoint, strings.TrimPrefix(endpoint, "unix://")), nil
	case strings.HasPrefix(endpoint, "/"):
		return newUnix(endpoint, endpoint), nil
	case strings.HasPrefix(endpoint, "http://"), strings.HasPrefix(endpoint, "https://"):
		return &Client{
			endpoint:   endpoint,
			baseURL:    strings.TrimSuffix(endpoint, "/"),
			httpClient: &http.Client{Timeout: 30 * time.Second},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported endpoint %q", endpoint)
	}
}

// NewUnix creates a Client for a unix socket path.
func NewUnix(socketPath string) *Client {
	return newUnix(socketPath, socketPath)
}

func newUnix(endpoint, socketPath string) *Client {
	return &Client{
		endpoint: endpoint,
		baseURL:  "http://unix",
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					conn, err := d.DialContext(ctx, "unix", socketPath)
					if err != nil {
						if errors.Is(err, os.ErrNotExist) {
							return nil, ErrNotRunning
						}
						if errors.Is(err, os.ErrPermission) {
							return nil, ErrPermissionDenied
						}
						logrus.Errorf("failed to connect to unix socket: %v", err)
						return nil, err
					}
					return conn, nil
				},
			},
		},
	}
}

func (c *Client) Endpoint() string { return c.endpoint }

// Send sends a request and returns the response body. Non-2xx responses are
// returned as errors; 404 wraps ErrNotFound.
func (c *Client) Send(ctx context.Context, method string, path string, data string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"data":     data,
		"endpoint": c.endpoint,
	}).Debug("sending request")

	var body io.Reader
	if data != "" {
		body = strings.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if data != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	ret := string(b)

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s %s: %s", ErrNotFound, method, path, ret)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("got %d: %s", resp.StatusCode, ret)
	}

	return ret, nil
}

func (c *Client) Get(ctx context.Context, path string) (string, error) {
	return c.Send(ctx, http.MethodGet, path, "")
}

func (c *Client) Put(ctx context.Context, path string, data string) (string, error) {
	return c.Send(ctx, http.MethodPut, path, data)
}

func (c *Client) Post(ctx context.Context, path string, data string) (string, error) {
	return c.Send(ctx, http.MethodPost, path, data)
}

func (c *Client) Delete(ctx context.Context, path string) (string, error) {
	return c.Send(ctx, http.MethodDelete, path, "")
}
