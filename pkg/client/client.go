package client

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/gazectl/internal/client"
	"github.com/charlie0129/gazectl/pkg/events"
)

const requestTimeout = 10 * time.Second

// Client is a client of the gazectl daemon API served on a unix socket.
type Client struct {
	socketPath string
	c          *client.Client
}

func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		c:          client.NewUnix(socketPath),
	}
}

// Send sends a request to the daemon.
func (c *Client) Send(method string, path string, data string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return c.c.Send(ctx, method, path, data)
}

func (c *Client) Get(path string) (string, error) {
	return c.Send("GET", path, "")
}

func (c *Client) Put(path string, data string) (string, error) {
	return c.Send("PUT", path, data)
}

func (c *Client) Post(path string, data string) (string, error) {
	return c.Send("POST", path, data)
}

// StreamEvents follows the daemon event stream until ctx is done or the
// connection drops; the returned channel is closed then.
func (c *Client) StreamEvents(ctx context.Context) (<-chan events.Event, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, "unix", c.socketPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, ErrDaemonNotRunning
				}
				if errors.Is(err, os.ErrPermission) {
					return nil, ErrPermissionDenied
				}
				return nil, err
			}
			return conn, nil
		},
		HandshakeTimeout: requestTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, "ws://unix/events", nil)
	if err != nil {
		return nil, err
	}

	ch := make(chan events.Event, 16)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(ch)
		defer stop()
		defer conn.Close()
		for {
			var ev events.Event
			if err := conn.ReadJSON(&ev); err != nil {
				logrus.Debugf("event stream closed: %v", err)
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
