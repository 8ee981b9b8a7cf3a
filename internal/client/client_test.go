package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNewEndpoints(t *testing.T) {
	tests := []struct {
		endpoint string
		wantBase string
		wantErr  bool
	}{
		{endpoint: "unix:///run/gazectl.sock", wantBase: "http://unix"},
		{endpoint: "/run/gazectl.sock", wantBase: "http://unix"},
		{endpoint: "http://127.0.0.1:8080/", wantBase: "http://127.0.0.1:8080"},
		{endpoint: "ftp://example.com", wantErr: true},
	}
	for _, tt := range tests {
		c, err := New(tt.endpoint)
		if (err != nil) != tt.wantErr {
			t.Fatalf("New(%q) error = %v, wantErr %t", tt.endpoint, err, tt.wantErr)
		}
		if err == nil && c.baseURL != tt.wantBase {
			t.Errorf("New(%q) base = %q, want %q", tt.endpoint, c.baseURL, tt.wantBase)
		}
	}
}

func TestSendOverTCP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			b, _ := io.ReadAll(r.Body)
			_, _ = w.Write([]byte(r.Method + ":" + string(b)))
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	got, err := c.Put(ctx, "/echo", `"hi"`)
	if err != nil || got != `PUT:"hi"` {
		t.Fatalf("Put = %q, %v", got, err)
	}
	if got, err := c.Delete(ctx, "/echo"); err != nil || got != "DELETE:" {
		t.Fatalf("Delete = %q, %v", got, err)
	}
	if _, err := c.Get(ctx, "/fail"); err == nil {
		t.Fatalf("expected error on 500")
	}
	if _, err := c.Get(ctx, "/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendOverUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "gazectl")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "d.sock")

	l, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})}
	go func() { _ = srv.Serve(l) }()
	defer srv.Close()

	got, err := NewUnix(sock).Get(context.Background(), "/status")
	if err != nil || got != "ok" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	_, err = NewUnix(filepath.Join(dir, "missing.sock")).Get(context.Background(), "/status")
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}
