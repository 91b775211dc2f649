package monitor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestServerServesHealthAndShutsDown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewHub())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if srv.Port() == 0 {
		t.Fatal("Port() = 0 after Listen")
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx) }()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", srv.Port()))
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.HasPrefix(string(body), "ok 0") {
		t.Errorf("/healthz body = %q, want ok 0", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
