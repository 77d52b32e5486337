package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperifyio/urlpreview/internal/block"
	"github.com/hyperifyio/urlpreview/internal/editor"
	"github.com/hyperifyio/urlpreview/internal/fetch"
	"github.com/hyperifyio/urlpreview/internal/host"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.CacheDir = t.TempDir()
	cfg.FetchTimeout = 2 * time.Second
	return cfg
}

func TestNew_InMemoryHostEndToEnd(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><meta property="og:image" content="/og.png"></head><body><img src="./b.png"></body></html>`)
	}))
	defer page.Close()

	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	mem, ok := a.Host().(*host.Memory)
	if !ok {
		t.Fatalf("expected in-memory host, got %T", a.Host())
	}
	mem.SetSelection(block.URLBlock{ID: "u1", URL: page.URL + "/article", Title: "T"})

	c := a.Controller()
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("edit: %v", err)
	}
	c.Wait()
	v := c.View()
	if v.State != editor.Editing {
		t.Fatalf("state = %v", v.State)
	}
	want := []string{page.URL + "/og.png", page.URL + "/b.png"}
	if len(v.Candidates) != 2 || v.Candidates[0] != want[0] || v.Candidates[1] != want[1] {
		t.Fatalf("candidates = %v, want %v", v.Candidates, want)
	}
}

func TestNewSuggester_UnreachablePageIsEmpty(t *testing.T) {
	s, err := NewSuggester(testConfig(t), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("new suggester: %v", err)
	}
	got := s.Suggest(context.Background(), "http://127.0.0.1:1/nothing")
	if len(got.Images) != 0 {
		t.Fatalf("expected no images, got %v", got.Images)
	}
}

// A cleared cache is not revalidated against: the second fetch must be a
// full GET without conditional headers.
func TestNew_CacheClearBypassesRevalidation(t *testing.T) {
	var conditional atomic.Int32
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			conditional.Add(1)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, `<html><body><img src="/a.png"></body></html>`)
	}))
	defer page.Close()

	cfg := testConfig(t)
	cfg.CacheClear = true
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	client, ok := a.suggester.Fetcher.(*fetch.Client)
	if !ok {
		t.Fatalf("unexpected fetcher %T", a.suggester.Fetcher)
	}
	if !client.BypassCache {
		t.Fatalf("expected BypassCache when cache.clear is set")
	}
	for i := 0; i < 2; i++ {
		if got := a.suggester.Suggest(context.Background(), page.URL); len(got.Images) != 1 {
			t.Fatalf("fetch %d: images = %v", i, got.Images)
		}
	}
	if n := conditional.Load(); n != 0 {
		t.Fatalf("expected no conditional requests, got %d", n)
	}

	cfg.CacheClear = false
	s, err := NewSuggester(cfg, nil)
	if err != nil {
		t.Fatalf("new suggester: %v", err)
	}
	if s.Fetcher.(*fetch.Client).BypassCache {
		t.Fatalf("BypassCache should follow cache.clear")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.HostBridgeURL = "bridge-without-scheme"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
}
