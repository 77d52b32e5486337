package editor

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hyperifyio/urlpreview/internal/block"
	"github.com/hyperifyio/urlpreview/internal/host"
	"github.com/hyperifyio/urlpreview/internal/suggest"
)

// fakeSuggester records calls and optionally blocks until released.
type fakeSuggester struct {
	mu      sync.Mutex
	calls   []string
	images  map[string][]string
	gate    chan struct{}
	started chan string
}

func (f *fakeSuggester) Suggest(_ context.Context, url string) suggest.Suggestions {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	imgs := f.images[url]
	gate := f.gate
	f.mu.Unlock()
	if f.started != nil {
		f.started <- url
	}
	if gate != nil {
		<-gate
	}
	return suggest.Suggestions{URL: url, Images: imgs, Title: "Suggested"}
}

func (f *fakeSuggester) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func sampleURLBlock() block.URLBlock {
	return block.URLBlock{
		ID:              "u1",
		URL:             "https://example.com/post",
		Title:           "Post",
		PageDescription: "About the post",
		ImageURL:        "https://example.com/cover.png",
		Extra: map[string]json.RawMessage{
			"layoutStyle":      json.RawMessage(`"card"`),
			"indentationLevel": json.RawMessage(`1`),
		},
	}
}

func TestEditSelected_NoURLBlocks(t *testing.T) {
	h := host.NewMemory(
		block.TextBlock{ID: "t1"},
		block.ImageBlock{ID: "i1", URL: "https://example.com/i.png"},
		block.OtherBlock{ID: "x1"},
	)
	s := &fakeSuggester{}
	c := New(h, s, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := c.View()
	if v.Message != "No URL blocks selected" {
		t.Fatalf("message = %q", v.Message)
	}
	if v.Draft != nil {
		t.Fatalf("expected no draft, got %+v", v.Draft)
	}
	if v.State != NoneFound || v.Status != StatusNone {
		t.Fatalf("state = %v status = %v", v.State, v.Status)
	}
	c.Wait()
	if len(s.Calls()) != 0 {
		t.Fatalf("expected no fetch, got %v", s.Calls())
	}
}

func TestEditSelected_SingleURLBlock(t *testing.T) {
	u := sampleURLBlock()
	h := host.NewMemory(block.TextBlock{ID: "t1"}, u)
	s := &fakeSuggester{images: map[string][]string{u.URL: {"https://example.com/og.png"}}}
	c := New(h, s, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()
	v := c.View()
	if v.State != Editing || v.Status != StatusSingle {
		t.Fatalf("state = %v status = %v", v.State, v.Status)
	}
	if v.Draft == nil || !reflect.DeepEqual(*v.Draft, u) {
		t.Fatalf("draft differs from selected block:\n got %+v\nwant %+v", v.Draft, u)
	}
	if calls := s.Calls(); len(calls) != 1 || calls[0] != u.URL {
		t.Fatalf("expected exactly one fetch of %s, got %v", u.URL, calls)
	}
	if len(v.Candidates) != 1 || v.Candidates[0] != "https://example.com/og.png" {
		t.Fatalf("candidates = %v", v.Candidates)
	}
	if v.SuggestedTitle != "Suggested" {
		t.Fatalf("suggested title = %q", v.SuggestedTitle)
	}
}

func TestEditSelected_MultipleURLBlocks(t *testing.T) {
	a, b := sampleURLBlock(), sampleURLBlock()
	b.ID = "u2"
	c := New(host.NewMemory(a, b), &fakeSuggester{}, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := c.View()
	if v.Message != "Multiple URL blocks selected. Please select only one." {
		t.Fatalf("message = %q", v.Message)
	}
	if v.Draft != nil || v.State != MultipleFound {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestEditSelected_HostFailureIsHardError(t *testing.T) {
	h := host.NewMemory(sampleURLBlock())
	h.FailSelection("editor not ready")
	c := New(h, &fakeSuggester{}, Options{})
	err := c.EditSelected(context.Background())
	if !errors.Is(err, ErrSelectionFailed) {
		t.Fatalf("expected ErrSelectionFailed, got %v", err)
	}
	v := c.View()
	if v.State != Failed || v.Status != StatusError || v.Message != "editor not ready" || v.Draft != nil {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestEditSelected_DevPlaceholder(t *testing.T) {
	c := New(host.NewMemory(), nil, Options{DevPlaceholder: true, PlaceholderURL: "https://dev.test/"})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := c.View()
	if v.Draft == nil || v.Draft.URL != "https://dev.test/" || v.State != Editing {
		t.Fatalf("expected placeholder draft, got %+v", v)
	}
	if v.Message != "" {
		t.Fatalf("message = %q", v.Message)
	}
}

func TestUpdate_MergesOnlyGivenFields(t *testing.T) {
	u := sampleURLBlock()
	c := New(host.NewMemory(u), nil, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := c.Update(block.Patch{Title: block.String("Renamed")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	v := c.View()
	want := u.Clone()
	want.Title = "Renamed"
	if !reflect.DeepEqual(*v.Draft, want) {
		t.Fatalf("draft after title edit:\n got %+v\nwant %+v", *v.Draft, want)
	}
}

func TestUpdate_WithoutDraft(t *testing.T) {
	c := New(host.NewMemory(), nil, Options{})
	if err := c.Update(block.Patch{Title: block.String("x")}); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft, got %v", err)
	}
	if err := c.Save(context.Background()); !errors.Is(err, ErrNoDraft) {
		t.Fatalf("expected ErrNoDraft from Save, got %v", err)
	}
}

func TestChooseImage(t *testing.T) {
	u := sampleURLBlock()
	s := &fakeSuggester{images: map[string][]string{u.URL: {"https://a.test/1.png", "https://a.test/2.png"}}}
	c := New(host.NewMemory(u), s, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("edit: %v", err)
	}
	c.Wait()
	if err := c.ChooseImage(1); err != nil {
		t.Fatalf("choose: %v", err)
	}
	if got := c.View().Draft.ImageURL; got != "https://a.test/2.png" {
		t.Fatalf("image = %q", got)
	}
	if err := c.ChooseImage(5); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
}

func TestSave_WritesFullDraftOnce(t *testing.T) {
	u := sampleURLBlock()
	h := host.NewMemory(u)
	c := New(h, nil, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := c.Update(block.Patch{PageDescription: block.String("New description")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	updates := h.Updates()
	if len(updates) != 1 || len(updates[0]) != 1 {
		t.Fatalf("expected one single-block update, got %v", updates)
	}
	saved, ok := updates[0][0].(block.URLBlock)
	if !ok {
		t.Fatalf("saved block type %T", updates[0][0])
	}
	want := u.Clone()
	want.PageDescription = "New description"
	if !reflect.DeepEqual(saved, want) {
		t.Fatalf("saved block:\n got %+v\nwant %+v", saved, want)
	}
	v := c.View()
	if v.Draft != nil || v.State != Saved {
		t.Fatalf("expected cleared draft after save, got %+v", v)
	}
}

func TestSave_FailureKeepsDraft(t *testing.T) {
	h := host.NewMemory(sampleURLBlock())
	c := New(h, nil, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("edit: %v", err)
	}
	h.FailUpdates("document is read-only")
	err := c.Save(context.Background())
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
	v := c.View()
	if v.Draft == nil || v.State != Editing {
		t.Fatalf("draft should stay open, got %+v", v)
	}
	if v.Message != "Failed to save URL block: document is read-only" {
		t.Fatalf("message = %q", v.Message)
	}
}

func TestCancel_DiscardsPendingSuggestions(t *testing.T) {
	u := sampleURLBlock()
	s := &fakeSuggester{
		images:  map[string][]string{u.URL: {"https://late.test/img.png"}},
		gate:    make(chan struct{}),
		started: make(chan string, 1),
	}
	h := host.NewMemory(u)
	c := New(h, s, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("edit: %v", err)
	}
	<-s.started
	c.Cancel()
	close(s.gate)
	c.Wait()

	v := c.View()
	if v.Draft != nil || len(v.Candidates) != 0 || v.State != Cancelled {
		t.Fatalf("stale suggestions applied after cancel: %+v", v)
	}
	if len(h.Updates()) != 0 {
		t.Fatalf("cancel must not write to host")
	}
}

func TestNewSelection_DiscardsStaleFetchForSameURL(t *testing.T) {
	u := sampleURLBlock()
	gate1 := make(chan struct{})
	s := &fakeSuggester{
		images:  map[string][]string{u.URL: {"https://example.com/stale.png"}},
		gate:    gate1,
		started: make(chan string, 2),
	}
	c := New(host.NewMemory(u), s, Options{})
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("first edit: %v", err)
	}
	<-s.started

	s.mu.Lock()
	s.gate = nil
	s.images = map[string][]string{u.URL: {"https://example.com/fresh.png"}}
	s.mu.Unlock()
	if err := c.EditSelected(context.Background()); err != nil {
		t.Fatalf("second edit: %v", err)
	}
	<-s.started
	// let the second fetch land first, then release the first one
	deadline := time.Now().Add(2 * time.Second)
	for len(c.View().Candidates) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(gate1)
	c.Wait()

	got := c.View().Candidates
	if len(got) != 1 || got[0] != "https://example.com/fresh.png" {
		t.Fatalf("candidates = %v, want fresh only", got)
	}
}

type scriptedThemes struct {
	mu    sync.Mutex
	subs  int
	feeds [][]host.ColorScheme
}

func (s *scriptedThemes) Themes(ctx context.Context) (<-chan host.ColorScheme, error) {
	s.mu.Lock()
	idx := s.subs
	s.subs++
	s.mu.Unlock()
	ch := make(chan host.ColorScheme)
	go func() {
		defer close(ch)
		if idx >= len(s.feeds) {
			<-ctx.Done()
			return
		}
		for _, v := range s.feeds[idx] {
			select {
			case ch <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func TestWatchTheme_ResubscribesAndTracksScheme(t *testing.T) {
	c := New(host.NewMemory(), nil, Options{ThemeRetry: time.Millisecond})
	src := &scriptedThemes{feeds: [][]host.ColorScheme{{host.Dark}, {host.Light, host.Dark}}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.WatchTheme(ctx, src) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		src.mu.Lock()
		subs := src.subs
		src.mu.Unlock()
		if subs >= 3 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !c.View().Dark {
		t.Fatalf("expected dark after final push")
	}
	if err := c.WatchTheme(ctx, src); !errors.Is(err, ErrAlreadyWatching) {
		t.Fatalf("expected ErrAlreadyWatching, got %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not stop")
	}
}
