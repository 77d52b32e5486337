package extract

import (
	"net/url"
	"reflect"
	"strings"
	"testing"
)

func TestImages_EmptyWhenNoCandidates(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>Plain</title><meta name="description" content="nothing to see"></head>
      <body><p>No pictures here.</p></body>
    </html>`

	got := Images(html, "https://example.com/page")
	if got == nil {
		t.Fatalf("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Fatalf("expected no images, got %v", got)
	}
}

func TestImages_OpenGraphFirstThenInline(t *testing.T) {
	html := `<html><head>
      <meta property="og:image" content="https://cdn.example.com/og.jpg">
    </head><body><img src="/pic.png"></body></html>`

	got := Images(html, "https://example.com/page")
	want := []string{"https://cdn.example.com/og.jpg", "https://example.com/pic.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestImages_PriorityOrder(t *testing.T) {
	html := `<html><head>
      <meta name="twitter:image" content="https://t.example.com/card.png">
      <meta property="og:image" content="https://o.example.com/og.png">
      <meta property="og:image" content="https://o.example.com/second.png">
    </head><body>
      <img src="https://example.com/1.png">
      <img alt="no source">
      <img src="https://example.com/2.png">
    </body></html>`

	got := Images(html, "https://example.com/")
	want := []string{
		"https://o.example.com/og.png",
		"https://t.example.com/card.png",
		"https://example.com/1.png",
		"https://example.com/2.png",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestImages_DropsDataURIs(t *testing.T) {
	html := `<html><head>
      <meta property="og:image" content="data:image/png;base64,iVBORw0KGgo=">
    </head><body>
      <img src="data:image/png;base64,AAAA">
      <img src="/real.png">
      <img src="DATA:image/gif;base64,R0lGOD">
    </body></html>`

	got := Images(html, "https://example.com/page")
	for _, u := range got {
		if strings.HasPrefix(strings.ToLower(u), "data:") {
			t.Fatalf("data uri leaked into output: %v", got)
		}
	}
	if len(got) != 1 || got[0] != "https://example.com/real.png" {
		t.Fatalf("unexpected output: %v", got)
	}
}

func TestImages_DotSlashDropsLeadingDot(t *testing.T) {
	got := Images(`<img src="./a.jpg">`, "http://x.test/dir/")
	if len(got) != 1 || got[0] != "http://x.test/a.jpg" {
		t.Fatalf("got %v, want [http://x.test/a.jpg]", got)
	}
}

func TestImages_KeepsDuplicates(t *testing.T) {
	html := `<html><head><meta property="og:image" content="https://example.com/a.png"></head>
    <body><img src="https://example.com/a.png"></body></html>`
	got := Images(html, "https://example.com/")
	if len(got) != 2 || got[0] != got[1] {
		t.Fatalf("expected duplicate entries, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	base, _ := url.Parse("https://example.com/blog/post.html")
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"/img/a.png", "https://example.com/img/a.png", true},
		{"./a.png", "https://example.com/a.png", true},
		{"//cdn.example.net/a.png", "https://cdn.example.net/a.png", true},
		{"http://other.test/a.png", "http://other.test/a.png", true},
		{"a.png", "https://example.com/blog/a.png", true},
		{"../a.png", "https://example.com/a.png", true},
		{"  /spaced.png  ", "https://example.com/spaced.png", true},
		{"data:image/svg+xml;utf8,<svg/>", "", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, ok := Normalize(tc.raw, base)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("Normalize(%q) = %q, %v; want %q, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalize_NoBasePassesThrough(t *testing.T) {
	got := Images(`<img src="/a.png"><img src="b.png">`, "not a url")
	want := []string{"/a.png", "b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestImages_IncludesNoscriptImages(t *testing.T) {
	html := `<html><body>
      <noscript><img src="/real.png"></noscript>
      <img src="/lazy.gif">
    </body></html>`

	got := Images(html, "https://example.com/p")
	want := []string{"https://example.com/real.png", "https://example.com/lazy.gif"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
