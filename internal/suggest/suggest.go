package suggest

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/urlpreview/internal/extract"
	"github.com/hyperifyio/urlpreview/internal/fetch"
)

// Suggestions are the replacement candidates found for one page.
type Suggestions struct {
	URL         string
	Images      []string
	Title       string
	Description string
}

// Fetcher retrieves a page as decoded HTML.
type Fetcher interface {
	Get(ctx context.Context, url string) (fetch.Page, error)
}

// Service runs the fetch step for the editor. Every failure becomes an
// empty Suggestions value; nothing is returned to the caller as an error.
type Service struct {
	Fetcher   Fetcher
	Extractor extract.Extractor
	Metrics   *Metrics
}

// Suggest fetches url and extracts candidate images and metadata.
func (s *Service) Suggest(ctx context.Context, url string) Suggestions {
	out := Suggestions{URL: url, Images: []string{}}
	if s == nil || s.Fetcher == nil {
		return out
	}
	start := time.Now()
	page, err := s.Fetcher.Get(ctx, url)
	if err != nil {
		result := resultError
		if errors.Is(err, fetch.ErrNotHTML) {
			result = resultNotHTML
		}
		s.Metrics.observe(result, time.Since(start))
		log.Debug().Err(err).Str("url", url).Msg("suggestion fetch failed")
		return out
	}
	ex := s.Extractor
	if ex == nil {
		ex = extract.HeuristicExtractor{}
	}
	p := ex.Extract(page.Body, url)
	if p.Images != nil {
		out.Images = p.Images
	}
	out.Title = p.Title
	out.Description = p.Description
	s.Metrics.observe(resultOK, time.Since(start))
	log.Debug().Str("url", url).Int("images", len(out.Images)).Bool("cached", page.FromCache).Msg("suggestions ready")
	return out
}

const (
	resultOK      = "ok"
	resultError   = "error"
	resultNotHTML = "not_html"
)

// Metrics counts suggestion fetches by outcome.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the suggestion collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urlpreview",
			Subsystem: "suggest",
			Name:      "fetches_total",
			Help:      "Suggestion page fetches by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "urlpreview",
			Subsystem: "suggest",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching and extracting a suggestion page.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.duration)
	}
	return m
}

func (m *Metrics) observe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}
