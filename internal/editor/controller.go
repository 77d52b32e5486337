package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/urlpreview/internal/block"
	"github.com/hyperifyio/urlpreview/internal/host"
	"github.com/hyperifyio/urlpreview/internal/suggest"
)

const (
	MsgNoneSelected     = "No URL blocks selected"
	MsgMultipleSelected = "Multiple URL blocks selected. Please select only one."
	msgSaveFailedPrefix = "Failed to save URL block: "
)

var (
	ErrSelectionFailed = errors.New("selection query failed")
	ErrNoDraft         = errors.New("no URL block is being edited")
	ErrSaveFailed      = errors.New("save failed")
	ErrNoCandidate     = errors.New("no such candidate image")
	ErrAlreadyWatching = errors.New("theme subscription already active")
)

// Suggester produces replacement candidates for a page. It never fails;
// an unreachable page yields empty suggestions.
type Suggester interface {
	Suggest(ctx context.Context, url string) suggest.Suggestions
}

// Options tune the controller.
type Options struct {
	// DevPlaceholder synthesizes a draft when nothing is selected. Local
	// development only.
	DevPlaceholder bool
	PlaceholderURL string
	// ThemeRetry is the pause before resubscribing to a closed theme
	// stream. Zero means two seconds.
	ThemeRetry time.Duration
}

// View is a snapshot of everything the panel renders.
type View struct {
	State                State           `json:"state"`
	Status               SelectionStatus `json:"status"`
	Message              string          `json:"message"`
	Draft                *block.URLBlock `json:"draft,omitempty"`
	Candidates           []string        `json:"candidates"`
	SuggestedTitle       string          `json:"suggestedTitle,omitempty"`
	SuggestedDescription string          `json:"suggestedDescription,omitempty"`
	Dark                 bool            `json:"dark"`
}

// Controller drives one editing session: query the host selection, hold a
// draft of the single selected URL block, fetch suggestions for it in the
// background, and write the draft back or drop it.
//
// Every draft gets a generation number. A suggestion result is applied only
// when its generation and URL still match the current draft, so a slow page
// never lands on a newer or cleared draft.
type Controller struct {
	host      host.Host
	suggester Suggester
	opts      Options

	mu          sync.Mutex
	state       State
	status      SelectionStatus
	message     string
	draft       *block.URLBlock
	candidates  []string
	suggested   suggest.Suggestions
	dark        bool
	gen         uint64
	cancelFetch context.CancelFunc
	watching    bool

	fetches sync.WaitGroup
}

// New returns an idle controller. s may be nil, in which case no
// suggestions are ever fetched.
func New(h host.Host, s Suggester, opts Options) *Controller {
	if opts.ThemeRetry <= 0 {
		opts.ThemeRetry = 2 * time.Second
	}
	if opts.PlaceholderURL == "" {
		opts.PlaceholderURL = "https://www.craft.do/"
	}
	return &Controller{host: h, suggester: s, opts: opts}
}

// EditSelected queries the host selection and starts editing when exactly
// one URL block is selected. Empty and ambiguous selections are reported
// through the view message. Only a failed host query returns an error.
func (c *Controller) EditSelected(ctx context.Context) error {
	c.mu.Lock()
	c.resetLocked()
	c.state = AwaitingSelection
	gen := c.gen
	c.mu.Unlock()

	resp, err := c.host.Selection(ctx)
	if err != nil {
		return c.fail(gen, err.Error(), fmt.Errorf("%w: %w", ErrSelectionFailed, err))
	}
	if !resp.OK() {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("host returned status %q", resp.Status)
		}
		return c.fail(gen, msg, fmt.Errorf("%w: %s", ErrSelectionFailed, msg))
	}

	urls := block.URLBlocks(resp.Data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// superseded by a newer query or a cancel
		return nil
	}
	switch len(urls) {
	case 0:
		if c.opts.DevPlaceholder {
			log.Debug().Msg("no url block selected; using placeholder draft")
			c.status = StatusNone
			c.startEditingLocked(c.placeholder())
			return nil
		}
		c.state = NoneFound
		c.status = StatusNone
		c.message = MsgNoneSelected
	case 1:
		c.state = SingleFound
		c.status = StatusSingle
		c.startEditingLocked(urls[0])
	default:
		c.state = MultipleFound
		c.status = StatusMultiple
		c.message = MsgMultipleSelected
	}
	log.Debug().Int("selected", len(resp.Data)).Int("url_blocks", len(urls)).Str("state", c.state.String()).Msg("selection handled")
	return nil
}

func (c *Controller) fail(gen uint64, msg string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.state = Failed
		c.status = StatusError
		c.message = msg
	}
	log.Warn().Err(err).Msg("selection query failed")
	return err
}

func (c *Controller) placeholder() block.URLBlock {
	return block.URLBlock{
		ID:              "placeholder",
		URL:             c.opts.PlaceholderURL,
		Title:           "Placeholder",
		PageDescription: "Local development draft",
	}
}

// startEditingLocked installs b as the draft and starts exactly one
// suggestion fetch for its URL.
func (c *Controller) startEditingLocked(b block.URLBlock) {
	d := b.Clone()
	c.draft = &d
	c.state = Editing
	c.candidates = nil
	c.suggested = suggest.Suggestions{}
	if c.suggester == nil || d.URL == "" {
		return
	}
	gen, url := c.gen, d.URL
	fctx, cancel := context.WithCancel(context.Background())
	c.cancelFetch = cancel
	c.fetches.Add(1)
	go func() {
		defer c.fetches.Done()
		defer cancel()
		s := c.suggester.Suggest(fctx, url)
		c.applySuggestions(gen, url, s)
	}()
}

func (c *Controller) applySuggestions(gen uint64, url string, s suggest.Suggestions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil || c.gen != gen || c.draft.URL != url {
		log.Debug().Str("url", url).Msg("discarding stale suggestions")
		return
	}
	c.candidates = append([]string{}, s.Images...)
	c.suggested = s
}

// Update merges p into the draft. Fields p leaves nil are retained.
func (c *Controller) Update(p block.Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return ErrNoDraft
	}
	d := c.draft.Apply(p)
	c.draft = &d
	return nil
}

// ChooseImage makes candidate i the draft image.
func (c *Controller) ChooseImage(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return ErrNoDraft
	}
	if i < 0 || i >= len(c.candidates) {
		return fmt.Errorf("%w: %d", ErrNoCandidate, i)
	}
	d := c.draft.Apply(block.Patch{ImageURL: block.String(c.candidates[i])})
	c.draft = &d
	return nil
}

// Save writes the whole draft back in one update. On failure the draft
// stays open and the reason is shown in the view message.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return ErrNoDraft
	}
	d := c.draft.Clone()
	gen := c.gen
	c.mu.Unlock()

	resp, err := c.host.UpdateBlocks(ctx, []block.Block{d})
	reason := ""
	switch {
	case err != nil:
		reason = err.Error()
	case !resp.OK():
		reason = resp.Message
		if reason == "" {
			reason = fmt.Sprintf("host returned status %q", resp.Status)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if reason != "" {
		if c.gen == gen {
			c.message = msgSaveFailedPrefix + reason
		}
		log.Warn().Str("block", d.ID).Str("reason", reason).Msg("save failed")
		return fmt.Errorf("%w: %s", ErrSaveFailed, reason)
	}
	if c.gen == gen {
		c.resetLocked()
		c.state = Saved
	}
	log.Info().Str("block", d.ID).Msg("url block saved")
	return nil
}

// Cancel drops the draft without writing to the host.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.state = Cancelled
}

// resetLocked clears the draft and invalidates any in-flight fetch.
func (c *Controller) resetLocked() {
	c.gen++
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.draft = nil
	c.candidates = nil
	c.suggested = suggest.Suggestions{}
	c.message = ""
	c.status = StatusUnknown
	c.state = Idle
}

// View returns a copy of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:                c.state,
		Status:               c.status,
		Message:              c.message,
		Candidates:           append([]string{}, c.candidates...),
		SuggestedTitle:       c.suggested.Title,
		SuggestedDescription: c.suggested.Description,
		Dark:                 c.dark,
	}
	if c.draft != nil {
		d := c.draft.Clone()
		v.Draft = &d
	}
	return v
}

// Wait blocks until every started suggestion fetch has returned.
func (c *Controller) Wait() {
	c.fetches.Wait()
}

// WatchTheme keeps the single theme subscription open until ctx ends,
// resubscribing whenever the stream closes or cannot be opened.
func (c *Controller) WatchTheme(ctx context.Context, src host.ThemeSource) error {
	c.mu.Lock()
	if c.watching {
		c.mu.Unlock()
		return ErrAlreadyWatching
	}
	c.watching = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.watching = false
		c.mu.Unlock()
	}()

	for {
		ch, err := src.Themes(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("theme subscription failed")
		} else {
			for s := range ch {
				c.setScheme(s)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.ThemeRetry):
		}
	}
}

func (c *Controller) setScheme(s host.ColorScheme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dark = s == host.Dark
}
