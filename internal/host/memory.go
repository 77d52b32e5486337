package host

import (
	"context"
	"sync"

	"github.com/hyperifyio/urlpreview/internal/block"
)

// Memory is an in-process host holding a selection and a block store. It
// backs the development server and tests.
type Memory struct {
	mu           sync.Mutex
	selection    []block.Block
	selectionErr string
	updateErr    string
	updates      [][]block.Block
	selectCalls  int

	themeCh chan ColorScheme
	current ColorScheme
}

// NewMemory returns a host whose selection is blocks.
func NewMemory(blocks ...block.Block) *Memory {
	return &Memory{selection: blocks, current: Light}
}

// SetSelection replaces the selected blocks.
func (m *Memory) SetSelection(blocks ...block.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selection = blocks
}

// FailSelection makes Selection answer with a non-success status carrying
// msg. An empty msg restores normal answers.
func (m *Memory) FailSelection(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectionErr = msg
}

// FailUpdates makes UpdateBlocks answer with a non-success status.
func (m *Memory) FailUpdates(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = msg
}

func (m *Memory) Selection(_ context.Context) (SelectionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectCalls++
	if m.selectionErr != "" {
		return SelectionResponse{Status: "error", Message: m.selectionErr}, nil
	}
	return SelectionResponse{Status: StatusSuccess, Data: append([]block.Block(nil), m.selection...)}, nil
}

// UpdateBlocks records the call and replaces selected blocks with the same id.
func (m *Memory) UpdateBlocks(_ context.Context, blocks []block.Block) (UpdateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != "" {
		return UpdateResponse{Status: "error", Message: m.updateErr}, nil
	}
	m.updates = append(m.updates, append([]block.Block(nil), blocks...))
	for _, b := range blocks {
		for i, cur := range m.selection {
			if cur.BlockID() == b.BlockID() {
				m.selection[i] = b
			}
		}
	}
	return UpdateResponse{Status: StatusSuccess}, nil
}

// Updates returns every successful UpdateBlocks call in order.
func (m *Memory) Updates() [][]block.Block {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]block.Block, len(m.updates))
	copy(out, m.updates)
	return out
}

// SelectionCalls returns how many times Selection was queried.
func (m *Memory) SelectionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectCalls
}

// Themes opens the single subscription. A new call closes the previous
// channel. The current scheme is delivered first.
func (m *Memory) Themes(ctx context.Context) (<-chan ColorScheme, error) {
	m.mu.Lock()
	if m.themeCh != nil {
		close(m.themeCh)
	}
	ch := make(chan ColorScheme, 1)
	ch <- m.current
	m.themeCh = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.themeCh == ch {
			close(ch)
			m.themeCh = nil
		}
	}()
	return ch, nil
}

// PushTheme delivers s to the active subscriber. A value the subscriber has
// not read yet is replaced, since only the latest scheme matters.
func (m *Memory) PushTheme(s ColorScheme) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	if m.themeCh == nil {
		return
	}
	select {
	case m.themeCh <- s:
	default:
		select {
		case <-m.themeCh:
		default:
		}
		select {
		case m.themeCh <- s:
		default:
		}
	}
}
