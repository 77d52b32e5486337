// Package host defines what the editor needs from the containing document
// application: reading the current selection, writing blocks back, and a
// push stream of the color scheme.
package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperifyio/urlpreview/internal/block"
)

// StatusSuccess is the only status value that means a host call succeeded.
const StatusSuccess = "success"

// SelectionResponse is the host's answer to a selection query.
type SelectionResponse struct {
	Status  string
	Message string
	Data    []block.Block
}

// OK reports whether the host answered with a success status.
func (r SelectionResponse) OK() bool { return r.Status == StatusSuccess }

func (r *SelectionResponse) UnmarshalJSON(b []byte) error {
	var wire struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	out := SelectionResponse{Status: wire.Status, Message: wire.Message}
	if len(wire.Data) > 0 && !isNullJSON(wire.Data) {
		blocks, err := block.DecodeList(wire.Data)
		if err != nil {
			return fmt.Errorf("selection data: %w", err)
		}
		out.Data = blocks
	}
	*r = out
	return nil
}

func (r SelectionResponse) MarshalJSON() ([]byte, error) {
	data := r.Data
	if data == nil {
		data = []block.Block{}
	}
	return json.Marshal(struct {
		Status  string        `json:"status"`
		Message string        `json:"message,omitempty"`
		Data    []block.Block `json:"data"`
	}{r.Status, r.Message, data})
}

// UpdateResponse is the host's answer to a block update.
type UpdateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the host answered with a success status.
func (r UpdateResponse) OK() bool { return r.Status == StatusSuccess }

// Host is the block editor and data API of the containing application.
type Host interface {
	Selection(ctx context.Context) (SelectionResponse, error)
	UpdateBlocks(ctx context.Context, blocks []block.Block) (UpdateResponse, error)
}

// ColorScheme is the host's light/dark theme.
type ColorScheme string

const (
	Light ColorScheme = "light"
	Dark  ColorScheme = "dark"
)

// ThemeSource pushes color scheme changes. The returned channel stays open
// until ctx ends or the source goes away; callers may subscribe again after
// that.
type ThemeSource interface {
	Themes(ctx context.Context) (<-chan ColorScheme, error)
}

// Env is the host environment message carrying the color scheme.
type Env struct {
	ColorScheme ColorScheme `json:"colorScheme"`
}

func isNullJSON(b json.RawMessage) bool {
	return string(b) == "null"
}
