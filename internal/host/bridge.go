package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/urlpreview/internal/block"
)

// Bridge talks to a host bridge over HTTP:
//
//	GET  /selection  -> {"status":"success","data":[...blocks]}
//	POST /blocks     <- [...blocks]  -> {"status":"success"}
//	GET  /env        websocket pushing {"colorScheme":"dark"}
type Bridge struct {
	BaseURL string

	client *resty.Client
	dialer *websocket.Dialer
}

// NewBridge returns a bridge client rooted at baseURL. It makes one attempt
// per call; the editor owns the failure handling.
func NewBridge(baseURL string, timeout time.Duration) *Bridge {
	base := strings.TrimRight(baseURL, "/")
	c := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "urlpreview-bridge/1.0")
	return &Bridge{
		BaseURL: base,
		client:  c,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

func (b *Bridge) Selection(ctx context.Context) (SelectionResponse, error) {
	resp, err := b.client.R().SetContext(ctx).Get("/selection")
	if err != nil {
		return SelectionResponse{}, fmt.Errorf("selection: %w", err)
	}
	var out SelectionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		if resp.IsError() {
			return SelectionResponse{}, fmt.Errorf("selection: http %d", resp.StatusCode())
		}
		return SelectionResponse{}, fmt.Errorf("selection: decode: %w", err)
	}
	return out, nil
}

func (b *Bridge) UpdateBlocks(ctx context.Context, blocks []block.Block) (UpdateResponse, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(blocks).
		Post("/blocks")
	if err != nil {
		return UpdateResponse{}, fmt.Errorf("update blocks: %w", err)
	}
	var out UpdateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		if resp.IsError() {
			return UpdateResponse{}, fmt.Errorf("update blocks: http %d", resp.StatusCode())
		}
		return UpdateResponse{}, fmt.Errorf("update blocks: decode: %w", err)
	}
	return out, nil
}

// Themes dials the environment websocket and streams color schemes until ctx
// ends or the connection drops.
func (b *Bridge) Themes(ctx context.Context) (<-chan ColorScheme, error) {
	u, err := wsURL(b.BaseURL, "/env")
	if err != nil {
		return nil, err
	}
	conn, _, err := b.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial env: %w", err)
	}
	ch := make(chan ColorScheme)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = conn.Close()
	}()
	go func() {
		defer close(ch)
		defer close(done)
		for {
			var env Env
			if err := conn.ReadJSON(&env); err != nil {
				if ctx.Err() == nil {
					log.Debug().Err(err).Msg("env stream closed")
				}
				return
			}
			if env.ColorScheme == "" {
				continue
			}
			select {
			case ch <- env.ColorScheme:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func wsURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bridge url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("bridge url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
