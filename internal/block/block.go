package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the host discriminant carried in every block's "type" field.
type Type string

const (
	TypeURL   Type = "urlBlock"
	TypeText  Type = "textBlock"
	TypeImage Type = "imageBlock"
)

// Block is a single host content block. The variant set is closed:
// URLBlock, TextBlock, ImageBlock and OtherBlock.
type Block interface {
	BlockType() Type
	BlockID() string
	isBlock()
}

// URLBlock is a link preview. Only Title, PageDescription and ImageURL are
// editable; ID, URL and everything kept in Extra pass through untouched.
type URLBlock struct {
	ID              string
	URL             string
	Title           string
	PageDescription string
	ImageURL        string
	// Extra holds every other host field verbatim (layout, indentation,
	// colors, parent ids, ...).
	Extra map[string]json.RawMessage

	// nulls names known fields the host sent as null. They are written
	// back as null until edited.
	nulls map[string]bool
}

func (URLBlock) BlockType() Type   { return TypeURL }
func (b URLBlock) BlockID() string { return b.ID }
func (URLBlock) isBlock()          {}

// Clone returns a copy that shares no mutable state with b.
func (b URLBlock) Clone() URLBlock {
	out := b
	if b.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(b.Extra))
		for k, v := range b.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	if b.nulls != nil {
		out.nulls = make(map[string]bool, len(b.nulls))
		for k := range b.nulls {
			out.nulls[k] = true
		}
	}
	return out
}

// TextBlock is a host text block. Its content is not interpreted.
type TextBlock struct {
	ID  string
	Raw json.RawMessage
}

func (TextBlock) BlockType() Type   { return TypeText }
func (b TextBlock) BlockID() string { return b.ID }
func (TextBlock) isBlock()          {}

// ImageBlock is a host image block.
type ImageBlock struct {
	ID  string
	URL string
	Raw json.RawMessage
}

func (ImageBlock) BlockType() Type   { return TypeImage }
func (b ImageBlock) BlockID() string { return b.ID }
func (ImageBlock) isBlock()          {}

// OtherBlock is any block whose type is not modeled, including blocks with
// no type at all.
type OtherBlock struct {
	ID   string
	Type Type
	Raw  json.RawMessage
}

func (b OtherBlock) BlockType() Type { return b.Type }
func (b OtherBlock) BlockID() string { return b.ID }
func (OtherBlock) isBlock()          {}

var ErrNotURLBlock = errors.New("block: not a urlBlock")

var urlBlockKeys = map[string]struct{}{
	"id": {}, "type": {}, "url": {}, "title": {}, "pageDescription": {}, "imageUrl": {},
}

func (b URLBlock) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.Extra)+6)
	for k, v := range b.Extra {
		if _, known := urlBlockKeys[k]; known {
			continue
		}
		out[k] = v
	}
	out["type"] = TypeURL
	for k, v := range map[string]string{
		"id":              b.ID,
		"url":             b.URL,
		"title":           b.Title,
		"pageDescription": b.PageDescription,
		"imageUrl":        b.ImageURL,
	} {
		if v == "" && b.nulls[k] {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func (b *URLBlock) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var typ Type
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &typ); err != nil {
			return fmt.Errorf("decode type: %w", err)
		}
	}
	if typ != TypeURL {
		return ErrNotURLBlock
	}
	var out URLBlock
	targets := map[string]*string{
		"id":              &out.ID,
		"url":             &out.URL,
		"title":           &out.Title,
		"pageDescription": &out.PageDescription,
		"imageUrl":        &out.ImageURL,
	}
	for k, v := range fields {
		if k == "type" {
			continue
		}
		if dst, ok := targets[k]; ok {
			if isNull(v) {
				if out.nulls == nil {
					out.nulls = make(map[string]bool)
				}
				out.nulls[k] = true
				continue
			}
			if err := json.Unmarshal(v, dst); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[k] = append(json.RawMessage(nil), v...)
	}
	*b = out
	return nil
}

func (b TextBlock) MarshalJSON() ([]byte, error)  { return rawOrStub(b.Raw, b.ID, TypeText) }
func (b ImageBlock) MarshalJSON() ([]byte, error) { return rawOrStub(b.Raw, b.ID, TypeImage) }
func (b OtherBlock) MarshalJSON() ([]byte, error) { return rawOrStub(b.Raw, b.ID, b.Type) }

func rawOrStub(raw json.RawMessage, id string, typ Type) ([]byte, error) {
	if len(raw) > 0 {
		return raw, nil
	}
	stub := map[string]any{"id": id}
	if typ != "" {
		stub["type"] = typ
	}
	return json.Marshal(stub)
}

// header is the part of every block needed to pick a variant. Fields stay
// raw so a malformed id or type demotes the block instead of failing the
// whole selection.
type header struct {
	ID   json.RawMessage `json:"id"`
	Type json.RawMessage `json:"type"`
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Decode parses one host block into its variant. Blocks whose type is
// missing or not a string become OtherBlock.
func Decode(data []byte) (Block, error) {
	var fields header
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	h := struct {
		ID   string
		Type Type
	}{rawString(fields.ID), Type(rawString(fields.Type))}
	raw := append(json.RawMessage(nil), data...)
	switch h.Type {
	case TypeURL:
		var b URLBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode urlBlock %q: %w", h.ID, err)
		}
		return b, nil
	case TypeText:
		return TextBlock{ID: h.ID, Raw: raw}, nil
	case TypeImage:
		var img struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &img); err != nil {
			// a non-string url is kept only in Raw
			img.URL = ""
		}
		return ImageBlock{ID: h.ID, URL: img.URL, Raw: raw}, nil
	default:
		return OtherBlock{ID: h.ID, Type: h.Type, Raw: raw}, nil
	}
}

// DecodeList parses a JSON array of host blocks.
func DecodeList(data []byte) ([]Block, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode block list: %w", err)
	}
	out := make([]Block, 0, len(items))
	for i, item := range items {
		if isNull(item) {
			continue
		}
		b, err := Decode(item)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// URLBlocks keeps the URL blocks of a heterogeneous selection, in order.
func URLBlocks(blocks []Block) []URLBlock {
	var out []URLBlock
	for _, b := range blocks {
		switch v := b.(type) {
		case URLBlock:
			out = append(out, v)
		case *URLBlock:
			if v != nil {
				out = append(out, *v)
			}
		case TextBlock, ImageBlock, OtherBlock, nil:
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
