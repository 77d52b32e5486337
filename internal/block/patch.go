package block

// Patch is a partial edit of a URL block. Nil fields leave the draft value
// in place. Only the three editable fields can be targeted.
type Patch struct {
	Title           *string `json:"title,omitempty"`
	PageDescription *string `json:"pageDescription,omitempty"`
	ImageURL        *string `json:"imageUrl,omitempty"`
}

// String returns a pointer to s for building patches.
func String(s string) *string { return &s }

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.PageDescription == nil && p.ImageURL == nil
}

// Apply returns a copy of b with the fields set in p replaced.
func (b URLBlock) Apply(p Patch) URLBlock {
	out := b.Clone()
	if p.Title != nil {
		out.Title = *p.Title
		delete(out.nulls, "title")
	}
	if p.PageDescription != nil {
		out.PageDescription = *p.PageDescription
		delete(out.nulls, "pageDescription")
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
		delete(out.nulls, "imageUrl")
	}
	return out
}
