// Package codec encodes window pages for tools and sidecar files.
//
// Encoded pages are not part of the window binary layout; they are a
// convenience view for humans and scripts.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Page is the encoded form of one filled window.
type Page struct {
	Window    string   `json:"window"`
	StartPos  int      `json:"start_pos"`
	TotalRows int      `json:"total_rows"`
	Exhausted bool     `json:"exhausted"`
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows"`
}

// EncodePage encodes p with c, or with Default when c is nil.
func EncodePage(c Codec, p *Page) ([]byte, error) {
	if c == nil {
		c = Default
	}
	if p.Rows == nil {
		p.Rows = [][]any{}
	}
	b, err := c.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("codec %s: encode page: %w", c.Name(), err)
	}
	return b, nil
}
