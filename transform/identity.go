package transform

import (
	"io"

	"github.com/foldmatch/foldmatch/template"
)

func init() {
	Register("Identity", func(args map[string]string) (Transform, error) {
		return Identity{}, nil
	})
}

// Identity passes templates through unchanged. It is the default
// sub-model descriptor and carries no trained state.
type Identity struct{}

// Train is a no-op.
func (Identity) Train(data template.List) error { return nil }

// Project returns the template unchanged.
func (Identity) Project(t template.Template) (template.Template, error) {
	return t, nil
}

// Store writes nothing.
func (Identity) Store(w io.Writer) error { return nil }

// Load reads nothing.
func (Identity) Load(r io.Reader) error { return nil }
