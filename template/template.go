package template

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	spooky "github.com/dgryski/go-spooky"
)

// A Point is a 2-D metadata value. String metadata of the form "x,y"
// parses to a Point, which is how inclusive numeric ranges are encoded.
type Point struct {
	X float64
	Y float64
}

// Metadata maps named keys to loosely typed values attached to a Template.
// Values arriving from JSON are strings and float64s; values set in code
// may also be ints and Points. The typed getters below normalize across
// those representations.
type Metadata map[string]interface{}

// GetInt returns the integer value for key, or def if the key is absent
// or not convertible to an integer.
func (m Metadata) GetInt(key string, def int) int {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch v := v.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetString returns the string value for key, or def if the key is absent.
// Numeric values are formatted in their decimal form.
func (m Metadata) GetString(key string, def string) string {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch v := v.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return def
}

// Point returns the 2-D point value for key. The second return value
// reports whether the key held a point (or something parsable as one).
func (m Metadata) Point(key string) (Point, bool) {
	v, ok := m[key]
	if !ok {
		return Point{}, false
	}
	switch v := v.(type) {
	case Point:
		return v, true
	case [2]float64:
		return Point{v[0], v[1]}, true
	case []float64:
		if len(v) == 2 {
			return Point{v[0], v[1]}, true
		}
	case []interface{}:
		if len(v) == 2 {
			x, xok := v[0].(float64)
			y, yok := v[1].(float64)
			if xok && yok {
				return Point{x, y}, true
			}
		}
	case string:
		return ParsePoint(v)
	}
	return Point{}, false
}

// GetPoint returns the point value for key, or def if absent or unparsable.
func (m Metadata) GetPoint(key string, def Point) Point {
	if p, ok := m.Point(key); ok {
		return p
	}
	return def
}

// ParsePoint parses "x,y" (optionally parenthesized) into a Point.
func ParsePoint(s string) (Point, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, false
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, false
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, false
	}
	return Point{x, y}, true
}

// FormatPoint renders a Point in the same "x,y" form ParsePoint accepts.
func FormatPoint(p Point) string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64)
}

// A Template is one labeled sample: an opaque payload vector plus the
// metadata describing it (at minimum "Partition" and, for subject-wise
// exclusion, "Subject").
type Template struct {
	Metadata Metadata  `json:"metadata"`
	Payload  []float64 `json:"payload"`
}

// Copy returns a template with its own metadata map and payload slice.
func (t Template) Copy() Template {
	c := Template{
		Metadata: make(Metadata, len(t.Metadata)),
		Payload:  append([]float64(nil), t.Payload...),
	}
	for k, v := range t.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// Hash returns a content hash over the payload and metadata, suitable
// for duplicate detection. Metadata keys are visited in sorted order so
// the hash is stable across map iteration order.
func (t Template) Hash() uint64 {
	var buf bytes.Buffer
	keys := make([]string, 0, len(t.Metadata))
	for k := range t.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s=%v;", k, t.Metadata[k])
	}
	binary.Write(&buf, binary.BigEndian, t.Payload)
	return spooky.Hash64(buf.Bytes())
}

// List is an ordered sequence of templates. Order matters for
// subject-wise exclusion, which rotates through a subject's templates
// by position.
type List []Template

// FindIndices returns, in order, the indices of templates whose string
// value for key equals value.
func (l List) FindIndices(key, value string) []int {
	var indices []int
	for i, t := range l {
		if t.Metadata.GetString(key, "") == value {
			indices = append(indices, i)
		}
	}
	return indices
}

// Without returns a copy of the list with the given indices removed.
// Indices are removed highest first so earlier removals do not shift
// later ones; duplicates and out-of-range indices are ignored.
func (l List) Without(indices []int) List {
	out := append(List(nil), l...)
	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	last := -1
	for _, i := range sorted {
		if i == last || i < 0 || i >= len(out) {
			continue
		}
		out = append(out[:i], out[i+1:]...)
		last = i
	}
	return out
}

// Dedupe returns the list with exact duplicate templates (by content
// hash) removed, keeping first occurrences.
func (l List) Dedupe() List {
	seen := make(map[uint64]bool, len(l))
	out := make(List, 0, len(l))
	for _, t := range l {
		h := t.Hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, t)
	}
	return out
}
