package transform

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/foldmatch/foldmatch/template"
	"github.com/pkg/errors"
)

func init() {
	Register("Centroid", func(args map[string]string) (Transform, error) {
		return &Centroid{}, nil
	})
}

// Centroid learns the mean payload vector of its training templates and
// projects templates by subtracting it. Templates with empty payloads
// are skipped during training.
type Centroid struct {
	Mean []float64
}

// Train computes the mean payload over the training set.
func (c *Centroid) Train(data template.List) error {
	var mean []float64
	var count int
	for i, t := range data {
		if len(t.Payload) == 0 {
			continue
		}
		if mean == nil {
			mean = make([]float64, len(t.Payload))
		}
		if len(t.Payload) != len(mean) {
			return errors.Errorf("template %d has payload length %d, want %d", i, len(t.Payload), len(mean))
		}
		for j, v := range t.Payload {
			mean[j] += v
		}
		count++
	}
	for j := range mean {
		mean[j] /= float64(count)
	}
	c.Mean = mean
	return nil
}

// Project subtracts the trained mean from the template's payload.
func (c *Centroid) Project(t template.Template) (template.Template, error) {
	if len(c.Mean) == 0 {
		return t, nil
	}
	if len(t.Payload) != len(c.Mean) {
		return template.Template{}, errors.Errorf("payload length %d does not match trained length %d", len(t.Payload), len(c.Mean))
	}
	out := t.Copy()
	for j := range out.Payload {
		out.Payload[j] -= c.Mean[j]
	}
	return out, nil
}

// Store writes the trained mean as a length-prefixed gob payload.
func (c *Centroid) Store(w io.Writer) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(c.Mean); err != nil {
		return errors.Wrapf(err, "encoding centroid")
	}
	if err := binary.Write(w, binary.BigEndian, int32(buf.Len())); err != nil {
		return errors.Wrapf(err, "writing centroid size")
	}
	_, err := w.Write(buf.Bytes())
	return errors.Wrapf(err, "writing centroid")
}

// Load reads a payload written by Store.
func (c *Centroid) Load(r io.Reader) error {
	var size int32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return errors.Wrapf(err, "reading centroid size")
	}
	if size < 0 {
		return errors.Errorf("invalid centroid size %d", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return errors.Wrapf(err, "reading centroid")
	}
	return errors.Wrapf(gob.NewDecoder(bytes.NewReader(buf)).Decode(&c.Mean), "decoding centroid")
}
