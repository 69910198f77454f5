// Package modelfile persists trained transforms to disk. A model file
// is the transform's descriptor followed by its serialized state in a
// snappy-compressed stream, so a file can be reopened knowing nothing
// but its path.
package modelfile

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/foldmatch/foldmatch/transform"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// descriptors are short configuration strings, not payloads
const maxDescriptorLen = 1 << 16

// Save writes the transform and the descriptor that reconstructs it to
// the given path.
func Save(path, descriptor string, t transform.Transform) (err error) {
	if len(descriptor) == 0 || len(descriptor) > maxDescriptorLen {
		return errors.Errorf("invalid descriptor length %d", len(descriptor))
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating model file %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing model file %s", path)
		}
	}()

	if err := binary.Write(f, binary.BigEndian, int32(len(descriptor))); err != nil {
		return errors.Wrapf(err, "writing descriptor size")
	}
	if _, err := io.WriteString(f, descriptor); err != nil {
		return errors.Wrapf(err, "writing descriptor")
	}

	w := snappy.NewBufferedWriter(f)
	if err := t.Store(w); err != nil {
		return errors.Wrapf(err, "storing model to %s", path)
	}
	return errors.Wrapf(w.Close(), "flushing model to %s", path)
}

// Load reopens a model file: it reconstructs the transform from the
// stored descriptor, then loads the serialized state into it. It
// returns the transform and the descriptor it was built from.
func Load(path string) (transform.Transform, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "opening model file %s", path)
	}
	defer f.Close()

	var size int32
	if err := binary.Read(f, binary.BigEndian, &size); err != nil {
		return nil, "", errors.Wrapf(err, "reading descriptor size")
	}
	if size <= 0 || size > maxDescriptorLen {
		return nil, "", errors.Errorf("invalid descriptor length %d in %s", size, path)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, "", errors.Wrapf(err, "reading descriptor")
	}
	descriptor := string(buf)

	t, err := transform.Make(descriptor)
	if err != nil {
		return nil, "", err
	}
	if err := t.Load(snappy.NewReader(f)); err != nil {
		return nil, "", errors.Wrapf(err, "loading model from %s", path)
	}
	return t, descriptor, nil
}
