package template

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

func init() {
	// concrete metadata value types that cross the gob boundary
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(Point{})
	gob.Register([]interface{}(nil))
}

// ReadList loads a template list from the path, using the format
// specified by the file extension, which can be .json or .gob. The path
// may additionally have a .gz suffix.
func ReadList(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening template list %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		name = strings.TrimSuffix(name, ".gz")
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "decompressing %s", path)
		}
		defer gz.Close()
		r = gz
	}

	var list List
	switch {
	case strings.HasSuffix(name, ".json"):
		err = json.NewDecoder(r).Decode(&list)
	case strings.HasSuffix(name, ".gob"):
		err = gob.NewDecoder(r).Decode(&list)
	default:
		return nil, errors.Errorf("could not find decoder for %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding template list %s", path)
	}
	return list, nil
}

// WriteList writes a template list to the path, using the format
// specified by the file extension, which can be .json or .gob. The path
// may additionally have a .gz suffix.
func WriteList(path string, list List) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating template list %s", path)
	}

	closers := []io.Closer{f}
	var w io.Writer = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		name = strings.TrimSuffix(name, ".gz")
		gz := gzip.NewWriter(w)
		closers = append(closers, gz)
		w = gz
	}

	switch {
	case strings.HasSuffix(name, ".json"):
		err = json.NewEncoder(w).Encode(list)
	case strings.HasSuffix(name, ".gob"):
		err = gob.NewEncoder(w).Encode(list)
	default:
		err = errors.Errorf("could not find encoder for %s", path)
	}

	// close in reverse order
	for i := len(closers) - 1; i >= 0; i-- {
		if cerr := closers[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return errors.Wrapf(err, "writing template list %s", path)
}
