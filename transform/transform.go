// Package transform implements trainable template transforms and the
// descriptor registry used to construct them by name.
package transform

import (
	"io"
	"strings"
	"sync"

	"github.com/foldmatch/foldmatch/template"
	"github.com/pkg/errors"
)

// Transform is a trainable, projectable, serializable model unit.
// Store and Load must be self-delimiting: Load reads exactly the bytes
// the matching Store wrote, so transforms can be concatenated on one
// stream.
type Transform interface {
	// Train fits the transform to the given templates.
	Train(data template.List) error
	// Project runs the trained transform on a single template.
	Project(t template.Template) (template.Template, error)
	// Store writes the trained state to w.
	Store(w io.Writer) error
	// Load reads trained state previously written by Store.
	Load(r io.Reader) error
}

// Factory constructs a transform from descriptor arguments.
type Factory func(args map[string]string) (Transform, error)

var (
	factoryLock sync.Mutex
	factories   = map[string]Factory{}
)

// Register registers a factory under a transform name. Registration
// normally happens from init functions.
func Register(name string, f Factory) {
	factoryLock.Lock()
	defer factoryLock.Unlock()
	factories[name] = f
}

func getFactory(name string) (Factory, bool) {
	factoryLock.Lock()
	defer factoryLock.Unlock()
	f, ok := factories[name]
	return f, ok
}

// Make constructs a transform from a descriptor string such as
// "Centroid" or "CrossValidate(description=Centroid,leaveOneOut=true)".
func Make(descriptor string) (Transform, error) {
	name, args, err := parseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	factory, ok := getFactory(name)
	if !ok {
		return nil, errors.Errorf("no transform registered for %q", name)
	}
	t, err := factory(args)
	return t, errors.Wrapf(err, "constructing %q", descriptor)
}

// parseDescriptor splits "Name(k=v,k=v)" into its name and arguments.
// Argument values may themselves be parenthesized descriptors; commas
// and equals signs inside nested parentheses are left alone.
func parseDescriptor(descriptor string) (string, map[string]string, error) {
	descriptor = strings.TrimSpace(descriptor)
	open := strings.IndexByte(descriptor, '(')
	if open < 0 {
		if descriptor == "" {
			return "", nil, errors.Errorf("empty transform descriptor")
		}
		return descriptor, nil, nil
	}
	if !strings.HasSuffix(descriptor, ")") {
		return "", nil, errors.Errorf("unbalanced parentheses in descriptor %q", descriptor)
	}
	name := strings.TrimSpace(descriptor[:open])
	if name == "" {
		return "", nil, errors.Errorf("missing transform name in descriptor %q", descriptor)
	}

	args := map[string]string{}
	inner := descriptor[open+1 : len(descriptor)-1]
	depth := 0
	start := 0
	for i := 0; i <= len(inner); i++ {
		if i < len(inner) {
			switch inner[i] {
			case '(':
				depth++
				continue
			case ')':
				depth--
				continue
			}
			if inner[i] != ',' || depth != 0 {
				continue
			}
		}
		part := strings.TrimSpace(inner[start:i])
		start = i + 1
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return "", nil, errors.Errorf("malformed argument %q in descriptor %q", part, descriptor)
		}
		args[strings.TrimSpace(part[:eq])] = strings.TrimSpace(part[eq+1:])
	}
	if depth != 0 {
		return "", nil, errors.Errorf("unbalanced parentheses in descriptor %q", descriptor)
	}
	return name, args, nil
}
