// Package distance implements metadata-driven comparison rules used to
// gate template comparisons during evaluation.
package distance

import (
	"math"
	"sync"

	"github.com/foldmatch/foldmatch/template"
	"github.com/pkg/errors"
)

// MinScore is the veto score: any comparison that must not count
// returns it. It is the most negative float32 so it composes with real
// similarity scores without overflowing float64 arithmetic.
const MinScore = -math.MaxFloat32

// Distance scores a target template against a query template. Higher
// is more similar; MinScore is a veto. Implementations are pure
// functions of their inputs.
type Distance interface {
	Compare(target, query template.Template) float64
}

// Factory constructs a distance from descriptor arguments.
type Factory func(args map[string]string) (Distance, error)

var (
	factoryLock sync.Mutex
	factories   = map[string]Factory{}
)

// Register registers a factory under a distance name.
func Register(name string, f Factory) {
	factoryLock.Lock()
	defer factoryLock.Unlock()
	factories[name] = f
}

// Make constructs a distance by name. Arguments may be nil.
func Make(name string, args map[string]string) (Distance, error) {
	factoryLock.Lock()
	f, ok := factories[name]
	factoryLock.Unlock()
	if !ok {
		return nil, errors.Errorf("no distance registered for %q", name)
	}
	d, err := f(args)
	return d, errors.Wrapf(err, "constructing distance %q", name)
}
