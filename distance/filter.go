package distance

import (
	"sync"

	"github.com/foldmatch/foldmatch/template"
)

var (
	filterLock sync.RWMutex
	filters    = map[string][]string{}
)

// SetFilters replaces the process-wide filter configuration: for each
// metadata key, the list of accepted values. An empty list for a key is
// non-constraining.
func SetFilters(f map[string][]string) {
	filterLock.Lock()
	defer filterLock.Unlock()
	filters = make(map[string][]string, len(f))
	for k, v := range f {
		filters[k] = append([]string(nil), v...)
	}
}

func init() {
	Register("Filter", func(args map[string]string) (Distance, error) {
		return Filter{}, nil
	})
}

// Filter checks the target template's metadata against the process-wide
// filter configuration. The query template is not consulted.
type Filter struct{}

// Compare returns MinScore unless, for every constrained key, the
// target's value is present and among the accepted values.
func (Filter) Compare(target, query template.Template) float64 {
	filterLock.RLock()
	defer filterLock.RUnlock()
	for key, accepted := range filters {
		if len(accepted) == 0 {
			continue
		}
		value := target.Metadata.GetString(key, "")
		if value == "" {
			return MinScore
		}
		keep := false
		for _, a := range accepted {
			if value == a {
				keep = true
				break
			}
		}
		if !keep {
			return MinScore
		}
	}
	return 0
}
