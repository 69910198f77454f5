package distance

import (
	"strconv"
	"strings"

	"github.com/foldmatch/foldmatch/template"
)

func init() {
	Register("Metadata", func(args map[string]string) (Distance, error) {
		var keys []string
		for _, k := range strings.Split(args["keys"], ";") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		return Metadata{Keys: keys}, nil
	})
}

// Metadata checks target metadata against query metadata for a fixed
// list of keys. A query value of the form "x,y" is an inclusive integer
// range the target value must fall in; otherwise the values must match
// exactly. Keys where either side is empty or the range is unparsable
// are non-constraining.
type Metadata struct {
	Keys []string
}

// Compare returns MinScore on the first constrained key that does not
// match, 0 otherwise.
func (d Metadata) Compare(target, query template.Template) float64 {
	for _, key := range d.Keys {
		targetValue := target.Metadata.GetString(key, "")
		queryValue := query.Metadata.GetString(key, "")

		// The query value may be stored as a 2-D point range.
		if queryValue == "" {
			if p, ok := query.Metadata.Point(key); ok {
				queryValue = template.FormatPoint(p)
			}
		}

		if targetValue == "" || queryValue == "" {
			continue
		}

		keep := false
		if r, ok := template.ParsePoint(queryValue); ok {
			value := int(r.X)
			upperBound := int(r.Y)
			for value <= upperBound {
				if targetValue == strconv.Itoa(value) {
					keep = true
					break
				}
				value++
			}
		} else if targetValue == queryValue {
			keep = true
		}

		if !keep {
			return MinScore
		}
	}
	return 0
}
