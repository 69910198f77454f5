package distance

import "github.com/foldmatch/foldmatch/template"

func init() {
	Register("CrossValidate", func(args map[string]string) (Distance, error) {
		return CrossValidate{}, nil
	})
}

// CrossValidate vetoes comparisons between templates from different
// partitions, preventing cross-partition leakage in evaluation. It is
// layered atop a real similarity score elsewhere.
type CrossValidate struct{}

// Compare returns MinScore if the partitions differ, 0 otherwise.
func (CrossValidate) Compare(target, query template.Template) float64 {
	const key = "Partition"
	if target.Metadata.GetInt(key, 0) != query.Metadata.GetInt(key, 0) {
		return MinScore
	}
	return 0
}
