package transform

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/foldmatch/foldmatch/template"
	"github.com/foldmatch/foldmatch/workerpool"
	"github.com/pkg/errors"
)

func init() {
	Register("CrossValidate", func(args map[string]string) (Transform, error) {
		description := args["description"]
		if description == "" {
			description = "Identity"
		}
		var leaveOneOut bool
		if v, ok := args["leaveOneOut"]; ok {
			var err error
			leaveOneOut, err = strconv.ParseBool(v)
			if err != nil {
				return nil, errors.Errorf("invalid leaveOneOut value %q", v)
			}
		}
		return NewCrossValidate(description, leaveOneOut), nil
	})
}

// CrossValidate trains one sub-model per partition, each on every other
// partition's templates, and routes each template to the sub-model for
// its own partition at projection time. Partition indices come from the
// "Partition" metadata key (default 0).
//
// Train and Load mutate the ensemble and must not run concurrently with
// Project or Store; that exclusion is the caller's responsibility.
type CrossValidate struct {
	// Description is the sub-model descriptor used to instantiate
	// ensemble slots.
	Description string
	// LeaveOneOut selects subject-wise rotating exclusion instead of
	// excluding by partition membership.
	LeaveOneOut bool

	transforms []Transform
}

// NewCrossValidate returns an untrained cross-validation ensemble whose
// sub-models are built from the given descriptor.
func NewCrossValidate(description string, leaveOneOut bool) *CrossValidate {
	return &CrossValidate{Description: description, LeaveOneOut: leaveOneOut}
}

// Size returns the number of ensemble slots.
func (cv *CrossValidate) Size() int {
	return len(cv.transforms)
}

// partitions reads each template's partition index and returns them
// alongside the partition count, which is one more than the largest
// index seen. An empty list yields a single partition.
func partitions(data template.List) ([]int, int) {
	numPartitions := 1
	parts := make([]int, 0, len(data))
	for _, t := range data {
		p := t.Metadata.GetInt("Partition", 0)
		parts = append(parts, p)
		if p+1 > numPartitions {
			numPartitions = p + 1
		}
	}
	return parts, numPartitions
}

// exclusions returns the template indices to withhold from partition
// i's training set. Standard policy removes the templates belonging to
// partition i. Leave-one-out instead removes, per subject, the template
// at rotating offset i within that subject's own templates, and only
// once i exceeds the subject's template count; partition membership is
// ignored entirely.
func exclusions(data template.List, parts []int, i int, leaveOneOut bool) []int {
	var removed []int
	if !leaveOneOut {
		for j, p := range parts {
			if p == i {
				removed = append(removed, j)
			}
		}
		return removed
	}

	seen := map[int]bool{}
	for j := range data {
		subject := data[j].Metadata.GetString("Subject", "")
		subjectIndices := data.FindIndices("Subject", subject)
		if len(subjectIndices) == 0 || i <= len(subjectIndices) {
			continue
		}
		r := subjectIndices[i%len(subjectIndices)]
		if !seen[r] {
			seen[r] = true
			removed = append(removed, r)
		}
	}
	return removed
}

// trainingSubset builds partition i's training set: the full list minus
// its exclusions, removed highest index first on a copy.
func trainingSubset(data template.List, parts []int, i int, leaveOneOut bool) template.List {
	return data.Without(exclusions(data, parts, i, leaveOneOut))
}

// grow extends the ensemble to at least n slots, instantiating missing
// sub-models from the configured descriptor. Growth is sequential and
// must complete before training tasks launch.
func (cv *CrossValidate) grow(n int) error {
	for len(cv.transforms) < n {
		t, err := Make(cv.Description)
		if err != nil {
			return err
		}
		cv.transforms = append(cv.transforms, t)
	}
	return nil
}

// Train partitions the data and trains every ensemble slot, one
// concurrent task per partition. With fewer than two partitions
// cross-validation is inapplicable and slot 0 trains synchronously on
// the full, unmodified list. If any slot's training fails the first
// failure is returned, but only after every task has finished.
func (cv *CrossValidate) Train(data template.List) error {
	parts, numPartitions := partitions(data)

	if err := cv.grow(numPartitions); err != nil {
		return err
	}

	if numPartitions < 2 {
		return cv.transforms[0].Train(data)
	}

	jobs := make([]workerpool.Job, 0, numPartitions)
	for i := 0; i < numPartitions; i++ {
		i := i
		subset := trainingSubset(data, parts, i, cv.LeaveOneOut)
		tr := cv.transforms[i]
		jobs = append(jobs, func() error {
			return errors.Wrapf(tr.Train(subset), "training partition %d", i)
		})
	}

	pool := workerpool.New(numPartitions)
	defer pool.Stop()
	pool.Add(jobs)
	return pool.Wait()
}

// Project routes the template to the sub-model for its partition. A
// partition with no trained slot is a usage error, not a silent
// fallback to slot 0.
func (cv *CrossValidate) Project(t template.Template) (template.Template, error) {
	p := t.Metadata.GetInt("Partition", 0)
	if p < 0 || p >= len(cv.transforms) {
		return template.Template{}, errors.Errorf("no trained sub-model for partition %d (ensemble size %d)", p, len(cv.transforms))
	}
	return cv.transforms[p].Project(t)
}

// Store writes the ensemble size followed by each sub-model's own
// serialized form, in partition order.
func (cv *CrossValidate) Store(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, int32(len(cv.transforms))); err != nil {
		return errors.Wrapf(err, "writing ensemble size")
	}
	for i, tr := range cv.transforms {
		if err := tr.Store(w); err != nil {
			return errors.Wrapf(err, "storing sub-model %d", i)
		}
	}
	return nil
}

// Load reads an ensemble written by Store, growing to at least the
// stored size. Slots beyond the stored count, if the ensemble was
// already larger, keep their prior state.
func (cv *CrossValidate) Load(r io.Reader) error {
	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return errors.Wrapf(err, "reading ensemble size")
	}
	if count < 0 {
		return errors.Errorf("invalid ensemble size %d", count)
	}
	if err := cv.grow(int(count)); err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := cv.transforms[i].Load(r); err != nil {
			return errors.Wrapf(err, "loading sub-model %d", i)
		}
	}
	return nil
}
