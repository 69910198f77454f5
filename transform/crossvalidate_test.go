package transform

import (
	"bytes"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/foldmatch/foldmatch/template"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a test sub-model that remembers what it was trained on
// and stamps templates it projects. Instances are indexed in creation
// order, which matches ensemble slot order.
type recorder struct {
	index     int
	failIndex int

	mu      sync.Mutex
	trained template.List
}

var recorders struct {
	mu        sync.Mutex
	instances []*recorder
}

func init() {
	Register("recorder", func(args map[string]string) (Transform, error) {
		recorders.mu.Lock()
		defer recorders.mu.Unlock()
		r := &recorder{index: len(recorders.instances), failIndex: -1}
		if v, ok := args["failIndex"]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, err
			}
			r.failIndex = n
		}
		recorders.instances = append(recorders.instances, r)
		return r, nil
	})
}

func resetRecorders() {
	recorders.mu.Lock()
	defer recorders.mu.Unlock()
	recorders.instances = nil
}

func listIDs(list template.List) []int {
	var ids []int
	for _, t := range list {
		ids = append(ids, t.Metadata.GetInt("ID", -1))
	}
	return ids
}

func recorderInstances() []*recorder {
	recorders.mu.Lock()
	defer recorders.mu.Unlock()
	return append([]*recorder(nil), recorders.instances...)
}

func (r *recorder) Train(data template.List) error {
	r.mu.Lock()
	r.trained = data
	r.mu.Unlock()
	if r.index == r.failIndex {
		return errors.Errorf("recorder %d failed", r.index)
	}
	return nil
}

func (r *recorder) Project(t template.Template) (template.Template, error) {
	out := t.Copy()
	out.Metadata["ProjectedBy"] = r.index
	return out, nil
}

func (r *recorder) Store(w io.Writer) error { return nil }
func (r *recorder) Load(rd io.Reader) error { return nil }

func (r *recorder) trainedIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int
	for _, t := range r.trained {
		ids = append(ids, t.Metadata.GetInt("ID", -1))
	}
	return ids
}

func partitioned(parts ...int) template.List {
	list := make(template.List, 0, len(parts))
	for i, p := range parts {
		list = append(list, template.Template{
			Metadata: template.Metadata{"ID": i, "Partition": p},
		})
	}
	return list
}

func subjects(names ...string) template.List {
	list := make(template.List, 0, len(names))
	for i, s := range names {
		list = append(list, template.Template{
			Metadata: template.Metadata{"ID": i, "Subject": s},
		})
	}
	return list
}

func TestPartitions(t *testing.T) {
	parts, n := partitions(partitioned(0, 0, 1, 1))
	assert.Equal(t, []int{0, 0, 1, 1}, parts)
	assert.Equal(t, 2, n)

	parts, n = partitions(nil)
	assert.Empty(t, parts)
	assert.Equal(t, 1, n)

	_, n = partitions(partitioned(0, 0, 0))
	assert.Equal(t, 1, n)

	// missing metadata defaults to partition 0
	_, n = partitions(template.List{{Metadata: template.Metadata{}}})
	assert.Equal(t, 1, n)
}

func TestStandardExclusion(t *testing.T) {
	data := partitioned(0, 0, 1, 1)
	parts, n := partitions(data)
	require.Equal(t, 2, n)

	subset := trainingSubset(data, parts, 0, false)
	assert.Equal(t, []int{2, 3}, listIDs(subset))

	subset = trainingSubset(data, parts, 1, false)
	assert.Equal(t, []int{0, 1}, listIDs(subset))
}

func TestLeaveOneOutSingleSubject(t *testing.T) {
	data := subjects("a", "a", "a")
	parts, _ := partitions(data)

	// no exclusion until the partition index exceeds the subject's count
	assert.Empty(t, exclusions(data, parts, 1, true))
	assert.Empty(t, exclusions(data, parts, 3, true))

	// 4 > 3, so index 4 mod 3 = 1 is excluded
	assert.Equal(t, []int{1}, exclusions(data, parts, 4, true))
}

func TestLeaveOneOutMultipleSubjects(t *testing.T) {
	data := subjects("a", "a", "b", "b", "b")
	parts, _ := partitions(data)

	// subject a has 2 templates: 3 > 2 excludes a's index 3 mod 2 = 1;
	// subject b has 3: 3 <= 3, no exclusion
	assert.Equal(t, []int{1}, exclusions(data, parts, 3, true))

	// 4 > 2 excludes a[0]; 4 > 3 excludes b[4 mod 3] = b[1] = index 3
	assert.Equal(t, []int{0, 3}, exclusions(data, parts, 4, true))
}

func TestLeaveOneOutIgnoresPartitions(t *testing.T) {
	data := subjects("a", "a", "a", "a")
	for i := range data {
		data[i].Metadata["Partition"] = i
	}
	parts, _ := partitions(data)

	// exclusion depends only on subject grouping
	assert.Equal(t, []int{1}, exclusions(data, parts, 5, true))
}

func TestTrainSinglePartition(t *testing.T) {
	resetRecorders()
	data := partitioned(0, 0, 0)

	cv := NewCrossValidate("recorder", false)
	require.NoError(t, cv.Train(data))

	instances := recorderInstances()
	require.Len(t, instances, 1)
	assert.Equal(t, 1, cv.Size())
	assert.Equal(t, []int{0, 1, 2}, instances[0].trainedIDs(), "single-partition training uses the unmodified full set")
}

func TestTrainCrossValidated(t *testing.T) {
	resetRecorders()
	data := partitioned(0, 0, 1, 1)

	cv := NewCrossValidate("recorder", false)
	require.NoError(t, cv.Train(data))

	instances := recorderInstances()
	require.Len(t, instances, 2)
	assert.Equal(t, 2, cv.Size())
	assert.Equal(t, []int{2, 3}, instances[0].trainedIDs())
	assert.Equal(t, []int{0, 1}, instances[1].trainedIDs())
}

func TestTrainGrowsNeverShrinks(t *testing.T) {
	resetRecorders()

	cv := NewCrossValidate("recorder", false)
	require.NoError(t, cv.Train(partitioned(0, 0, 1, 1)))
	require.Equal(t, 2, cv.Size())

	// retraining on fewer partitions reuses slot 0 and keeps the rest
	require.NoError(t, cv.Train(partitioned(0, 0)))
	assert.Equal(t, 2, cv.Size())
	assert.Len(t, recorderInstances(), 2, "existing slots must not be recreated")
}

func TestTrainFailureSurfacesAfterJoin(t *testing.T) {
	resetRecorders()
	data := partitioned(0, 0, 1, 1)

	cv := NewCrossValidate("recorder(failIndex=1)", false)
	err := cv.Train(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training partition 1")

	// the sibling task still ran to completion
	instances := recorderInstances()
	require.Len(t, instances, 2)
	assert.Equal(t, []int{2, 3}, instances[0].trainedIDs())
}

func TestTrainUnknownDescriptor(t *testing.T) {
	cv := NewCrossValidate("Bogus", false)
	assert.Error(t, cv.Train(partitioned(0, 1)))
}

func TestProjectRoutesByPartition(t *testing.T) {
	resetRecorders()
	cv := NewCrossValidate("recorder", false)
	require.NoError(t, cv.Train(partitioned(0, 0, 1, 1)))

	out, err := cv.Project(template.Template{Metadata: template.Metadata{"Partition": 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Metadata.GetInt("ProjectedBy", -1))

	// missing partition metadata routes to slot 0
	out, err = cv.Project(template.Template{Metadata: template.Metadata{}})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Metadata.GetInt("ProjectedBy", -1))
}

func TestProjectUntrainedPartition(t *testing.T) {
	resetRecorders()
	cv := NewCrossValidate("recorder", false)
	require.NoError(t, cv.Train(partitioned(0, 0, 1, 1)))

	_, err := cv.Project(template.Template{Metadata: template.Metadata{"Partition": 5}})
	assert.Error(t, err, "an untrained partition must fail, not default")
}

func TestStoreLoadRoundTrip(t *testing.T) {
	data := template.List{
		{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{1, 2}},
		{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{3, 4}},
		{Metadata: template.Metadata{"Partition": 1}, Payload: []float64{5, 6}},
		{Metadata: template.Metadata{"Partition": 1}, Payload: []float64{7, 8}},
	}

	cv := NewCrossValidate("Centroid", false)
	require.NoError(t, cv.Train(data))

	var buf bytes.Buffer
	require.NoError(t, cv.Store(&buf))

	loaded, err := Make("CrossValidate(description=Centroid)")
	require.NoError(t, err)
	require.NoError(t, loaded.Load(&buf))

	cv2 := loaded.(*CrossValidate)
	require.Equal(t, cv.Size(), cv2.Size())

	for _, probe := range []template.Template{
		{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{1, 1}},
		{Metadata: template.Metadata{"Partition": 1}, Payload: []float64{1, 1}},
	} {
		want, err := cv.Project(probe)
		require.NoError(t, err)
		got, err := cv2.Project(probe)
		require.NoError(t, err)
		assert.Equal(t, want.Payload, got.Payload)
	}
}

func TestLoadIntoPopulatedEnsemble(t *testing.T) {
	small := NewCrossValidate("Centroid", false)
	require.NoError(t, small.Train(template.List{
		{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{2}},
		{Metadata: template.Metadata{"Partition": 1}, Payload: []float64{4}},
	}))
	var buf bytes.Buffer
	require.NoError(t, small.Store(&buf))

	big := NewCrossValidate("Centroid", false)
	require.NoError(t, big.Train(template.List{
		{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{10}},
		{Metadata: template.Metadata{"Partition": 1}, Payload: []float64{20}},
		{Metadata: template.Metadata{"Partition": 2}, Payload: []float64{30}},
	}))
	require.Equal(t, 3, big.Size())

	// loading a smaller ensemble overwrites the leading slots and keeps
	// the rest
	require.NoError(t, big.Load(&buf))
	assert.Equal(t, 3, big.Size())

	out, err := big.Project(template.Template{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{0}})
	require.NoError(t, err)
	assert.Equal(t, []float64{-4}, out.Payload, "slot 0 must hold the loaded state")

	out, err = big.Project(template.Template{Metadata: template.Metadata{"Partition": 2}, Payload: []float64{0}})
	require.NoError(t, err)
	assert.Equal(t, []float64{-15}, out.Payload, "slot 2 must keep its prior state")
}
