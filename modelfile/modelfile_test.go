package modelfile

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/foldmatch/foldmatch/template"
	"github.com/foldmatch/foldmatch/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "modelfile")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	data := template.List{
		{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{2}},
		{Metadata: template.Metadata{"Partition": 1}, Payload: []float64{4}},
	}
	cv := transform.NewCrossValidate("Centroid", false)
	require.NoError(t, cv.Train(data))

	path := filepath.Join(dir, "crossval.model")
	descriptor := "CrossValidate(description=Centroid)"
	require.NoError(t, Save(path, descriptor, cv))

	loaded, gotDescriptor, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, descriptor, gotDescriptor)

	probe := template.Template{Metadata: template.Metadata{"Partition": 0}, Payload: []float64{0}}
	want, err := cv.Project(probe)
	require.NoError(t, err)
	got, err := loaded.Project(probe)
	require.NoError(t, err)
	assert.Equal(t, want.Payload, got.Payload)
}

func TestLoadUnknownDescriptor(t *testing.T) {
	dir, err := ioutil.TempDir("", "modelfile")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "bogus.model")
	require.NoError(t, Save(path, "Identity", transform.Identity{}))

	// corrupting the descriptor makes Load fail at construction
	buf, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	copy(buf[4:], "Bogusify")
	require.NoError(t, ioutil.WriteFile(path, buf, 0644))

	_, _, err = Load(path)
	assert.Error(t, err)
}

func TestSaveInvalidDescriptor(t *testing.T) {
	dir, err := ioutil.TempDir("", "modelfile")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	err = Save(filepath.Join(dir, "bad.model"), "", transform.Identity{})
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(os.TempDir(), "does-not-exist.model"))
	assert.Error(t, err)
}
