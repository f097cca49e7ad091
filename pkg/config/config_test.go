package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skucluster/pkg/config"
	"skucluster/pkg/core"
	"skucluster/pkg/model"
	"skucluster/pkg/pipeline"
)

// inTempDir runs the test from an empty working directory so no
// skucluster.yaml is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), *c)
	assert.Equal(t, 2, c.Compress)
	assert.Equal(t, "plots", c.Report.OutputDir)
	assert.Nil(t, c.Affinity.Preference)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := inTempDir(t)
	path := writeFile(t, dir, "run.yaml", `
input:
  path: skus.xlsx
kmeans:
  k: 3
birch:
  enabled: false
affinity:
  preference: -5
report:
  plot: false
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "skus.xlsx", c.Input.Path)
	assert.Equal(t, "Sheet1", c.Input.Sheet, "unset keys keep defaults")
	assert.Equal(t, 3, c.KMeans.K)
	assert.Equal(t, 300, c.KMeans.MaxIter)
	assert.False(t, c.Birch.Enabled)
	require.NotNil(t, c.Affinity.Preference)
	assert.Equal(t, -5.0, *c.Affinity.Preference)
	assert.False(t, c.Report.Plot)

	specs := c.Engines()
	require.Len(t, specs, 2)
	assert.Equal(t, "KMeans", specs[0].Name)
	assert.Equal(t, "Affinity Propagation", specs[1].Name)
	ap, ok := specs[1].Engine.(*model.AffinityPropagation)
	require.True(t, ok)
	assert.Equal(t, -5.0, ap.Preference)
}

func TestLoadPicksUpWorkingDirectoryFile(t *testing.T) {
	dir := inTempDir(t)
	writeFile(t, dir, config.DefaultFile, "compress: 0\n")
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Compress)
}

func TestLoadEnvironmentWins(t *testing.T) {
	dir := inTempDir(t)
	path := writeFile(t, dir, "run.yaml", "kmeans:\n  k: 3\n")
	t.Setenv("SKUCLUSTER_KMEANS_K", "4")
	t.Setenv("SKUCLUSTER_KMEANS_N_INIT", "2")
	t.Setenv("SKUCLUSTER_IMPUTE_MAX_FEATURES", "3")
	t.Setenv("SKUCLUSTER_REPORT_OUTPUT_DIR", "out")
	t.Setenv("SKUCLUSTER_LOG_LEVEL", "debug")

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.KMeans.K)
	assert.Equal(t, 2, c.KMeans.NInit)
	assert.Equal(t, 3, c.Impute.MaxFeatures)
	assert.Equal(t, "out", c.Report.OutputDir)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	dir := inTempDir(t)

	_, err := config.Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)

	t.Setenv("SKUCLUSTER_KMEANS_K", "many")
	_, err = config.Load("")
	assert.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := config.Default()
	c.Compress = -1
	c.KMeans.K = 0
	c.Affinity.Damping = 1.5
	c.Impute.Strategy = "knn"
	c.Log.Level = "loud"
	c.Report.OutputDir = ""

	err := c.Validate()
	require.True(t, errors.Is(err, core.ErrConfiguration))
	for _, want := range []string{"compress", "kmeans", "damping", "knn", "loud", "output_dir", pipeline.StageImpute} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateNeedsAnEngine(t *testing.T) {
	c := config.Default()
	c.KMeans.Enabled, c.Birch.Enabled, c.Affinity.Enabled = false, false, false
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cluster engine enabled")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := inTempDir(t)
	pref := -2.5
	c := config.Default()
	c.Input.Path = "export.csv"
	c.Birch.Threshold = 0.25
	c.Affinity.Preference = &pref
	c.Outlier.Contamination = 0.05

	path := filepath.Join(dir, "nested", "skucluster.yaml")
	require.NoError(t, config.Save(&c, path))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, *loaded)
}

func TestStagesOrder(t *testing.T) {
	c := config.Default()
	var names []string
	for _, st := range c.Stages() {
		names = append(names, st.Name)
	}
	assert.Equal(t, []string{pipeline.StageImpute, pipeline.StageScale, pipeline.StageOutlier}, names)
	for _, spec := range c.Engines() {
		assert.Equal(t, 2, spec.Compress, spec.Name)
	}
}

func TestLoadIgnoresUnprefixedVariables(t *testing.T) {
	inTempDir(t)
	t.Setenv("N_INIT", "7")
	t.Setenv("K", "5")

	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, c.KMeans.NInit)
	assert.Equal(t, 8, c.KMeans.K)
	assert.Empty(t, c.Input.Path)
}
