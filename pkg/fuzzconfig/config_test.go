package fuzzconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsInvalidWithoutDirs(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateRequiresKnownProtocol(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = "in"
	cfg.OutputDir = "out"
	cfg.Protocol = "NOT_A_PROTOCOL"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "not a recognized extractor")
}

func TestValidateRequiresTargetPathForSubprocess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = "in"
	cfg.OutputDir = "out"
	cfg.Harness.Kind = "subprocess"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "target_path")
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.InputDir = "seeds"
	cfg.OutputDir = "out"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.InputDir, loaded.InputDir)
	assert.Equal(t, cfg.OutputDir, loaded.OutputDir)
	assert.Equal(t, cfg.Protocol, loaded.Protocol)
	assert.Equal(t, cfg.Harness.BitmapSize, loaded.Harness.BitmapSize)
}

func TestLoadAppliesOutputDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.InputDir = "seeds"
	cfg.OutputDir = "from-file"
	require.NoError(t, cfg.Save(path))

	t.Setenv("PROTOFUZZ_OUTPUT_DIR", "from-env")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", loaded.OutputDir)
}

func TestLoadExpandsEnvVarsInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	t.Setenv("PROTOFUZZ_TEST_INPUT_DIR", "expanded-seeds")
	content := `{"input_dir": "${PROTOFUZZ_TEST_INPUT_DIR}", "output_dir": "out", "protocol": "RAW"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-seeds", loaded.InputDir)
}

func TestLoadYAMLByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "input_dir: seeds\noutput_dir: out\nprotocol: RLP\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "seeds", loaded.InputDir)
	assert.Equal(t, "RLP", loaded.Protocol)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	assert.Error(t, err)
}

func TestValidateRejectsMissingExtraDictionary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InputDir = "in"
	cfg.OutputDir = "out"
	cfg.Extra = "/nonexistent/dict.txt"

	err := cfg.Validate()
	assert.Error(t, err)
}
