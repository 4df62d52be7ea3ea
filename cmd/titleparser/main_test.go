package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTitlesSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "titles.txt")
	content := "Global AI Market Report, 2030\n\nAsia Pacific EV Market Forecast\n   \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	titles, err := readTitles(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Global AI Market Report, 2030",
		"Asia Pacific EV Market Forecast",
		"   ",
	}, titles)
}

func TestReadTitlesMissingFileErrors(t *testing.T) {
	_, err := readTitles(filepath.Join(t.TempDir(), "nonexistent.txt"))
	assert.Error(t, err)
}

func TestAllPatternKindsCoversEverySchemaKind(t *testing.T) {
	kinds := allPatternKinds()
	assert.Len(t, kinds, 7)
}

func TestLoadConfigFallsBackToDefaultWhenNoFileFlag(t *testing.T) {
	global.ConfigFile = ""
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Batch.Size)
}

func TestLoadConfigReadsFileWhenFlagSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  size: 42\n"), 0o644))

	global.ConfigFile = path
	defer func() { global.ConfigFile = "" }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Batch.Size)
}

func TestCommandsAreRegisteredUnderRoot(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["parse"])
	assert.True(t, names["batch"])
	assert.True(t, names["patterns"])
	assert.True(t, names["version"])
}

func TestParseRequiresTitleFlag(t *testing.T) {
	flag := parseCmd.Flags().Lookup("title")
	require.NotNil(t, flag)
	_, required := flag.Annotations["cobra_annotation_bash_completion_one_required_flag"]
	assert.True(t, required)
}

func TestExitCodesAreDistinct(t *testing.T) {
	codes := map[int]bool{
		ExitSuccess:          true,
		ExitGeneral:          true,
		ExitConfigError:      true,
		ExitReportWriteError: true,
	}
	assert.Len(t, codes, 4)
}
