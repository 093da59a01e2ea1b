package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultFileNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "s1.phylum.tsv", histFileName("s1", "phylum"))
	assert.Equal(t, "merged.phylum.tsv", mergedFileName("phylum"))
}

func TestResolvePath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("data", "s1.tsv"), resolvePath("data", "s1.tsv"))
	assert.Equal(t, "/abs/s1.tsv", resolvePath("data", "/abs/s1.tsv"))
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "compute")
	assert.Contains(t, names, "merge")
	assert.Contains(t, names, "plot")
	assert.Contains(t, names, "mcp")
}

func TestRootCmd_PlotRequiresLevel(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	root.SetArgs([]string{"plot"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level")
}
