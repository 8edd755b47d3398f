package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJobSetFromCSV(t *testing.T) {
	path := writeCSV(t, "weekly.csv", "name,deadline,profit\nA,2,100\nB,1,19\n")

	js, err := LoadJobSetFromCSV(path, "", 10)
	require.NoError(t, err)

	assert.Equal(t, "weekly", js.Name)
	assert.Equal(t, []domain.Job{
		{Name: "A", Deadline: 2, Profit: 100},
		{Name: "B", Deadline: 1, Profit: 19},
	}, js.Jobs)
}

func TestLoadJobSetFromCSVWithName(t *testing.T) {
	path := writeCSV(t, "jobs.csv", "name,deadline,profit\nA,2,100\n")

	js, err := LoadJobSetFromCSV(path, "周计划", 10)
	require.NoError(t, err)
	assert.Equal(t, "周计划", js.Name)
}

func TestLoadJobSetFromCSVErrors(t *testing.T) {
	_, err := LoadJobSetFromCSV(filepath.Join(t.TempDir(), "missing.csv"), "", 10)
	assert.Error(t, err)

	path := writeCSV(t, "big.csv", "name,deadline,profit\nA,1,1\nB,1,1\nC,1,1\n")
	_, err = LoadJobSetFromCSV(path, "", 2)
	assert.Error(t, err)
}
