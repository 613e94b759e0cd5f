package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	tests := []struct {
		name         string
		plan         string
		args         []string
		expectedExit int
	}{
		{
			name: "Success with valid plan",
			plan: `
targets:
  - name: answer
    command: "41 + 1"
`,
			args:         []string{"loom", "make"},
			expectedExit: 0,
		},
		{
			name:         "Error with missing plan",
			args:         []string{"loom", "-c", "nonexistent.yaml", "make"},
			expectedExit: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			if tt.plan != "" {
				require.NoError(t, os.WriteFile(tmpDir+"/loom.yaml", []byte(tt.plan), 0o600))
			}

			os.Args = tt.args
			assert.Equal(t, tt.expectedExit, run())
		})
	}
}
