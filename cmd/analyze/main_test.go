package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess_analysis/internal/domain"
)

func TestCommandsValidateArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"eval without fen", []string{"eval"}, "accepts 1 arg"},
		{"review without move", []string{"review", "8/8/8/8/8/2k5/8/2K1Q3 w - - 0 1"}, "accepts 2 arg"},
		{"unknown reference", []string{"eval", "--reference", "green", "8/8/8/8/8/2k5/8/2K1Q3 w - - 0 1"}, "unknown side"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotContains(t, out.String(), "Error:")
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printJSON(&out, domain.Judgment{Source: domain.SourceEngine, Quality: domain.QualityMistake, HasQuality: true}))
	assert.Contains(t, out.String(), `"quality": "mistake"`)
	assert.Contains(t, out.String(), `"source": "engine"`)
}
