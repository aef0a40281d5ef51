package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/david/contract-map/internal/ingest"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New("boom"), 1},
		{&ingest.RefreshError{Kind: ingest.KindConfiguration}, 2},
		{fmt.Errorf("wrapped: %w", &ingest.RefreshError{Kind: ingest.KindUpstream}), 3},
		{&ingest.RefreshError{Kind: ingest.KindStorage}, 4},
		{&ingest.RefreshError{Kind: ingest.KindInternal}, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, path := range [][]string{
		{"refresh"}, {"preview"}, {"runs"}, {"stats"}, {"classify"}, {"migrate"},
		{"geocode", "resolve"}, {"geocode", "forget"}, {"geocode", "set"}, {"geocode", "list"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if assert.NoError(t, err, path) {
			assert.Equal(t, path[len(path)-1], cmd.Name())
		}
	}
}
