package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Must return without exiting.
	exitErrHandler(nil, nil)
}

func TestExitCoder_Wrapped(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"stream error", cli.Exit("", 1), 1},
		{"config error", cli.Exit("config file not found: vst.yaml", 2), 2},
		{"wrapped", fmt.Errorf("assemble: %w", cli.Exit("framing error", 1)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exitCoder cli.ExitCoder
			if !errors.As(tt.err, &exitCoder) {
				t.Fatal("error is not a cli.ExitCoder")
			}
			if exitCoder.ExitCode() != tt.wantCode {
				t.Errorf("exit code = %d, want %d", exitCoder.ExitCode(), tt.wantCode)
			}
		})
	}
}
