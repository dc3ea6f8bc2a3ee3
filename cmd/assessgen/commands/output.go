// Package commands provides the assessgen subcommands
package commands

import (
	"encoding/json"
	"io"
	"os"

	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"golang.org/x/term"
)

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeJSON encodes v to w, indented when pretty is set or w is a terminal
func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty || isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to write output: %v", err)
	}
	return nil
}

// readInput reads the named file, or r when path is empty or "-"
func readInput(path string, r io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read stdin: %v", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read %s: %v", path, err)
	}
	return data, nil
}
