package workspace

import (
	_ "embed"
	"fmt"
)

//go:embed sample.json
var sampleSeed []byte

// Sample returns a fresh Store over the bundled demo workspace, used when no
// seed path is configured.
func Sample(opts ...Option) (*Store, error) {
	ws, err := Decode(sampleSeed, FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("bundled sample workspace: %w", err)
	}
	return New(ws, opts...)
}

// OpenOrSample opens path, or the bundled sample when path is empty.
func OpenOrSample(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return Sample(opts...)
	}
	return Open(path, opts...)
}
