package sinks

import (
	"fmt"
	"os"
)

// SummarySink is a truncate-on-open, write-once text file. The Simulator
// calls Write exactly once, at the `finished` transition, with the fully
// rendered summary text.
type SummarySink struct {
	path string
}

// NewSummarySink returns a sink bound to path.
func NewSummarySink(path string) *SummarySink {
	return &SummarySink{path: path}
}

// Write truncates the file (creating it if absent) and writes content in a
// single call.
func (s *SummarySink) Write(content string) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open summary file %q: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// Path returns the sink's backing file path.
func (s *SummarySink) Path() string {
	return s.path
}
