// Package results packages one simulator run's output for wire transport:
// the rendered summary plus an optional, size-gated copy of the trajectory
// file contents.
package results

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxInlineTrajectoryBytes is the cutoff above which the trajectory blob is
// omitted from the wire payload rather than inlined.
const maxInlineTrajectoryBytes = 1 << 20 // 1 MB

// summaryFieldSep matches simulator.GenerateSummary's sentinel.
const summaryFieldSep = "\x1D :"

// ShipsResults is one simulator run's packaged output.
type ShipsResults struct {
	NetworkName         string
	SummaryData         []map[string]string // one single-key object per entry, in emission order
	TrajectoryFileName  string
	SummaryFileName     string
	TrajectoryBlob      []byte // raw, uncompressed trajectory CSV bytes; nil if not loaded
	TrajectoryIncluded  bool
}

// FromSummaryText splits a simulator.GenerateSummary()-rendered string back
// into the ordered single-key sequence the wire format expects.
func FromSummaryText(text string) []map[string]string {
	var out []map[string]string
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		idx := strings.Index(line, summaryFieldSep)
		if idx < 0 {
			continue
		}
		key := line[:idx]
		value := line[idx+len(summaryFieldSep):]
		out = append(out, map[string]string{key: value})
	}
	return out
}

// Build assembles a ShipsResults from a finished simulator's summary text
// and its trajectory file on disk, inlining the trajectory only if it is at
// most 1 MB.
func Build(networkName, summaryText, trajectoryPath, summaryFileName string) (ShipsResults, error) {
	r := ShipsResults{
		NetworkName:        networkName,
		SummaryData:        FromSummaryText(summaryText),
		TrajectoryFileName: trajectoryPath,
		SummaryFileName:    summaryFileName,
	}

	data, err := os.ReadFile(trajectoryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return ShipsResults{}, fmt.Errorf("results: read trajectory file: %w", err)
	}
	if len(data) <= maxInlineTrajectoryBytes {
		r.TrajectoryBlob = data
		r.TrajectoryIncluded = true
	}
	return r, nil
}

// wireShipsResults mirrors §6's ShipsResults JSON shape.
type wireShipsResults struct {
	NetworkName                string              `json:"networkName"`
	SummaryData                []map[string]string `json:"summaryData"`
	TrajectoryFileName         string              `json:"trajectoryFileName"`
	SummaryFileName            string              `json:"summaryFileName"`
	TrajectoryFileDataIncluded bool                `json:"trajectoryFileDataIncluded"`
	TrajectoryFileData         string              `json:"trajectoryFileData,omitempty"`
}

// ToJSON renders a ShipsResults to its wire form, deflate-compressing and
// base64-encoding the trajectory blob when it is included.
func ToJSON(r ShipsResults) ([]byte, error) {
	w := wireShipsResults{
		NetworkName:                r.NetworkName,
		SummaryData:                r.SummaryData,
		TrajectoryFileName:         r.TrajectoryFileName,
		SummaryFileName:            r.SummaryFileName,
		TrajectoryFileDataIncluded: r.TrajectoryIncluded,
	}
	if r.TrajectoryIncluded {
		compressed, err := deflateCompress(r.TrajectoryBlob)
		if err != nil {
			return nil, fmt.Errorf("results: compress trajectory: %w", err)
		}
		w.TrajectoryFileData = base64.StdEncoding.EncodeToString(compressed)
	}
	return json.Marshal(w)
}

// FromJSON parses a ShipsResults wire payload, inflating and decoding the
// trajectory blob when present.
func FromJSON(data []byte) (ShipsResults, error) {
	var w wireShipsResults
	if err := json.Unmarshal(data, &w); err != nil {
		return ShipsResults{}, fmt.Errorf("results: invalid wire payload: %w", err)
	}
	r := ShipsResults{
		NetworkName:         w.NetworkName,
		SummaryData:         w.SummaryData,
		TrajectoryFileName:  w.TrajectoryFileName,
		SummaryFileName:     w.SummaryFileName,
		TrajectoryIncluded:  w.TrajectoryFileDataIncluded,
	}
	if w.TrajectoryFileDataIncluded {
		compressed, err := base64.StdEncoding.DecodeString(w.TrajectoryFileData)
		if err != nil {
			return ShipsResults{}, fmt.Errorf("results: invalid trajectory base64: %w", err)
		}
		blob, err := deflateDecompress(compressed)
		if err != nil {
			return ShipsResults{}, fmt.Errorf("results: inflate trajectory: %w", err)
		}
		r.TrajectoryBlob = blob
	}
	return r, nil
}

func deflateCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deflateDecompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
