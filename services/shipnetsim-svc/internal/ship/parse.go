package ship

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"shipnetsim/services/shipnetsim-svc/internal/geo"
)

// pathFieldIndex is the position of the "Path" column in Schema, needed to
// special-case it for resistance-only studies.
var pathFieldIndex = func() int {
	for i, f := range Schema {
		if f.name == "Path" {
			return i
		}
	}
	panic("ship: schema has no Path field")
}()

// syntheticResistancePath is the two-point stand-in path used when a
// resistance-only study omits Path: the loader does not consume a network
// in this mode, so no real route is needed.
var syntheticResistancePath = []geo.Point{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.001}}

// ParseLines parses a line-oriented ship file: one ship per non-empty,
// non-comment line, TAB-separated fields in schema order. A line containing
// "#" has everything from "#" onward stripped before splitting.
func ParseLines(r io.Reader, resistanceOnly bool) ([]*Definition, error) {
	scanner := bufio.NewScanner(r)
	var defs []*Definition
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		def, err := parseFields(fields, resistanceOnly)
		if err != nil {
			return nil, fmt.Errorf("ship file line %d: %w", lineNo, err)
		}
		defs = append(defs, def)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ship file: %w", err)
	}
	return defs, nil
}

func parseFields(fields []string, resistanceOnly bool) (*Definition, error) {
	expected := len(Schema)
	if resistanceOnly && len(fields) == expected-1 {
		// Path omitted entirely: splice in a placeholder so positional
		// indices after Path still line up.
		withPath := make([]string, 0, expected)
		withPath = append(withPath, fields[:pathFieldIndex]...)
		withPath = append(withPath, "na")
		withPath = append(withPath, fields[pathFieldIndex:]...)
		fields = withPath
	}
	if len(fields) != expected {
		return nil, fmt.Errorf("expected %d fields, got %d", expected, len(fields))
	}

	def := &Definition{}
	for i, f := range Schema {
		raw := fields[i]
		if f.name == "Path" && resistanceOnly && isUnset(raw) {
			def.Path = syntheticResistancePath
			continue
		}
		if isUnset(raw) {
			if !f.optional {
				return nil, fmt.Errorf("field %q is required", f.name)
			}
			continue
		}
		if err := f.set(raw, def); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.name, err)
		}
	}
	if def.Path == nil && resistanceOnly {
		def.Path = syntheticResistancePath
	}
	return def, nil
}

// ParseRecords parses the structured-record shape: a sequence of
// string-keyed maps, one per ship, each key naming a schema field.
func ParseRecords(records []map[string]string, resistanceOnly bool) ([]*Definition, error) {
	defs := make([]*Definition, 0, len(records))
	for i, rec := range records {
		def := &Definition{}
		if st, ok := rec["StartTime"]; ok && !isUnset(st) {
			v, err := strconv.ParseFloat(strings.TrimSpace(st), 64)
			if err != nil {
				return nil, fmt.Errorf("record %d: invalid StartTime %q: %w", i, st, err)
			}
			def.StartTime = v
		}

		for _, f := range Schema {
			raw, present := rec[f.name]
			if !present || isUnset(raw) {
				if f.name == "Path" && resistanceOnly {
					def.Path = syntheticResistancePath
					continue
				}
				if !f.optional {
					return nil, fmt.Errorf("record %d: field %q is required", i, f.name)
				}
				continue
			}
			if err := f.set(raw, def); err != nil {
				return nil, fmt.Errorf("record %d: field %q: %w", i, f.name, err)
			}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// wireShip mirrors one element of the wire object's "ships" array. Fields
// use the same composite string encoding (";" / ",") as the line and
// record shapes so they funnel through the identical Schema converters.
type wireShip struct {
	Fields    map[string]string `json:"fields"`
	StartTime float64           `json:"startTime"`
}

type wireShipsPayload struct {
	Ships []wireShip `json:"ships"`
}

// ParseWire parses the wire-format object: a top-level "ships" array of
// named-field trees.
func ParseWire(data []byte, resistanceOnly bool) ([]*Definition, error) {
	var payload wireShipsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid ship wire payload: %w", err)
	}

	records := make([]map[string]string, 0, len(payload.Ships))
	for _, ws := range payload.Ships {
		rec := make(map[string]string, len(ws.Fields)+1)
		for k, v := range ws.Fields {
			rec[k] = v
		}
		if ws.StartTime != 0 {
			rec["StartTime"] = strconv.FormatFloat(ws.StartTime, 'f', -1, 64)
		}
		records = append(records, rec)
	}
	return ParseRecords(records, resistanceOnly)
}
