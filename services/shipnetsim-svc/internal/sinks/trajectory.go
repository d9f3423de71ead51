// Package sinks implements the two on-disk artifacts a Simulator produces:
// an append-only trajectory CSV and a truncate-on-open summary text file.
package sinks

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// ResistanceStudyHeader is the CSV header used when a simulator runs in
// resistance-only study mode.
const ResistanceStudyHeader = "ShipNo,Speed_knots,FroudeNumber,Fr_i,AirResistance_kN,BulbousBowResistance_kN," +
	"ImmersedTransomPressureResistance_kN,AppendageResistance_N,WaveResistance_kN,FrictionalResistance_kN," +
	"ModelCorrelationResistance_kN,TotalResistance_kN,ResistanceCoefficient"

// TimeSteppedHeader is the CSV header used for a normal time-stepped
// simulation run.
const TimeSteppedHeader = "TStep_s,ShipNo,WaterSalinity_ppt,WaveHeight_m,WaveFrequency_hz,WaveLength_m," +
	"NorthwardWindSpeed_mps,EastwardWindSpeed_mps,TotalShipThrust_N,TotalShipResistance_N,maxAcceleration_mps2," +
	"TravelledDistance_m,Acceleration_mps2,Speed_knots,CumEnergyConsumption_KWH," +
	"MainEnergySourceCapacityState_percent,Position(long;lat),Course_deg"

// TrajectorySink is an append-only, flush-after-every-row text writer.
// It is opened lazily on the first write so a simulator that never produces
// a trajectory row never creates the file.
type TrajectorySink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	header string
}

// NewTrajectorySink returns a sink bound to path, using header as the first
// line written once the file is opened.
func NewTrajectorySink(path, header string) *TrajectorySink {
	return &TrajectorySink{path: path, header: header}
}

// Init opens (or reopens) the underlying file and writes the header, unless
// it is already open.
func (s *TrajectorySink) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

func (s *TrajectorySink) openLocked() error {
	if s.file != nil {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trajectory file %q: %w", s.path, err)
	}
	s.file = f

	if s.header != "" {
		if _, err := f.WriteString(s.header + "\n"); err != nil {
			return fmt.Errorf("write trajectory header: %w", err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync trajectory header: %w", err)
		}
	}
	return nil
}

// WriteLine appends one row and flushes immediately. A write failure never
// leaves a partial line on disk: the row is built in memory before the
// single Write call.
func (s *TrajectorySink) WriteLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return err
	}

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("write trajectory row: %w", err)
	}
	return s.file.Sync()
}

// Clear truncates the file back to empty, preserving the path for the next
// Init/WriteLine. Used by Simulator.Restart.
func (s *TrajectorySink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return err
		}
		s.file = nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("truncate trajectory file %q: %w", s.path, err)
	}
	return f.Close()
}

// Close releases the underlying file handle. Safe to call on a sink that
// was never opened.
func (s *TrajectorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Path returns the sink's backing file path.
func (s *TrajectorySink) Path() string {
	return s.path
}
