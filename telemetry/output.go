// Package telemetry handles structured run output: the per-tick metrics
// CSV, the config snapshot and the HTML dump report.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/sim"
)

// OutputManager handles structured experiment output with CSV logging.
// Every run gets a fresh identifier, exposed through RunID; metrics.csv
// and config.yaml do not carry it.
type OutputManager struct {
	dir         string
	runID       string
	metricsFile *os.File

	metricsHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the
// output directory. Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir, runID: uuid.NewString()}

	metricsPath := filepath.Join(dir, "metrics.csv")
	f, err := os.Create(metricsPath)
	if err != nil {
		return nil, fmt.Errorf("creating metrics.csv: %w", err)
	}
	om.metricsFile = f

	return om, nil
}

// RunID returns the unique identifier of this run.
func (om *OutputManager) RunID() string {
	if om == nil {
		return ""
	}
	return om.runID
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// WriteMetrics appends one step record to metrics.csv.
func (om *OutputManager) WriteMetrics(m sim.StepMetrics) error {
	if om == nil {
		return nil
	}

	records := []sim.StepMetrics{m}

	if !om.metricsHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(&records, om.metricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		om.metricsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(&records, om.metricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	return nil
}

// WriteAllMetrics appends the whole metrics log in one call.
func (om *OutputManager) WriteAllMetrics(metrics []sim.StepMetrics) error {
	if om == nil {
		return nil
	}
	for _, m := range metrics {
		if err := om.WriteMetrics(m); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	if om.metricsFile != nil {
		return om.metricsFile.Close()
	}
	return nil
}
