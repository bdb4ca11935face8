// Package simio reads and writes the two on-disk formats the simulation
// speaks: plain float grids and DNA pool tables.
package simio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ralfKruemmelPython/micro-swarm/field"
)

// LoadGrid reads a field CSV. Lines starting with '#' and empty lines are
// skipped; all data rows must carry the same number of comma-separated
// float values. Width is taken from the first data row, height from the
// row count.
func LoadGrid(path string) (*field.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening grid csv: %w", err)
	}
	defer f.Close()

	var rows [][]float32
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		row, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading grid csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%s: row %d has %d values, want %d", path, i, len(row), width)
		}
	}

	g := field.New(width, len(rows), 0)
	for y, row := range rows {
		copy(g.Data[y*width:(y+1)*width], row)
	}
	return g, nil
}

func parseRow(line string) ([]float32, error) {
	parts := strings.Split(line, ",")
	row := make([]float32, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", part)
		}
		row = append(row, float32(v))
	}
	if len(row) == 0 {
		return nil, fmt.Errorf("invalid csv line %q", line)
	}
	return row, nil
}

// SaveGrid writes a field CSV: a "# dump" comment line followed by one
// row per grid line with fixed 3-decimal values. A failed write may leave
// a truncated file behind.
func SaveGrid(path string, g *field.Grid) error {
	if g == nil || g.W <= 0 || g.H <= 0 {
		return fmt.Errorf("invalid grid dimensions for csv dump")
	}
	if len(g.Data) != g.W*g.H {
		return fmt.Errorf("invalid value count for csv dump")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating grid csv: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString("# dump\n"); err != nil {
		return fmt.Errorf("writing grid csv: %w", err)
	}
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			if x > 0 {
				if err := w.WriteByte(','); err != nil {
					return fmt.Errorf("writing grid csv: %w", err)
				}
			}
			if _, err := fmt.Fprintf(w, "%.3f", g.At(x, y)); err != nil {
				return fmt.Errorf("writing grid csv: %w", err)
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing grid csv: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing grid csv: %w", err)
	}
	return nil
}
