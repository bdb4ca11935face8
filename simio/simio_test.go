package simio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/dna"
	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/rng"
	"github.com/ralfKruemmelPython/micro-swarm/sim"
)

func TestGridRoundTrip(t *testing.T) {
	g := field.New(5, 3, 0)
	r := rng.New(8)
	for i := range g.Data {
		g.Data[i] = r.Uniform(0, 2)
	}

	path := filepath.Join(t.TempDir(), "grid.csv")
	if err := SaveGrid(path, g); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}
	loaded, err := LoadGrid(path)
	if err != nil {
		t.Fatalf("LoadGrid: %v", err)
	}
	if loaded.W != 5 || loaded.H != 3 {
		t.Fatalf("loaded %dx%d, want 5x3", loaded.W, loaded.H)
	}
	// Values round-trip within the 3-decimal write precision.
	for i := range g.Data {
		if math.Abs(float64(loaded.Data[i]-g.Data[i])) > 0.0005+1e-6 {
			t.Errorf("cell %d: loaded %v, saved %v", i, loaded.Data[i], g.Data[i])
		}
	}
}

func TestLoadGridSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.csv")
	content := "# header comment\n\n1.0,2.0\n# interior comment\n3.0,4.0\n\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	g, err := LoadGrid(path)
	if err != nil {
		t.Fatalf("LoadGrid: %v", err)
	}
	if g.W != 2 || g.H != 2 {
		t.Fatalf("loaded %dx%d, want 2x2", g.W, g.H)
	}
	if g.At(0, 0) != 1 || g.At(1, 1) != 4 {
		t.Errorf("unexpected values: %v", g.Data)
	}
}

func TestLoadGridRejectsRaggedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.csv")
	if err := os.WriteFile(path, []byte("1,2,3\n4,5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGrid(path); err == nil {
		t.Fatal("expected error for ragged rows")
	}
}

func TestLoadGridRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.csv")
	if err := os.WriteFile(path, []byte("1,abc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGrid(path); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

func TestLoadGridMissingFile(t *testing.T) {
	if _, err := LoadGrid(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSaveGridStartsWithDumpComment(t *testing.T) {
	g := field.New(2, 2, 0.5)
	path := filepath.Join(t.TempDir(), "grid.csv")
	if err := SaveGrid(path, g); err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "# dump\n0.500,0.500\n0.500,0.500\n"
	if string(data) != want {
		t.Errorf("file content:\n%q\nwant:\n%q", data, want)
	}
}

func newTestSim() *sim.Simulation {
	p := config.DefaultParams()
	p.Width = 8
	p.Height = 8
	p.AgentCount = 0
	return sim.New(p, config.DefaultEvoParams(), 1)
}

func TestDNARoundTrip(t *testing.T) {
	s := newTestSim()
	s.DNASpecies[0].Add(dna.Genome{SenseGain: 1.1, PheromoneGain: 0.9, ExplorationBias: 0.4}, 2.5, s.Params.DNACapacity)
	s.DNASpecies[2].Add(dna.Genome{SenseGain: 0.8, PheromoneGain: 1.3, ExplorationBias: 0.6}, 1.5, s.Params.DNACapacity)
	s.DNAGlobal.Add(dna.Genome{SenseGain: 1.0, PheromoneGain: 1.0, ExplorationBias: 0.5}, 3.0, s.Params.DNAGlobalCapacity)

	path := filepath.Join(t.TempDir(), "dna.csv")
	if err := ExportDNACSV(path, s); err != nil {
		t.Fatalf("ExportDNACSV: %v", err)
	}

	dst := newTestSim()
	if err := ImportDNACSV(path, dst); err != nil {
		t.Fatalf("ImportDNACSV: %v", err)
	}

	if dst.DNASpecies[0].Len() != 1 || dst.DNASpecies[2].Len() != 1 {
		t.Fatalf("species pools sizes: %d, %d", dst.DNASpecies[0].Len(), dst.DNASpecies[2].Len())
	}
	if dst.DNAGlobal.Len() != 1 {
		t.Fatalf("global pool size: %d", dst.DNAGlobal.Len())
	}
	got := dst.DNASpecies[0].Entries[0]
	if math.Abs(float64(got.Fitness-2.5)) > 1e-5 || math.Abs(float64(got.Genome.SenseGain-1.1)) > 1e-5 {
		t.Errorf("species entry mangled: %+v", got)
	}
}

func TestDNAImportClampsGenome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dna.csv")
	content := "pool,species,fitness,sense_gain,pheromone_gain,exploration_bias\n" +
		"species,1,2.0,99.0,-5.0,7.0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestSim()
	if err := ImportDNACSV(path, s); err != nil {
		t.Fatalf("ImportDNACSV: %v", err)
	}
	g := s.DNASpecies[1].Entries[0].Genome
	if g.SenseGain != dna.SenseGainMax || g.PheromoneGain != dna.PheromoneGainMin || g.ExplorationBias != dna.ExplorationBiasMax {
		t.Errorf("import did not clamp: %+v", g)
	}
}

func TestDNAImportRespectsCapacity(t *testing.T) {
	s := newTestSim()
	s.Params.DNACapacity = 2
	path := filepath.Join(t.TempDir(), "dna.csv")
	content := "pool,species,fitness,sense_gain,pheromone_gain,exploration_bias\n" +
		"species,0,1.0,1.0,1.0,0.5\n" +
		"species,0,3.0,1.0,1.0,0.5\n" +
		"species,0,2.0,1.0,1.0,0.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ImportDNACSV(path, s); err != nil {
		t.Fatalf("ImportDNACSV: %v", err)
	}
	if s.DNASpecies[0].Len() != 2 {
		t.Fatalf("pool size = %d, want 2", s.DNASpecies[0].Len())
	}
	if s.DNASpecies[0].Entries[0].Fitness != 3 || s.DNASpecies[0].Entries[1].Fitness != 2 {
		t.Errorf("survivors: %+v", s.DNASpecies[0].Entries)
	}
}

func TestDNAImportSkipsUnknownRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dna.csv")
	content := "pool,species,fitness,sense_gain,pheromone_gain,exploration_bias\n" +
		"mystery,9,1.0,1.0,1.0,0.5\n" +
		"species,7,1.0,1.0,1.0,0.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestSim()
	if err := ImportDNACSV(path, s); err != nil {
		t.Fatalf("ImportDNACSV: %v", err)
	}
	for i := range s.DNASpecies {
		if s.DNASpecies[i].Len() != 0 {
			t.Errorf("species %d pool gained entries from bad rows", i)
		}
	}
	if s.DNAGlobal.Len() != 0 {
		t.Error("global pool gained entries from bad rows")
	}
}
