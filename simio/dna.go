package simio

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/dna"
	"github.com/ralfKruemmelPython/micro-swarm/sim"
)

// dnaRecord is one row of the DNA pool table. Species rows use species
// indices 0..3; global rows use -1.
type dnaRecord struct {
	Pool            string  `csv:"pool"`
	Species         int     `csv:"species"`
	Fitness         float32 `csv:"fitness"`
	SenseGain       float32 `csv:"sense_gain"`
	PheromoneGain   float32 `csv:"pheromone_gain"`
	ExplorationBias float32 `csv:"exploration_bias"`
}

const (
	poolSpecies = "species"
	poolGlobal  = "global"
)

// ExportDNACSV writes every pool entry, species pools first.
func ExportDNACSV(path string, s *sim.Simulation) error {
	var records []dnaRecord
	for species := range s.DNASpecies {
		for _, e := range s.DNASpecies[species].Entries {
			records = append(records, dnaRecord{
				Pool:            poolSpecies,
				Species:         species,
				Fitness:         e.Fitness,
				SenseGain:       e.Genome.SenseGain,
				PheromoneGain:   e.Genome.PheromoneGain,
				ExplorationBias: e.Genome.ExplorationBias,
			})
		}
	}
	for _, e := range s.DNAGlobal.Entries {
		records = append(records, dnaRecord{
			Pool:            poolGlobal,
			Species:         -1,
			Fitness:         e.Fitness,
			SenseGain:       e.Genome.SenseGain,
			PheromoneGain:   e.Genome.PheromoneGain,
			ExplorationBias: e.Genome.ExplorationBias,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dna csv: %w", err)
	}
	defer f.Close()

	if err := gocsv.Marshal(&records, f); err != nil {
		return fmt.Errorf("writing dna csv: %w", err)
	}
	return nil
}

// ImportDNACSV merges rows into the simulation's pools. Genomes are
// clamped on read and the current capacities apply; rows with unknown
// pools or species indices are skipped.
func ImportDNACSV(path string, s *sim.Simulation) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening dna csv: %w", err)
	}
	defer f.Close()

	var records []dnaRecord
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return fmt.Errorf("parsing dna csv: %w", err)
	}

	for _, rec := range records {
		g := dna.Genome{
			SenseGain:       rec.SenseGain,
			PheromoneGain:   rec.PheromoneGain,
			ExplorationBias: rec.ExplorationBias,
		}
		g.Clamp()
		switch rec.Pool {
		case poolGlobal:
			s.DNAGlobal.Add(g, rec.Fitness, s.Params.DNAGlobalCapacity)
		case poolSpecies:
			if rec.Species >= 0 && rec.Species < config.NumSpecies {
				s.DNASpecies[rec.Species].Add(g, rec.Fitness, s.Params.DNACapacity)
			} else {
				slog.Warn("dna import: species index out of range", "species", rec.Species)
			}
		default:
			slog.Warn("dna import: unknown pool", "pool", rec.Pool)
		}
	}
	return nil
}
