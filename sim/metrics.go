package sim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ralfKruemmelPython/micro-swarm/config"
)

// StepMetrics is one per-tick entry of the metrics log. The log grows
// unbounded, one entry per executed tick; long runs drain it or cap the
// step count.
type StepMetrics struct {
	Step      int     `csv:"step"`
	AvgEnergy float32 `csv:"avg_energy"`

	AvgEnergySpecies0 float32 `csv:"avg_energy_species0"`
	AvgEnergySpecies1 float32 `csv:"avg_energy_species1"`
	AvgEnergySpecies2 float32 `csv:"avg_energy_species2"`
	AvgEnergySpecies3 float32 `csv:"avg_energy_species3"`

	DNASpecies0 int `csv:"dna_species0"`
	DNASpecies1 int `csv:"dna_species1"`
	DNASpecies2 int `csv:"dna_species2"`
	DNASpecies3 int `csv:"dna_species3"`
	DNAGlobal   int `csv:"dna_global"`

	MycelAvg float32 `csv:"mycel_avg"`
}

func (s *Simulation) collectStepMetrics() StepMetrics {
	m := StepMetrics{Step: s.StepIndex}

	avg, bySpecies := s.energyAverages()
	m.AvgEnergy = avg
	m.AvgEnergySpecies0 = bySpecies[0]
	m.AvgEnergySpecies1 = bySpecies[1]
	m.AvgEnergySpecies2 = bySpecies[2]
	m.AvgEnergySpecies3 = bySpecies[3]

	m.DNASpecies0 = s.DNASpecies[0].Len()
	m.DNASpecies1 = s.DNASpecies[1].Len()
	m.DNASpecies2 = s.DNASpecies[2].Len()
	m.DNASpecies3 = s.DNASpecies[3].Len()
	m.DNAGlobal = s.DNAGlobal.Len()

	if n := len(s.Mycel.Density.Data); n > 0 {
		var sum float64
		for _, v := range s.Mycel.Density.Data {
			sum += float64(v)
		}
		m.MycelAvg = float32(sum / float64(n))
	}
	return m
}

func (s *Simulation) energyAverages() (float32, [config.NumSpecies]float32) {
	var bySpecies [config.NumSpecies]float32
	var sums [config.NumSpecies]float64
	var counts [config.NumSpecies]int
	var total float64
	for i := range s.Agents {
		a := &s.Agents[i]
		total += float64(a.Energy)
		if a.Species >= 0 && a.Species < config.NumSpecies {
			sums[a.Species] += float64(a.Energy)
			counts[a.Species]++
		}
	}
	var avg float32
	if len(s.Agents) > 0 {
		avg = float32(total / float64(len(s.Agents)))
	}
	for i := 0; i < config.NumSpecies; i++ {
		if counts[i] > 0 {
			bySpecies[i] = float32(sums[i] / float64(counts[i]))
		}
	}
	return avg, bySpecies
}

// SystemMetrics is the aggregate snapshot exposed to hosts.
type SystemMetrics struct {
	StepIndex          int
	DNAGlobalSize      int
	DNASpeciesSizes    [config.NumSpecies]int
	AvgEnergy          float32
	AvgEnergyBySpecies [config.NumSpecies]float32
}

// CurrentMetrics computes the aggregate snapshot for the current state.
func (s *Simulation) CurrentMetrics() SystemMetrics {
	var out SystemMetrics
	out.StepIndex = s.StepIndex
	out.DNAGlobalSize = s.DNAGlobal.Len()
	for i := range s.DNASpecies {
		out.DNASpeciesSizes[i] = s.DNASpecies[i].Len()
	}
	out.AvgEnergy, out.AvgEnergyBySpecies = s.energyAverages()
	return out
}

// EnergyStats returns average, minimum and maximum agent energy.
func (s *Simulation) EnergyStats() (avg, min, max float32) {
	if len(s.Agents) == 0 {
		return 0, 0, 0
	}
	min = s.Agents[0].Energy
	max = s.Agents[0].Energy
	var sum float64
	for i := range s.Agents {
		e := s.Agents[i].Energy
		sum += float64(e)
		if e < min {
			min = e
		}
		if e > max {
			max = e
		}
	}
	avg = float32(sum / float64(len(s.Agents)))
	return avg, min, max
}

// EnergyBySpecies returns the per-species average energies.
func (s *Simulation) EnergyBySpecies() [config.NumSpecies]float32 {
	_, bySpecies := s.energyAverages()
	return bySpecies
}

// FieldStats summarizes one grid's value distribution.
type FieldStats struct {
	Min         float32
	Max         float32
	Mean        float32
	P95         float32
	Entropy     float32
	NormEntropy float32
}

// ComputeFieldStats histograms the values into bins and derives Shannon
// entropy alongside min/mean/max and the 95th percentile.
func ComputeFieldStats(values []float32, bins int) FieldStats {
	var out FieldStats
	if len(values) == 0 {
		return out
	}

	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}

	out.Min = float32(floats.Min(data))
	out.Max = float32(floats.Max(data))
	out.Mean = float32(stat.Mean(data, nil))

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	idx := int(math.Floor(0.95 * float64(len(sorted)-1)))
	out.P95 = float32(sorted[idx])

	if bins <= 1 || out.Max <= out.Min {
		return out
	}
	hist := make([]float64, bins)
	span := float64(out.Max - out.Min)
	for _, v := range data {
		bin := int(math.Floor((v - float64(out.Min)) / span * float64(bins)))
		if bin < 0 {
			bin = 0
		}
		if bin >= bins {
			bin = bins - 1
		}
		hist[bin]++
	}
	floats.Scale(1/float64(len(data)), hist)
	ent := stat.Entropy(hist)
	out.Entropy = float32(ent)
	out.NormEntropy = float32(ent / math.Log(float64(bins)))
	return out
}

// EntropyMetrics holds the distribution summary for all five fields in
// FieldKind order.
type EntropyMetrics struct {
	Entropy     [NumFieldKinds]float32
	NormEntropy [NumFieldKinds]float32
	P95         [NumFieldKinds]float32
}

// EntropyBins is the histogram resolution used by EntropyMetricsNow.
const EntropyBins = 64

// EntropyMetricsNow summarizes all five fields.
func (s *Simulation) EntropyMetricsNow() EntropyMetrics {
	var out EntropyMetrics
	for kind := FieldKind(0); kind < NumFieldKinds; kind++ {
		st := ComputeFieldStats(s.Field(kind).Data, EntropyBins)
		out.Entropy[kind] = st.Entropy
		out.NormEntropy[kind] = st.NormEntropy
		out.P95[kind] = st.P95
	}
	return out
}

// MycelStats holds the density summary of the mycelial field.
type MycelStats struct {
	Min  float32
	Max  float32
	Mean float32
}

// MycelStatsNow summarizes the mycelial density field.
func (s *Simulation) MycelStatsNow() MycelStats {
	values := s.Mycel.Density.Data
	if len(values) == 0 {
		return MycelStats{}
	}
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return MycelStats{
		Min:  float32(floats.Min(data)),
		Max:  float32(floats.Max(data)),
		Mean: float32(stat.Mean(data, nil)),
	}
}
