// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Params    Params           `yaml:"params"`
	Evolution EvoParams        `yaml:"evolution"`
	Stress    StressConfig     `yaml:"stress"`
	GPU       GPUConfig        `yaml:"gpu"`
	Output    OutputConfig     `yaml:"output"`
	Species   SpeciesConfig    `yaml:"species"`
	Profiles  []SpeciesProfile `yaml:"profiles"`
}

// Params holds the core simulation parameters shared by the batch driver
// and the host API. Field semantics match the host API parameter block.
type Params struct {
	Width      int `yaml:"width"`
	Height     int `yaml:"height"`
	AgentCount int `yaml:"agent_count"`
	Steps      int `yaml:"steps"`

	PheromoneEvaporation float32 `yaml:"pheromone_evaporation"`
	PheromoneDiffusion   float32 `yaml:"pheromone_diffusion"`
	MoleculeEvaporation  float32 `yaml:"molecule_evaporation"`
	MoleculeDiffusion    float32 `yaml:"molecule_diffusion"`

	ResourceRegen float32 `yaml:"resource_regen"`
	ResourceMax   float32 `yaml:"resource_max"`

	MycelDecay          float32 `yaml:"mycel_decay"`
	MycelGrowth         float32 `yaml:"mycel_growth"`
	MycelTransport      float32 `yaml:"mycel_transport"`
	MycelDriveThreshold float32 `yaml:"mycel_drive_threshold"`
	MycelDriveP         float32 `yaml:"mycel_drive_p"`
	MycelDriveR         float32 `yaml:"mycel_drive_r"`

	AgentMoveCost     float32 `yaml:"agent_move_cost"`
	AgentHarvest      float32 `yaml:"agent_harvest"`
	AgentDepositScale float32 `yaml:"agent_deposit_scale"`
	AgentSenseRadius  float32 `yaml:"agent_sense_radius"`
	AgentRandomTurn   float32 `yaml:"agent_random_turn"`

	DNACapacity       int     `yaml:"dna_capacity"`
	DNAGlobalCapacity int     `yaml:"dna_global_capacity"`
	DNASurvivalBias   float32 `yaml:"dna_survival_bias"`

	PheroFoodDepositScale   float32 `yaml:"phero_food_deposit_scale"`
	PheroDangerDepositScale float32 `yaml:"phero_danger_deposit_scale"`
	DangerDeltaThreshold    float32 `yaml:"danger_delta_threshold"`
	DangerBounceDeposit     float32 `yaml:"danger_bounce_deposit"`
}

// EvoParams holds the evolutionary-memory tuning parameters.
type EvoParams struct {
	Enabled          bool    `yaml:"enabled"`
	EliteFrac        float32 `yaml:"elite_frac"`
	MinEnergyToStore float32 `yaml:"min_energy_to_store"`
	MutationSigma    float32 `yaml:"mutation_sigma"`
	ExplorationDelta float32 `yaml:"exploration_delta"`
	FitnessWindow    int     `yaml:"fitness_window"`
	AgeDecay         float32 `yaml:"age_decay"`
	GlobalSpawnFrac  float32 `yaml:"global_spawn_frac"`
}

// StressConfig holds the one-time perturbation schedule.
type StressConfig struct {
	Enabled        bool    `yaml:"enabled"`
	AtStep         int     `yaml:"at_step"`
	BlockRectSet   bool    `yaml:"block_rect_set"`
	BlockX         int     `yaml:"block_x"`
	BlockY         int     `yaml:"block_y"`
	BlockW         int     `yaml:"block_w"`
	BlockH         int     `yaml:"block_h"`
	ShiftSet       bool    `yaml:"shift_set"`
	ShiftDX        int     `yaml:"shift_dx"`
	ShiftDY        int     `yaml:"shift_dy"`
	PheromoneNoise float32 `yaml:"pheromone_noise"`
	Seed           uint32  `yaml:"seed"`
	SeedSet        bool    `yaml:"seed_set"`
}

// GPUConfig holds compute-offload settings for the batch driver.
type GPUConfig struct {
	Enabled    bool `yaml:"enabled"`
	Platform   int  `yaml:"platform"`
	Device     int  `yaml:"device"`
	NoCopyback bool `yaml:"no_copyback"`
}

// OutputConfig holds dump and report settings for the batch driver.
type OutputConfig struct {
	DumpEvery          int    `yaml:"dump_every"`
	DumpDir            string `yaml:"dump_dir"`
	DumpPrefix         string `yaml:"dump_prefix"`
	ReportHTMLPath     string `yaml:"report_html"`
	ReportDownsample   int    `yaml:"report_downsample"`
	ReportHistBins     int    `yaml:"report_hist_bins"`
	PaperMode          bool   `yaml:"paper_mode"`
	GlobalNormalization bool  `yaml:"report_global_norm"`
	IncludeSparklines  bool   `yaml:"report_sparklines"`
}

// SpeciesConfig holds the spawn fractions for the four species.
type SpeciesConfig struct {
	Fracs [NumSpecies]float32 `yaml:"fracs"`
}

// NumSpecies is the fixed number of behavioral species.
const NumSpecies = 4

// SpeciesProfile is a per-role multiplier bundle parameterizing agent
// behavior. All values are multiplicative or additive weights; the
// regulator role is gated by CounterDepositMul > 0, not by type identity.
type SpeciesProfile struct {
	Name string `yaml:"name"`

	ExplorationMul      float32 `yaml:"exploration_mul"`
	FoodAttractionMul   float32 `yaml:"food_attraction_mul"`
	DangerAversionMul   float32 `yaml:"danger_aversion_mul"`
	DepositFoodMul      float32 `yaml:"deposit_food_mul"`
	DepositDangerMul    float32 `yaml:"deposit_danger_mul"`
	ResourceWeightMul   float32 `yaml:"resource_weight_mul"`
	MoleculeWeightMul   float32 `yaml:"molecule_weight_mul"`
	MycelAttractionMul  float32 `yaml:"mycel_attraction_mul"`
	NoveltyWeight       float32 `yaml:"novelty_weight"`
	MutationSigmaMul    float32 `yaml:"mutation_sigma_mul"`
	ExplorationDeltaMul float32 `yaml:"exploration_delta_mul"`
	DNABinding          float32 `yaml:"dna_binding"`
	OverDensityThreshold float32 `yaml:"over_density_threshold"`
	CounterDepositMul   float32 `yaml:"counter_deposit_mul"`
}

// DefaultParams returns the built-in simulation parameters.
func DefaultParams() Params {
	return Params{
		Width:      128,
		Height:     128,
		AgentCount: 512,
		Steps:      200,

		PheromoneEvaporation: 0.02,
		PheromoneDiffusion:   0.15,
		MoleculeEvaporation:  0.35,
		MoleculeDiffusion:    0.25,

		ResourceRegen: 0.0015,
		ResourceMax:   1.0,

		MycelDecay:          0.003,
		MycelGrowth:         0.02,
		MycelTransport:      0.12,
		MycelDriveThreshold: 0.08,
		MycelDriveP:         0.6,
		MycelDriveR:         0.4,

		AgentMoveCost:     0.01,
		AgentHarvest:      0.04,
		AgentDepositScale: 0.8,
		AgentSenseRadius:  2.5,
		AgentRandomTurn:   0.2,

		DNACapacity:       256,
		DNAGlobalCapacity: 128,
		DNASurvivalBias:   0.7,

		PheroFoodDepositScale:   0.8,
		PheroDangerDepositScale: 0.6,
		DangerDeltaThreshold:    0.05,
		DangerBounceDeposit:     0.02,
	}
}

// DefaultEvoParams returns the built-in evolutionary-memory parameters.
// Evolution is disabled by default; the non-evolution sampler falls back
// to fixed mutation strengths.
func DefaultEvoParams() EvoParams {
	return EvoParams{
		Enabled:          false,
		EliteFrac:        0.20,
		MinEnergyToStore: 1.6,
		MutationSigma:    0.05,
		ExplorationDelta: 0.05,
		FitnessWindow:    50,
		AgeDecay:         0.995,
		GlobalSpawnFrac:  0.15,
	}
}

// DefaultSpeciesFracs returns the built-in spawn fractions.
func DefaultSpeciesFracs() [NumSpecies]float32 {
	return [NumSpecies]float32{0.40, 0.25, 0.20, 0.15}
}

// DefaultProfiles returns the four built-in behavioral roles.
func DefaultProfiles() [NumSpecies]SpeciesProfile {
	explorator := SpeciesProfile{
		Name:                "explorator",
		ExplorationMul:      1.4,
		FoodAttractionMul:   0.6,
		DangerAversionMul:   0.8,
		DepositFoodMul:      0.6,
		DepositDangerMul:    0.5,
		ResourceWeightMul:   1.4,
		MoleculeWeightMul:   1.4,
		MycelAttractionMul:  0.6,
		NoveltyWeight:       0.6,
		MutationSigmaMul:    1.0,
		ExplorationDeltaMul: 1.0,
		DNABinding:          0.9,
	}
	integrator := SpeciesProfile{
		Name:                "integrator",
		ExplorationMul:      0.7,
		FoodAttractionMul:   1.4,
		DangerAversionMul:   1.0,
		DepositFoodMul:      1.5,
		DepositDangerMul:    0.8,
		ResourceWeightMul:   0.9,
		MoleculeWeightMul:   0.8,
		MycelAttractionMul:  1.5,
		NoveltyWeight:       0.0,
		MutationSigmaMul:    1.0,
		ExplorationDeltaMul: 1.0,
		DNABinding:          1.0,
	}
	regulator := SpeciesProfile{
		Name:                 "regulator",
		ExplorationMul:       0.9,
		FoodAttractionMul:    0.8,
		DangerAversionMul:    1.8,
		DepositFoodMul:       0.8,
		DepositDangerMul:     1.4,
		ResourceWeightMul:    0.9,
		MoleculeWeightMul:    0.8,
		MycelAttractionMul:   0.8,
		NoveltyWeight:        0.0,
		MutationSigmaMul:     1.0,
		ExplorationDeltaMul:  1.0,
		DNABinding:           1.0,
		OverDensityThreshold: 0.6,
		CounterDepositMul:    0.5,
	}
	innovator := SpeciesProfile{
		Name:                "innovator",
		ExplorationMul:      1.3,
		FoodAttractionMul:   0.7,
		DangerAversionMul:   0.9,
		DepositFoodMul:      0.7,
		DepositDangerMul:    0.7,
		ResourceWeightMul:   1.1,
		MoleculeWeightMul:   1.2,
		MycelAttractionMul:  0.6,
		NoveltyWeight:       0.8,
		MutationSigmaMul:    1.6,
		ExplorationDeltaMul: 1.6,
		DNABinding:          0.6,
	}
	return [NumSpecies]SpeciesProfile{explorator, integrator, regulator, innovator}
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	return cfg, nil
}

// applyDefaults fills in anything the YAML left unset.
func (c *Config) applyDefaults() {
	var zeroFracs [NumSpecies]float32
	if c.Species.Fracs == zeroFracs {
		c.Species.Fracs = DefaultSpeciesFracs()
	}

	if len(c.Profiles) == 0 {
		defaults := DefaultProfiles()
		c.Profiles = defaults[:]
	}
	// Pad partial profile lists with built-in roles so indices stay valid.
	for len(c.Profiles) < NumSpecies {
		defaults := DefaultProfiles()
		c.Profiles = append(c.Profiles, defaults[len(c.Profiles)])
	}
	c.Profiles = c.Profiles[:NumSpecies]
}

// ProfileArray returns the configured profiles as a fixed-size array.
func (c *Config) ProfileArray() [NumSpecies]SpeciesProfile {
	var out [NumSpecies]SpeciesProfile
	copy(out[:], c.Profiles)
	return out
}

// Validate checks parameter ranges the CLI and host API must reject.
func (c *Config) Validate() error {
	p := &c.Params
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", p.Width, p.Height)
	}
	if p.AgentCount < 0 {
		return fmt.Errorf("agent count must be non-negative, got %d", p.AgentCount)
	}
	if p.DNACapacity < 0 || p.DNAGlobalCapacity < 0 {
		return fmt.Errorf("dna capacities must be non-negative")
	}
	e := &c.Evolution
	if e.Enabled {
		if e.EliteFrac <= 0 || e.EliteFrac > 1 {
			return fmt.Errorf("elite_frac must be in (0,1], got %v", e.EliteFrac)
		}
		if e.FitnessWindow <= 0 {
			return fmt.Errorf("fitness_window must be positive, got %d", e.FitnessWindow)
		}
		if e.MutationSigma < 0 || e.ExplorationDelta < 0 {
			return fmt.Errorf("mutation parameters must be non-negative")
		}
		if e.AgeDecay <= 0 || e.AgeDecay > 1 {
			return fmt.Errorf("age_decay must be in (0,1], got %v", e.AgeDecay)
		}
	}
	var fracSum float32
	for _, f := range c.Species.Fracs {
		if f < 0 {
			return fmt.Errorf("species fractions must be non-negative")
		}
		fracSum += f
	}
	if fracSum <= 0 {
		return fmt.Errorf("species fractions must sum to a positive value")
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
