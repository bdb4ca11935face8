// Command micro-swarm runs the batch simulation driver: it steps the
// swarm for a fixed number of ticks, writes periodic field dumps and
// renders a summary report.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ralfKruemmelPython/micro-swarm/config"
	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/sim"
	"github.com/ralfKruemmelPython/micro-swarm/simio"
	"github.com/ralfKruemmelPython/micro-swarm/swarmapi"
	"github.com/ralfKruemmelPython/micro-swarm/telemetry"
)

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")

	width := flag.Int("width", 0, "Grid width (overrides config)")
	height := flag.Int("height", 0, "Grid height (overrides config)")
	agents := flag.Int("agents", -1, "Agent count (overrides config)")
	steps := flag.Int("steps", -1, "Simulation steps (overrides config)")
	seed := flag.Uint("seed", 42, "RNG seed")

	resourcesPath := flag.String("resources", "", "Initial resources field CSV")
	pheromonePath := flag.String("pheromone", "", "Initial food pheromone field CSV")
	moleculesPath := flag.String("molecules", "", "Initial molecules field CSV")

	mycelGrowth := flag.Float64("mycel-growth", -1, "Mycel growth rate")
	mycelDecay := flag.Float64("mycel-decay", -1, "Mycel decay rate")
	mycelTransport := flag.Float64("mycel-transport", -1, "Mycel transport rate")
	mycelThreshold := flag.Float64("mycel-threshold", -1, "Mycel drive threshold")
	mycelDriveP := flag.Float64("mycel-drive-p", -1, "Mycel drive pheromone weight")
	mycelDriveR := flag.Float64("mycel-drive-r", -1, "Mycel drive resource weight")

	dumpEvery := flag.Int("dump-every", 0, "Dump interval in steps (0 = off)")
	dumpDir := flag.String("dump-dir", "dumps", "Dump directory")
	dumpPrefix := flag.String("dump-prefix", "swarm", "Dump file prefix")
	reportHTML := flag.String("report-html", "", "Report HTML path")
	reportDownsample := flag.Int("report-downsample", 32, "Report preview edge length (0 = off)")
	reportHistBins := flag.Int("report-hist-bins", 64, "Histogram bins for entropy")
	paperMode := flag.Bool("paper-mode", false, "Paper rendering mode")
	reportGlobalNorm := flag.Bool("report-global-norm", false, "Global preview normalization")
	reportNoSparklines := flag.Bool("report-no-sparklines", false, "Disable sparklines")

	stressEnable := flag.Bool("stress-enable", false, "Enable the stress schedule")
	stressAtStep := flag.Int("stress-at-step", 120, "Stress step")
	stressBlockRect := flag.String("stress-block-rect", "", "Resource blockade as \"x y w h\"")
	stressShift := flag.String("stress-shift-hotspots", "", "Hotspot shift as \"dx dy\"")
	stressNoise := flag.Float64("stress-pheromone-noise", 0, "Pheromone noise amplitude")
	stressSeed := flag.Uint("stress-seed", 0, "Seed for stress noise (default: main seed)")

	evoEnable := flag.Bool("evo-enable", false, "Enable evolution tuning")
	evoEliteFrac := flag.Float64("evo-elite-frac", 0.20, "Elite fraction")
	evoMinEnergy := flag.Float64("evo-min-energy-to-store", 1.6, "Minimum energy to store a genome")
	evoMutationSigma := flag.Float64("evo-mutation-sigma", 0.05, "Mutation strength")
	evoExplorationDelta := flag.Float64("evo-exploration-delta", 0.05, "Exploration mutation")
	evoFitnessWindow := flag.Int("evo-fitness-window", 50, "Fitness window")
	evoAgeDecay := flag.Float64("evo-age-decay", 0.995, "Age decay per tick")

	speciesFracs := flag.String("species-fracs", "", "Species fractions as \"a,b,c,d\"")
	profileOverride := flag.String("profile-override", "", "Profile override as \"idx:field=value,...\"")

	gpuEnable := flag.Bool("gpu", false, "Enable compute offload")
	gpuPlatform := flag.Int("gpu-platform", 0, "Compute platform index")
	gpuDevice := flag.Int("gpu-device", 0, "Compute device index")
	gpuNoCopyback := flag.Bool("gpu-no-copyback", false, "Keep fields on the device between dumps")
	gpuListDevices := flag.Bool("gpu-list-devices", false, "List compute devices and exit")

	outputDir := flag.String("output-dir", "", "Output directory for metrics CSV and config snapshot")

	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *gpuListDevices {
		swarmapi.OCLPrintDevices()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("%v", err)
	}

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	widthSet := setFlags["width"]
	heightSet := setFlags["height"]
	stressSeedSet := setFlags["stress-seed"]

	if *width > 0 {
		cfg.Params.Width = *width
	}
	if *height > 0 {
		cfg.Params.Height = *height
	}
	if *agents >= 0 {
		cfg.Params.AgentCount = *agents
	}
	if *steps >= 0 {
		cfg.Params.Steps = *steps
	}
	if *mycelGrowth >= 0 {
		cfg.Params.MycelGrowth = float32(*mycelGrowth)
	}
	if *mycelDecay >= 0 {
		cfg.Params.MycelDecay = float32(*mycelDecay)
	}
	if *mycelTransport >= 0 {
		cfg.Params.MycelTransport = float32(*mycelTransport)
	}
	if *mycelThreshold >= 0 {
		cfg.Params.MycelDriveThreshold = float32(*mycelThreshold)
	}
	if *mycelDriveP >= 0 {
		cfg.Params.MycelDriveP = float32(*mycelDriveP)
	}
	if *mycelDriveR >= 0 {
		cfg.Params.MycelDriveR = float32(*mycelDriveR)
	}

	if *evoEnable {
		cfg.Evolution.Enabled = true
		cfg.Evolution.EliteFrac = float32(*evoEliteFrac)
		cfg.Evolution.MinEnergyToStore = float32(*evoMinEnergy)
		cfg.Evolution.MutationSigma = float32(*evoMutationSigma)
		cfg.Evolution.ExplorationDelta = float32(*evoExplorationDelta)
		cfg.Evolution.FitnessWindow = *evoFitnessWindow
		cfg.Evolution.AgeDecay = float32(*evoAgeDecay)
	}

	if *stressEnable {
		cfg.Stress.Enabled = true
		cfg.Stress.AtStep = *stressAtStep
		cfg.Stress.PheromoneNoise = float32(*stressNoise)
	}
	if *stressBlockRect != "" {
		vals, err := parseInts(*stressBlockRect, 4)
		if err != nil {
			fail("invalid value for --stress-block-rect: %v", err)
		}
		cfg.Stress.BlockRectSet = true
		cfg.Stress.BlockX, cfg.Stress.BlockY = vals[0], vals[1]
		cfg.Stress.BlockW, cfg.Stress.BlockH = vals[2], vals[3]
	}
	if *stressShift != "" {
		vals, err := parseInts(*stressShift, 2)
		if err != nil {
			fail("invalid value for --stress-shift-hotspots: %v", err)
		}
		cfg.Stress.ShiftSet = true
		cfg.Stress.ShiftDX, cfg.Stress.ShiftDY = vals[0], vals[1]
	}
	if stressSeedSet {
		cfg.Stress.Seed = uint32(*stressSeed)
		cfg.Stress.SeedSet = true
	}

	if *speciesFracs != "" {
		fracs, err := parseFracs(*speciesFracs)
		if err != nil {
			fail("invalid value for --species-fracs: %v", err)
		}
		cfg.Species.Fracs = fracs
	}
	profiles := cfg.ProfileArray()
	if *profileOverride != "" {
		if err := applyProfileOverride(&profiles, *profileOverride); err != nil {
			fail("invalid value for --profile-override: %v", err)
		}
	}

	if *gpuEnable {
		cfg.GPU.Enabled = true
		cfg.GPU.Platform = *gpuPlatform
		cfg.GPU.Device = *gpuDevice
		cfg.GPU.NoCopyback = *gpuNoCopyback
	}

	// Dump and report flags override the loaded output config.
	if setFlags["dump-every"] {
		cfg.Output.DumpEvery = *dumpEvery
	}
	if setFlags["dump-dir"] {
		cfg.Output.DumpDir = *dumpDir
	}
	if setFlags["dump-prefix"] {
		cfg.Output.DumpPrefix = *dumpPrefix
	}
	if setFlags["report-html"] {
		cfg.Output.ReportHTMLPath = *reportHTML
	}
	if setFlags["report-downsample"] {
		cfg.Output.ReportDownsample = *reportDownsample
	}
	if setFlags["report-hist-bins"] {
		cfg.Output.ReportHistBins = *reportHistBins
	}
	if *paperMode {
		cfg.Output.PaperMode = true
	}
	if *reportGlobalNorm {
		cfg.Output.GlobalNormalization = true
	}
	if *reportNoSparklines {
		cfg.Output.IncludeSparklines = false
	}

	if err := cfg.Validate(); err != nil {
		fail("%v", err)
	}
	if cfg.Output.DumpEvery < 0 {
		fail("invalid value for --dump-every")
	}
	if cfg.Output.ReportDownsample < 0 {
		fail("invalid value for --report-downsample")
	}
	if cfg.Output.ReportHistBins <= 0 {
		fail("invalid value for --report-hist-bins")
	}

	// A trailing non-flag argument selects a subdirectory under the dump
	// directory.
	resolvedDumpDir := cfg.Output.DumpDir
	resolvedReport := cfg.Output.ReportHTMLPath
	if sub := flag.Arg(0); sub != "" {
		resolvedDumpDir = filepath.Join(cfg.Output.DumpDir, sub)
		if resolvedReport != "" {
			resolvedReport = filepath.Join(resolvedDumpDir, filepath.Base(resolvedReport))
		}
	}

	// Initial field CSVs pin the grid size; explicit --width/--height must
	// agree.
	loadInitial := func(path, label string) *field.Grid {
		if path == "" {
			return nil
		}
		g, err := simio.LoadGrid(path)
		if err != nil {
			fail("%s: %v", label, err)
		}
		if widthSet && g.W != cfg.Params.Width {
			fail("%s: csv width %d does not match --width %d", label, g.W, cfg.Params.Width)
		}
		if heightSet && g.H != cfg.Params.Height {
			fail("%s: csv height %d does not match --height %d", label, g.H, cfg.Params.Height)
		}
		cfg.Params.Width = g.W
		cfg.Params.Height = g.H
		return g
	}
	initResources := loadInitial(*resourcesPath, "resources")
	initPheromone := loadInitial(*pheromonePath, "pheromone")
	initMolecules := loadInitial(*moleculesPath, "molecules")

	s := sim.New(cfg.Params, cfg.Evolution, uint32(*seed))
	s.Stress = cfg.Stress
	s.SpeciesFracs = cfg.Species.Fracs
	s.Profiles = profiles
	if initResources != nil {
		copy(s.Env.Resources.Data, initResources.Data)
	}
	if initPheromone != nil {
		copy(s.PheroFood.Data, initPheromone.Data)
	}
	if initMolecules != nil {
		copy(s.Molecules.Data, initMolecules.Data)
	}

	if cfg.GPU.Enabled {
		s.SelectGPUDevice(cfg.GPU.Platform, cfg.GPU.Device)
		s.EnableGPU(true)
		if s.GPUActive() {
			s.SetNoCopyback(cfg.GPU.NoCopyback)
		}
		slog.Info("compute offload", "active", s.GPUActive())
	}

	om, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		fail("%v", err)
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		fail("%v", err)
	}

	if cfg.Output.DumpEvery > 0 {
		if err := os.MkdirAll(resolvedDumpDir, 0755); err != nil {
			fail("creating dump directory %s: %v", resolvedDumpDir, err)
		}
	}

	dumpSuffixes := []struct {
		name string
		kind sim.FieldKind
	}{
		{"resources", sim.FieldResources},
		{"phero_food", sim.FieldPheroFood},
		{"phero_danger", sim.FieldPheroDanger},
		{"molecules", sim.FieldMolecules},
		{"mycel", sim.FieldMycel},
	}
	dumpFields := func(step int) {
		if cfg.Output.DumpEvery <= 0 || step%cfg.Output.DumpEvery != 0 {
			return
		}
		if !s.EnsureHostFields() {
			fail("field copyback failed before dump at step %d", step)
		}
		base := fmt.Sprintf("%s_step%06d", cfg.Output.DumpPrefix, step)
		for _, d := range dumpSuffixes {
			path := filepath.Join(resolvedDumpDir, fmt.Sprintf("%s_%s.csv", base, d.name))
			if err := simio.SaveGrid(path, s.Field(d.kind)); err != nil {
				fail("%v", err)
			}
		}
	}

	slog.Info("starting batch run",
		"seed", *seed,
		"width", cfg.Params.Width,
		"height", cfg.Params.Height,
		"agents", cfg.Params.AgentCount,
		"steps", cfg.Params.Steps,
		"run_id", om.RunID(),
	)

	for step := 0; step < cfg.Params.Steps; step++ {
		s.ApplyScheduledStress()
		dumpFields(step)
		s.Step()

		if step%10 == 0 {
			m := s.Metrics[len(s.Metrics)-1]
			slog.Info("progress",
				"step", step,
				"avg_energy", m.AvgEnergy,
				"dna_pool", m.DNAGlobal+m.DNASpecies0+m.DNASpecies1+m.DNASpecies2+m.DNASpecies3,
				"mycel_avg", m.MycelAvg,
			)
		}
	}

	if err := om.WriteAllMetrics(s.Metrics); err != nil {
		fail("%v", err)
	}

	if cfg.Output.DumpEvery > 0 {
		scenario := ""
		if cfg.Stress.Enabled {
			scenario = scenarioSummary(cfg.Stress)
		}
		reportPath, err := telemetry.GenerateReport(telemetry.ReportOptions{
			DumpDir:             resolvedDumpDir,
			DumpPrefix:          cfg.Output.DumpPrefix,
			HTMLPath:            resolvedReport,
			Downsample:          cfg.Output.ReportDownsample,
			HistBins:            cfg.Output.ReportHistBins,
			PaperMode:           cfg.Output.PaperMode,
			GlobalNormalization: cfg.Output.GlobalNormalization,
			IncludeSparklines:   cfg.Output.IncludeSparklines,
			ScenarioSummary:     scenario,
			RunID:               om.RunID(),
			Metrics:             s.Metrics,
		})
		if err != nil {
			fail("%v", err)
		}
		slog.Info("report written", "path", reportPath)
	}

	fmt.Println("done")
}

func scenarioSummary(st config.StressConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "stress_enable=true, at_step=%d", st.AtStep)
	if st.BlockRectSet {
		fmt.Fprintf(&b, ", block_rect=%d,%d,%d,%d", st.BlockX, st.BlockY, st.BlockW, st.BlockH)
	}
	if st.ShiftSet {
		fmt.Fprintf(&b, ", shift_hotspots=%d,%d", st.ShiftDX, st.ShiftDY)
	}
	if st.PheromoneNoise > 0 {
		fmt.Fprintf(&b, ", pheromone_noise=%g", st.PheromoneNoise)
	}
	return b.String()
}

func parseInts(s string, want int) ([]int, error) {
	parts := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d values, got %d", want, len(parts))
	}
	out := make([]int, want)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", p)
		}
		out[i] = v
	}
	return out, nil
}

func parseFracs(s string) ([config.NumSpecies]float32, error) {
	var out [config.NumSpecies]float32
	parts := strings.Split(s, ",")
	if len(parts) != config.NumSpecies {
		return out, fmt.Errorf("expected %d fractions, got %d", config.NumSpecies, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil || v < 0 {
			return out, fmt.Errorf("bad fraction %q", p)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// applyProfileOverride applies "idx:field=value[,field=value...]".
func applyProfileOverride(profiles *[config.NumSpecies]config.SpeciesProfile, spec string) error {
	idxPart, rest, found := strings.Cut(spec, ":")
	if !found {
		return fmt.Errorf("missing species index prefix")
	}
	idx, err := strconv.Atoi(strings.TrimSpace(idxPart))
	if err != nil || idx < 0 || idx >= config.NumSpecies {
		return fmt.Errorf("bad species index %q", idxPart)
	}
	p := &profiles[idx]
	for _, assignment := range strings.Split(rest, ",") {
		name, valueStr, found := strings.Cut(assignment, "=")
		if !found {
			return fmt.Errorf("bad assignment %q", assignment)
		}
		v64, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 32)
		if err != nil {
			return fmt.Errorf("bad value %q", valueStr)
		}
		value := float32(v64)
		switch strings.TrimSpace(name) {
		case "exploration_mul":
			p.ExplorationMul = value
		case "food_attraction_mul":
			p.FoodAttractionMul = value
		case "danger_aversion_mul":
			p.DangerAversionMul = value
		case "deposit_food_mul":
			p.DepositFoodMul = value
		case "deposit_danger_mul":
			p.DepositDangerMul = value
		case "resource_weight_mul":
			p.ResourceWeightMul = value
		case "molecule_weight_mul":
			p.MoleculeWeightMul = value
		case "mycel_attraction_mul":
			p.MycelAttractionMul = value
		case "novelty_weight":
			p.NoveltyWeight = value
		case "mutation_sigma_mul":
			p.MutationSigmaMul = value
		case "exploration_delta_mul":
			p.ExplorationDeltaMul = value
		case "dna_binding":
			p.DNABinding = value
		case "over_density_threshold":
			p.OverDensityThreshold = value
		case "counter_deposit_mul":
			p.CounterDepositMul = value
		default:
			return fmt.Errorf("unknown profile field %q", name)
		}
	}
	return nil
}
