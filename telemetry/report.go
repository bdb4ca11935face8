package telemetry

import (
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ralfKruemmelPython/micro-swarm/field"
	"github.com/ralfKruemmelPython/micro-swarm/sim"
	"github.com/ralfKruemmelPython/micro-swarm/simio"
)

// ReportFieldNames lists the dump suffixes in display order.
var ReportFieldNames = []string{"resources", "phero_food", "phero_danger", "molecules", "mycel"}

// ReportOptions parameterizes report generation over a dump directory.
type ReportOptions struct {
	DumpDir    string
	DumpPrefix string
	HTMLPath   string // empty = <dump_dir>/<prefix>_report.html

	Downsample          int // preview edge length, 0 disables previews
	HistBins            int
	PaperMode           bool
	GlobalNormalization bool
	IncludeSparklines   bool

	ScenarioSummary string
	RunID           string
	Metrics         []sim.StepMetrics
}

type reportStep struct {
	Step     int
	Stats    map[string]sim.FieldStats
	Previews map[string]template.HTML
	grids    map[string]*field.Grid
}

type reportData struct {
	Title           string
	RunID           string
	ScenarioSummary string
	PaperMode       bool
	FieldNames      []string
	Steps           []*reportStep
	FieldSparks     []fieldSpark
	SystemSparks    []systemSpark
	HasPreviews     bool
}

type fieldSpark struct {
	Field        string
	MeanSpark    template.HTML
	EntropySpark template.HTML
	MeanMin      float32
	MeanMax      float32
}

type systemSpark struct {
	Name  string
	Spark template.HTML
	Min   float32
	Max   float32
}

// GenerateReport scans the dump directory for field CSVs and renders the
// summary HTML. It returns the report path.
func GenerateReport(opts ReportOptions) (string, error) {
	if opts.HistBins <= 0 {
		return "", fmt.Errorf("report: histogram bins must be positive")
	}

	entries, err := os.ReadDir(opts.DumpDir)
	if err != nil {
		return "", fmt.Errorf("report: reading dump dir: %w", err)
	}

	steps := map[int]*reportStep{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		step, fieldName, ok := parseDumpFilename(entry.Name(), opts.DumpPrefix)
		if !ok {
			continue
		}
		grid, err := simio.LoadGrid(filepath.Join(opts.DumpDir, entry.Name()))
		if err != nil {
			return "", fmt.Errorf("report: %w", err)
		}
		rs := steps[step]
		if rs == nil {
			rs = &reportStep{
				Step:     step,
				Stats:    map[string]sim.FieldStats{},
				Previews: map[string]template.HTML{},
				grids:    map[string]*field.Grid{},
			}
			steps[step] = rs
		}
		rs.grids[fieldName] = grid
		rs.Stats[fieldName] = sim.ComputeFieldStats(grid.Data, opts.HistBins)
	}
	if len(steps) == 0 {
		return "", fmt.Errorf("report: no dump files matching prefix %q in %s", opts.DumpPrefix, opts.DumpDir)
	}

	ordered := make([]*reportStep, 0, len(steps))
	for _, rs := range steps {
		ordered = append(ordered, rs)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Step < ordered[j].Step })

	if opts.Downsample > 0 {
		renderPreviews(ordered, opts)
	}

	data := reportData{
		Title:           "Micro-Swarm Dump Report",
		RunID:           opts.RunID,
		ScenarioSummary: opts.ScenarioSummary,
		PaperMode:       opts.PaperMode,
		FieldNames:      ReportFieldNames,
		Steps:           ordered,
		HasPreviews:     opts.Downsample > 0,
	}
	if opts.IncludeSparklines {
		data.FieldSparks = buildFieldSparks(ordered)
		data.SystemSparks = buildSystemSparks(opts.Metrics)
	}

	reportPath := opts.HTMLPath
	if reportPath == "" {
		reportPath = filepath.Join(opts.DumpDir, opts.DumpPrefix+"_report.html")
	}

	f, err := os.Create(reportPath)
	if err != nil {
		return "", fmt.Errorf("report: creating %s: %w", reportPath, err)
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("report: rendering: %w", err)
	}
	return reportPath, nil
}

// parseDumpFilename splits "<prefix>_stepNNNNNN_<field>.csv" into its
// step and field name.
func parseDumpFilename(name, prefix string) (int, string, bool) {
	tag := prefix + "_step"
	if !strings.HasPrefix(name, tag) || !strings.HasSuffix(name, ".csv") {
		return 0, "", false
	}
	rest := name[len(tag) : len(name)-len(".csv")]
	if len(rest) < 8 {
		return 0, "", false
	}
	step := 0
	for i := 0; i < 6; i++ {
		c := rest[i]
		if c < '0' || c > '9' {
			return 0, "", false
		}
		step = step*10 + int(c-'0')
	}
	if rest[6] != '_' {
		return 0, "", false
	}
	fieldName := rest[7:]
	for _, known := range ReportFieldNames {
		if fieldName == known {
			return step, fieldName, true
		}
	}
	return 0, "", false
}

func renderPreviews(steps []*reportStep, opts ReportOptions) {
	// Per-field global min/max when normalizing across all steps.
	globalMin := map[string]float32{}
	globalMax := map[string]float32{}
	if opts.GlobalNormalization {
		for _, rs := range steps {
			for name, st := range rs.Stats {
				if _, ok := globalMin[name]; !ok || st.Min < globalMin[name] {
					globalMin[name] = st.Min
				}
				if _, ok := globalMax[name]; !ok || st.Max > globalMax[name] {
					globalMax[name] = st.Max
				}
			}
		}
	}

	for _, rs := range steps {
		for name, grid := range rs.grids {
			down := downsampleGrid(grid, opts.Downsample)
			lo, hi := rs.Stats[name].Min, rs.Stats[name].Max
			if opts.GlobalNormalization {
				lo, hi = globalMin[name], globalMax[name]
			}
			rs.Previews[name] = svgHeatmap(down, opts.Downsample, lo, hi)
		}
		rs.grids = nil
	}
}

// downsampleGrid averages the grid into a target x target block image.
func downsampleGrid(g *field.Grid, target int) []float32 {
	out := make([]float32, target*target)
	for ty := 0; ty < target; ty++ {
		y0 := ty * g.H / target
		y1 := (ty + 1) * g.H / target
		if y1 <= y0 {
			y1 = min(g.H, y0+1)
		}
		for tx := 0; tx < target; tx++ {
			x0 := tx * g.W / target
			x1 := (tx + 1) * g.W / target
			if x1 <= x0 {
				x1 = min(g.W, x0+1)
			}
			var sum float64
			count := 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += float64(g.At(x, y))
					count++
				}
			}
			if count > 0 {
				out[ty*target+tx] = float32(sum / float64(count))
			}
		}
	}
	return out
}

// svgHeatmap renders a square block image as inline SVG.
func svgHeatmap(values []float32, edge int, lo, hi float32) template.HTML {
	const cell = 4
	span := hi - lo
	var b strings.Builder
	fmt.Fprintf(&b, `<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">`,
		edge*cell, edge*cell, edge*cell, edge*cell)
	for y := 0; y < edge; y++ {
		for x := 0; x < edge; x++ {
			v := values[y*edge+x]
			t := float32(0)
			if span > 0 {
				t = (v - lo) / span
			}
			if t < 0 {
				t = 0
			}
			if t > 1 {
				t = 1
			}
			shade := int(255 * (1 - t))
			fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="rgb(%d,%d,255)"/>`,
				x*cell, y*cell, cell, cell, shade, shade)
		}
	}
	b.WriteString("</svg>")
	return template.HTML(b.String())
}

// sparkline renders a polyline over the series, returning the drawn SVG
// and the series bounds.
func sparkline(values []float32) (template.HTML, float32, float32) {
	const w, h = 160, 36
	if len(values) == 0 {
		return "", 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	var points []string
	for i, v := range values {
		x := float64(i) / math.Max(1, float64(len(values)-1)) * (w - 2)
		t := float64(0)
		if span > 0 {
			t = float64(v-lo) / float64(span)
		}
		y := (h - 2) - t*(h-4)
		points = append(points, fmt.Sprintf("%.1f,%.1f", x+1, y+1))
	}
	svg := fmt.Sprintf(`<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg"><polyline fill="none" stroke="#2255aa" stroke-width="1" points="%s"/></svg>`,
		w, h, strings.Join(points, " "))
	return template.HTML(svg), lo, hi
}

func buildFieldSparks(steps []*reportStep) []fieldSpark {
	var out []fieldSpark
	for _, name := range ReportFieldNames {
		var means, entropies []float32
		for _, rs := range steps {
			st, ok := rs.Stats[name]
			if !ok {
				continue
			}
			means = append(means, st.Mean)
			entropies = append(entropies, st.Entropy)
		}
		if len(means) == 0 {
			continue
		}
		meanSpark, lo, hi := sparkline(means)
		entSpark, _, _ := sparkline(entropies)
		out = append(out, fieldSpark{
			Field:        name,
			MeanSpark:    meanSpark,
			EntropySpark: entSpark,
			MeanMin:      lo,
			MeanMax:      hi,
		})
	}
	return out
}

func buildSystemSparks(metrics []sim.StepMetrics) []systemSpark {
	if len(metrics) == 0 {
		return nil
	}
	series := []struct {
		name   string
		values func(m sim.StepMetrics) float32
	}{
		{"avg_energy", func(m sim.StepMetrics) float32 { return m.AvgEnergy }},
		{"dna_global", func(m sim.StepMetrics) float32 { return float32(m.DNAGlobal) }},
		{"mycel_avg", func(m sim.StepMetrics) float32 { return m.MycelAvg }},
	}
	var out []systemSpark
	for _, s := range series {
		values := make([]float32, len(metrics))
		for i, m := range metrics {
			values[i] = s.values(m)
		}
		spark, lo, hi := sparkline(values)
		out = append(out, systemSpark{Name: s.name, Spark: spark, Min: lo, Max: hi})
	}
	return out
}

var reportTemplate = template.Must(template.New("report").Parse(`<!doctype html>
<html><head><meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: {{if .PaperMode}}serif{{else}}sans-serif{{end}}; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 1em; }
td, th { border: 1px solid #ccc; padding: 2px 8px; font-size: 0.85em; }
.preview { display: inline-block; margin: 0 8px 8px 0; text-align: center; font-size: 0.8em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .RunID}}<div>run {{.RunID}}</div>{{end}}
{{if .ScenarioSummary}}<h2>Scenario</h2><div>{{.ScenarioSummary}}</div>{{end}}
{{if .FieldSparks}}
<h2>Summary over time</h2>
<table>
<tr><th>field</th><th>mean</th><th>range</th><th>entropy</th></tr>
{{range .FieldSparks}}
<tr><td>{{.Field}}</td><td>{{.MeanSpark}}</td><td>{{printf "%.3f" .MeanMin}} – {{printf "%.3f" .MeanMax}}</td><td>{{.EntropySpark}}</td></tr>
{{end}}
</table>
{{end}}
{{if .SystemSparks}}
<h2>System over time</h2>
<table>
<tr><th>metric</th><th>series</th><th>range</th></tr>
{{range .SystemSparks}}
<tr><td>{{.Name}}</td><td>{{.Spark}}</td><td>{{printf "%.3f" .Min}} – {{printf "%.3f" .Max}}</td></tr>
{{end}}
</table>
{{end}}
{{range .Steps}}
{{$step := .}}
<h2>Step {{.Step}}</h2>
<table>
<tr><th>field</th><th>min</th><th>mean</th><th>max</th><th>p95</th><th>entropy</th><th>norm</th></tr>
{{range $name := $.FieldNames}}{{with index $step.Stats $name}}
<tr><td>{{$name}}</td><td>{{printf "%.3f" .Min}}</td><td>{{printf "%.3f" .Mean}}</td><td>{{printf "%.3f" .Max}}</td><td>{{printf "%.3f" .P95}}</td><td>{{printf "%.3f" .Entropy}}</td><td>{{printf "%.3f" .NormEntropy}}</td></tr>
{{end}}{{end}}
</table>
{{if $.HasPreviews}}
{{range $name := $.FieldNames}}{{with index $step.Previews $name}}
<div class="preview">{{.}}<br>{{$name}}</div>
{{end}}{{end}}
{{end}}
{{end}}
</body></html>
`))
