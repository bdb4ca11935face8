package main

import (
	"testing"

	"github.com/ralfKruemmelPython/micro-swarm/config"
)

func TestParseInts(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"0 0 32 16", 4, false},
		{"0,0,32,16", 4, false},
		{"1 2", 4, true},
		{"a b c d", 4, true},
	}
	for _, tt := range tests {
		got, err := parseInts(tt.input, tt.want)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseInts(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && len(got) != tt.want {
			t.Errorf("parseInts(%q) = %v", tt.input, got)
		}
	}
}

func TestParseFracs(t *testing.T) {
	fracs, err := parseFracs("0.4,0.25,0.2,0.15")
	if err != nil {
		t.Fatalf("parseFracs: %v", err)
	}
	if fracs[0] != 0.4 || fracs[3] != 0.15 {
		t.Errorf("fracs = %v", fracs)
	}
	if _, err := parseFracs("0.5,0.5"); err == nil {
		t.Error("accepted short fraction list")
	}
	if _, err := parseFracs("0.5,0.5,-0.5,0.5"); err == nil {
		t.Error("accepted negative fraction")
	}
}

func TestApplyProfileOverride(t *testing.T) {
	profiles := config.DefaultProfiles()
	if err := applyProfileOverride(&profiles, "2:counter_deposit_mul=0.9,novelty_weight=0.1"); err != nil {
		t.Fatalf("applyProfileOverride: %v", err)
	}
	if profiles[2].CounterDepositMul != 0.9 || profiles[2].NoveltyWeight != 0.1 {
		t.Errorf("override not applied: %+v", profiles[2])
	}

	if err := applyProfileOverride(&profiles, "9:dna_binding=1"); err == nil {
		t.Error("accepted out-of-range species index")
	}
	if err := applyProfileOverride(&profiles, "1:unknown_field=1"); err == nil {
		t.Error("accepted unknown field")
	}
	if err := applyProfileOverride(&profiles, "no-colon"); err == nil {
		t.Error("accepted spec without index")
	}
}

func TestScenarioSummary(t *testing.T) {
	st := config.StressConfig{
		Enabled: true, AtStep: 5,
		BlockRectSet: true, BlockX: 0, BlockY: 0, BlockW: 32, BlockH: 16,
		PheromoneNoise: 0.02,
	}
	got := scenarioSummary(st)
	want := "stress_enable=true, at_step=5, block_rect=0,0,32,16, pheromone_noise=0.02"
	if got != want {
		t.Errorf("scenarioSummary = %q, want %q", got, want)
	}
}
