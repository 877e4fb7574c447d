package phonetics

import "testing"

func TestSource_Rank(t *testing.T) {
	t.Parallel()

	if SourceDictionary.Rank() <= SourceLookupAPI.Rank() {
		t.Error("dictionary must outrank the lookup API")
	}
	if SourceLookupAPI.Rank() <= SourceRules.Rank() {
		t.Error("lookup API must outrank the rules")
	}
	if got := Source("homegrown").Rank(); got != 0 {
		t.Errorf("unknown source rank = %d, want 0", got)
	}
}

func TestProfile_StressString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stresses []Stress
		want     string
	}{
		{"empty", nil, ""},
		{"single primary", []Stress{StressPrimary}, "1"},
		{"mixed", []Stress{StressPrimary, StressNone, StressSecondary}, "102"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &Profile{Stresses: tt.stresses}
			if got := p.StressString(); got != tt.want {
				t.Errorf("StressString() = %q, want %q", got, tt.want)
			}
		})
	}
}
