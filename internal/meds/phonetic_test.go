package meds

import "testing"

func TestPhoneticMatcherMatch(t *testing.T) {
	t.Parallel()

	names := []string{"Ramipril", "Metoprolol", "Pantoprazol", "Torasemid"}
	m := NewPhoneticMatcher()

	tests := []struct {
		name        string
		word        string
		want        string
		wantMatched bool
	}{
		{"exact", "ramipril", "Ramipril", true},
		{"misheard vowels", "ramipriel", "Ramipril", true},
		{"misheard consonant cluster", "pantosol", "Pantoprazol", true},
		{"unrelated word", "kaffee", "kaffee", false},
		{"empty word", "  ", "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, confidence, matched := m.Match(tt.word, names)
			if matched != tt.wantMatched {
				t.Fatalf("Match(%q): matched=%v, want %v", tt.word, matched, tt.wantMatched)
			}
			if got != tt.want {
				t.Errorf("Match(%q): got %q, want %q", tt.word, got, tt.want)
			}
			if matched && confidence <= 0 {
				t.Errorf("Match(%q): confidence=%v, want > 0", tt.word, confidence)
			}
			if !matched && confidence != 0 {
				t.Errorf("Match(%q): confidence=%v, want 0 for no match", tt.word, confidence)
			}
		})
	}
}

func TestPhoneticMatcherEmptyNames(t *testing.T) {
	t.Parallel()

	m := NewPhoneticMatcher()
	got, _, matched := m.Match("ramipril", nil)
	if matched || got != "ramipril" {
		t.Errorf("Match with no names: got %q matched=%v, want unchanged and false", got, matched)
	}
}

func TestPhoneticMatcherThresholdBlocks(t *testing.T) {
	t.Parallel()

	m := NewPhoneticMatcher(WithPhoneticThreshold(0.999))
	if _, _, matched := m.Match("ramipriel", []string{"Ramipril"}); matched {
		t.Error("Match with strict threshold: expected no match")
	}
}

func TestPhoneticMatcherMultiWord(t *testing.T) {
	t.Parallel()

	m := NewPhoneticMatcher()
	got, _, matched := m.Match("insulin glarschin", []string{"Insulin glargin", "Metformin"})
	if !matched {
		t.Fatal("Match: expected a match for multi-word input")
	}
	if got != "Insulin glargin" {
		t.Errorf("Match: got %q, want %q", got, "Insulin glargin")
	}
}

func TestMatchReference(t *testing.T) {
	t.Parallel()

	m := NewPhoneticMatcher()

	ref, confidence, matched := m.MatchReference("ramiprel", References())
	if !matched {
		t.Fatal("MatchReference: expected a match")
	}
	if ref.Canonical != "Ramipril" {
		t.Errorf("MatchReference: got %q, want %q", ref.Canonical, "Ramipril")
	}
	if confidence < 0.7 {
		t.Errorf("MatchReference: confidence=%v, want >= 0.7", confidence)
	}

	if _, _, matched := m.MatchReference("fensterbank", References()); matched {
		t.Error("MatchReference: expected no match for unrelated word")
	}
}
