package keywords

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestExtractRanksByFrequency(t *testing.T) {
	got := ExtractMin("alpha alpha beta beta beta gamma", 4)
	want := []string{"beta", "alpha", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMin = %v, want %v", got, want)
	}
}

func TestExtractTiesKeepFirstOccurrence(t *testing.T) {
	got := Extract("zebra apple mango apple zebra mango")
	want := []string{"zebra", "apple", "mango"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %v, want %v", got, want)
	}
}

func TestExtractFiltersNoise(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t "},
		{"stop words and short tokens", "Bonjour, pour vous et avec nous: this is what they have."},
		{"numbers", "2024 1200 99999"},
		{"punctuation only", "?!.,;:()[]{}\"'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.text); len(got) != 0 {
				t.Errorf("Extract(%q) = %v, want empty", tt.text, got)
			}
		})
	}
}

func TestExtractNormalizes(t *testing.T) {
	got := Extract(`Mariage! "Sonorisation" (mariage) [DJ] lumières?`)
	want := []string{"mariage", "sonorisation", "lumières"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %v, want %v", got, want)
	}
}

func TestExtractCapsLength(t *testing.T) {
	var words []string
	for i := 0; i < 30; i++ {
		words = append(words, fmt.Sprintf("word%c%c", 'a'+i/26, 'a'+i%26))
	}
	got := Extract(strings.Join(words, " "))
	if len(got) != MaxKeywords {
		t.Fatalf("expected %d keywords, got %d", MaxKeywords, len(got))
	}
	if got[0] != words[0] {
		t.Errorf("expected first occurrence order on ties, got %q first", got[0])
	}
}

func TestExtractMinLength(t *testing.T) {
	got := ExtractMin("sono sonorisation dj", 6)
	if !reflect.DeepEqual(got, []string{"sonorisation"}) {
		t.Errorf("ExtractMin = %v", got)
	}
	// non-positive minimum falls back to the default
	if got := ExtractMin("sono abc", 0); !reflect.DeepEqual(got, []string{"sono"}) {
		t.Errorf("ExtractMin with 0 = %v", got)
	}
}

func TestOverlapUsesContainment(t *testing.T) {
	tests := []struct {
		a, b []string
		want int
	}{
		{[]string{"mariage"}, []string{"mariages"}, 1},
		{[]string{"mariages"}, []string{"mariage"}, 1},
		{[]string{"mariage", "sono"}, []string{"sonorisation", "mariage", "juin"}, 2},
		{[]string{"alpha"}, []string{"beta"}, 0},
		{nil, []string{"beta"}, 0},
	}
	for _, tt := range tests {
		if got := Overlap(tt.a, tt.b); got != tt.want {
			t.Errorf("Overlap(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIsStopWord(t *testing.T) {
	for _, w := range []string{"pour", "vous", "about", "would"} {
		if !IsStopWord(w) {
			t.Errorf("%q should be a stop word", w)
		}
	}
	for _, w := range []string{"mariage", "sonorisation", "speaker"} {
		if IsStopWord(w) {
			t.Errorf("%q should not be a stop word", w)
		}
	}
}
