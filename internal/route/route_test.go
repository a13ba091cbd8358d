package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var defaultThresholds = Thresholds{Complexity: 4, Confidence: 0.60}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		s    Signals
		want Decision
	}{
		{
			name: "simple confident query stays with AI",
			s:    Signals{Complexity: 2, Confidence: 0.80},
			want: DecisionAI,
		},
		{
			name: "complexity at threshold escalates",
			s:    Signals{Complexity: 4, Confidence: 0.90},
			want: DecisionHuman,
		},
		{
			name: "complexity above threshold escalates",
			s:    Signals{Complexity: 5, Confidence: 0.90},
			want: DecisionHuman,
		},
		{
			name: "confidence below threshold escalates",
			s:    Signals{Complexity: 1, Confidence: 0.59},
			want: DecisionHuman,
		},
		{
			name: "confidence at threshold stays with AI",
			s:    Signals{Complexity: 1, Confidence: 0.60},
			want: DecisionAI,
		},
		{
			name: "urgency escalates regardless of other signals",
			s:    Signals{Complexity: 1, Confidence: 0.95, Urgent: true},
			want: DecisionHuman,
		},
		{
			name: "zero confidence escalates",
			s:    Signals{Complexity: 1, Confidence: 0},
			want: DecisionHuman,
		},
		{
			name: "complexity three with good confidence stays with AI",
			s:    Signals{Complexity: 3, Confidence: 0.75},
			want: DecisionAI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.s, defaultThresholds))
		})
	}
}

// TestDecideExhaustive sweeps the discrete complexity range against
// confidence values on both sides of the threshold.
func TestDecideExhaustive(t *testing.T) {
	confidences := []float64{0.0, 0.30, 0.59, 0.60, 0.75, 0.95}

	for complexity := 1; complexity <= 5; complexity++ {
		for _, confidence := range confidences {
			for _, urgent := range []bool{false, true} {
				s := Signals{Complexity: complexity, Confidence: confidence, Urgent: urgent}
				want := DecisionAI
				if urgent || complexity >= 4 || confidence < 0.60 {
					want = DecisionHuman
				}
				assert.Equal(t, want, Decide(s, defaultThresholds),
					"complexity=%d confidence=%.2f urgent=%v", complexity, confidence, urgent)
			}
		}
	}
}

func TestDecideCustomThresholds(t *testing.T) {
	strict := Thresholds{Complexity: 3, Confidence: 0.80}

	assert.Equal(t, DecisionHuman, Decide(Signals{Complexity: 3, Confidence: 0.90}, strict))
	assert.Equal(t, DecisionHuman, Decide(Signals{Complexity: 2, Confidence: 0.79}, strict))
	assert.Equal(t, DecisionAI, Decide(Signals{Complexity: 2, Confidence: 0.80}, strict))
}
