package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCitations(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{
			name:   "bare markers untouched",
			answer: "The standard deduction is $14,600 [1] and [2].",
			want:   "The standard deduction is $14,600 [1] and [2].",
		},
		{
			name:   "references section stripped",
			answer: "The deduction is $14,600 [1].\n\nReferences:\n[1] IRS Publication 501",
			want:   "The deduction is $14,600 [1].",
		},
		{
			name:   "sources section stripped",
			answer: "File by April 15 [2].\nSources:\n[2] Filing Deadlines",
			want:   "File by April 15 [2].",
		},
		{
			name:   "verbose source citation collapsed",
			answer: "The rates are explained in [Source 2: Capital Gains Overview].",
			want:   "The rates are explained in [2].",
		},
		{
			name:   "titled citation collapsed",
			answer: "See [3: Home Office Deduction] for details [1].",
			want:   "See [3] for details [1].",
		},
		{
			name:   "inline title after marker at line end stripped",
			answer: "Per the threshold rules [2] Filing Requirements\nmore detail follows.",
			want:   "Per the threshold rules [2]\nmore detail follows.",
		},
		{
			name:   "excess blank lines collapsed",
			answer: "First paragraph [1].\n\n\n\nSecond paragraph [2].",
			want:   "First paragraph [1].\n\nSecond paragraph [2].",
		},
		{
			name:   "surrounding whitespace trimmed",
			answer: "  \nThe answer [1].\n ",
			want:   "The answer [1].",
		},
		{
			name:   "empty answer stays empty",
			answer: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCitations(tt.answer))
		})
	}
}
