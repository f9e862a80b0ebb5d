package pipeline

import "testing"

func TestCleanAnswer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"empty",
			"",
			"",
		},
		{
			"plain answer untouched",
			"The grace period is thirty days.",
			"The grace period is thirty days.",
		},
		{
			"think block stripped",
			"<think>\nOkay, the user wants the grace period.\nIt is in clause 4.\n</think>\nThe grace period is thirty days.",
			"The grace period is thirty days.",
		},
		{
			"verbose preamble stripped",
			"Okay, let's tackle this. The grace period is thirty days.",
			"The grace period is thirty days.",
		},
		{
			"looking at the context stripped",
			"Looking at the context provided. The limit is 2% of the Sum Insured.",
			"The limit is 2% of the Sum Insured.",
		},
		{
			"answer prefix stripped",
			"Answer: The waiting period is two years.",
			"The waiting period is two years.",
		},
		{
			"bold answer prefix stripped",
			"**Answer:** The waiting period is two years.",
			"The waiting period is two years.",
		},
		{
			"blank lines collapsed",
			"First line.\n\n\nSecond line.",
			"First line.\nSecond line.",
		},
		{
			"fallback phrase preserved",
			FallbackAnswer,
			FallbackAnswer,
		},
		{
			"indented lines trimmed",
			"  The fee is waived.\n   Renewal is automatic.",
			"The fee is waived.\nRenewal is automatic.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cleanAnswer(tt.in); got != tt.want {
				t.Errorf("cleanAnswer(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
