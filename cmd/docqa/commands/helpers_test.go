package commands

import (
	"strings"
	"testing"
)

func TestRerankPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode      string
		minWords  int
		wantOn    bool
		wantErr   bool
		always    bool
		wantWords int
	}{
		{mode: "off"},
		{mode: "false"},
		{mode: ""},
		{mode: "auto", minWords: 12, wantOn: true, wantWords: 12},
		{mode: "auto", minWords: 5, wantOn: true, wantWords: 5},
		{mode: "always", wantOn: true, always: true},
		{mode: "true", wantOn: true, always: true},
		{mode: "yes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run("mode="+tt.mode, func(t *testing.T) {
			policy, on, err := rerankPolicy(tt.mode, tt.minWords)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "RETRIEVAL_RERANK") {
					t.Fatalf("err = %v, want invalid mode error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("rerankPolicy(%q): %v", tt.mode, err)
			}
			if on != tt.wantOn {
				t.Errorf("enabled = %v, want %v", on, tt.wantOn)
			}
			if policy.Always != tt.always {
				t.Errorf("Always = %v, want %v", policy.Always, tt.always)
			}
			if policy.MinWords != tt.wantWords {
				t.Errorf("MinWords = %d, want %d", policy.MinWords, tt.wantWords)
			}
		})
	}
}

func TestRerankPolicy_LengthTriggerFires(t *testing.T) {
	t.Parallel()

	policy, on, err := rerankPolicy("auto", defaultRerankMinWords)
	if err != nil || !on {
		t.Fatalf("rerankPolicy(auto): on=%v err=%v", on, err)
	}

	long := "What are the exact notification deadlines and documentation requirements for filing a claim under this policy"
	if !policy.ShouldRerank(long) {
		t.Errorf("long question did not trigger reranking: %q", long)
	}
	if policy.ShouldRerank("What is the deductible?") {
		t.Error("short unambiguous question triggered reranking")
	}
}
