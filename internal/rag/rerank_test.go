package rag

import "testing"

func TestRerankPolicy_ShouldRerank(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		policy   RerankPolicy
		question string
		want     bool
	}{
		{"always fires", RerankPolicy{Always: true}, "hi", true},
		{"short question off", RerankPolicy{MinWords: 8}, "what is the port", false},
		{"long question fires", RerankPolicy{MinWords: 4}, "what is the default port for the service", true},
		{"compare marker", RerankPolicy{}, "Compare approach A to approach B", true},
		{"versus marker", RerankPolicy{}, "postgres vs sqlite for this workload", true},
		{"why marker", RerankPolicy{}, "why does the retry loop stop", true},
		{"plain question off", RerankPolicy{}, "what is the timeout value", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.policy.ShouldRerank(tt.question); got != tt.want {
				t.Errorf("ShouldRerank(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestParseRankList(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		reply   string
		n       int
		want    []int
		wantErr bool
	}{
		{"plain", "3,1,2", 3, []int{2, 0, 1}, false},
		{"spaced", " 2, 1 ", 2, []int{1, 0}, false},
		{"chatty model", "Ranking: 2, then 1.", 2, []int{1, 0}, false},
		{"out of range dropped", "1,7,2", 3, []int{0, 1}, false},
		{"no numbers", "I cannot rank these.", 3, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseRankList(tt.reply, tt.n)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
