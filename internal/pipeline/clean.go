package pipeline

import (
	"regexp"
	"strings"
)

// Smaller models leak chain-of-thought and conversational scaffolding around
// the actual answer. cleanAnswer strips the known shapes of that noise.
var (
	thinkBlockRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

	verboseREs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Okay,?\s*let'?s?\s*tackle\s*this.*?\.`),
		regexp.MustCompile(`(?i)Let'?s?\s*break\s*this\s*down.*?\.`),
		regexp.MustCompile(`(?i)First,?\s*I\s*need\s*to.*?\.`),
		regexp.MustCompile(`(?i)Looking\s*at\s*the\s*context.*?\.`),
		regexp.MustCompile(`(?i)The\s*user\s*is\s*asking.*?\.`),
		regexp.MustCompile(`(?i)Starting\s*with.*?\.`),
		regexp.MustCompile(`(?i)Now,?\s*let'?s?\s*analyze.*?\.`),
		regexp.MustCompile(`(?i)Let\s*me\s*check.*?\.`),
		regexp.MustCompile(`(?i)I\s*need\s*to\s*examine.*?\.`),
	}

	blankLinesRE   = regexp.MustCompile(`\n\s*\n`)
	leadingSpaceRE = regexp.MustCompile(`(?m)^[ \t]+`)

	introREs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(Answer:|Response:|Based on the context:)\s*`),
		regexp.MustCompile(`(?i)^\*\*Answer:\*\*\s*`),
		regexp.MustCompile(`(?i)^\*\*Response:\*\*\s*`),
	}
)

// cleanAnswer removes thinking blocks, verbose preambles, and labelled intro
// prefixes from a model reply, and collapses blank lines.
func cleanAnswer(answer string) string {
	if answer == "" {
		return answer
	}

	answer = thinkBlockRE.ReplaceAllString(answer, "")
	for _, re := range verboseREs {
		answer = re.ReplaceAllString(answer, "")
	}

	answer = blankLinesRE.ReplaceAllString(answer, "\n")
	answer = leadingSpaceRE.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	for _, re := range introREs {
		answer = re.ReplaceAllString(answer, "")
	}
	return strings.TrimSpace(answer)
}
