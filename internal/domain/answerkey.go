package domain

import (
	"fmt"
	"strings"
)

// answerKeys maps the eight accepted correct-answer markers to option
// indexes. Imports accept numeric (1-4) and letter (A-D) forms,
// case-insensitive.
var answerKeys = map[string]int{
	"1": 0, "2": 1, "3": 2, "4": 3,
	"A": 0, "B": 1, "C": 2, "D": 3,
}

// ParseAnswerKey converts a correct-answer marker into an option index.
// It is total over the eight accepted inputs and fails for anything else.
func ParseAnswerKey(raw string) (int, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	idx, ok := answerKeys[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAnswerKey, raw)
	}
	return idx, nil
}
