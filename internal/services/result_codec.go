package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// EncodeScores renders a ranked profile as a JSON array of records. The
// output is deterministic for a given input, so recalculating an unchanged
// answer set reproduces the same text.
func EncodeScores(scores []ArchetypeScore) (string, error) {
	if len(scores) == 0 {
		return "", NewInvalidError("no scores to encode")
	}
	b, err := json.Marshal(scores)
	if err != nil {
		return "", fmt.Errorf("encode scores: %w", err)
	}
	return string(b), nil
}

// DecodeScores reads back text produced by EncodeScores. It never returns a
// partial list: malformed text, an empty list or a broken rank sequence all
// yield an error wrapping ErrDecode. Entries come back in rank order.
func DecodeScores(text string) ([]ArchetypeScore, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrDecode)
	}
	var scores []ArchetypeScore
	if err := json.Unmarshal([]byte(text), &scores); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrDecode)
	}
	seen := make([]bool, len(scores)+1)
	for i, s := range scores {
		if s.ArchetypeID <= 0 {
			return nil, fmt.Errorf("%w: entry %d has no archetype id", ErrDecode, i)
		}
		if s.Rank < 1 || s.Rank > len(scores) || seen[s.Rank] {
			return nil, fmt.Errorf("%w: entry %d has rank %d", ErrDecode, i, s.Rank)
		}
		seen[s.Rank] = true
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Rank < scores[j].Rank })
	return scores, nil
}
