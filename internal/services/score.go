package services

import (
	"fmt"
	"sort"
)

// RatedAnswer is the scoring input: one rating attributed to one archetype.
type RatedAnswer struct {
	ArchetypeID int
	Rating      int
}

// Profile is a ranked archetype profile.
// SecondaryArchetypeID is nil when fewer than two archetypes were scored.
// ShadowArchetypeID is the last-ranked archetype and equals the primary
// when only one archetype was scored.
type Profile struct {
	Scores               []ArchetypeScore
	PrimaryArchetypeID   int
	SecondaryArchetypeID *int
	ShadowArchetypeID    *int
}

// ComputeProfile groups ratings by archetype, averages each group and ranks
// the groups by average, highest first. Groups with equal averages keep the
// order in which their archetype first appears in answers.
func ComputeProfile(answers []RatedAnswer, archetypes ArchetypeLookup, gender Gender) (*Profile, error) {
	if !gender.Valid() {
		return nil, ErrInvalidGender
	}
	if len(answers) == 0 {
		return nil, ErrNoAnswers
	}

	type group struct {
		archetype *Archetype
		sum       int
		count     int
	}
	var groups []*group
	index := map[int]*group{}
	for _, ans := range answers {
		g, ok := index[ans.ArchetypeID]
		if !ok {
			a := archetypes.Archetype(ans.ArchetypeID)
			if a == nil {
				return nil, NewInvalidError(fmt.Sprintf("unknown archetype %d", ans.ArchetypeID))
			}
			g = &group{archetype: a}
			index[ans.ArchetypeID] = g
			groups = append(groups, g)
		}
		g.sum += ans.Rating
		g.count++
	}

	scores := make([]ArchetypeScore, 0, len(groups))
	for _, g := range groups {
		name, err := DisplayName(g.archetype, gender)
		if err != nil {
			return nil, err
		}
		scores = append(scores, ArchetypeScore{
			ArchetypeID:   g.archetype.ID,
			ArchetypeName: g.archetype.Name,
			DisplayName:   name,
			AverageScore:  float64(g.sum) / float64(g.count),
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].AverageScore > scores[j].AverageScore
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}

	p := &Profile{Scores: scores, PrimaryArchetypeID: scores[0].ArchetypeID}
	if len(scores) > 1 {
		id := scores[1].ArchetypeID
		p.SecondaryArchetypeID = &id
	}
	shadow := scores[len(scores)-1].ArchetypeID
	p.ShadowArchetypeID = &shadow
	return p, nil
}

// RatedAnswers projects stored answers onto scoring input, keeping their order.
func RatedAnswers(answers []Answer) []RatedAnswer {
	out := make([]RatedAnswer, 0, len(answers))
	for _, a := range answers {
		out = append(out, RatedAnswer{ArchetypeID: a.ArchetypeID, Rating: a.Rating})
	}
	return out
}
