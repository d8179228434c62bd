package services

import "strings"

// Gender selects which display-name variant of an archetype a respondent sees.
// It plays no part in the scoring math.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender normalizes raw input into one of the two supported variants.
func ParseGender(raw string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(raw)))
	if !g.Valid() {
		return "", ErrInvalidGender
	}
	return g, nil
}

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// DisplayName resolves the gender-specific name of an archetype.
// There is no fallback branch: anything but male or female is an error.
func DisplayName(a *Archetype, g Gender) (string, error) {
	switch g {
	case GenderMale:
		return a.MaleName, nil
	case GenderFemale:
		return a.FemaleName, nil
	default:
		return "", ErrInvalidGender
	}
}
