package services

import "time"

// QuestionCount is the number of questions in the fixed assessment form.
// An assessment is complete once it holds exactly this many answers.
const QuestionCount = 36

const (
	MinRating = 1
	MaxRating = 5
)

type Archetype struct {
	ID                      int    `json:"id" yaml:"id"`
	Name                    string `json:"name" yaml:"name"`
	MaleName                string `json:"male_name" yaml:"male_name"`
	FemaleName              string `json:"female_name" yaml:"female_name"`
	CoreDrive               string `json:"core_drive" yaml:"core_drive"`
	Strengths               string `json:"strengths" yaml:"strengths"`
	Shadow                  string `json:"shadow" yaml:"shadow"`
	InBusiness              string `json:"in_business" yaml:"in_business"`
	FreeTeaser              string `json:"free_teaser" yaml:"free_teaser"`
	DetailedCharacteristics string `json:"detailed_characteristics" yaml:"detailed_characteristics"`
	Blindspots              string `json:"blindspots" yaml:"blindspots"`
	InteractionPatterns     string `json:"interaction_patterns" yaml:"interaction_patterns"`
}

type Question struct {
	ID           int    `json:"id" yaml:"id"`
	ArchetypeID  int    `json:"archetype_id" yaml:"archetype_id"`
	DisplayOrder int    `json:"display_order" yaml:"display_order"`
	Text         string `json:"text" yaml:"text"`
}

// Answer is one stored rating. ArchetypeID is copied from the question when
// the answer is recorded so stores can hand back scoring input directly.
type Answer struct {
	AssessmentID string
	QuestionID   int
	ArchetypeID  int
	Rating       int
}

// ArchetypeScore is one ranked entry of a computed profile.
type ArchetypeScore struct {
	ArchetypeID   int     `json:"archetype_id"`
	ArchetypeName string  `json:"archetype_name"`
	DisplayName   string  `json:"display_name"`
	AverageScore  float64 `json:"average_score"`
	Rank          int     `json:"rank"`
}

// AssessmentResult is the cached calculation for an assessment. There is at
// most one per assessment; recalculation replaces it.
type AssessmentResult struct {
	AssessmentID         string
	Scores               string
	PrimaryArchetypeID   int
	SecondaryArchetypeID *int
	ShadowArchetypeID    *int
	CalculatedAt         time.Time
}

type Assessment struct {
	ID        string
	SessionID string
	Gender    Gender
	Email     string
	CreatedAt time.Time
	State     AssessmentState
}
