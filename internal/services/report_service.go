package services

// ArchetypeSection is the report content for one archetype, with the
// display name already resolved for the respondent's gender.
type ArchetypeSection struct {
	ArchetypeID             int     `json:"archetype_id"`
	DisplayName             string  `json:"display_name"`
	AverageScore            float64 `json:"average_score"`
	Rank                    int     `json:"rank"`
	CoreDrive               string  `json:"core_drive"`
	DetailedCharacteristics string  `json:"detailed_characteristics"`
	Strengths               string  `json:"strengths"`
	Blindspots              string  `json:"blindspots"`
	Shadow                  string  `json:"shadow"`
	InBusiness              string  `json:"in_business"`
	InteractionPatterns     string  `json:"interaction_patterns"`
}

// Summary is the free view of a completed assessment.
type Summary struct {
	AssessmentID     string           `json:"assessment_id"`
	PrimaryName      string           `json:"primary_name"`
	PrimaryTeaser    string           `json:"primary_teaser"`
	Scores           []ArchetypeScore `json:"scores"`
	FullReportLocked bool             `json:"full_report_locked"`
}

// FullReport is the paid content. Secondary and Shadow are nil when the
// profile has no such entry.
type FullReport struct {
	AssessmentID string            `json:"assessment_id"`
	Gender       Gender            `json:"gender"`
	Primary      ArchetypeSection  `json:"primary"`
	Secondary    *ArchetypeSection `json:"secondary,omitempty"`
	Shadow       *ArchetypeSection `json:"shadow,omitempty"`
	Scores       []ArchetypeScore  `json:"scores"`
}

// ReportService selects report content. Layout is left to the caller.
type ReportService struct {
	assessments *AssessmentService
}

func NewReportService(assessments *AssessmentService) *ReportService {
	return &ReportService{assessments: assessments}
}

// Summary returns the teaser for a completed assessment.
func (s *ReportService) Summary(assessmentID string) (*Summary, error) {
	a, err := s.assessments.GetAssessment(assessmentID)
	if err != nil {
		return nil, err
	}
	if !a.State.Completed {
		return nil, ErrIncompleteAssessment
	}
	scores, err := s.assessments.Scores(assessmentID)
	if err != nil {
		return nil, err
	}
	primary := s.assessments.Catalog().Archetype(scores[0].ArchetypeID)
	if primary == nil {
		return nil, NewNotFoundError("archetype not found")
	}
	return &Summary{
		AssessmentID:     assessmentID,
		PrimaryName:      scores[0].DisplayName,
		PrimaryTeaser:    primary.FreeTeaser,
		Scores:           scores,
		FullReportLocked: !a.State.ReportUnlocked(),
	}, nil
}

// FullReport returns the detailed report after checking AuthorizeFullReport.
func (s *ReportService) FullReport(assessmentID string) (*FullReport, error) {
	if err := s.assessments.AuthorizeFullReport(assessmentID); err != nil {
		return nil, err
	}
	a, err := s.assessments.GetAssessment(assessmentID)
	if err != nil {
		return nil, err
	}
	scores, err := s.assessments.Scores(assessmentID)
	if err != nil {
		return nil, err
	}

	primary, err := s.section(scores[0], a.Gender)
	if err != nil {
		return nil, err
	}
	report := &FullReport{AssessmentID: assessmentID, Gender: a.Gender, Primary: *primary, Scores: scores}
	if len(scores) > 1 {
		if report.Secondary, err = s.section(scores[1], a.Gender); err != nil {
			return nil, err
		}
	}
	if report.Shadow, err = s.section(scores[len(scores)-1], a.Gender); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ReportService) section(score ArchetypeScore, g Gender) (*ArchetypeSection, error) {
	arch := s.assessments.Catalog().Archetype(score.ArchetypeID)
	if arch == nil {
		return nil, NewNotFoundError("archetype not found")
	}
	name, err := DisplayName(arch, g)
	if err != nil {
		return nil, err
	}
	return &ArchetypeSection{
		ArchetypeID:             arch.ID,
		DisplayName:             name,
		AverageScore:            score.AverageScore,
		Rank:                    score.Rank,
		CoreDrive:               arch.CoreDrive,
		DetailedCharacteristics: arch.DetailedCharacteristics,
		Strengths:               arch.Strengths,
		Blindspots:              arch.Blindspots,
		Shadow:                  arch.Shadow,
		InBusiness:              arch.InBusiness,
		InteractionPatterns:     arch.InteractionPatterns,
	}, nil
}
