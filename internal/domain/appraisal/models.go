package appraisal

import (
	"time"

	"appraisal/internal/domain/scoring"
)

type Actor struct {
	UserID string
	Role   string
}

type Staff struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Designation  string    `json:"designation,omitempty"`
	Department   string    `json:"department,omitempty"`
	SupervisorID string    `json:"supervisorId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type StaffFilter struct {
	Role         string
	SupervisorID string
}

// StaffUpdate carries the fields to change. Nil leaves a field as it is; an
// empty SupervisorID clears the assignment.
type StaffUpdate struct {
	Name         *string
	Email        *string
	Role         *string
	Designation  *string
	Department   *string
	SupervisorID *string
}

type Period struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Quarter   int       `json:"quarter"`
	Label     string    `json:"label"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type Objective struct {
	ID                string `json:"id,omitempty"`
	Objective         string `json:"objective"`
	ActionPlan        string `json:"actionPlan"`
	EmployeeComment   string `json:"employeeComment"`
	SupervisorComment string `json:"supervisorComment"`
}

type SelfAssessment struct {
	Achievements string `json:"achievements"`
	Challenges   string `json:"challenges"`
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
	Goals        string `json:"goals"`
}

type namedField struct {
	name  string
	value string
}

func (s SelfAssessment) fields() []namedField {
	return []namedField{
		{name: "achievements", value: s.Achievements},
		{name: "challenges", value: s.Challenges},
		{name: "strengths", value: s.Strengths},
		{name: "improvements", value: s.Improvements},
		{name: "goals", value: s.Goals},
	}
}

type SectionA struct {
	Objectives     []Objective    `json:"objectives"`
	SelfAssessment SelfAssessment `json:"selfAssessment"`
}

type Skill struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	EmployeeRating   string `json:"employeeRating"`
	SupervisorRating string `json:"supervisorRating"`
}

type Recommendations struct {
	LearningNeeds     string `json:"learningNeeds"`
	OtherImprovements string `json:"otherImprovements"`
}

type Content struct {
	SectionA        SectionA        `json:"sectionA"`
	SectionB        []Skill         `json:"sectionB"`
	Recommendations Recommendations `json:"recommendations"`
}

func (c Content) employeeRatings() []string {
	out := make([]string, len(c.SectionB))
	for i, skill := range c.SectionB {
		out[i] = skill.EmployeeRating
	}
	return out
}

func (c Content) supervisorRatings() []string {
	out := make([]string, len(c.SectionB))
	for i, skill := range c.SectionB {
		out[i] = skill.SupervisorRating
	}
	return out
}

// normalized replaces nil lists with empty ones so stored documents always
// carry arrays.
func (c Content) normalized() Content {
	if c.SectionA.Objectives == nil {
		c.SectionA.Objectives = []Objective{}
	}
	if c.SectionB == nil {
		c.SectionB = []Skill{}
	}
	return c
}

type Attachment struct {
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize"`
	FileData  string `json:"fileData,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

type Appraisal struct {
	ID           string          `json:"id"`
	StaffID      string          `json:"staffId"`
	SupervisorID string          `json:"supervisorId"`
	PeriodID     string          `json:"periodId"`
	PeriodLabel  string          `json:"periodLabel"`
	Status       Status          `json:"status"`
	Content      Content         `json:"content"`
	Scores       *scoring.Result `json:"scores,omitempty"`
	Attachment   *Attachment     `json:"attachment,omitempty"`
	SubmittedAt  *time.Time      `json:"submittedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// withoutPayload keeps attachment metadata and drops the encoded document.
func (a Appraisal) withoutPayload() Appraisal {
	if a.Attachment != nil {
		meta := *a.Attachment
		meta.FileData = ""
		meta.Encrypted = false
		a.Attachment = &meta
	}
	return a
}

type AppraisalFilter struct {
	StaffID       string
	SupervisorID  string
	PeriodID      string
	Status        Status
	ExcludeDrafts bool
}

type LedgerEntry struct {
	ID          string    `json:"id"`
	StaffID     string    `json:"staffId"`
	PeriodID    string    `json:"periodId"`
	PeriodLabel string    `json:"periodLabel"`
	AppraisalID string    `json:"appraisalId"`
	Score       float64   `json:"score"`
	Rating      string    `json:"rating"`
	CompletedAt time.Time `json:"completedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Event struct {
	ID          string    `json:"id"`
	AppraisalID string    `json:"appraisalId"`
	ActorID     string    `json:"actorId"`
	ActorRole   string    `json:"actorRole"`
	Action      string    `json:"action"`
	FromStatus  Status    `json:"fromStatus"`
	ToStatus    Status    `json:"toStatus"`
	RequestID   string    `json:"requestId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type BackfillSummary struct {
	Scanned    int      `json:"scanned"`
	Created    int      `json:"created"`
	Skipped    int      `json:"skipped"`
	SkippedIDs []string `json:"skippedIds,omitempty"`
}

// Scope selects the periods a leaderboard covers: one period, or every
// period of a year.
type Scope struct {
	PeriodID string
	Year     int
}

type Ranking struct {
	Rank             int     `json:"rank"`
	StaffID          string  `json:"staffId"`
	Name             string  `json:"name"`
	Designation      string  `json:"designation,omitempty"`
	TotalScore       float64 `json:"totalScore"`
	Percentage       float64 `json:"percentage"`
	PeriodsCompleted int     `json:"periodsCompleted"`
	LatestGrade      string  `json:"latestGrade"`
}
