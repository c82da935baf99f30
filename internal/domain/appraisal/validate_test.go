package appraisal

import (
	"errors"
	"strings"
	"testing"

	"appraisal/internal/domain/scoring"
)

// completeContent returns a form filled in by every role.
func completeContent() Content {
	c := DefaultContent()
	for i := range c.SectionA.Objectives {
		c.SectionA.Objectives[i].Objective = "Ship quarterly release"
		c.SectionA.Objectives[i].ActionPlan = "Weekly milestones"
		c.SectionA.Objectives[i].EmployeeComment = "Done"
		c.SectionA.Objectives[i].SupervisorComment = "Agreed"
	}
	c.SectionA.SelfAssessment = SelfAssessment{
		Achievements: "Release shipped",
		Challenges:   "Staffing",
		Strengths:    "Planning",
		Improvements: "Delegation",
		Goals:        "Lead a team",
	}
	for i := range c.SectionB {
		c.SectionB[i].EmployeeRating = scoring.RatingEP
		c.SectionB[i].SupervisorRating = scoring.RatingSP
	}
	c.Recommendations.LearningNeeds = "Leadership course"
	return c
}

func violationFields(t *testing.T, err error) []string {
	t.Helper()
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	return validationErr.Fields()
}

func TestCheckPassesCompleteContent(t *testing.T) {
	c := completeContent()
	rules := []Rule{
		objectivesComplete, selfAssessmentComplete, employeeRatingsComplete,
		supervisorRatingsComplete, supervisorCommentsComplete, learningNeedsPresent,
		ratingSymbols(scoring.Default().Known),
	}
	if err := Check(c, rules...); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckReportsEveryMissingField(t *testing.T) {
	c := DefaultContent()
	fields := violationFields(t, Check(c, objectivesComplete, selfAssessmentComplete, employeeRatingsComplete))

	// 3 objectives x 2 fields, 5 self-assessment fields, 5 ratings.
	if len(fields) != 16 {
		t.Fatalf("expected 16 violations, got %d: %v", len(fields), fields)
	}
	for _, want := range []string{
		"sectionA.objectives[0].objective",
		"sectionA.objectives[2].actionPlan",
		"sectionA.selfAssessment.goals",
		"sectionB[4].employeeRating",
	} {
		if !contains(fields, want) {
			t.Fatalf("expected violation for %s in %v", want, fields)
		}
	}
}

func TestCheckRequiresObjectivesAndSkills(t *testing.T) {
	c := Content{}.normalized()
	fields := violationFields(t, Check(c, objectivesComplete, supervisorRatingsComplete))
	if !contains(fields, "sectionA.objectives") || !contains(fields, "sectionB") {
		t.Fatalf("expected list violations, got %v", fields)
	}
}

func TestCheckWhitespaceIsBlank(t *testing.T) {
	c := completeContent()
	c.Recommendations.LearningNeeds = "   "
	fields := violationFields(t, Check(c, learningNeedsPresent))
	if len(fields) != 1 || fields[0] != "recommendations.learningNeeds" {
		t.Fatalf("unexpected violations: %v", fields)
	}
}

func TestRatingSymbolsRejectsUnknown(t *testing.T) {
	c := completeContent()
	c.SectionB[1].EmployeeRating = "XX"
	c.SectionB[3].SupervisorRating = "ep"
	err := Check(c, ratingSymbols(scoring.Default().Known))
	fields := violationFields(t, err)
	if len(fields) != 2 || fields[0] != "sectionB[1].employeeRating" || fields[1] != "sectionB[3].supervisorRating" {
		t.Fatalf("unexpected violations: %v", fields)
	}
	if !strings.Contains(err.Error(), "unknown rating XX") {
		t.Fatalf("expected symbol in message, got %q", err.Error())
	}
}

func TestRatingSymbolsAllowsUnrated(t *testing.T) {
	c := DefaultContent()
	if err := Check(c, ratingSymbols(scoring.Default().Known)); err != nil {
		t.Fatalf("empty ratings should pass symbol check: %v", err)
	}
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
