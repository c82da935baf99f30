package appraisal

import (
	"fmt"
	"strings"
)

// Rule inspects content and reports every field it finds lacking.
type Rule func(c Content) []Violation

func blank(value string) bool {
	return strings.TrimSpace(value) == ""
}

func objectivePath(i int, field string) string {
	return fmt.Sprintf("sectionA.objectives[%d].%s", i, field)
}

func skillPath(i int, field string) string {
	return fmt.Sprintf("sectionB[%d].%s", i, field)
}

func objectivesComplete(c Content) []Violation {
	if len(c.SectionA.Objectives) == 0 {
		return []Violation{{Field: "sectionA.objectives", Reason: "at least one objective is required"}}
	}
	var out []Violation
	for i, objective := range c.SectionA.Objectives {
		if blank(objective.Objective) {
			out = append(out, Violation{Field: objectivePath(i, "objective"), Reason: "required"})
		}
		if blank(objective.ActionPlan) {
			out = append(out, Violation{Field: objectivePath(i, "actionPlan"), Reason: "required"})
		}
	}
	return out
}

func selfAssessmentComplete(c Content) []Violation {
	var out []Violation
	for _, field := range c.SectionA.SelfAssessment.fields() {
		if blank(field.value) {
			out = append(out, Violation{Field: "sectionA.selfAssessment." + field.name, Reason: "required"})
		}
	}
	return out
}

func skillsPresent(c Content) []Violation {
	if len(c.SectionB) == 0 {
		return []Violation{{Field: "sectionB", Reason: "at least one skill is required"}}
	}
	return nil
}

func employeeRatingsComplete(c Content) []Violation {
	out := skillsPresent(c)
	for i, skill := range c.SectionB {
		if blank(skill.EmployeeRating) {
			out = append(out, Violation{Field: skillPath(i, "employeeRating"), Reason: "rating required"})
		}
	}
	return out
}

func supervisorRatingsComplete(c Content) []Violation {
	out := skillsPresent(c)
	for i, skill := range c.SectionB {
		if blank(skill.SupervisorRating) {
			out = append(out, Violation{Field: skillPath(i, "supervisorRating"), Reason: "rating required"})
		}
	}
	return out
}

func supervisorCommentsComplete(c Content) []Violation {
	var out []Violation
	for i, objective := range c.SectionA.Objectives {
		if blank(objective.SupervisorComment) {
			out = append(out, Violation{Field: objectivePath(i, "supervisorComment"), Reason: "required"})
		}
	}
	return out
}

func learningNeedsPresent(c Content) []Violation {
	if blank(c.Recommendations.LearningNeeds) {
		return []Violation{{Field: "recommendations.learningNeeds", Reason: "required"}}
	}
	return nil
}

// ratingSymbols rejects anything that is neither empty nor a known symbol.
func ratingSymbols(known func(string) bool) Rule {
	return func(c Content) []Violation {
		var out []Violation
		for i, skill := range c.SectionB {
			if skill.EmployeeRating != "" && !known(skill.EmployeeRating) {
				out = append(out, Violation{Field: skillPath(i, "employeeRating"), Reason: "unknown rating " + skill.EmployeeRating})
			}
			if skill.SupervisorRating != "" && !known(skill.SupervisorRating) {
				out = append(out, Violation{Field: skillPath(i, "supervisorRating"), Reason: "unknown rating " + skill.SupervisorRating})
			}
		}
		return out
	}
}

// Check runs every rule and returns a ValidationError holding all
// violations, or nil when the content passes.
func Check(c Content, rules ...Rule) error {
	var violations []Violation
	for _, rule := range rules {
		violations = append(violations, rule(c)...)
	}
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
