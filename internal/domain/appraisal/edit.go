package appraisal

import "fmt"

type fieldClass int

const (
	classObjectiveText fieldClass = iota
	classActionPlan
	classEmployeeComment
	classSupervisorComment
	classObjectiveList
	classSelfAssessment
	classEmployeeRating
	classSupervisorRating
	classSkillDefinition
	classSkillList
	classRecommendation
)

type fieldSet map[fieldClass]bool

func allow(classes ...fieldClass) fieldSet {
	out := fieldSet{}
	for _, class := range classes {
		out[class] = true
	}
	return out
}

var (
	ownerFields = allow(
		classObjectiveText,
		classActionPlan,
		classEmployeeComment,
		classObjectiveList,
		classSelfAssessment,
		classEmployeeRating,
	)
	supervisorFields = allow(classSupervisorComment, classSupervisorRating)
	reviewerFields   = allow(classRecommendation)
)

type fieldChange struct {
	path  string
	class fieldClass
}

// diffContent lists every leaf that differs between two documents.
// Objectives and skills are compared by position; a length change is
// reported once for the list itself.
func diffContent(before, after Content) []fieldChange {
	var out []fieldChange
	add := func(changed bool, path string, class fieldClass) {
		if changed {
			out = append(out, fieldChange{path: path, class: class})
		}
	}

	beforeObjectives := before.SectionA.Objectives
	afterObjectives := after.SectionA.Objectives
	add(len(beforeObjectives) != len(afterObjectives), "sectionA.objectives", classObjectiveList)
	for i := 0; i < max(len(beforeObjectives), len(afterObjectives)); i++ {
		var b, a Objective
		if i < len(beforeObjectives) {
			b = beforeObjectives[i]
		}
		if i < len(afterObjectives) {
			a = afterObjectives[i]
		}
		add(b.ID != a.ID, objectivePath(i, "id"), classObjectiveList)
		add(b.Objective != a.Objective, objectivePath(i, "objective"), classObjectiveText)
		add(b.ActionPlan != a.ActionPlan, objectivePath(i, "actionPlan"), classActionPlan)
		add(b.EmployeeComment != a.EmployeeComment, objectivePath(i, "employeeComment"), classEmployeeComment)
		add(b.SupervisorComment != a.SupervisorComment, objectivePath(i, "supervisorComment"), classSupervisorComment)
	}

	beforeSelf := before.SectionA.SelfAssessment.fields()
	afterSelf := after.SectionA.SelfAssessment.fields()
	for i := range beforeSelf {
		add(beforeSelf[i].value != afterSelf[i].value, "sectionA.selfAssessment."+beforeSelf[i].name, classSelfAssessment)
	}

	add(len(before.SectionB) != len(after.SectionB), "sectionB", classSkillList)
	for i := 0; i < max(len(before.SectionB), len(after.SectionB)); i++ {
		var b, a Skill
		if i < len(before.SectionB) {
			b = before.SectionB[i]
		}
		if i < len(after.SectionB) {
			a = after.SectionB[i]
		}
		add(b.ID != a.ID, skillPath(i, "id"), classSkillDefinition)
		add(b.Name != a.Name, skillPath(i, "name"), classSkillDefinition)
		add(b.Description != a.Description, skillPath(i, "description"), classSkillDefinition)
		add(b.EmployeeRating != a.EmployeeRating, skillPath(i, "employeeRating"), classEmployeeRating)
		add(b.SupervisorRating != a.SupervisorRating, skillPath(i, "supervisorRating"), classSupervisorRating)
	}

	add(before.Recommendations.LearningNeeds != after.Recommendations.LearningNeeds, "recommendations.learningNeeds", classRecommendation)
	add(before.Recommendations.OtherImprovements != after.Recommendations.OtherImprovements, "recommendations.otherImprovements", classRecommendation)
	return out
}

// checkEdits rejects the proposal when it touches any field outside allowed,
// naming every offending path.
func checkEdits(before, after Content, allowed fieldSet, action string, actor Actor, status Status) error {
	var forbidden []string
	for _, change := range diffContent(before, after) {
		if !allowed[change.class] {
			forbidden = append(forbidden, change.path)
		}
	}
	if len(forbidden) == 0 {
		return nil
	}
	return &AuthorizationError{
		Action: action,
		Role:   actor.Role,
		Status: status,
		Reason: fmt.Sprintf("%s may not edit these fields at status %s", actor.Role, status),
		Fields: forbidden,
	}
}
