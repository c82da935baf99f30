package appraisal

import "fmt"

const defaultObjectiveCount = 3

var defaultSkills = []Skill{
	{ID: "job-knowledge", Name: "Job Knowledge", Description: "Understands the duties, tools and procedures of the role."},
	{ID: "quality-of-work", Name: "Quality of Work", Description: "Delivers accurate, thorough and well organised work."},
	{ID: "productivity", Name: "Productivity", Description: "Completes assigned work on time and manages workload."},
	{ID: "communication", Name: "Communication", Description: "Shares information clearly in writing and in person."},
	{ID: "teamwork", Name: "Teamwork", Description: "Cooperates with colleagues and supports shared goals."},
}

// DefaultContent is the blank appraisal form handed to new drafts.
func DefaultContent() Content {
	objectives := make([]Objective, defaultObjectiveCount)
	for i := range objectives {
		objectives[i].ID = fmt.Sprintf("objective-%d", i+1)
	}
	skills := make([]Skill, len(defaultSkills))
	copy(skills, defaultSkills)
	return Content{
		SectionA: SectionA{Objectives: objectives},
		SectionB: skills,
	}
}

func PeriodLabel(year, quarter int) string {
	return fmt.Sprintf("Q%d %d", quarter, year)
}
