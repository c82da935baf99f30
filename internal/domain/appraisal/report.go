package appraisal

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jung-kurt/gofpdf"
)

// ExportPDF renders the appraisal visible to actor as a PDF report.
func (s *Service) ExportPDF(ctx context.Context, appraisalID string, actor Actor, w io.Writer) error {
	a, err := s.GetAppraisal(ctx, appraisalID, actor)
	if err != nil {
		return err
	}
	owner, err := s.Store.GetStaff(ctx, a.StaffID)
	if err != nil {
		slog.Warn("report owner lookup failed", "appraisalId", a.ID, "err", err)
		owner = Staff{ID: a.StaffID, Name: a.StaffID}
	}
	supervisor, err := s.Store.GetStaff(ctx, a.SupervisorID)
	if err != nil {
		slog.Warn("report supervisor lookup failed", "appraisalId", a.ID, "err", err)
		supervisor = Staff{ID: a.SupervisorID, Name: a.SupervisorID}
	}
	return WriteReport(w, a, owner, supervisor)
}

func WriteReport(w io.Writer, a Appraisal, owner, supervisor Staff) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Performance Appraisal", true)
	pdf.AddPage()

	heading := func(text string) {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, tr(text))
		pdf.Ln(9)
		pdf.SetFont("Helvetica", "", 11)
	}
	field := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(48, 7, tr(label))
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 7, tr(value), "", "L", false)
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Performance Appraisal")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	field("Staff:", owner.Name)
	if owner.Designation != "" {
		field("Designation:", owner.Designation)
	}
	field("Supervisor:", supervisor.Name)
	field("Period:", a.PeriodLabel)
	field("Status:", string(a.Status))
	if a.CompletedAt != nil {
		field("Completed:", a.CompletedAt.Format("2006-01-02"))
	}

	heading("Section A: Objectives")
	for i, objective := range a.Content.SectionA.Objectives {
		field(fmt.Sprintf("Objective %d:", i+1), objective.Objective)
		field("Action plan:", objective.ActionPlan)
		field("Employee comment:", objective.EmployeeComment)
		field("Supervisor comment:", objective.SupervisorComment)
		pdf.Ln(2)
	}

	heading("Section A: Self-assessment")
	self := a.Content.SectionA.SelfAssessment
	field("Achievements:", self.Achievements)
	field("Challenges:", self.Challenges)
	field("Strengths:", self.Strengths)
	field("Improvements:", self.Improvements)
	field("Goals:", self.Goals)

	heading("Section B: Skills")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(110, 7, "Skill", "1", 0, "L", false, 0, "")
	pdf.CellFormat(35, 7, "Employee", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 7, "Supervisor", "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, skill := range a.Content.SectionB {
		pdf.CellFormat(110, 7, tr(skill.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, skill.EmployeeRating, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, skill.SupervisorRating, "1", 1, "C", false, 0, "")
	}

	heading("Recommendations")
	field("Learning needs:", a.Content.Recommendations.LearningNeeds)
	field("Other:", a.Content.Recommendations.OtherImprovements)

	if a.Scores != nil {
		heading("Scores")
		field("Employee score:", fmt.Sprintf("%.1f", a.Scores.EmployeeScore))
		field("Supervisor score:", fmt.Sprintf("%.1f", a.Scores.SupervisorScore))
		field("Final score:", fmt.Sprintf("%.1f", a.Scores.FinalScore))
		field("Grade:", fmt.Sprintf("%s (%s)", a.Scores.Grade, a.Scores.GradeLabel))
	}

	return pdf.Output(w)
}
