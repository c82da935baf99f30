package appraisal

type Status string

const (
	StatusDraft              Status = "draft"
	StatusSubmitted          Status = "submitted"
	StatusSupervisorApproved Status = "supervisor_approved"
	StatusHRApproved         Status = "hr_approved"
	StatusMDApproved         Status = "md_approved"
)

var Statuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusSupervisorApproved,
	StatusHRApproved,
	StatusMDApproved,
}

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusMDApproved
}

const (
	ActionCreate            = "appraisal.create"
	ActionSave              = "appraisal.save"
	ActionSubmit            = "appraisal.submit"
	ActionSupervisorApprove = "appraisal.supervisor_approve"
	ActionHRApprove         = "appraisal.hr_approve"
	ActionMDApprove         = "appraisal.md_approve"
	ActionAttachmentUpdate  = "appraisal.attachment.update"
	ActionAttachmentRemove  = "appraisal.attachment.remove"
	ActionLedgerResync      = "ledger.resync"
)

const (
	MaxAttachmentBytes = 5 << 20
	AttachmentMIMEType = "application/pdf"
)
