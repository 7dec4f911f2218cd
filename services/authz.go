package services

import "bounty-platform/models"

// Actor is the authenticated caller, as supplied by the gateway.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// CanSubmitReport: only hackers create reports.
func CanSubmitReport(a Actor) bool {
	return a.UserID != "" && a.Role == models.RoleHacker
}

// CanReviewReport: the program's owning company, or an admin.
func CanReviewReport(a Actor, p *models.Program) bool {
	if a.UserID == "" || p == nil {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	return a.Role == models.RoleCompany && p.CompanyID == a.UserID
}

// CanViewReport: the submitter, plus everyone who may review it.
func CanViewReport(a Actor, r *models.Report) bool {
	if a.UserID == "" || r == nil {
		return false
	}
	if a.Role == models.RoleHacker {
		return r.SubmittedBy == a.UserID
	}
	return CanReviewReport(a, r.Program)
}

// CanListCompanyReports: companies see their own programs, admins see everything.
func CanListCompanyReports(a Actor) bool {
	return a.UserID != "" && (a.Role == models.RoleCompany || a.IsAdmin())
}

// CanReconcile: batch/administrative progression repair is admin-only.
func CanReconcile(a Actor) bool {
	return a.UserID != "" && a.IsAdmin()
}
