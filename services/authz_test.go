package services

import (
	"testing"

	"bounty-platform/models"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizationPredicates(t *testing.T) {
	hacker := Actor{UserID: "h1", Role: models.RoleHacker}
	owner := Actor{UserID: "c1", Role: models.RoleCompany}
	rival := Actor{UserID: "c2", Role: models.RoleCompany}
	admin := Actor{UserID: "a1", Role: models.RoleAdmin}
	anonymous := Actor{Role: models.RoleHacker}

	program := &models.Program{ID: "p1", CompanyID: "c1"}
	report := &models.Report{ID: "r1", SubmittedBy: "h1", Program: program}

	assert.True(t, CanSubmitReport(hacker))
	assert.False(t, CanSubmitReport(owner))
	assert.False(t, CanSubmitReport(anonymous))

	assert.True(t, CanReviewReport(owner, program))
	assert.True(t, CanReviewReport(admin, program))
	assert.False(t, CanReviewReport(rival, program))
	assert.False(t, CanReviewReport(hacker, program))
	assert.False(t, CanReviewReport(owner, nil))

	assert.True(t, CanViewReport(hacker, report))
	assert.True(t, CanViewReport(owner, report))
	assert.False(t, CanViewReport(Actor{UserID: "h2", Role: models.RoleHacker}, report))
	assert.False(t, CanViewReport(rival, report))

	assert.True(t, CanListCompanyReports(owner))
	assert.True(t, CanListCompanyReports(admin))
	assert.False(t, CanListCompanyReports(hacker))

	assert.True(t, CanReconcile(admin))
	assert.False(t, CanReconcile(owner))
}
