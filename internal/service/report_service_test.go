package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/job-board/internal/domain"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

func TestJobReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reports.now = func() time.Time { return time.Date(2024, 7, 2, 8, 0, 0, 0, time.UTC) }
	recruiter := f.user(t, domain.RoleRecruiter, "Rita", "Recruiter", "rita@example.com")
	other := f.user(t, domain.RoleRecruiter, "Otto", "Other", "otto@example.com")
	job := f.job(t, recruiter, "Backend Engineer")
	for i, name := range []string{"Zoë", "Ana", "Ben"} {
		u := f.user(t, domain.RoleApplicant, name, "Applicant", name+"@example.com")
		app := f.apply(t, u, job, false)
		_, err := f.apps.SetScore(ctx, recruiter, app.ID, i+1)
		require.NoError(t, err)
	}

	report, err := f.reports.JobReport(ctx, recruiter, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Report_Backend_Engineer_20240702.pdf", report.Filename)
	assert.True(t, bytes.HasPrefix(report.Content, []byte("%PDF-")))

	_, err = f.reports.JobReport(ctx, other, job.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotOwner))

	_, err = f.reports.JobReport(ctx, recruiter, "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestNotifications_DropWhenQueueFull(t *testing.T) {
	f := newFixture(t)
	recruiter := f.user(t, domain.RoleRecruiter, "Rita", "Recruiter", "rita@example.com")
	applicant := f.user(t, domain.RoleApplicant, "Ana", "Applicant", "ana@example.com")
	job := f.job(t, recruiter, "Go Engineer")
	f.queue.full = true

	app := f.apply(t, applicant, job, false)
	assert.Equal(t, domain.ApplicationStatusSubmitted, app.Status)
	assert.Empty(t, f.queue.sent())
}
