package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/repository"
	"github.com/spec-kit/job-board/internal/storage"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// CVService orchestrates downloads, bulk archives and orphan cleanup.
type CVService struct {
	applications repository.ApplicationRepository
	jobs         repository.JobRepository
	store        *storage.CVStore
	logger       *zap.Logger
	orphanGrace  time.Duration
	now          func() time.Time
}

// CVDependencies bundles collaborators for the CV service.
type CVDependencies struct {
	ApplicationRepo repository.ApplicationRepository
	JobRepo         repository.JobRepository
	Store           *storage.CVStore
	Logger          *zap.Logger
	OrphanGrace     time.Duration
}

// NewCVService constructs the service.
func NewCVService(deps CVDependencies) *CVService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CVService{
		applications: deps.ApplicationRepo,
		jobs:         deps.JobRepo,
		store:        deps.Store,
		logger:       logger,
		orphanGrace:  deps.OrphanGrace,
		now:          time.Now,
	}
}

// CVDownload is an open stored CV ready to stream. Callers close File.
type CVDownload struct {
	File        *os.File
	Size        int64
	Name        string
	ContentType string
}

// ArchivePlan lists what goes into a job's CV archive.
type ArchivePlan struct {
	Name    string
	Entries []storage.ArchiveEntry
	Skipped []string
}

// ReconcileResult summarizes an orphan cleanup run. Pending counts
// unreferenced files still inside the grace period.
type ReconcileResult struct {
	TotalFiles    int      `json:"total_files"`
	OrphanedFiles int      `json:"orphaned_files"`
	DeletedFiles  int      `json:"deleted_files"`
	PendingFiles  int      `json:"pending_files"`
	Deleted       []string `json:"deleted"`
}

// Download opens the CV of an application for its applicant, the job's
// recruiter or an admin.
func (s *CVService) Download(ctx context.Context, actor *domain.User, applicationID string) (*CVDownload, error) {
	if err := auth.Authorize(actor, auth.RequireAuthenticated).Err(); err != nil {
		return nil, err
	}
	detail, err := s.applications.GetDetail(ctx, applicationID)
	if err != nil {
		return nil, lookupError(err, "application")
	}
	if err := auth.AuthorizeOwner(actor, detail.UserID, detail.Job.CreatedBy).Err(); err != nil {
		return nil, err
	}
	if !detail.HasCV() {
		return nil, apperrors.NewNotFoundMessage("no CV uploaded for this application", map[string]any{"reason": "no_cv"})
	}

	f, info, err := s.store.Open(*detail.CVFilename)
	if err != nil {
		if errors.Is(err, storage.ErrFileMissing) || errors.Is(err, storage.ErrInvalidName) {
			s.logger.Warn("referenced cv missing", zap.String("application_id", detail.ID), zap.String("file", *detail.CVFilename))
			return nil, apperrors.NewNotFoundMessage("CV file missing on server", map[string]any{"reason": "file_missing"})
		}
		return nil, apperrors.NewInternalError(err)
	}

	ext := strings.ToLower(filepath.Ext(*detail.CVFilename))
	return &CVDownload{
		File:        f,
		Size:        info.Size(),
		Name:        "CV_" + storage.JoinName(detail.Applicant.FirstName, detail.Applicant.LastName, detail.Job.Title) + ext,
		ContentType: contentTypeFor(ext),
	}, nil
}

// PlanArchive collects the CVs of a job. Missing files are skipped; the plan
// fails only when no file remains.
func (s *CVService) PlanArchive(ctx context.Context, actor *domain.User, jobID string) (*ArchivePlan, error) {
	if err := auth.Authorize(actor, auth.RequireRecruiterOrAdmin).Err(); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, lookupError(err, "job")
	}
	if err := auth.AuthorizeOwner(actor, job.CreatedBy).Err(); err != nil {
		return nil, err
	}

	apps, err := s.applications.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	plan := &ArchivePlan{
		Name: fmt.Sprintf("CVs_%s_%s.zip", storage.SafeName(job.Title), s.now().Format("20060102")),
	}
	used := make(map[string]int)
	for _, app := range apps {
		if !app.HasCV() {
			continue
		}
		stored := *app.CVFilename
		if !s.store.Exists(stored) {
			s.logger.Warn("skipping missing cv", zap.String("application_id", app.ID), zap.String("file", stored))
			plan.Skipped = append(plan.Skipped, stored)
			continue
		}
		base := storage.JoinName(app.Applicant.FirstName, app.Applicant.LastName) + "_CV"
		used[base]++
		if n := used[base]; n > 1 {
			base = fmt.Sprintf("%s_%d", base, n)
		}
		plan.Entries = append(plan.Entries, storage.ArchiveEntry{
			StoredName: stored,
			EntryName:  base + strings.ToLower(filepath.Ext(stored)),
		})
	}
	if len(plan.Entries) == 0 {
		return nil, apperrors.NewNotFoundMessage("no CV files found for this job", nil)
	}
	return plan, nil
}

// WriteArchive streams the planned archive to w.
func (s *CVService) WriteArchive(w io.Writer, plan *ArchivePlan) (storage.ArchiveResult, error) {
	result, err := s.store.WriteArchive(w, plan.Entries)
	if err != nil {
		s.logger.Error("cv archive failed", zap.String("archive", plan.Name), zap.Error(err))
	}
	return result, err
}

// Reconcile deletes stored CVs that no application references. Storage is
// listed before references are read and every candidate is re-checked right
// before deletion, so a file referenced at any point during the run survives.
func (s *CVService) Reconcile(ctx context.Context, actor *domain.User) (*ReconcileResult, error) {
	if err := auth.Authorize(actor, auth.RequireAdmin).Err(); err != nil {
		return nil, err
	}

	files, err := s.store.List()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	names, err := s.applications.ListCVFilenames(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	referenced := make(map[string]struct{}, len(names))
	for _, name := range names {
		referenced[name] = struct{}{}
	}

	result := &ReconcileResult{TotalFiles: len(files), Deleted: []string{}}
	cutoff := s.now().Add(-s.orphanGrace)
	for _, file := range files {
		if _, ok := referenced[file.Name]; ok {
			continue
		}
		if file.ModTime.After(cutoff) {
			result.PendingFiles++
			continue
		}
		result.OrphanedFiles++

		still, err := s.applications.IsCVReferenced(ctx, file.Name)
		if err != nil {
			s.logger.Warn("reference check failed, keeping file", zap.String("file", file.Name), zap.Error(err))
			continue
		}
		if still {
			continue
		}
		if s.store.Remove(file.Name) {
			result.DeletedFiles++
			result.Deleted = append(result.Deleted, file.Name)
		}
	}

	s.logger.Info("cv reconcile finished",
		zap.Int("total", result.TotalFiles),
		zap.Int("orphaned", result.OrphanedFiles),
		zap.Int("deleted", result.DeletedFiles),
		zap.Int("pending", result.PendingFiles))
	return result, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
