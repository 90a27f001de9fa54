package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/job-board/internal/config"
	"github.com/spec-kit/job-board/internal/domain"
	"github.com/spec-kit/job-board/internal/events"
	"github.com/spec-kit/job-board/internal/repository"
	"github.com/spec-kit/job-board/internal/storage"
)

type fixture struct {
	repos      repository.Repositories
	store      *storage.CVStore
	uploadDir  string
	dispatcher events.Dispatcher
	queue      *recordingQueue
	recorder   *countingRecorder

	jobs    *JobService
	apps    *ApplicationService
	cvs     *CVService
	admin   *AdminService
	reports *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	dir := filepath.Join(t.TempDir(), "cvs")
	store, err := storage.NewCVStore(config.StorageConfig{UploadDir: dir}, nil)
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher()
	queue := &recordingQueue{}
	NewNotificationService(dispatcher, queue, nil).RegisterHandlers()
	recorder := &countingRecorder{transitions: map[string]int{}, uploads: map[string]int{}}

	return &fixture{
		repos:      repos,
		store:      store,
		uploadDir:  dir,
		dispatcher: dispatcher,
		queue:      queue,
		recorder:   recorder,
		jobs: NewJobService(JobDependencies{
			JobRepo:         repos.Jobs,
			ApplicationRepo: repos.Applications,
			Dispatcher:      dispatcher,
		}),
		apps: NewApplicationService(ApplicationDependencies{
			ApplicationRepo: repos.Applications,
			JobRepo:         repos.Jobs,
			CVStore:         store,
			Dispatcher:      dispatcher,
			Recorder:        recorder,
			EnforceDeadline: true,
		}),
		cvs: NewCVService(CVDependencies{
			ApplicationRepo: repos.Applications,
			JobRepo:         repos.Jobs,
			Store:           store,
			OrphanGrace:     10 * time.Minute,
		}),
		admin: NewAdminService(AdminDependencies{
			UserRepo:        repos.Users,
			JobRepo:         repos.Jobs,
			ApplicationRepo: repos.Applications,
		}),
		reports: NewReportService(repos.Jobs, repos.Applications, nil),
	}
}

func (f *fixture) user(t *testing.T, role domain.Role, first, last, email string) *domain.User {
	t.Helper()
	u := &domain.User{FirstName: first, LastName: last, Email: email, Role: role, IsActive: true, PasswordHash: "x"}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) job(t *testing.T, owner *domain.User, title string) *domain.Job {
	t.Helper()
	job, err := f.jobs.Create(context.Background(), owner, JobCreateInput{
		Title:       title,
		Description: "Build things",
		Deadline:    time.Now().AddDate(0, 0, 14).Format(domain.DeadlineLayout),
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) apply(t *testing.T, applicant *domain.User, job *domain.Job, withCV bool) *domain.Application {
	t.Helper()
	var cv *CVUpload
	if withCV {
		cv = pdfUpload("resume.pdf", "%PDF-1.4 test")
	}
	app, err := f.apps.Submit(context.Background(), applicant, job.ID, "Hello", cv)
	require.NoError(t, err)
	return app
}

func pdfUpload(name, body string) *CVUpload {
	return &CVUpload{Filename: name, Size: int64(len(body)), Content: bytes.NewBufferString(body)}
}

type recordingQueue struct {
	mu     sync.Mutex
	emails []Email
	full   bool
}

func (q *recordingQueue) Enqueue(email Email) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.emails = append(q.emails, email)
	return true
}

func (q *recordingQueue) sent() []Email {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Email(nil), q.emails...)
}

type countingRecorder struct {
	mu          sync.Mutex
	transitions map[string]int
	uploads     map[string]int
}

func (r *countingRecorder) RecordTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[from+"->"+to]++
}

func (r *countingRecorder) RecordUpload(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads[outcome]++
}

// failingReviews makes every review write fail after reading succeeds.
type failingReviews struct {
	repository.ApplicationRepository
}

var errStoreDown = errors.New("store down")

func (failingReviews) UpdateStatus(context.Context, *domain.Application, domain.ApplicationStatus) error {
	return errStoreDown
}

func (failingReviews) UpdateScore(context.Context, *domain.Application) error {
	return errStoreDown
}

func (failingReviews) UpdateNotes(context.Context, *domain.Application) error {
	return errStoreDown
}

// interleavedRead runs hook once, right after the first GetDetail returns, so
// another request lands between a service's read and its write.
type interleavedRead struct {
	repository.ApplicationRepository
	once sync.Once
	hook func()
}

func (r *interleavedRead) GetDetail(ctx context.Context, id string) (*domain.ApplicationDetail, error) {
	detail, err := r.ApplicationRepository.GetDetail(ctx, id)
	r.once.Do(r.hook)
	return detail, err
}

// failingCreates rejects every insert.
type failingCreates struct {
	repository.ApplicationRepository
}

func (failingCreates) Create(context.Context, *domain.Application) error {
	return errStoreDown
}

// lateReference reports every file as referenced on the per-file re-check, as
// if an upload committed between listing and deletion.
type lateReference struct {
	repository.ApplicationRepository
}

func (lateReference) IsCVReferenced(context.Context, string) (bool, error) {
	return true, nil
}
