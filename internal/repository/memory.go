package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/job-board/internal/domain"
)

// memoryStore keeps all records behind one lock so uniqueness checks and
// inserts happen atomically, like the constraints in the SQL schema.
type memoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	jobs  map[string]domain.Job
	apps  map[string]domain.Application
	seq   int64
	now   func() time.Time
}

// NewMemoryRepositories returns repositories backed by process memory.
func NewMemoryRepositories() Repositories {
	s := &memoryStore{
		users: make(map[string]domain.User),
		jobs:  make(map[string]domain.Job),
		apps:  make(map[string]domain.Application),
		now:   time.Now,
	}
	return Repositories{
		Users:        &memoryUsers{s},
		Jobs:         &memoryJobs{s},
		Applications: &memoryApplications{s},
	}
}

// stamp returns strictly increasing timestamps so ordering by creation is stable.
func (s *memoryStore) stamp() time.Time {
	s.seq++
	return s.now().UTC().Add(time.Duration(s.seq) * time.Microsecond)
}

type memoryUsers struct{ s *memoryStore }

func (r *memoryUsers) checkUnique(user *domain.User) error {
	for _, u := range r.s.users {
		if u.ID == user.ID {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicateEmail
		}
		if u.Phone != nil && user.Phone != nil && *u.Phone == *user.Phone {
			return ErrDuplicatePhone
		}
	}
	return nil
}

func (r *memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkUnique(user); err != nil {
		return err
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.s.stamp()
	r.s.users[user.ID] = *user
	return nil
}

func (r *memoryUsers) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if err := r.checkUnique(user); err != nil {
		return err
	}
	updated := *user
	updated.CreatedAt = existing.CreatedAt
	r.s.users[user.ID] = updated
	return nil
}

func (r *memoryUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return ErrNotFound
	}
	for _, a := range r.s.apps {
		if a.UserID == id {
			return ErrReferenced
		}
	}
	for _, j := range r.s.jobs {
		if j.CreatedBy == id {
			return ErrReferenced
		}
	}
	delete(r.s.users, id)
	return nil
}

func (r *memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUsers) matching(filter UserFilter) []domain.User {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []domain.User
	for _, u := range r.s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(u.Email), term) &&
			!strings.Contains(strings.ToLower(u.FullName()), term) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (r *memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.matching(filter)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *memoryUsers) Count(_ context.Context, filter UserFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.matching(filter)), nil
}

func (r *memoryUsers) CountByRole(_ context.Context) (map[domain.Role]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.Role]int, len(domain.Roles))
	for _, role := range domain.Roles {
		counts[role] = 0
	}
	for _, u := range r.s.users {
		counts[u.Role]++
	}
	return counts, nil
}

type memoryJobs struct{ s *memoryStore }

func (r *memoryJobs) Create(_ context.Context, job *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[job.CreatedBy]; !ok {
		return ErrReferenced
	}
	job.ID = uuid.NewString()
	job.CreatedAt = r.s.stamp()
	r.s.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobs) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.jobs[id]; !ok {
		return ErrNotFound
	}
	for _, a := range r.s.apps {
		if a.JobID == id {
			return ErrReferenced
		}
	}
	delete(r.s.jobs, id)
	return nil
}

func (r *memoryJobs) GetByID(_ context.Context, id string) (*domain.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (r *memoryJobs) matching(filter JobFilter) []domain.Job {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	var out []domain.Job
	for _, j := range r.s.jobs {
		if filter.CreatedBy != nil && j.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.ActiveOn != nil && !j.Open(*filter.ActiveOn) {
			continue
		}
		if filter.ExpiredOn != nil && j.Open(*filter.ExpiredOn) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(j.Title), term) &&
			!strings.Contains(strings.ToLower(j.Description), term) {
			continue
		}
		out = append(out, j)
	}
	return out
}

func (r *memoryJobs) List(_ context.Context, filter JobFilter) ([]domain.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.matching(filter)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *memoryJobs) Count(_ context.Context, filter JobFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.matching(filter)), nil
}

type memoryApplications struct{ s *memoryStore }

func (r *memoryApplications) Create(_ context.Context, app *domain.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[app.UserID]; !ok {
		return ErrReferenced
	}
	if _, ok := r.s.jobs[app.JobID]; !ok {
		return ErrReferenced
	}
	for _, a := range r.s.apps {
		if a.UserID == app.UserID && a.JobID == app.JobID {
			return ErrDuplicateApplication
		}
		if app.HasCV() && a.HasCV() && *a.CVFilename == *app.CVFilename {
			return ErrDuplicateCV
		}
	}
	app.ID = uuid.NewString()
	app.CreatedAt = r.s.stamp()
	app.UpdatedAt = app.CreatedAt
	r.s.apps[app.ID] = *app.Clone()
	return nil
}

func (r *memoryApplications) UpdateStatus(_ context.Context, app *domain.Application, from domain.ApplicationStatus) error {
	return r.update(app.ID, func(stored *domain.Application) error {
		if stored.Status != from {
			return ErrStatusChanged
		}
		stored.Status = app.Status
		return nil
	}, app)
}

func (r *memoryApplications) UpdateScore(_ context.Context, app *domain.Application) error {
	if app.Score != nil && (*app.Score < domain.MinScore || *app.Score > domain.MaxScore) {
		return ErrCheckViolation
	}
	score := app.Clone().Score
	return r.update(app.ID, func(stored *domain.Application) error {
		stored.Score = score
		return nil
	}, app)
}

func (r *memoryApplications) UpdateNotes(_ context.Context, app *domain.Application) error {
	notes := app.Clone().Notes
	return r.update(app.ID, func(stored *domain.Application) error {
		stored.Notes = notes
		return nil
	}, app)
}

// update applies change to the stored row under the write lock and copies the
// resulting status and timestamp back into app.
func (r *memoryApplications) update(id string, change func(*domain.Application) error, app *domain.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.apps[id]
	if !ok {
		return ErrNotFound
	}
	stored := existing.Clone()
	if err := change(stored); err != nil {
		return err
	}
	stored.UpdatedAt = r.s.stamp()
	r.s.apps[id] = *stored
	app.Status = stored.Status
	app.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *memoryApplications) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.apps[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.apps, id)
	return nil
}

func (r *memoryApplications) GetByID(_ context.Context, id string) (*domain.Application, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (r *memoryApplications) GetByUserAndJob(_ context.Context, userID, jobID string) (*domain.Application, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.apps {
		if a.UserID == userID && a.JobID == jobID {
			return a.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryApplications) GetDetail(_ context.Context, id string) (*domain.ApplicationDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	d := r.detail(a)
	return &d, nil
}

func (r *memoryApplications) detail(a domain.Application) domain.ApplicationDetail {
	return domain.ApplicationDetail{
		Application: *a.Clone(),
		Applicant:   r.s.users[a.UserID],
		Job:         r.s.jobs[a.JobID],
	}
}

func (r *memoryApplications) matching(filter ApplicationFilter) []domain.ApplicationDetail {
	var out []domain.ApplicationDetail
	for _, a := range r.s.apps {
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.JobID != nil && a.JobID != *filter.JobID {
			continue
		}
		if filter.JobOwner != nil && r.s.jobs[a.JobID].CreatedBy != *filter.JobOwner {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		out = append(out, r.detail(a))
	}
	return out
}

func newestFirst(out []domain.ApplicationDetail) {
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
}

func (r *memoryApplications) ListByUser(_ context.Context, userID string) ([]domain.ApplicationDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.matching(ApplicationFilter{UserID: &userID})
	newestFirst(out)
	return out, nil
}

func (r *memoryApplications) ListByJob(_ context.Context, jobID string) ([]domain.ApplicationDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.matching(ApplicationFilter{JobID: &jobID})
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Score, out[j].Score
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si > *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memoryApplications) List(_ context.Context, filter ApplicationFilter) ([]domain.ApplicationDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := r.matching(filter)
	newestFirst(out)
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (r *memoryApplications) Count(_ context.Context, filter ApplicationFilter) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.matching(filter)), nil
}

func (r *memoryApplications) CountByStatus(_ context.Context, filter ApplicationFilter) (map[domain.ApplicationStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.ApplicationStatus]int, len(domain.ApplicationStatuses))
	for _, status := range domain.ApplicationStatuses {
		counts[status] = 0
	}
	for _, d := range r.matching(filter) {
		counts[d.Status]++
	}
	return counts, nil
}

func (r *memoryApplications) ListCVFilenames(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var names []string
	for _, a := range r.s.apps {
		if a.HasCV() {
			names = append(names, *a.CVFilename)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *memoryApplications) IsCVReferenced(_ context.Context, filename string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.apps {
		if a.HasCV() && *a.CVFilename == filename {
			return true, nil
		}
	}
	return false, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		if offset == 0 {
			return items
		}
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
