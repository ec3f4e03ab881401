package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
// - Return sentinel.ErrConflict when a uniqueness rule would be violated
// - Return wrapped errors with context for infrastructure failures
//
// InMemory keeps users and applications behind one mutex so a transaction
// can span both tables. Stored values are clones; callers never alias them.
type InMemory struct {
	mu        sync.Mutex
	users     map[id.UserID]*models.User
	byEmail   map[string]id.UserID
	apps      map[id.ApplicationID]*models.Application
	nextAppID int64
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
		apps:    make(map[id.ApplicationID]*models.Application),
	}
}

// Users returns a self-locking view for use outside transactions.
func (s *InMemory) Users() *MemoryUsers {
	return &MemoryUsers{s: s, locking: true}
}

// Applications returns a self-locking view for use outside transactions.
func (s *InMemory) Applications() *MemoryApplications {
	return &MemoryApplications{s: s, locking: true}
}

// WithinTx holds the store lock for the duration of fn. If fn fails, every
// write it made to either table is discarded.
func (s *InMemory) WithinTx(ctx context.Context, fn func(users *MemoryUsers, apps *MemoryApplications) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users := maps.Clone(s.users)
	byEmail := maps.Clone(s.byEmail)
	apps := maps.Clone(s.apps)
	nextAppID := s.nextAppID

	if err := fn(&MemoryUsers{s: s}, &MemoryApplications{s: s}); err != nil {
		s.users, s.byEmail, s.apps, s.nextAppID = users, byEmail, apps, nextAppID
		return err
	}
	return nil
}

func (s *InMemory) lock(locking bool) func() {
	if !locking {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// MemoryUsers is the user table view of InMemory.
type MemoryUsers struct {
	s       *InMemory
	locking bool
}

func (u *MemoryUsers) Create(_ context.Context, user *models.User) error {
	defer u.s.lock(u.locking)()
	if _, taken := u.s.byEmail[user.Email]; taken {
		return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	}
	if _, exists := u.s.users[user.ID]; exists {
		return fmt.Errorf("user id already exists: %w", sentinel.ErrConflict)
	}
	u.s.users[user.ID] = user.Clone()
	u.s.byEmail[user.Email] = user.ID
	return nil
}

func (u *MemoryUsers) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	defer u.s.lock(u.locking)()
	if user, ok := u.s.users[userID]; ok {
		return user.Clone(), nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (u *MemoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	defer u.s.lock(u.locking)()
	if userID, ok := u.s.byEmail[email]; ok {
		return u.s.users[userID].Clone(), nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

func (u *MemoryUsers) Update(_ context.Context, user *models.User) error {
	defer u.s.lock(u.locking)()
	existing, ok := u.s.users[user.ID]
	if !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	if existing.Email != user.Email {
		if _, taken := u.s.byEmail[user.Email]; taken {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		delete(u.s.byEmail, existing.Email)
		u.s.byEmail[user.Email] = user.ID
	}
	u.s.users[user.ID] = user.Clone()
	return nil
}

// MemoryApplications is the application table view of InMemory.
type MemoryApplications struct {
	s       *InMemory
	locking bool
}

// Create assigns the next sequence value to app.ID.
func (a *MemoryApplications) Create(_ context.Context, app *models.Application) error {
	defer a.s.lock(a.locking)()
	if _, ok := a.s.users[app.UserID]; !ok {
		return fmt.Errorf("application owner not found: %w", sentinel.ErrNotFound)
	}
	a.s.nextAppID++
	app.ID = id.ApplicationID(a.s.nextAppID)
	a.s.apps[app.ID] = app.Clone()
	return nil
}

func (a *MemoryApplications) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	defer a.s.lock(a.locking)()
	if app, ok := a.s.apps[appID]; ok {
		return app.Clone(), nil
	}
	return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
}

// FindCurrentByUser returns the most recently created application.
func (a *MemoryApplications) FindCurrentByUser(_ context.Context, userID id.UserID) (*models.Application, error) {
	defer a.s.lock(a.locking)()
	var current *models.Application
	for _, app := range a.s.apps {
		if app.UserID != userID {
			continue
		}
		if current == nil || newerThan(app, current) {
			current = app
		}
	}
	if current == nil {
		return nil, fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	return current.Clone(), nil
}

// ListByUser returns every application of the user, newest first.
func (a *MemoryApplications) ListByUser(_ context.Context, userID id.UserID) ([]*models.Application, error) {
	defer a.s.lock(a.locking)()
	out := make([]*models.Application, 0)
	for _, app := range a.s.apps {
		if app.UserID == userID {
			out = append(out, app.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerThan(out[i], out[j]) })
	return out, nil
}

func (a *MemoryApplications) Update(_ context.Context, app *models.Application) error {
	defer a.s.lock(a.locking)()
	existing, ok := a.s.apps[app.ID]
	if !ok {
		return fmt.Errorf("application not found: %w", sentinel.ErrNotFound)
	}
	updated := app.Clone()
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	a.s.apps[app.ID] = updated
	return nil
}

// ListByStatus returns applications in the given status, oldest submission
// first.
func (a *MemoryApplications) ListByStatus(_ context.Context, status models.Status) ([]models.ReviewItem, error) {
	defer a.s.lock(a.locking)()
	items := a.s.reviewItems(func(app *models.Application) bool { return app.Status == status })
	sort.Slice(items, func(i, j int) bool {
		ai, aj := items[i].Application, items[j].Application
		if !ai.SubmittedAt.Equal(aj.SubmittedAt) {
			return ai.SubmittedAt.Before(aj.SubmittedAt)
		}
		return ai.ID < aj.ID
	})
	return items, nil
}

// ListDecided returns non-pending applications, most recent decision first.
// A nil filter returns every decided status.
func (a *MemoryApplications) ListDecided(_ context.Context, filter *models.Status) ([]models.ReviewItem, error) {
	defer a.s.lock(a.locking)()
	items := a.s.reviewItems(func(app *models.Application) bool {
		if filter != nil {
			return app.Status == *filter
		}
		return app.Status.IsDecided()
	})
	sort.Slice(items, func(i, j int) bool {
		ai, aj := items[i].Application, items[j].Application
		ri, rj := ai.ReviewedAt, aj.ReviewedAt
		switch {
		case ri != nil && rj != nil && !ri.Equal(*rj):
			return ri.After(*rj)
		case ri != nil && rj == nil:
			return true
		case ri == nil && rj != nil:
			return false
		}
		if !ai.UpdatedAt.Equal(aj.UpdatedAt) {
			return ai.UpdatedAt.After(aj.UpdatedAt)
		}
		return ai.ID > aj.ID
	})
	return items, nil
}

func (s *InMemory) reviewItems(keep func(*models.Application) bool) []models.ReviewItem {
	items := make([]models.ReviewItem, 0)
	for _, app := range s.apps {
		if !keep(app) {
			continue
		}
		var email string
		if owner, ok := s.users[app.UserID]; ok {
			email = owner.Email
		}
		items = append(items, models.ReviewItem{Application: app.Clone(), Email: email})
	}
	return items
}

func newerThan(a, b *models.Application) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
