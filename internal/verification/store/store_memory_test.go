package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"citizenportal/internal/verification/models"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) newCitizen(email string) *models.User {
	u, err := models.NewCitizen(id.NewUserID(), email, "hash", "Test User", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Users().Create(s.ctx, u))
	return u
}

func (s *InMemoryStoreSuite) newApplication(owner id.UserID, at time.Time) *models.Application {
	app := models.NewApplication(owner, models.PersonalDetails{FirstName: "Test", LastName: "User"}, at)
	s.Require().NoError(s.store.Applications().Create(s.ctx, app))
	return app
}

func (s *InMemoryStoreSuite) TestCreateUserRejectsDuplicateEmail() {
	s.newCitizen("dup@example.com")

	other, err := models.NewCitizen(id.NewUserID(), "dup@example.com", "hash", "Other", s.now)
	s.Require().NoError(err)
	err = s.store.Users().Create(s.ctx, other)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestFindReturnsCopies() {
	u := s.newCitizen("copy@example.com")

	found, err := s.store.Users().FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	found.Name = "mutated"

	again, err := s.store.Users().FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Test User", again.Name)
}

func (s *InMemoryStoreSuite) TestCurrentApplicationIsLatestCreated() {
	u := s.newCitizen("current@example.com")
	first := s.newApplication(u.ID, s.now)
	second := s.newApplication(u.ID, s.now.Add(time.Hour))

	current, err := s.store.Applications().FindCurrentByUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, current.ID)
	s.Greater(second.ID, first.ID)

	all, err := s.store.Applications().ListByUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(second.ID, all[0].ID)
}

func (s *InMemoryStoreSuite) TestFindCurrentWithoutApplications() {
	u := s.newCitizen("none@example.com")
	_, err := s.store.Applications().FindCurrentByUser(s.ctx, u.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestQueueOrderAndHistoryFilter() {
	a := s.newCitizen("a@example.com")
	b := s.newCitizen("b@example.com")
	c := s.newCitizen("c@example.com")
	appB := s.newApplication(b.ID, s.now.Add(2*time.Minute))
	appA := s.newApplication(a.ID, s.now.Add(time.Minute))
	appC := s.newApplication(c.ID, s.now.Add(3*time.Minute))

	queue, err := s.store.Applications().ListByStatus(s.ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(queue, 3)
	s.Equal(appA.ID, queue[0].Application.ID)
	s.Equal("a@example.com", queue[0].Email)
	s.Equal(appB.ID, queue[1].Application.ID)

	reviewer := id.NewUserID()
	appA.ApplyStatus(models.StatusApproved, s.now.Add(time.Hour))
	appA.ApplyReview(reviewer, "", s.now.Add(time.Hour))
	s.Require().NoError(s.store.Applications().Update(s.ctx, appA))
	appC.ApplyStatus(models.StatusRejected, s.now.Add(2*time.Hour))
	appC.ApplyReview(reviewer, "blurry", s.now.Add(2*time.Hour))
	s.Require().NoError(s.store.Applications().Update(s.ctx, appC))

	history, err := s.store.Applications().ListDecided(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(appC.ID, history[0].Application.ID)

	approved := models.StatusApproved
	filtered, err := s.store.Applications().ListDecided(s.ctx, &approved)
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal(appA.ID, filtered[0].Application.ID)
}

func (s *InMemoryStoreSuite) TestWithinTxRollsBackBothTables() {
	u := s.newCitizen("tx@example.com")
	app := s.newApplication(u.ID, s.now)
	boom := errors.New("boom")

	err := s.store.WithinTx(s.ctx, func(users *MemoryUsers, apps *MemoryApplications) error {
		u.ApplyStatus(models.StatusApproved, s.now)
		if err := users.Update(s.ctx, u); err != nil {
			return err
		}
		extra := models.NewApplication(u.ID, models.PersonalDetails{FirstName: "X", LastName: "Y"}, s.now.Add(time.Hour))
		if err := apps.Create(s.ctx, extra); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := s.store.Users().FindByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusNone, stored.VerificationStatus)

	current, err := s.store.Applications().FindCurrentByUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(app.ID, current.ID)
}

func (s *InMemoryStoreSuite) TestSeedStaffIsIdempotent() {
	account := StaffAccount{Email: "validator@example.com", PasswordHash: "hash", Name: "Val", Role: models.RoleValidator}
	first, err := SeedStaff(s.ctx, s.store.Users(), account)
	s.Require().NoError(err)
	second, err := SeedStaff(s.ctx, s.store.Users(), account)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(models.RoleValidator, second.Role)
}
