package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"citizenportal/internal/audit"
	"citizenportal/internal/auth/metrics"
	"citizenportal/internal/auth/models"
	"citizenportal/internal/auth/secrets"
	"citizenportal/internal/auth/store/refreshtoken"
	jwttoken "citizenportal/internal/jwt_token"
	vmodels "citizenportal/internal/verification/models"
	vstore "citizenportal/internal/verification/store"
	id "citizenportal/pkg/domain"
	dErrors "citizenportal/pkg/domain-errors"
	"citizenportal/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	users    *vstore.InMemory
	tokens   *refreshtoken.InMemoryRefreshTokenStore
	jwt      *jwttoken.JWTService
	auditLog *audit.InMemoryStore
	service  *Service
	user     *vmodels.User
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = vstore.NewInMemory()
	s.tokens = refreshtoken.New()
	s.jwt = jwttoken.NewJWTService("test-key", "citizenportal", "citizenportal-web")
	s.auditLog = audit.NewInMemoryStore()
	hasher := secrets.NewHasher(bcrypt.MinCost)

	svc, err := New(s.users.Users(), s.tokens, s.jwt, hasher,
		&Config{AccessTokenTTL: 10 * time.Minute, RefreshTokenTTL: time.Hour},
		WithAuditPublisher(audit.NewPublisher(s.auditLog)),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	s.service = svc

	hash, err := hasher.Hash("correct horse")
	s.Require().NoError(err)
	s.user, err = vmodels.NewCitizen(id.NewUserID(), "maria@example.com", hash, "Maria Reyes", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.users.Users().Create(context.Background(), s.user))

	s.ctx = requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", "Mozilla/5.0")
}

func (s *ServiceSuite) claims(token string) *jwttoken.Claims {
	claims, err := s.jwt.ValidateToken(token)
	s.Require().NoError(err)
	return claims
}

func (s *ServiceSuite) actions() []string {
	var out []string
	for _, e := range s.auditLog.ListAll() {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestIssueBuildsClaimsFromUser() {
	creds, err := s.service.Issue(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal(10*time.Minute, creds.ExpiresIn)

	claims := s.claims(creds.AccessToken)
	s.Equal(s.user.ID.String(), claims.UserID)
	s.Equal("maria@example.com", claims.Email)
	s.Equal("Maria Reyes", claims.Name)
	s.Equal("citizen", claims.Role)
	s.Equal("none", claims.VerificationStatus)

	record, err := s.tokens.Find(s.ctx, secrets.TokenHash(creds.RefreshToken))
	s.Require().NoError(err)
	s.Equal(s.user.ID, record.UserID)
	s.Equal("Mozilla/5.0", record.UserAgent)
	s.Equal("203.0.113.7", record.IP)
}

func (s *ServiceSuite) TestRefreshReloadsUser() {
	creds, err := s.service.Issue(s.ctx, s.user)
	s.Require().NoError(err)

	// The account moves on after the first token was issued.
	updated := s.user.Clone()
	updated.ApplyStatus(vmodels.StatusPending, time.Now())
	updated.Rename("Maria Santos Reyes", time.Now())
	s.Require().NoError(s.users.Users().Update(s.ctx, updated))

	res, err := s.service.Refresh(s.ctx, creds.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(creds.RefreshToken, res.Credentials.RefreshToken)

	claims := s.claims(res.Credentials.AccessToken)
	s.Equal("pending", claims.VerificationStatus)
	s.Equal("Maria Santos Reyes", claims.Name)

	oldRec, err := s.tokens.Find(s.ctx, secrets.TokenHash(creds.RefreshToken))
	s.Require().NoError(err)
	newRec, err := s.tokens.Find(s.ctx, secrets.TokenHash(res.Credentials.RefreshToken))
	s.Require().NoError(err)
	s.True(oldRec.Used)
	s.Equal(oldRec.SessionID, newRec.SessionID, "rotation stays in the session")
	s.Contains(s.actions(), audit.EventTokenRefreshed)
}

func (s *ServiceSuite) TestRefreshReplayRevokesSession() {
	creds, err := s.service.Issue(s.ctx, s.user)
	s.Require().NoError(err)
	rotated, err := s.service.Refresh(s.ctx, creds.RefreshToken)
	s.Require().NoError(err)

	_, err = s.service.Refresh(s.ctx, creds.RefreshToken)
	s.ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token"))

	// The legitimate successor is dead too.
	_, err = s.service.Refresh(s.ctx, rotated.Credentials.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Contains(s.actions(), audit.EventRefreshReplayDetected)
	s.Equal(1.0, testutil.ToFloat64(s.service.metrics.ReplayDetected))
}

func (s *ServiceSuite) TestRefreshRejectsUnknownAndExpired() {
	_, err := s.service.Refresh(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	_, err = s.service.Refresh(s.ctx, "ref_unknown")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	creds, err := s.service.Issue(s.ctx, s.user)
	s.Require().NoError(err)
	later := requestcontext.WithTime(s.ctx, time.Now().Add(2*time.Hour))
	_, err = s.service.Refresh(later, creds.RefreshToken)
	s.ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "refresh token has expired"))
}

func (s *ServiceSuite) TestRevoke() {
	creds, err := s.service.Issue(s.ctx, s.user)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Revoke(s.ctx, creds.RefreshToken))
	s.Require().NoError(s.service.Revoke(s.ctx, creds.RefreshToken), "logout is idempotent")
	s.Require().NoError(s.service.Revoke(s.ctx, "ref_unknown"))
	s.Require().NoError(s.service.Revoke(s.ctx, ""))

	_, err = s.service.Refresh(s.ctx, creds.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	revokedEvents := 0
	for _, a := range s.actions() {
		if a == audit.EventSessionRevoked {
			revokedEvents++
		}
	}
	s.Equal(1, revokedEvents)
}

func (s *ServiceSuite) TestLogin() {
	s.Run("success", func() {
		res, err := s.service.Login(s.ctx, &models.LoginRequest{Email: " Maria@Example.com", Password: "correct horse"})
		s.Require().NoError(err)
		s.Equal(s.user.ID, res.User.ID)
		s.NotEmpty(res.Credentials.RefreshToken)
	})

	s.Run("wrong password and unknown email look the same", func() {
		_, errWrong := s.service.Login(s.ctx, &models.LoginRequest{Email: "maria@example.com", Password: "nope"})
		_, errUnknown := s.service.Login(s.ctx, &models.LoginRequest{Email: "who@example.com", Password: "nope"})
		s.ErrorIs(errWrong, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password"))
		s.ErrorIs(errUnknown, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password"))
	})

	s.Run("validation", func() {
		_, err := s.service.Login(s.ctx, &models.LoginRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Contains(s.actions(), audit.EventLoginSucceeded)
	s.Contains(s.actions(), audit.EventLoginFailed)
}

func (s *ServiceSuite) TestDeleteExpiredTokens() {
	past := requestcontext.WithTime(s.ctx, time.Now().Add(-2*time.Hour))
	_, err := s.service.CreateRefreshSession(past, s.user.ID, "ua", "ip")
	s.Require().NoError(err)
	_, err = s.service.CreateRefreshSession(s.ctx, s.user.ID, "ua", "ip")
	s.Require().NoError(err)

	n, err := s.service.DeleteExpiredTokens(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestExpirySweeperRunsUntilCancelled() {
	past := requestcontext.WithTime(s.ctx, time.Now().Add(-2*time.Hour))
	token, err := s.service.CreateRefreshSession(past, s.user.ID, "ua", "ip")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.service.RunExpirySweeper(ctx, 5*time.Millisecond) }()

	s.Eventually(func() bool {
		_, err := s.tokens.Find(context.Background(), secrets.TokenHash(token))
		return err != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(<-done)
}
