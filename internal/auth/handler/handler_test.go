package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"citizenportal/internal/auth/secrets"
	authservice "citizenportal/internal/auth/service"
	"citizenportal/internal/auth/store/refreshtoken"
	jwttoken "citizenportal/internal/jwt_token"
	"citizenportal/internal/verification/models"
	"citizenportal/internal/verification/store"
	id "citizenportal/pkg/domain"
	"citizenportal/pkg/platform/httputil"
	"citizenportal/pkg/testutil"
)

type fixture struct {
	router http.Handler
	users  *store.MemoryUsers
	jwt    *jwttoken.JWTService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewInMemory().Users()
	hasher := secrets.NewHasher(bcrypt.MinCost)
	jwt := jwttoken.NewJWTService("auth-handler-key", "citizen-portal", "citizen-portal-web")

	svc, err := authservice.New(users, refreshtoken.New(), jwt, hasher, &authservice.Config{
		AccessTokenTTL:  10 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}, authservice.WithLogger(logger))
	require.NoError(t, err)

	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)
	now := time.Now().UTC()
	user, err := models.NewCitizen(id.NewUserID(), "maria@example.com", hash, "Maria Reyes", now)
	require.NoError(t, err)
	user.ApplyStatus(models.StatusPending, now)
	require.NoError(t, users.Create(context.Background(), user))

	r := chi.NewRouter()
	New(svc, logger, httputil.SessionCookies{RefreshTTL: time.Hour}).Register(r)
	return &fixture{router: r, users: users, jwt: jwt}
}

func (f *fixture) login(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "Maria@Example.com ",
		"password": "correct horse",
	})
	return testutil.DoRequest(f.router, req)
}

func refreshWithCookie(t *testing.T, f *fixture, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewRequest(t, http.MethodPost, "/auth/refresh")
	req.AddCookie(&http.Cookie{Name: httputil.RefreshTokenCookie, Value: token})
	return testutil.DoRequest(f.router, req)
}

func TestLogin(t *testing.T) {
	testutil.Given(t, "a registered citizen", func(t *testing.T) {
		f := newFixture(t)

		testutil.When(t, "the correct password is presented", func(t *testing.T) {
			rr := f.login(t)

			testutil.Then(t, "a session is opened", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				resp := testutil.UnmarshalResponse[sessionResponse](t, rr)
				assert.Equal(t, "pending", resp.User.VerificationStatus)
				assert.Equal(t, 600, resp.ExpiresIn)

				claims, err := f.jwt.ValidateToken(resp.Token)
				require.NoError(t, err)
				assert.Equal(t, "maria@example.com", claims.Email)
				assert.NotNil(t, testutil.ResponseCookie(rr, httputil.RefreshTokenCookie))
			})
		})

		testutil.When(t, "the password is wrong", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
				"email":    "maria@example.com",
				"password": "wrong password",
			})
			rr := testutil.DoRequest(f.router, req)

			testutil.Then(t, "the caller cannot tell it from an unknown email", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
				assert.Equal(t, "invalid email or password", testutil.UnmarshalErrorResponse(t, rr)["message"])
			})
		})

		testutil.When(t, "the email is malformed", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{"email": "nope"})
			rr := testutil.DoRequest(f.router, req)

			testutil.Then(t, "the fields are reported", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusBadRequest)
				fields := testutil.ErrorFields(t, rr)
				assert.Contains(t, fields, "email")
				assert.Contains(t, fields, "password")
			})
		})
	})
}

func TestRefresh(t *testing.T) {
	testutil.Given(t, "an open session", func(t *testing.T) {
		f := newFixture(t)
		first := testutil.ResponseCookie(f.login(t), httputil.RefreshTokenCookie)
		require.NotNil(t, first)

		rotated := refreshWithCookie(t, f, first.Value)

		testutil.Then(t, "the cookie token is rotated", func(t *testing.T) {
			testutil.AssertStatusOK(t, rotated)
			next := testutil.ResponseCookie(rotated, httputil.RefreshTokenCookie)
			require.NotNil(t, next)
			assert.NotEqual(t, first.Value, next.Value)
		})

		testutil.When(t, "the old token is replayed", func(t *testing.T) {
			rr := refreshWithCookie(t, f, first.Value)

			testutil.Then(t, "it is refused and the cookies are cleared", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
				cleared := testutil.ResponseCookie(rr, httputil.AccessTokenCookie)
				require.NotNil(t, cleared)
				assert.Negative(t, cleared.MaxAge)
			})

			testutil.Then(t, "the rotated token of the same session is dead too", func(t *testing.T) {
				next := testutil.ResponseCookie(rotated, httputil.RefreshTokenCookie)
				rr := refreshWithCookie(t, f, next.Value)
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			})
		})
	})

	testutil.Given(t, "a token sent in the body", func(t *testing.T) {
		f := newFixture(t)
		token := testutil.ResponseCookie(f.login(t), httputil.RefreshTokenCookie).Value

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": token})
		rr := testutil.DoRequest(f.router, req)

		testutil.Then(t, "it is accepted", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			testutil.AssertJSONHasKey(t, rr, "token")
		})
	})

	testutil.Given(t, "no token at all", func(t *testing.T) {
		f := newFixture(t)
		rr := testutil.DoRequest(f.router, testutil.NewRequest(t, http.MethodPost, "/auth/refresh"))

		testutil.Then(t, "the request is unauthorized", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
		})
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	token := testutil.ResponseCookie(f.login(t), httputil.RefreshTokenCookie).Value

	req := testutil.NewRequest(t, http.MethodPost, "/auth/logout")
	req.AddCookie(&http.Cookie{Name: httputil.RefreshTokenCookie, Value: token})
	rr := testutil.DoRequest(f.router, req)

	testutil.AssertStatus(t, rr, http.StatusNoContent)
	cleared := testutil.ResponseCookie(rr, httputil.RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	testutil.AssertStatus(t, refreshWithCookie(t, f, token), http.StatusUnauthorized)

	// Logging out twice is harmless.
	again := testutil.NewRequest(t, http.MethodPost, "/auth/logout")
	again.AddCookie(&http.Cookie{Name: httputil.RefreshTokenCookie, Value: token})
	testutil.AssertStatus(t, testutil.DoRequest(f.router, again), http.StatusNoContent)
}
