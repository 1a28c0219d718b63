package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/moodyoga/studio-api/internal/models"
	appErrors "github.com/moodyoga/studio-api/pkg/errors"
)

type mockUserRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
	created *models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}}
}

func (m *mockUserRepo) add(user *models.User) {
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-1"
	}
	m.created = user
	m.add(user)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, fullName string, updatedAt time.Time) error {
	if u, ok := m.byID[id]; ok {
		u.FullName = fullName
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if u, ok := m.byID[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{TokenSecret: "test-secret", TokenExpiry: time.Hour, Issuer: "studio-test"}
}

func TestAuthServiceRegisterDefaultsToStudent(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "new@example.com",
		Password: "secret1",
		FullName: "New User",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, user.Active)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	require.NotNil(t, repo.created)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "taken@example.com"})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "secret1",
		FullName: "Dup",
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestAuthServiceLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), FullName: "User", Role: models.RoleStudent, Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "u1", res.User.ID)

	// The issued token round-trips through validation.
	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "u1", claims.Actor().ID)
}

func TestAuthServiceLoginRejectsBadCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestAuthServiceLoginRejectsInactiveAccount(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), Active: false})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret1"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotAuthenticated))

	other := NewAuthService(repo, nil, nil, AuthConfig{TokenSecret: "other-secret", TokenExpiry: time.Hour})
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo.add(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), Active: true})
	res, err := other.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(res.AccessToken)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotAuthenticated))
}

func TestAuthServiceChangePassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u1", Email: "user@example.com", PasswordHash: string(hash), Active: true})
	svc := NewAuthService(repo, nil, nil, testAuthConfig())

	err = svc.ChangePassword(context.Background(), "u1", "wrong", "newsecret")
	assert.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", "secret1", "newsecret"))
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "newsecret"})
	require.NoError(t, err)
}
