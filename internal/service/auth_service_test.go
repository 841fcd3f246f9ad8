package service

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []capturedMail
	err  error
}

func (f *fakeMailer) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, capturedMail{to, subject, body})
	return nil
}

func newAuthService(t *testing.T) (*AuthService, *fakeMailer) {
	t.Helper()
	m := &fakeMailer{}
	cfg := config.AuthConfig{
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		AdminUsername: "admin",
		AdminEmail:    "admin@example.com",
		AdminPassword: "admin-pass",
		ResetTokenTTL: time.Hour,
	}
	return NewAuthService(newTestDB(t), m, cfg, "http://localhost:3000/reset"), m
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)

	u, err := svc.Register("sakura", "Sakura@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Equal(t, "sakura@example.com", u.Email)
	assert.Equal(t, "sakura", u.DisplayName)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	byName, err := svc.Login("sakura", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := svc.Login("SAKURA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = svc.Login("sakura", "wrong")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = svc.Login("nobody", "secret1")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t)

	tests := []struct {
		name, username, email, password string
		want                            error
	}{
		{"short username", "ab", "a@b.c", "secret1", ErrInvalidInput},
		{"long username", "abcdefghijklmnopqrstuvwxyz1234567", "a@b.c", "secret1", ErrInvalidInput},
		{"bad email", "tanjiro", "tanjiro.example.com", "secret1", ErrInvalidInput},
		{"short password", "tanjiro", "t@example.com", "12345", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(tt.username, tt.email, tt.password)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := svc.Register("tanjiro", "t@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.Register("tanjiro", "other@example.com", "secret1")
	assert.True(t, errors.Is(err, ErrConflict))
	_, err = svc.Register("nezuko", "T@example.com", "secret1")
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestEnsureDefaultAdmin(t *testing.T) {
	svc, _ := newAuthService(t)
	_, err := svc.Register("first", "first@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.EnsureDefaultAdmin())
	require.NoError(t, svc.EnsureDefaultAdmin())

	var admins []model.User
	require.NoError(t, svc.DB.Where("role = ?", model.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin", admins[0].Username)

	_, err = svc.Login("admin", "admin-pass")
	assert.NoError(t, err)
}

func TestTokens(t *testing.T) {
	svc, _ := newAuthService(t)
	u, err := svc.Register("sakura", "sakura@example.com", "secret1")
	require.NoError(t, err)

	token, err := svc.IssueToken(u)
	require.NoError(t, err)
	got, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate("garbage")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestProfileAndPassword(t *testing.T) {
	svc, _ := newAuthService(t)
	u, err := svc.Register("sakura", "sakura@example.com", "secret1")
	require.NoError(t, err)

	u, err = svc.UpdateProfile(u.ID, ProfileInput{DisplayName: ptr("Sakura H."), Bio: ptr(" ninja ")})
	require.NoError(t, err)
	assert.Equal(t, "Sakura H.", u.DisplayName)
	assert.Equal(t, "ninja", u.Bio)

	u, err = svc.UpdateProfile(u.ID, ProfileInput{DisplayName: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "sakura", u.DisplayName)

	assert.True(t, errors.Is(svc.ChangePassword(u.ID, "wrong", "newpass1"), ErrUnauthorized))
	assert.True(t, errors.Is(svc.ChangePassword(u.ID, "secret1", "short"), ErrInvalidInput))
	require.NoError(t, svc.ChangePassword(u.ID, "secret1", "newpass1"))
	_, err = svc.Login("sakura", "newpass1")
	assert.NoError(t, err)
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f-]{36})`)

func TestPasswordResetFlow(t *testing.T) {
	svc, mail := newAuthService(t)
	_, err := svc.Register("sakura", "sakura@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset("nobody@example.com"))
	assert.Empty(t, mail.sent, "unknown addresses get no mail")

	require.NoError(t, svc.RequestPasswordReset("Sakura@example.com"))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "sakura@example.com", mail.sent[0].to)
	m := tokenPattern.FindStringSubmatch(mail.sent[0].body)
	require.Len(t, m, 2)
	token := m[1]

	assert.True(t, errors.Is(svc.ResetPassword("unknown", "newpass1"), ErrInvalidInput))
	assert.True(t, errors.Is(svc.ResetPassword(token, "short"), ErrInvalidInput))
	require.NoError(t, svc.ResetPassword(token, "newpass1"))
	assert.True(t, errors.Is(svc.ResetPassword(token, "newpass2"), ErrInvalidInput), "tokens are single use")

	_, err = svc.Login("sakura", "newpass1")
	assert.NoError(t, err)
}

func TestPasswordResetHidesMailFailure(t *testing.T) {
	svc, mail := newAuthService(t)
	_, err := svc.Register("sakura", "sakura@example.com", "secret1")
	require.NoError(t, err)
	mail.err = errors.New("smtp down")

	assert.NoError(t, svc.RequestPasswordReset("sakura@example.com"))
	assert.NoError(t, svc.RequestPasswordReset("nobody@example.com"))

	var tokens int64
	require.NoError(t, svc.DB.Model(&model.PasswordResetToken{}).Count(&tokens).Error)
	assert.Zero(t, tokens, "an unsent token is discarded")
}

func TestExpiredResetToken(t *testing.T) {
	svc, _ := newAuthService(t)
	u, err := svc.Register("sakura", "sakura@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.DB.Create(&model.PasswordResetToken{
		UserID: u.ID, Token: "expired", ExpiresAt: time.Now().Add(-time.Minute),
	}).Error)

	assert.True(t, errors.Is(svc.ResetPassword("expired", "newpass1"), ErrInvalidInput))
}

func TestUserAdministration(t *testing.T) {
	svc, _ := newAuthService(t)
	require.NoError(t, svc.EnsureDefaultAdmin())
	u, err := svc.Register("sakura", "sakura@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.Register("sasuke", "sasuke@example.com", "secret1")
	require.NoError(t, err)

	page, err := svc.ListUsers("sa", Paging{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	promoted, err := svc.SetRole(u.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())

	_, err = svc.SetRole(u.ID, "superuser")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	admin, err := svc.Login("admin", "admin-pass")
	require.NoError(t, err)
	_, err = svc.SetRole(admin.ID, model.RoleUser)
	require.NoError(t, err)
	_, err = svc.SetRole(u.ID, model.RoleUser)
	assert.True(t, errors.Is(err, ErrInvalidInput), "last admin stays")
}
