package service

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pokerjest/animestream/internal/auth"
	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/logger"
	"github.com/pokerjest/animestream/internal/mailer"
	"github.com/pokerjest/animestream/internal/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minUsername = 3
	maxUsername = 32
	minPassword = 6
)

type AuthService struct {
	DB       *gorm.DB
	Mailer   mailer.Sender
	Config   config.AuthConfig
	ResetURL string
}

func NewAuthService(db *gorm.DB, m mailer.Sender, cfg config.AuthConfig, resetURL string) *AuthService {
	if m == nil {
		m = mailer.LogSender{}
	}
	return &AuthService{DB: db, Mailer: m, Config: cfg, ResetURL: resetURL}
}

// Register creates a regular user account.
func (s *AuthService) Register(username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if n := utf8.RuneCountInString(username); n < minUsername || n > maxUsername {
		return nil, invalid("username must be %d to %d characters", minUsername, maxUsername)
	}
	if strings.Contains(username, "@") {
		return nil, invalid("username cannot contain @")
	}
	if !strings.Contains(email, "@") {
		return nil, invalid("email address is invalid")
	}
	return s.createUser(username, email, password, model.RoleUser)
}

func (s *AuthService) createUser(username, email, password, role string) (*model.User, error) {
	if len(password) < minPassword {
		return nil, invalid("password must be at least %d characters", minPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  username,
		Role:         role,
	}
	if err := s.DB.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username or email %w", ErrConflict)
		}
		return nil, err
	}
	return &user, nil
}

// CreateAdmin creates an account with the admin role. Used by the CLI.
func (s *AuthService) CreateAdmin(username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || !strings.Contains(email, "@") {
		return nil, invalid("username and a valid email are required")
	}
	return s.createUser(username, email, password, model.RoleAdmin)
}

// EnsureDefaultAdmin creates the configured admin when no admin exists yet.
func (s *AuthService) EnsureDefaultAdmin() error {
	var count int64
	if err := s.DB.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	logger.L().Info("No admin found. Creating default admin user...", zap.String("username", s.Config.AdminUsername))
	if _, err := s.CreateAdmin(s.Config.AdminUsername, s.Config.AdminEmail, s.Config.AdminPassword); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}
	return nil
}

// Login verifies credentials. identifier may be the username or the email.
func (s *AuthService) Login(identifier, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	var user model.User
	err := s.DB.Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).First(&user).Error
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

// IssueToken signs a bearer token for the user.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	return auth.Issue(s.Config.JWTSecret, s.Config.TokenTTL, user.ID, user.Role)
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(token string) (*model.User, error) {
	claims, err := auth.Parse(s.Config.JWTSecret, token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrUnauthorized
	}
	user, err := s.GetUser(id)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *AuthService) GetUser(id uint) (*model.User, error) {
	var user model.User
	if err := s.DB.First(&user, id).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

type ProfileInput struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

func (s *AuthService) UpdateProfile(userID uint, in ProfileInput) (*model.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if utf8.RuneCountInString(name) > 64 {
			return nil, invalid("display name is too long")
		}
		if name == "" {
			name = user.Username
		}
		user.DisplayName = name
	}
	setString(&user.AvatarURL, in.AvatarURL)
	if in.Bio != nil {
		if utf8.RuneCountInString(*in.Bio) > MaxCommentLength {
			return nil, invalid("bio exceeds %d characters", MaxCommentLength)
		}
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if err := s.DB.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword updates the password for a given user
func (s *AuthService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrUnauthorized
	}
	return s.setPassword(s.DB, user.ID, newPassword)
}

func (s *AuthService) setPassword(tx *gorm.DB, userID uint, password string) error {
	if len(password) < minPassword {
		return invalid("password must be at least %d characters", minPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return tx.Model(&model.User{}).Where("id = ?", userID).Update("password_hash", string(hash)).Error
}

// RequestPasswordReset mails a reset link. Unknown addresses succeed silently so
// the endpoint does not reveal which addresses have accounts. Mail failures are logged, not returned.
func (s *AuthService) RequestPasswordReset(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	var user model.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	ttl := s.Config.ResetTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := model.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.DB.Create(&token).Error; err != nil {
		return err
	}

	link := s.resetLink(token.Token)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Someone asked to reset the password of your account. The link below is valid for %s.</p>
<p><a href="%s">Reset password</a></p>
<p>If this wasn't you, ignore this mail.</p>`,
		html.EscapeString(user.DisplayName), ttl, html.EscapeString(link))

	if err := s.Mailer.Send(user.Email, "Password reset", body); err != nil {
		logger.L().Error("failed to send password reset mail", zap.Uint("user_id", user.ID), zap.Error(err))
		if err := s.DB.Delete(&token).Error; err != nil {
			logger.L().Warn("failed to discard unsent reset token", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *AuthService) resetLink(token string) string {
	base := s.ResetURL
	if base == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// ResetPassword consumes a reset token.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	if len(newPassword) < minPassword {
		return invalid("password must be at least %d characters", minPassword)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var rt model.PasswordResetToken
		if err := tx.Where("token = ?", token).First(&rt).Error; err != nil {
			if isNotFound(err) {
				return invalid("reset token is invalid")
			}
			return err
		}
		if rt.Used || time.Now().After(rt.ExpiresAt) {
			return invalid("reset token has expired")
		}
		if err := s.setPassword(tx, rt.UserID, newPassword); err != nil {
			return err
		}
		return tx.Model(&rt).Update("used", true).Error
	})
}

func (s *AuthService) ListUsers(query string, p Paging) (PageResult[model.User], error) {
	p = p.Normalize()
	q := s.DB.Model(&model.User{})
	if term := strings.TrimSpace(query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	base := q.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return PageResult[model.User]{}, err
	}
	var users []model.User
	if err := base.Order("id asc").Limit(p.PageSize).Offset(p.Offset()).Find(&users).Error; err != nil {
		return PageResult[model.User]{}, err
	}
	return newPageResult(users, total, p), nil
}

// SetRole changes a user's role. The last admin cannot be demoted.
func (s *AuthService) SetRole(id uint, role string) (*model.User, error) {
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, invalid("unknown role %q", role)
	}
	user, err := s.GetUser(id)
	if err != nil {
		return nil, err
	}
	if user.Role == model.RoleAdmin && role == model.RoleUser {
		var admins int64
		if err := s.DB.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&admins).Error; err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, invalid("cannot demote the last admin")
		}
	}
	if err := s.DB.Model(user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}
