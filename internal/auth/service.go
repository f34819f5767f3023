// Package auth はアカウント登録、パスワード認証、アクセストークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/devdash/internal/dashboard"
	"github.com/hitoshi/devdash/internal/model"
	"github.com/hitoshi/devdash/internal/repository"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 6
)

// RegisterInput はアカウント登録の入力。
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Hasher はパスワードハッシュ化のインターフェース。
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// TokenIssuer はアクセストークン発行のインターフェース。
type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users  repository.UserRepository
	hasher Hasher
	tokens TokenIssuer
	now    func() time.Time
	newID  func() string

	dummyOnce sync.Once
	dummyHash string
}

// dummyPassword は未登録メールアドレスでのログイン時に比較対象とするパスワード。
const dummyPassword = "devdash-unknown-user"

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, hasher Hasher, tokens TokenIssuer) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Register はアカウントと初期ダッシュボードを作成する。
// 入力不正はVALIDATION_FAILED、重複はUSER_EXISTSのAPIErrorを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	if apiErr := validateRegistration(username, email, in.Password); apiErr != nil {
		return nil, apiErr
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, model.NewUserExistsError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, model.NewValidationError("Password must be at most 72 bytes")
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		LastLogin:    now,
	}
	dash := &model.Dashboard{
		UserID:     user.ID,
		Categories: dashboard.NewAccountCategories(),
		Settings:   model.Settings{Theme: model.ThemeLight, LastUpdated: now},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.users.CreateWithDashboard(ctx, user, dash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// Login はメールアドレスとパスワードを検証し、アクセストークンを発行する。
// メールアドレス不一致とパスワード不一致は同じエラーを返し、
// 失敗時は最終ログイン日時を更新しない。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 応答時間でアカウントの有無が分からないよう、ダミーハッシュとも比較する。
		s.hasher.Compare(s.unknownUserHash(), password)
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = now

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Warn("failed to prepare dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(username, email, password string) *model.APIError {
	n := utf8.RuneCountInString(username)
	switch {
	case n < minUsernameLen || n > maxUsernameLen:
		return model.NewValidationError("Username must be between 3 and 30 characters")
	case !strings.Contains(email, "@"):
		return model.NewValidationError("A valid email is required")
	case utf8.RuneCountInString(password) < minPasswordLen:
		return model.NewValidationError("Password must be at least 6 characters")
	}
	return nil
}
