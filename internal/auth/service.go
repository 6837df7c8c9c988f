package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/repository"
)

// bearerPrefix はAuthorizationヘッダーのBearerスキームのプレフィックス。
// 大文字小文字を区別した完全一致で除去する。
const bearerPrefix = "Bearer "

// minPasswordLength はサインアップ時に要求するパスワードの最小文字数。
const minPasswordLength = 6

// ContentSanitizer はユーザー入力テキストのサニタイズインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type ContentSanitizer interface {
	Sanitize(raw string) string
}

// Service は認証のサービス層。
// サインアップ・ログイン・プロフィール更新と、認証ゲート（Authenticate）を提供する。
type Service struct {
	users     repository.UserRepository
	tokens    *TokenManager
	sanitizer ContentSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, tokens *TokenManager, sanitizer ContentSanitizer) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		sanitizer: sanitizer,
	}
}

// SignupInput はサインアップの入力。
type SignupInput struct {
	FullName string
	Email    string
	Password string
	Bio      string
}

// Signup は新規ユーザーを登録し、ユーザーとトークンを返す。
// メールアドレスが登録済みの場合はEmailTakenエラーを返す。
func (s *Service) Signup(ctx context.Context, input SignupInput) (*model.User, string, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if input.FullName == "" || input.Email == "" || input.Password == "" {
		return nil, "", model.NewValidationError("fullName, email, password は必須です")
	}
	if !strings.Contains(input.Email, "@") {
		return nil, "", model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	if len(input.Password) < minPasswordLength {
		return nil, "", model.NewValidationError(fmt.Sprintf("パスワードは%d文字以上にしてください", minPasswordLength))
	}

	// 1. 重複チェック
	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewEmailTakenError()
	}

	// 2. パスワードハッシュ化
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	// 3. ユーザー作成
	now := time.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		FullName:     s.sanitizer.Sanitize(input.FullName),
		PasswordHash: string(hash),
		Bio:          s.sanitizer.Sanitize(input.Bio),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	// 4. トークン発行
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user signed up", slog.String("user_id", user.ID))

	return user.WithoutSecret(), token, nil
}

// Login はメールアドレスとパスワードを照合し、ユーザーとトークンを返す。
// ユーザー不在とパスワード不一致はどちらもInvalidCredentialエラーとして返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, "", model.NewInvalidCredentialError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", model.NewInvalidCredentialError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))

	return user.WithoutSecret(), token, nil
}

// Authenticate はAuthorizationヘッダーの生の値から認証済みユーザーを解決する。
//
// 失敗は次の3種類に分類される:
//   - ヘッダーが空             → ErrUnauthenticated
//   - トークン検証失敗         → ErrInvalidToken
//   - ユーザーが存在しない     → ErrUserNotFound
//
// 返すユーザーからは資格情報フィールドを除外する。
// 副作用はユーザー取得のみで、リトライは行わない。
func (s *Service) Authenticate(ctx context.Context, rawHeaderValue string) (*model.User, error) {
	if rawHeaderValue == "" {
		return nil, ErrUnauthenticated
	}

	// "Bearer "プレフィックスがあれば除去する
	token := rawHeaderValue
	if strings.HasPrefix(token, bearerPrefix) {
		token = token[len(bearerPrefix):]
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return user.WithoutSecret(), nil
}

// UpdateProfileInput はプロフィール更新の入力。
// nilのフィールドは変更しない。
type UpdateProfileInput struct {
	FullName   *string
	Bio        *string
	ProfilePic *string
}

// UpdateProfile は指定ユーザーのプロフィールを部分更新し、更新後のユーザーを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, model.NewValidationError("fullName を空にすることはできません")
		}
		user.FullName = s.sanitizer.Sanitize(name)
	}
	if input.Bio != nil {
		user.Bio = s.sanitizer.Sanitize(*input.Bio)
	}
	if input.ProfilePic != nil {
		user.ProfilePic = *input.ProfilePic
	}
	user.UpdatedAt = time.Now()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return user.WithoutSecret(), nil
}
