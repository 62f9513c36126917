package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/sharp-crm/crm-sub000/internal/auth"
	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/internal/event"
	"github.com/sharp-crm/crm-sub000/internal/rbac"
	"github.com/sharp-crm/crm-sub000/internal/repository"
	apperrors "github.com/sharp-crm/crm-sub000/pkg/errors"
	"github.com/sharp-crm/crm-sub000/pkg/pagination"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// UserService implements the business logic for auth, profile, and user
// administration.
type UserService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	tokenManager     *auth.TokenManager
	limiter          LoginLimiter
	producer         *event.Producer
	logger           *slog.Logger

	// refreshGroup collapses concurrent rotations of the same refresh jti
	// into one execution.
	refreshGroup singleflight.Group
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	tokenManager *auth.TokenManager,
	limiter LoginLimiter,
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		tokenManager:     tokenManager,
		limiter:          limiter,
		producer:         producer,
		logger:           logger,
	}
}

// --- Input types ---

// RegisterInput holds the parameters for self-registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// LoginInput holds the parameters for user login.
type LoginInput struct {
	Email    string
	Password string
}

// UpdateProfileInput holds the parameters for updating a user's profile.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// CreateUserInput holds the parameters for admin-driven user creation.
type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// --- Auth Operations ---

// Register creates a new self-registered account. The account lands in the
// "unassigned" tenant until an admin claims it.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.FirstName == "" {
		return nil, nil, apperrors.InvalidInput("first name is required")
	}
	if input.LastName == "" {
		return nil, nil, apperrors.InvalidInput("last name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, nil, err
	}

	role := input.Role
	if role == "" {
		role = domain.RoleSalesRep
	}
	if !domain.IsValidRole(role) {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", role))
	}
	if role == domain.RoleSuperAdmin {
		return nil, nil, apperrors.InvalidInput("cannot self-register as SUPER_ADMIN")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Role:         role,
		TenantID:     domain.TenantUnassigned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// Login authenticates a user with email and password, returning tokens.
// Every failure mode answers with the same generic message so login cannot be
// used to probe which emails exist.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.TokenPair, error) {
	if input.Email == "" {
		return nil, nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, nil, apperrors.InvalidInput("password is required")
	}

	allowed, err := s.limiter.Allow(ctx, input.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("check login limiter: %w", err)
	}
	if !allowed {
		return nil, nil, apperrors.Unauthorized("too many failed login attempts, try again later")
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		s.recordLoginFailure(ctx, input.Email)
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if user.IsDeleted {
		s.recordLoginFailure(ctx, input.Email)
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.recordLoginFailure(ctx, input.Email)
		return nil, nil, apperrors.Unauthorized("invalid email or password")
	}

	if err := s.limiter.Reset(ctx, input.Email); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login limiter",
			slog.String("email", input.Email),
			slog.String("error", err.Error()),
		)
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, tokens, nil
}

// RefreshToken rotates a refresh token: the old jti is invalidated and a new
// token pair is issued. Concurrent rotations of the same jti collapse into a
// single execution; once the winner deletes the old record, stragglers see
// TokenRevoked.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	claims, err := s.tokenManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired refresh token")
	}

	result, err, _ := s.refreshGroup.Do(claims.ID, func() (any, error) {
		return s.rotateRefreshToken(ctx, claims, refreshToken)
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.TokenPair), nil
}

func (s *UserService) rotateRefreshToken(ctx context.Context, claims *auth.RefreshClaims, refreshToken string) (*domain.TokenPair, error) {
	stored, err := s.refreshTokenRepo.GetByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.TokenRevoked("refresh token has been revoked")
		}
		return nil, fmt.Errorf("get refresh token record: %w", err)
	}

	if stored.TokenHash != hashToken(refreshToken) {
		return nil, apperrors.TokenRevoked("refresh token has been revoked")
	}

	if time.Now().UTC().After(stored.ExpiresAt) {
		if err := s.refreshTokenRepo.Delete(ctx, claims.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete expired refresh token",
				slog.String("jti", claims.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperrors.TokenExpired("refresh token has expired")
	}

	// Re-fetch the live user so the new access token carries the current
	// role and tenant, not the ones from login time.
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user not found")
		}
		return nil, fmt.Errorf("get user for token refresh: %w", err)
	}
	if user.IsDeleted {
		return nil, apperrors.Unauthorized("account has been deleted")
	}

	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	// Rotation only succeeds once the predecessor record is gone; otherwise
	// the old and new refresh tokens would both verify. On failure the client
	// keeps the old token and retries the rotation.
	if err := s.refreshTokenRepo.Delete(ctx, claims.ID); err != nil {
		return nil, fmt.Errorf("invalidate rotated refresh token: %w", err)
	}

	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("user_id", user.ID),
	)

	return tokens, nil
}

// ChangePassword allows an authenticated user to change their password. All
// existing sessions are revoked.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashedPassword)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update user password: %w", err)
	}

	// Force re-login everywhere.
	if err := s.refreshTokenRepo.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password change",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// --- Profile Operations ---

// GetProfile retrieves a user by their ID.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfile updates a user's own profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if input.FirstName != nil {
		if *input.FirstName == "" {
			return nil, apperrors.InvalidInput("first name must not be empty")
		}
		user.FirstName = *input.FirstName
	}

	if input.LastName != nil {
		if *input.LastName == "" {
			return nil, apperrors.InvalidInput("last name must not be empty")
		}
		user.LastName = *input.LastName
	}

	if input.Phone != nil {
		user.Phone = *input.Phone
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user profile updated",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// --- User Administration ---

// CreateUser creates a user on behalf of the caller, gated by the role
// creation hierarchy. A SUPER_ADMIN creating an ADMIN mints a fresh tenant;
// everyone else lands in the caller's tenant.
func (s *UserService) CreateUser(ctx context.Context, caller *domain.Identity, input CreateUserInput) (*domain.User, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.FirstName == "" {
		return nil, apperrors.InvalidInput("first name is required")
	}
	if input.LastName == "" {
		return nil, apperrors.InvalidInput("last name is required")
	}
	if !domain.IsValidRole(input.Role) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid role %q", input.Role))
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	if !rbac.CanCreate(caller.Role, input.Role) {
		return nil, apperrors.Forbidden(fmt.Sprintf("%s cannot create %s users", caller.Role, input.Role))
	}

	tenantID := caller.TenantID
	if input.Role == domain.RoleAdmin {
		// Each new admin starts a new organization.
		tenantID = uuid.New().String()
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Role:         input.Role,
		TenantID:     tenantID,
		CreatedBy:    caller.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role),
		slog.String("tenant_id", user.TenantID),
		slog.String("created_by", caller.UserID),
	)

	return user, nil
}

// ListTenantUsers returns the users in the caller's tenant, paginated.
func (s *UserService) ListTenantUsers(ctx context.Context, caller *domain.Identity, includeDeleted bool, params pagination.Params) ([]domain.User, int, error) {
	if !rbac.Can(caller.Role, rbac.CapViewTenant) {
		return nil, 0, apperrors.Forbidden("insufficient permissions to list users")
	}

	users, err := s.userRepo.ListByTenant(ctx, caller.TenantID, includeDeleted)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenant users: %w", err)
	}

	total := len(users)
	return paginate(users, params), total, nil
}

// SoftDeleteUser marks a user deleted and revokes their sessions, gated by
// the deletion hierarchy.
func (s *UserService) SoftDeleteUser(ctx context.Context, caller *domain.Identity, targetID string) error {
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("get user for delete: %w", err)
	}

	if !rbac.CanDelete(caller, target) {
		return apperrors.Forbidden("cannot delete this user")
	}

	if err := s.userRepo.SoftDelete(ctx, targetID, caller.UserID, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}

	if err := s.refreshTokenRepo.DeleteByUserID(ctx, targetID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions of deleted user",
			slog.String("user_id", targetID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishUserDeleted(ctx, target, caller.UserID, false); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.String("user_id", targetID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user soft-deleted",
		slog.String("user_id", targetID),
		slog.String("deleted_by", caller.UserID),
	)

	return nil
}

// RestoreUser clears a user's deleted flag. The same hierarchy that allows
// deleting a user allows restoring them.
func (s *UserService) RestoreUser(ctx context.Context, caller *domain.Identity, targetID string) error {
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("get user for restore: %w", err)
	}

	if !rbac.CanDelete(caller, target) {
		return apperrors.Forbidden("cannot restore this user")
	}

	if err := s.userRepo.Restore(ctx, targetID, caller.UserID, time.Now().UTC()); err != nil {
		return fmt.Errorf("restore user: %w", err)
	}

	s.logger.InfoContext(ctx, "user restored",
		slog.String("user_id", targetID),
		slog.String("restored_by", caller.UserID),
	)

	return nil
}

// HardDeleteUser physically removes a user and their sessions. Irreversible.
func (s *UserService) HardDeleteUser(ctx context.Context, caller *domain.Identity, targetID string) error {
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("get user for purge: %w", err)
	}

	if !rbac.CanDelete(caller, target) {
		return apperrors.Forbidden("cannot purge this user")
	}

	if err := s.refreshTokenRepo.DeleteByUserID(ctx, targetID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions of purged user",
			slog.String("user_id", targetID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.userRepo.HardDelete(ctx, targetID); err != nil {
		return fmt.Errorf("hard delete user: %w", err)
	}

	if err := s.producer.PublishUserDeleted(ctx, target, caller.UserID, true); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.deleted event",
			slog.String("user_id", targetID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user purged",
		slog.String("user_id", targetID),
		slog.String("deleted_by", caller.UserID),
	)

	return nil
}

// --- Helpers ---

func (s *UserService) recordLoginFailure(ctx context.Context, email string) {
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}
}

// generateTokenPair creates an access/refresh token pair and persists the
// refresh token record keyed by its jti.
func (s *UserService) generateTokenPair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.tokenManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TenantID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, jti, expiresAt, err := s.tokenManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	record := &domain.RefreshToken{
		JTI:       jti,
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.refreshTokenRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// hashToken returns the SHA256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}

// paginate slices a fully filtered result set down to the requested page.
func paginate[T any](items []T, params pagination.Params) []T {
	if params.Offset >= len(items) {
		return []T{}
	}
	end := params.Offset + params.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[params.Offset:end]
}
