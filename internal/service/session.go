package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SultanSulimanSerj/portal/internal/auth"
	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/internal/repository"
	"github.com/SultanSulimanSerj/portal/pkg/validator"
)

// EventPublisher emits auth events. Implementations are best-effort and never
// fail the calling operation.
type EventPublisher interface {
	UserRegistered(ctx context.Context, user *domain.User, company *domain.Company, verificationToken string)
	UserLoggedIn(ctx context.Context, identity domain.AuthIdentity)
	PasswordResetRequested(ctx context.Context, user *domain.User, resetToken string, expiresAt time.Time)
	RefreshReuseDetected(ctx context.Context, identity domain.AuthIdentity)
}

// Auditor writes audit records inside the identity's tenant boundary.
type Auditor interface {
	Record(ctx context.Context, identity domain.AuthIdentity, entry domain.AuditLog)
}

// LoginThrottle limits failed login attempts per key.
type LoginThrottle interface {
	Check(ctx context.Context, key string) error
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// SessionConfig tunes session behaviour.
type SessionConfig struct {
	// RevokeOnReuse deletes every refresh token of a user when a rotated token
	// is presented again.
	RevokeOnReuse bool
	// ResetTokenTTL is the lifetime of a password reset token.
	ResetTokenTTL time.Duration
}

// SessionDeps collects the collaborators of a SessionService.
type SessionDeps struct {
	Users         repository.UserRepository
	Accounts      repository.AccountRepository
	Companies     repository.CompanyRepository
	Memberships   repository.MembershipRepository
	RefreshTokens repository.RefreshTokenRepository
	Tokens        *auth.TokenManager
	Hasher        *auth.PasswordHasher
	Events        EventPublisher
	Audit         Auditor
	Throttle      LoginThrottle
	Logger        *slog.Logger
	Now           func() time.Time
}

// SessionService implements registration, login and refresh-token rotation.
type SessionService struct {
	users         repository.UserRepository
	accounts      repository.AccountRepository
	companies     repository.CompanyRepository
	memberships   repository.MembershipRepository
	refreshTokens repository.RefreshTokenRepository
	tokens        *auth.TokenManager
	hasher        *auth.PasswordHasher
	events        EventPublisher
	audit         Auditor
	throttle      LoginThrottle
	cfg           SessionConfig
	logger        *slog.Logger
	now           func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(deps SessionDeps, cfg SessionConfig) *SessionService {
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = noopEvents{}
	}
	if deps.Audit == nil {
		deps.Audit = noopAuditor{}
	}
	return &SessionService{
		users:         deps.Users,
		accounts:      deps.Accounts,
		companies:     deps.Companies,
		memberships:   deps.Memberships,
		refreshTokens: deps.RefreshTokens,
		tokens:        deps.Tokens,
		hasher:        deps.Hasher,
		events:        deps.Events,
		audit:         deps.Audit,
		throttle:      deps.Throttle,
		cfg:           cfg,
		logger:        logger,
		now:           now,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email            string `json:"email" validate:"required,email,max=255"`
	Password         string `json:"password" validate:"required,password"`
	FirstName        string `json:"first_name" validate:"required,max=100"`
	LastName         string `json:"last_name" validate:"required,max=100"`
	CompanyName      string `json:"company_name" validate:"omitempty,min=2,max=255"`
	CompanySubdomain string `json:"company_subdomain" validate:"omitempty,min=2,max=50,subdomain"`
}

// LoginInput holds the parameters for login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ClientIP string `json:"-"`
}

// Register creates a user, a company and an OWNER membership atomically, then
// issues a token pair.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*domain.AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		s.observe(opRegister, outcomeDuplicate)
		return nil, domain.ErrDuplicateEmail
	}

	userID := uuid.NewString()
	companyName, subdomain := defaultCompany(userID, in.FirstName, in.LastName)
	if in.CompanyName != "" && in.CompanySubdomain != "" {
		companyName, subdomain = in.CompanyName, in.CompanySubdomain
	}

	taken, err := s.companies.SubdomainExists(ctx, subdomain)
	if err != nil {
		return nil, fmt.Errorf("check subdomain: %w", err)
	}
	if taken {
		s.observe(opRegister, outcomeDuplicate)
		return nil, domain.ErrDuplicateSubdomain
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	verificationToken, err := auth.NewOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:                     userID,
		Email:                  in.Email,
		PasswordHash:           passwordHash,
		FirstName:              in.FirstName,
		LastName:               in.LastName,
		EmailVerificationToken: auth.HashToken(verificationToken),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	company := &domain.Company{
		ID:        uuid.NewString(),
		Name:      companyName,
		Subdomain: subdomain,
		CreatedAt: now,
		UpdatedAt: now,
	}
	membership := &domain.Membership{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CompanyID: company.ID,
		Role:      domain.RoleOwner,
		JoinedAt:  now,
	}

	if err := s.accounts.CreateAccount(ctx, user, company, membership); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) || errors.Is(err, domain.ErrDuplicateSubdomain) {
			s.observe(opRegister, outcomeDuplicate)
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	result, err := s.issue(ctx, user, company, membership.Role)
	if err != nil {
		return nil, err
	}

	identity := identityFor(user, company.ID, membership.Role)
	s.audit.Record(ctx, identity, domain.AuditLog{
		Action:     domain.AuditUserRegistered,
		EntityType: "user",
		EntityID:   user.ID,
	})
	s.events.UserRegistered(ctx, user, company, verificationToken)
	s.observe(opRegister, outcomeSuccess)

	s.logger.InfoContext(ctx, "account registered",
		slog.String("user_id", user.ID),
		slog.String("company_id", company.ID),
	)

	return result, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords fail identically and take the same time.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (*domain.AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validator.Validate(in); err != nil {
		return nil, err
	}

	key := in.Email + "|" + in.ClientIP
	if err := s.checkThrottle(ctx, key); err != nil {
		s.observe(opLogin, outcomeThrottled)
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		s.hasher.CompareDummy(in.Password)
		return nil, s.loginFailed(ctx, key)
	}
	if !s.hasher.Compare(user.PasswordHash, in.Password) {
		return nil, s.loginFailed(ctx, key)
	}

	membership, err := s.memberships.GetPrimaryByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			s.logger.WarnContext(ctx, "login for user without membership", slog.String("user_id", user.ID))
			return nil, s.loginFailed(ctx, key)
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	user.LastLoginAt = &now

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login throttle", slog.String("error", err.Error()))
		}
	}

	result, err := s.issue(ctx, user, &membership.Company, membership.Role)
	if err != nil {
		return nil, err
	}

	identity := identityFor(user, membership.CompanyID, membership.Role)
	s.audit.Record(ctx, identity, domain.AuditLog{
		Action:     domain.AuditUserLoggedIn,
		EntityType: "user",
		EntityID:   user.ID,
	})
	s.events.UserLoggedIn(ctx, identity)
	s.observe(opLogin, outcomeSuccess)

	return result, nil
}

// Refresh rotates a refresh token. The presented token is consumed; a second
// presentation of the same token is treated as reuse.
func (s *SessionService) Refresh(ctx context.Context, token string) (*domain.AuthResult, error) {
	if token == "" {
		s.observe(opRefresh, outcomeInvalid)
		return nil, domain.ErrInvalidRefreshToken
	}

	claimed, err := s.tokens.Verify(token, auth.KindRefresh)
	if err != nil {
		if errors.Is(err, domain.ErrExpiredToken) {
			s.forgetExpired(ctx, token)
		}
		s.observe(opRefresh, outcomeInvalid)
		return nil, domain.ErrInvalidRefreshToken
	}

	record, err := s.refreshTokens.Consume(ctx, auth.HashToken(token), s.now())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRefreshTokenExpired):
			s.observe(opRefresh, outcomeInvalid)
			return nil, domain.ErrInvalidRefreshToken
		case errors.Is(err, domain.ErrInvalidRefreshToken):
			s.reuseDetected(ctx, claimed)
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	if record.UserID != claimed.UserID {
		s.logger.WarnContext(ctx, "refresh token subject mismatch",
			slog.String("token_user_id", claimed.UserID),
			slog.String("stored_user_id", record.UserID),
		)
		s.observe(opRefresh, outcomeInvalid)
		return nil, domain.ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.observe(opRefresh, outcomeInvalid)
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	membership, err := s.memberships.GetPrimaryByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			s.observe(opRefresh, outcomeInvalid)
			return nil, domain.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}

	result, err := s.issue(ctx, user, &membership.Company, membership.Role)
	if err != nil {
		return nil, err
	}
	s.observe(opRefresh, outcomeSuccess)
	return result, nil
}

// forgetExpired deletes the stored row of a refresh token whose JWT has
// expired. Failures are logged; the sweeper removes the row later.
func (s *SessionService) forgetExpired(ctx context.Context, token string) {
	if err := s.refreshTokens.Delete(ctx, auth.HashToken(token)); err != nil {
		s.logger.WarnContext(ctx, "failed to delete expired refresh token",
			slog.String("error", err.Error()),
		)
	}
}

// Logout forgets one refresh token. Empty and unknown tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.refreshTokens.Delete(ctx, auth.HashToken(token)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// LogoutAll revokes every refresh token of the caller.
func (s *SessionService) LogoutAll(ctx context.Context, identity domain.AuthIdentity) error {
	n, err := s.refreshTokens.DeleteAllForUser(ctx, identity.UserID)
	if err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	s.audit.Record(ctx, identity, domain.AuditLog{
		Action:     domain.AuditLoggedOutEverywhere,
		EntityType: "user",
		EntityID:   identity.UserID,
		Metadata:   mustJSON(map[string]int64{"revoked": n}),
	})
	s.logger.InfoContext(ctx, "revoked all sessions",
		slog.String("user_id", identity.UserID),
		slog.Int64("revoked", n),
	)
	return nil
}

// VerifyAccessToken returns the identity carried by a valid access token.
func (s *SessionService) VerifyAccessToken(token string) (domain.AuthIdentity, error) {
	return s.tokens.Verify(token, auth.KindAccess)
}

func (s *SessionService) issue(ctx context.Context, user *domain.User, company *domain.Company, role domain.Role) (*domain.AuthResult, error) {
	pair, err := s.tokens.MintPair(identityFor(user, company.ID, role))
	if err != nil {
		return nil, fmt.Errorf("mint tokens: %w", err)
	}

	if err := s.refreshTokens.Save(ctx, user.ID, auth.HashToken(pair.RefreshToken), pair.RefreshExpiresAt); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &domain.AuthResult{
		Tokens:  pair,
		User:    user.Summary(),
		Company: company.Summary(),
		Role:    role,
	}, nil
}

func (s *SessionService) reuseDetected(ctx context.Context, claimed domain.AuthIdentity) {
	s.observe(opRefresh, outcomeReuse)
	s.logger.WarnContext(ctx, "refresh token reuse detected",
		slog.String("user_id", claimed.UserID),
		slog.String("company_id", claimed.CompanyID),
		slog.Bool("revoke", s.cfg.RevokeOnReuse),
	)

	var revoked int64
	if s.cfg.RevokeOnReuse {
		n, err := s.refreshTokens.DeleteAllForUser(ctx, claimed.UserID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke sessions after reuse",
				slog.String("user_id", claimed.UserID),
				slog.String("error", err.Error()),
			)
		}
		revoked = n
	}

	s.audit.Record(ctx, claimed, domain.AuditLog{
		Action:     domain.AuditRefreshReuse,
		EntityType: "user",
		EntityID:   claimed.UserID,
		Metadata:   mustJSON(map[string]any{"revoked": revoked, "revoke_on_reuse": s.cfg.RevokeOnReuse}),
	})
	s.events.RefreshReuseDetected(ctx, claimed)
}

func (s *SessionService) checkThrottle(ctx context.Context, key string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.Check(ctx, key)
	if errors.Is(err, domain.ErrTooManyAttempts) {
		return err
	}
	if err != nil {
		s.logger.WarnContext(ctx, "login throttle unavailable", slog.String("error", err.Error()))
	}
	return nil
}

func (s *SessionService) loginFailed(ctx context.Context, key string) error {
	s.observe(opLogin, outcomeInvalid)
	if s.throttle != nil {
		if err := s.throttle.RecordFailure(ctx, key); err != nil && !errors.Is(err, domain.ErrTooManyAttempts) {
			s.logger.WarnContext(ctx, "failed to record login failure", slog.String("error", err.Error()))
		}
	}
	return domain.ErrInvalidCredentials
}

func identityFor(user *domain.User, companyID string, role domain.Role) domain.AuthIdentity {
	return domain.AuthIdentity{
		UserID:    user.ID,
		Email:     user.Email,
		CompanyID: companyID,
		Roles:     []domain.Role{role},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// defaultCompany derives the company created for a user who did not name one.
func defaultCompany(userID, firstName, lastName string) (name, subdomain string) {
	name = strings.TrimSpace(firstName+" "+lastName) + "'s Company"
	subdomain = "user-" + strings.ReplaceAll(userID, "-", "")
	return name, subdomain
}

type noopEvents struct{}

func (noopEvents) UserRegistered(context.Context, *domain.User, *domain.Company, string)   {}
func (noopEvents) UserLoggedIn(context.Context, domain.AuthIdentity)                       {}
func (noopEvents) PasswordResetRequested(context.Context, *domain.User, string, time.Time) {}
func (noopEvents) RefreshReuseDetected(context.Context, domain.AuthIdentity)               {}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, domain.AuthIdentity, domain.AuditLog) {}
