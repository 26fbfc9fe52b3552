package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	pkgkafka "github.com/SultanSulimanSerj/portal/pkg/kafka"
	"github.com/SultanSulimanSerj/portal/pkg/logger"
)

// TopicAuthEvents carries every auth event; consumers switch on event_type.
const TopicAuthEvents = "auth.events"

// Event types.
const (
	TypeUserRegistered         = "auth.user_registered"
	TypeUserLoggedIn           = "auth.user_logged_in"
	TypePasswordResetRequested = "auth.password_reset_requested"
	TypeRefreshReuseDetected   = "auth.refresh_reuse_detected"
)

const (
	aggregateTypeUser = "user"
	source            = "portal-api"
)

// UserRegisteredData is the payload of auth.user_registered. The mail
// collaborator uses VerificationToken to build the confirmation link.
type UserRegisteredData struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	CompanyID         string `json:"company_id"`
	CompanyName       string `json:"company_name"`
	VerificationToken string `json:"verification_token"`
}

// UserLoggedInData is the payload of auth.user_logged_in.
type UserLoggedInData struct {
	UserID    string   `json:"user_id"`
	CompanyID string   `json:"company_id"`
	Roles     []string `json:"roles"`
}

// PasswordResetRequestedData is the payload of auth.password_reset_requested.
type PasswordResetRequestedData struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// RefreshReuseDetectedData is the payload of auth.refresh_reuse_detected.
type RefreshReuseDetectedData struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
}

// Sender publishes an event to a topic. *pkgkafka.Producer implements it.
type Sender interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Publisher emits auth events. Failures are logged and never returned.
type Publisher struct {
	sender Sender
	logger *slog.Logger
}

// NewPublisher creates a new auth event publisher.
func NewPublisher(sender Sender, logger *slog.Logger) *Publisher {
	return &Publisher{sender: sender, logger: logger}
}

// UserRegistered publishes auth.user_registered.
func (p *Publisher) UserRegistered(ctx context.Context, user *domain.User, company *domain.Company, verificationToken string) {
	p.publish(ctx, TypeUserRegistered, user.ID, company.ID, UserRegisteredData{
		UserID:            user.ID,
		Email:             user.Email,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		CompanyID:         company.ID,
		CompanyName:       company.Name,
		VerificationToken: verificationToken,
	})
}

// UserLoggedIn publishes auth.user_logged_in.
func (p *Publisher) UserLoggedIn(ctx context.Context, identity domain.AuthIdentity) {
	p.publish(ctx, TypeUserLoggedIn, identity.UserID, identity.CompanyID, UserLoggedInData{
		UserID:    identity.UserID,
		CompanyID: identity.CompanyID,
		Roles:     roleNames(identity.Roles),
	})
}

// PasswordResetRequested publishes auth.password_reset_requested.
func (p *Publisher) PasswordResetRequested(ctx context.Context, user *domain.User, resetToken string, expiresAt time.Time) {
	p.publish(ctx, TypePasswordResetRequested, user.ID, "", PasswordResetRequestedData{
		UserID:     user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		ResetToken: resetToken,
		ExpiresAt:  expiresAt,
	})
}

// RefreshReuseDetected publishes auth.refresh_reuse_detected.
func (p *Publisher) RefreshReuseDetected(ctx context.Context, identity domain.AuthIdentity) {
	p.publish(ctx, TypeRefreshReuseDetected, identity.UserID, identity.CompanyID, RefreshReuseDetectedData{
		UserID:    identity.UserID,
		CompanyID: identity.CompanyID,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType, userID, companyID string, data any) {
	evt, err := pkgkafka.NewEvent(eventType, userID, aggregateTypeUser, source, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if companyID != "" {
		evt.WithTenant(companyID)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.sender.Publish(ctx, TopicAuthEvents, evt); err != nil {
		p.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
	)
}

func roleNames(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}
