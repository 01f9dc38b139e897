// AngelaMos | 2026
// service.go

package linking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/socialsync/internal/config"
	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/subscription"
)

const maxIssueAttempts = 3

// PlanReader returns a user's persisted plan.
type PlanReader interface {
	PlanFor(ctx context.Context, userID string) (subscription.Plan, error)
}

// Service issues, matches, and revokes verification codes that bind a
// social-platform identity to an internal user.
type Service struct {
	repo         Repository
	plans        PlanReader
	codeLength   int
	codeTTL      time.Duration
	requiredPlan subscription.Plan
	now          func() time.Time
	generate     func(length int) (string, error)
	logger       *slog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCodeGenerator(gen func(length int) (string, error)) Option {
	return func(s *Service) { s.generate = gen }
}

func NewService(
	repo Repository,
	plans PlanReader,
	cfg config.LinkingConfig,
	opts ...Option,
) *Service {
	s := &Service{
		repo:         repo,
		plans:        plans,
		codeLength:   cfg.CodeLength,
		codeTTL:      cfg.CodeTTL,
		requiredPlan: subscription.ParsePlan(cfg.RequiredPlan),
		now:          time.Now,
		generate:     core.GenerateCode,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CodeLength() int {
	return s.codeLength
}

func (s *Service) entitled(ctx context.Context, userID string) error {
	plan, err := s.plans.PlanFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("check entitlement: %w", err)
	}
	if !plan.AtLeast(s.requiredPlan) {
		return ErrEntitlementRequired
	}
	return nil
}

// Issue creates a fresh code for userID on platform. Any code previously
// issued to the same pair is revoked in the same transaction.
func (s *Service) Issue(
	ctx context.Context,
	userID string,
	platform Platform,
) (*IssuedCode, error) {
	if err := s.entitled(ctx, userID); err != nil {
		core.RecordLinkOutcome("issue", "entitlement_required")
		return nil, err
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		code, err := s.generate(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("issue link code: %w", err)
		}

		now := s.now()
		req := &LinkRequest{
			ID:        uuid.New().String(),
			UserID:    userID,
			Platform:  platform,
			CodeHash:  hashCode(code),
			State:     StateIssued,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.codeTTL),
		}

		err = s.repo.Issue(ctx, req)
		if errors.Is(err, core.ErrDuplicateKey) {
			s.logger.Debug("link code collision, regenerating",
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		core.RecordLinkOutcome("issue", "issued")
		return &IssuedCode{
			Code:      code,
			Platform:  platform,
			IssuedAt:  req.IssuedAt,
			ExpiresAt: req.ExpiresAt,
		}, nil
	}

	return nil, fmt.Errorf("issue link code: exhausted %d attempts: %w",
		maxIssueAttempts, core.ErrConflict)
}

// Match resolves a code received from platformUserID. Expiry is detected
// and persisted here; no sweeper is involved.
func (s *Service) Match(
	ctx context.Context,
	platform Platform,
	incomingCode, platformUserID string,
) (*LinkResult, error) {
	ctx, span := core.StartSpan(ctx, "linking.match",
		attribute.String("platform", string(platform)),
	)
	defer span.End()

	result, err := s.match(ctx, platform, incomingCode, platformUserID)
	core.RecordLinkOutcome("match", matchOutcome(result, err))
	if err != nil {
		core.SetSpanError(ctx, err)
	}
	return result, err
}

func (s *Service) match(
	ctx context.Context,
	platform Platform,
	incomingCode, platformUserID string,
) (*LinkResult, error) {
	code := core.NormalizeCode(incomingCode)
	if !LooksLikeCode(code, s.codeLength) {
		return nil, ErrLinkNotFound
	}

	req, err := s.repo.FindIssuedByCode(ctx, platform, hashCode(code))
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.ExpiredAt(now) {
		if err := s.repo.MarkExpired(ctx, req.ID); err != nil {
			return nil, err
		}
		return nil, ErrLinkExpired
	}

	if err := s.entitled(ctx, req.UserID); err != nil {
		return nil, err
	}

	return s.repo.Consume(ctx, req.ID, platformUserID, now)
}

func matchOutcome(result *LinkResult, err error) string {
	switch {
	case err == nil:
		return string(result.Status)
	case errors.Is(err, ErrLinkNotFound):
		return "not_found"
	case errors.Is(err, ErrLinkExpired):
		return "expired"
	case errors.Is(err, ErrLinkConflict):
		return "conflict"
	case errors.Is(err, ErrUnlinkRequired):
		return "unlink_required"
	case errors.Is(err, ErrEntitlementRequired):
		return "entitlement_required"
	default:
		return "error"
	}
}

// Revoke unlinks userID from platform and cancels any issued code. It is a
// no-op when nothing is linked.
func (s *Service) Revoke(
	ctx context.Context,
	userID string,
	platform Platform,
) error {
	if err := s.repo.Revoke(ctx, userID, platform); err != nil {
		return err
	}
	core.RecordLinkOutcome("revoke", "revoked")
	return nil
}

func (s *Service) ListAccounts(
	ctx context.Context,
	userID string,
) ([]SocialAccount, error) {
	return s.repo.ListAccounts(ctx, userID)
}

// AccountFor returns the account bound to a platform identity, or
// core.ErrNotFound.
func (s *Service) AccountFor(
	ctx context.Context,
	platform Platform,
	platformUserID string,
) (*SocialAccount, error) {
	return s.repo.FindAccountByPlatformUser(ctx, platform, platformUserID)
}

// LooksLikeCode reports whether s has the shape of an issued code: exactly
// length ASCII letters or digits.
func LooksLikeCode(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
