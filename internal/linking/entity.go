// AngelaMos | 2026
// entity.go

package linking

import (
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/socialsync/internal/core"
)

type Platform string

const PlatformInstagram Platform = "instagram"

var supportedPlatforms = map[Platform]struct{}{
	PlatformInstagram: {},
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := supportedPlatforms[p]; !ok {
		return "", fmt.Errorf("platform %q: %w", s, ErrUnsupportedPlatform)
	}
	return p, nil
}

type State string

const (
	StateIssued   State = "issued"
	StateConsumed State = "consumed"
	StateExpired  State = "expired"
	StateRevoked  State = "revoked"
)

// LinkRequest is one issued verification code. Only the SHA-256 of the
// code is stored.
type LinkRequest struct {
	ID             string     `db:"id"`
	UserID         string     `db:"user_id"`
	Platform       Platform   `db:"platform"`
	CodeHash       string     `db:"code_hash"`
	State          State      `db:"state"`
	IssuedAt       time.Time  `db:"issued_at"`
	ExpiresAt      time.Time  `db:"expires_at"`
	ConsumedAt     *time.Time `db:"consumed_at"`
	PlatformUserID *string    `db:"platform_user_id"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

func (r *LinkRequest) ExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

type SocialAccount struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Platform       Platform  `db:"platform"`
	PlatformUserID string    `db:"platform_user_id"`
	LinkedAt       time.Time `db:"linked_at"`
}

type LinkStatus string

const (
	StatusLinked        LinkStatus = "linked"
	StatusAlreadyLinked LinkStatus = "already_linked"
)

type LinkResult struct {
	Status  LinkStatus
	Account *SocialAccount
}

type IssuedCode struct {
	Code      string
	Platform  Platform
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// hashCode normalizes before hashing so lookups are case-insensitive.
func hashCode(code string) string {
	return core.HashToken(core.NormalizeCode(code))
}
