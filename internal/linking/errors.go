// AngelaMos | 2026
// errors.go

package linking

import (
	"errors"
	"net/http"

	"github.com/carterperez-dev/socialsync/internal/core"
)

var (
	ErrLinkNotFound        = errors.New("link code not found")
	ErrLinkExpired         = errors.New("link code expired")
	ErrLinkConflict        = errors.New("platform account linked to another user")
	ErrUnlinkRequired      = errors.New("user already linked to a different platform account")
	ErrEntitlementRequired = errors.New("entitlement required")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// AsAppError maps linking errors to their client-facing codes. Errors it
// does not recognize map to an internal error.
func AsAppError(err error) *core.AppError {
	switch {
	case errors.Is(err, ErrLinkNotFound):
		return core.NewAppError(err, "link code not found",
			http.StatusNotFound, "LINK_NOT_FOUND")
	case errors.Is(err, ErrLinkExpired):
		return core.NewAppError(err, "link code expired",
			http.StatusGone, "LINK_EXPIRED")
	case errors.Is(err, ErrLinkConflict):
		return core.NewAppError(err, "account already linked to another user",
			http.StatusConflict, "LINK_CONFLICT")
	case errors.Is(err, ErrUnlinkRequired):
		return core.NewAppError(err, "unlink the current account before linking another",
			http.StatusConflict, "UNLINK_REQUIRED")
	case errors.Is(err, ErrEntitlementRequired):
		return core.NewAppError(err, "an active subscription is required",
			http.StatusForbidden, "ENTITLEMENT_REQUIRED")
	case errors.Is(err, ErrUnsupportedPlatform):
		return core.NewAppError(err, "unsupported platform",
			http.StatusBadRequest, "UNSUPPORTED_PLATFORM")
	case errors.Is(err, core.ErrConflict):
		return core.NewAppError(err, "could not issue a link code, try again",
			http.StatusConflict, "ISSUE_CONFLICT")
	default:
		return core.InternalError(err)
	}
}
