// AngelaMos | 2026
// dto.go

package linking

import (
	"time"
)

type IssueCodeResponse struct {
	Code      string    `json:"code"`
	Platform  Platform  `json:"platform"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AccountResponse struct {
	Platform       Platform  `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	LinkedAt       time.Time `json:"linked_at"`
}

type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

func ToIssueCodeResponse(issued *IssuedCode) IssueCodeResponse {
	return IssueCodeResponse{
		Code:      issued.Code,
		Platform:  issued.Platform,
		IssuedAt:  issued.IssuedAt,
		ExpiresAt: issued.ExpiresAt,
	}
}

func ToAccountListResponse(accounts []SocialAccount) AccountListResponse {
	resp := AccountListResponse{
		Accounts: make([]AccountResponse, 0, len(accounts)),
	}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, AccountResponse{
			Platform:       a.Platform,
			PlatformUserID: a.PlatformUserID,
			LinkedAt:       a.LinkedAt,
		})
	}
	return resp
}
