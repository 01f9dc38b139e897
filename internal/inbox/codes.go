// AngelaMos | 2026
// codes.go

package inbox

import (
	"strings"
	"unicode"

	"github.com/carterperez-dev/socialsync/internal/core"
	"github.com/carterperez-dev/socialsync/internal/linking"
)

const maxCandidates = 5

// ExtractCodes returns the tokens in text shaped like a link code, in order
// of appearance and without repeats.
func ExtractCodes(text string, length int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	var codes []string
	for _, f := range fields {
		code := core.NormalizeCode(f)
		if !linking.LooksLikeCode(code, length) {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		if len(codes) == maxCandidates {
			break
		}
	}
	return codes
}
