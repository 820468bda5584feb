// internal/cookies/prefix.go
package cookies

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// authCookieName is the webmail session cookie carrying a JWT whose claims
// include the account's address.
const authCookieName = "aut"

// EmailPrefix recovers the mailbox local part from a saved session's auth
// token. The token is decoded without signature verification; we only need
// its claims, not its authenticity. Any decode failure yields ("", false)
// so callers fall back to a generated prefix.
func EmailPrefix(cs []Cookie) (string, bool) {
	for _, c := range cs {
		if c.Name != authCookieName {
			continue
		}
		return prefixFromToken(c.Value)
	}
	return "", false
}

func prefixFromToken(raw string) (string, bool) {
	parser := jwt.NewParser(
		jwt.WithPaddingAllowed(),
		jwt.WithoutClaimsValidation(),
	)
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return "", false
	}

	if name, ok := claims["name"].(string); ok && name != "" {
		if at := strings.IndexByte(name, '@'); at > 0 {
			return name[:at], true
		}
		return name, true
	}
	if nick, ok := claims["nickname"].(string); ok && nick != "" {
		return nick, true
	}
	return "", false
}
