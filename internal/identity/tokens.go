package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	tokenAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	tokenRandomLen = 40
	// random characters kept by DisplayPrefix
	displayRandomLen = 4
	// prefix length for credentials without the appgen-<env>- shape
	displayFallbackLen = 8
)

// GenerateToken returns a new access token of the form
// appgen-<env>-<40 lowercase alphanumerics>.
func GenerateToken(env string) (string, error) {
	suffix := make([]byte, tokenRandomLen)
	buf := make([]byte, 64)
	// 252 is the largest multiple of 36 below 256; higher bytes are rejected
	// so every symbol is equally likely.
	for n := 0; n < tokenRandomLen; {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			suffix[n] = tokenAlphabet[int(b)%len(tokenAlphabet)]
			n++
			if n == tokenRandomLen {
				break
			}
		}
	}
	return "appgen-" + env + "-" + string(suffix), nil
}

// HashToken is the stored lookup key for access and refresh tokens. Raw
// tokens are never stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix shortens a credential for logs and the token_prefix column.
// Generated tokens keep appgen-<env>- plus the first random characters so
// stored prefixes tell tokens apart.
func DisplayPrefix(token string) string {
	if strings.HasPrefix(token, "appgen-") {
		if i := strings.LastIndexByte(token, '-'); len(token)-i-1 > 2*displayRandomLen {
			return token[:i+1+displayRandomLen] + "..."
		}
		return "***"
	}
	if len(token) <= 2*displayFallbackLen {
		return "***"
	}
	return token[:displayFallbackLen] + "..."
}

// ParseDuration extends time.ParseDuration with day ("30d") and week ("2w") units.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	unit := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}[s[len(s)-1]]
	if unit == 0 {
		return time.ParseDuration(s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(n) * unit, nil
}
