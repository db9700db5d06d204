package automation

import "crypto/subtle"

// checkToken reports whether presented matches the configured bearer
// token using a constant-time comparison, so a timing side channel
// can't be used to brute-force it byte by byte. An empty configured
// token matches no presented token; the HTTP transport's authorize never
// reaches this check when no token is configured and lets every request
// through instead.
func checkToken(configured, presented string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
