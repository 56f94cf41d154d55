package middleware

import (
	"github.com/gin-gonic/gin"
)

// HeaderSessionToken carries the client's attempt session token. The token
// is advisory: it lets the same browser session retry a start without
// tripping the single-attempt gate, and is never treated as proof of
// identity.
const HeaderSessionToken = "X-Session-Token"

// SessionToken returns the attempt session token from the request, or "".
func SessionToken(c *gin.Context) string {
	return c.GetHeader(HeaderSessionToken)
}
