package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookieName = "_csrf_token"
	csrfFormField  = "_csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfContextKey = "CSRFToken"

	// csrfExpiredMessage is shown to dashboard users whose page outlived its token.
	csrfExpiredMessage = "Your session expired, reload the page"
)

// CSRFConfig configures CSRFWithConfig.
type CSRFConfig struct {
	// Secret keys the HMAC that signs every token. Required.
	Secret string

	// MaxAge bounds how long a token stays valid after it was issued. Pages
	// reissue the cookie once half of it has passed. Zero means no expiry.
	MaxAge time.Duration

	// Secure marks the cookie HTTPS-only. CSRF sets it in release mode.
	Secure bool
}

// CSRF protects the dashboard with a 12 hour token lifetime.
func CSRF(secret string) gin.HandlerFunc {
	return CSRFWithConfig(CSRFConfig{
		Secret: secret,
		MaxAge: 12 * time.Hour,
		Secure: gin.Mode() == gin.ReleaseMode,
	})
}

// CSRFWithConfig returns a double-submit cookie middleware for the dashboard.
//
// Safe methods get a signed token in the _csrf_token cookie and in the gin
// context, where GetCSRFToken hands it to templates. The base layout copies
// it into hx-headers so every htmx request echoes it as X-CSRF-Token; plain
// forms send the _csrf_token field instead.
//
// Mutating methods must present a token equal to the cookie, correctly
// signed and not older than MaxAge. htmx callers that fail get a 403 with an
// error toast asking for a reload, others a JSON 403.
//
// The API group does not use this middleware; it authenticates with bearer
// tokens instead.
func CSRFWithConfig(cfg CSRFConfig) gin.HandlerFunc {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "csrf secret is required",
			})
		}
	}
	key := csrfKey{secret: []byte(secret), maxAge: cfg.MaxAge}

	return func(c *gin.Context) {
		now := time.Now()
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			token, _ := c.Cookie(csrfCookieName)
			if !key.valid(token, now) || key.stale(token, now) {
				var err error
				if token, err = key.issue(now); err != nil {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error": "failed to generate CSRF token",
					})
					return
				}
				setCSRFCookie(c, token, cfg)
			}
			c.Set(csrfContextKey, token)
			c.Next()

		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			cookieToken, _ := c.Cookie(csrfCookieName)
			// The header comes first so multipart bodies are only parsed
			// for plain form posts.
			requestToken := c.GetHeader(csrfHeaderName)
			if requestToken == "" {
				requestToken = c.PostForm(csrfFormField)
			}
			switch {
			case cookieToken == "" || requestToken == "":
				rejectCSRF(c, "CSRF token missing")
			case subtle.ConstantTimeCompare([]byte(cookieToken), []byte(requestToken)) != 1,
				!key.valid(cookieToken, now):
				rejectCSRF(c, "CSRF token invalid")
			default:
				c.Set(csrfContextKey, cookieToken)
				c.Next()
			}

		default:
			c.Next()
		}
	}
}

func rejectCSRF(c *gin.Context, reason string) {
	if IsHTMX(c) {
		AbortHTMX(c, http.StatusForbidden, csrfExpiredMessage)
		return
	}
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": reason})
}

// GetCSRFToken returns the token CSRF stored for this request, or "".
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}

// csrfKey issues and checks tokens of the form
//
//	hex(nonce) "." base36(issued unix seconds) "." base64url(HMAC-SHA256)
//
// where the MAC covers everything before the last dot.
type csrfKey struct {
	secret []byte
	maxAge time.Duration
}

func (k csrfKey) issue(now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	payload := hex.EncodeToString(nonce) + "." + strconv.FormatInt(now.Unix(), 36)
	return payload + "." + k.sign(payload), nil
}

func (k csrfKey) sign(payload string) string {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// issuedAt parses a token and checks its signature. ok is false for
// malformed or forged tokens.
func (k csrfKey) issuedAt(token string) (issued time.Time, ok bool) {
	nonce, rest, found := strings.Cut(token, ".")
	if !found {
		return time.Time{}, false
	}
	stamp, sig, found := strings.Cut(rest, ".")
	if !found || nonce == "" || stamp == "" || sig == "" {
		return time.Time{}, false
	}
	if subtle.ConstantTimeCompare([]byte(sig), []byte(k.sign(nonce+"."+stamp))) != 1 {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

func (k csrfKey) valid(token string, now time.Time) bool {
	issued, ok := k.issuedAt(token)
	if !ok {
		return false
	}
	return k.maxAge <= 0 || now.Sub(issued) <= k.maxAge
}

// stale reports whether a valid token is past half its lifetime.
func (k csrfKey) stale(token string, now time.Time) bool {
	if k.maxAge <= 0 {
		return false
	}
	issued, _ := k.issuedAt(token)
	return now.Sub(issued) > k.maxAge/2
}

func setCSRFCookie(c *gin.Context, token string, cfg CSRFConfig) {
	cookie := &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	}
	if cfg.MaxAge > 0 {
		cookie.MaxAge = int(cfg.MaxAge / time.Second)
	}
	http.SetCookie(c.Writer, cookie)
}
