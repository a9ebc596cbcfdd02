package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type CookieOptions struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

func (o CookieOptions) Set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(o.Name, token, int(o.MaxAge.Seconds()), "/", "", o.Secure, true)
}

func (o CookieOptions) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(o.Name, "", -1, "/", "", o.Secure, true)
}

// Middleware attaches the visitor's session to the request context,
// starting an anonymous one when the cookie is missing or stale.
func Middleware(store *Store, cookie CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookie.Name)
		s, ok := store.Get(token)
		if !ok {
			s = store.Create()
			cookie.Set(c, s.Token)
		}
		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), s))
		c.Next()
	}
}

// RequireLogin aborts with a redirect home for anonymous visitors.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := FromContext(c.Request.Context())
		if err != nil || !s.LoggedIn() {
			c.Redirect(http.StatusSeeOther, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}
