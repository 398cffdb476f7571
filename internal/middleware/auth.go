package middleware

import (
	"fmt"
	"net/http"

	"rankedbyus/internal/db"
	"rankedbyus/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const CheckUserKey = "user"
const VoterKeyKey = "voter_key"

// Session keys
const (
	sessionUserID   = "user_id"
	sessionAnonymID = "anon_id"
)

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(sessionUserID)
		if userID == nil {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired gates the admin area. Must run after LoadUser.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, exists := c.Get(CheckUserKey)
		if !exists || u.(*models.User).Role != "admin" {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// LoadUser retrieves the user from the session and sets it on the context.
func LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(sessionUserID)

		if userID != nil {
			var user models.User
			result := db.DB.First(&user, userID)
			if result.Error == nil {
				c.Set(CheckUserKey, &user)
			}
		}
		c.Next()
	}
}

// ResolveVoter resolves exactly one voter key per request: "u:<id>" for an
// authenticated user, otherwise "a:<uuid>" from a session-held anonymous id
// minted on first contact. The two namespaces never merge implicitly; the
// claiming step at login is the only reattribution path.
//
// When no key can be established (session write failure, cookies rejected)
// the context carries no voter key and vote endpoints must fail
// unauthenticated rather than guess.
func ResolveVoter() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)

		if userID := session.Get(sessionUserID); userID != nil {
			c.Set(VoterKeyKey, fmt.Sprintf("u:%v", userID))
			c.Next()
			return
		}

		if anon, ok := session.Get(sessionAnonymID).(string); ok && anon != "" {
			c.Set(VoterKeyKey, "a:"+anon)
			c.Next()
			return
		}

		anon := uuid.NewString()
		session.Set(sessionAnonymID, anon)
		if err := session.Save(); err != nil {
			// No durable identity; leave the key unset.
			c.Next()
			return
		}
		c.Set(VoterKeyKey, "a:"+anon)
		c.Next()
	}
}

// VoterKey returns the resolved voter key for this request, if any.
func VoterKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(VoterKeyKey)
	if !ok {
		return "", false
	}
	key, ok := v.(string)
	return key, ok && key != ""
}

// AnonymousID returns the session's anonymous id, if one exists. Used by the
// login flow to claim anonymous activity.
func AnonymousID(c *gin.Context) string {
	session := sessions.Default(c)
	if anon, ok := session.Get(sessionAnonymID).(string); ok {
		return anon
	}
	return ""
}

// SetSessionUser records a login in the session.
func SetSessionUser(c *gin.Context, userID uint) error {
	session := sessions.Default(c)
	session.Set(sessionUserID, userID)
	return session.Save()
}

// ClearSession drops the whole session, including the anonymous id.
func ClearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}
