package handlers

import (
	"net/http"
	"strings"

	"rankedbyus/internal/db"
	"rankedbyus/internal/logging"
	"rankedbyus/internal/middleware"
	"rankedbyus/internal/models"
	"rankedbyus/internal/services"
	"rankedbyus/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	captchaService *services.CaptchaService
}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{
		captchaService: services.NewCaptchaService(),
	}
}

func (h *AuthHandler) ShowRegister(c *gin.Context) {
	question, answer := h.captchaService.Problem()
	session := sessions.Default(c)
	session.Set("captcha_answer", answer)
	session.Save()
	Render(c, http.StatusOK, "auth/register.html", gin.H{"Captcha": question})
}

func (h *AuthHandler) showRegisterError(c *gin.Context, message string) {
	question, answer := h.captchaService.Problem()
	session := sessions.Default(c)
	session.Set("captcha_answer", answer)
	session.Save()
	Render(c, http.StatusBadRequest, "auth/register.html", gin.H{"Error": message, "Captcha": question})
}

func (h *AuthHandler) Register(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	captchaInput := c.PostForm("captcha")

	session := sessions.Default(c)
	expectedAnswer, ok := session.Get("captcha_answer").(int)
	if !ok || utils.StringToInt(captchaInput) != expectedAnswer {
		h.showRegisterError(c, "Wrong answer, try again")
		return
	}
	session.Delete("captcha_answer")
	session.Save()

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		h.showRegisterError(c, "That email address does not look right")
		return
	}
	if len(password) < 8 {
		h.showRegisterError(c, "Passwords need at least 8 characters")
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		h.showRegisterError(c, "Could not create your account")
		return
	}
	user := models.User{
		Username: parts[0],
		Email:    email,
		Password: hash,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		h.showRegisterError(c, "That email is already registered")
		return
	}

	h.finishLogin(c, &user)
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", nil)
}

func (h *AuthHandler) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	var user models.User
	if err := db.DB.Where("email = ?", email).First(&user).Error; err != nil {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{"Error": "Wrong email or password"})
		return
	}
	if !utils.CheckPassword(user.Password, password) {
		Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{"Error": "Wrong email or password"})
		return
	}

	h.finishLogin(c, &user)
	c.Redirect(http.StatusFound, "/")
}

// finishLogin stores the session user and claims any anonymous-session
// activity for the account. The claim runs before the session is rewritten so
// the anonymous id is still readable.
func (h *AuthHandler) finishLogin(c *gin.Context, user *models.User) {
	if anon := middleware.AnonymousID(c); anon != "" {
		if err := services.ClaimVoter(db.DB, "a:"+anon, user); err != nil {
			logging.L().Error().Err(err).Uint("user_id", user.ID).Msg("failed to claim anonymous activity")
		}
	}
	if err := middleware.SetSessionUser(c, user.ID); err != nil {
		logging.L().Error().Err(err).Msg("failed to persist session")
	}
}

func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSession(c)
	c.Redirect(http.StatusFound, "/")
}
