package handlers

import (
	"errors"
	"net/http"
	"strings"

	"rankedbyus/internal/db"
	"rankedbyus/internal/middleware"
	"rankedbyus/internal/models"
	"rankedbyus/internal/services"
	"rankedbyus/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ReviewHandler struct {
	mailService *services.MailService
}

func NewReviewHandler() *ReviewHandler {
	return &ReviewHandler{
		mailService: services.NewMailService(),
	}
}

// Create accepts a review form post. Reviews carry the same voter key scheme
// as votes, so anonymous reviews get claimed on login too. One review per
// voter per tool; new reviews land in the moderation queue.
func (h *ReviewHandler) Create(c *gin.Context) {
	voterKey, ok := middleware.VoterKey(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	slug := c.Param("slug")
	var tool models.Tool
	if err := db.DB.Where("slug = ? AND status = ?", slug, models.ToolStatusApproved).First(&tool).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Tool not found")
		return
	}

	rating := utils.StringToInt(c.PostForm("rating"))
	if rating < 1 || rating > 5 {
		RenderError(c, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	body := strings.TrimSpace(c.PostForm("body"))
	if len(body) < 20 {
		RenderError(c, http.StatusBadRequest, "Reviews need at least a couple of sentences")
		return
	}

	review := models.Review{
		ToolID:   tool.ID,
		VoterKey: voterKey,
		Rating:   rating,
		Title:    strings.TrimSpace(c.PostForm("title")),
		Body:     body,
		Status:   models.ReviewStatusPending,
	}
	if user, exists := c.Get(middleware.CheckUserKey); exists {
		id := user.(*models.User).ID
		review.UserID = &id
	}

	if err := db.DB.Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			RenderError(c, http.StatusConflict, "You already reviewed this tool")
			return
		}
		RenderError(c, http.StatusInternalServerError, "Could not save your review")
		return
	}

	h.mailService.NotifyReviewQueued(adminEmails(), tool.Name)

	Render(c, http.StatusOK, "tool/review_submitted.html", gin.H{"Tool": tool})
}

func adminEmails() []string {
	var admins []models.User
	if err := db.DB.Where("role = ?", "admin").Find(&admins).Error; err != nil {
		return nil
	}
	emails := make([]string, 0, len(admins))
	for _, a := range admins {
		emails = append(emails, a.Email)
	}
	return emails
}
