package handlers

import (
	"net/http"
	"strings"

	"rankedbyus/internal/db"
	"rankedbyus/internal/middleware"
	"rankedbyus/internal/models"
	"rankedbyus/internal/services"
	"rankedbyus/internal/utils"

	"github.com/gin-gonic/gin"
)

type SubmitHandler struct {
	mailService *services.MailService
}

func NewSubmitHandler() *SubmitHandler {
	return &SubmitHandler{
		mailService: services.NewMailService(),
	}
}

func (h *SubmitHandler) ShowCreate(c *gin.Context) {
	var categories []models.Category
	db.DB.Order("position ASC").Find(&categories)
	Render(c, http.StatusOK, "submit/create.html", gin.H{"Categories": categories})
}

// Create records a paid tool submission. The listing fee is collected by the
// external payment provider; the submission sits in pending_payment until an
// admin confirms the payment, then moves through the review queue.
func (h *SubmitHandler) Create(c *gin.Context) {
	voterKey, ok := middleware.VoterKey(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	toolName := strings.TrimSpace(c.PostForm("tool_name"))
	website := strings.TrimSpace(c.PostForm("website"))
	email := strings.TrimSpace(c.PostForm("email"))
	pitch := strings.TrimSpace(c.PostForm("pitch"))
	categoryID := utils.StringToInt(c.PostForm("category_id"))

	if toolName == "" || website == "" || email == "" || categoryID <= 0 {
		RenderError(c, http.StatusBadRequest, "Name, website, email and category are required")
		return
	}
	if !strings.HasPrefix(website, "http://") && !strings.HasPrefix(website, "https://") {
		website = "https://" + website
	}

	var category models.Category
	if err := db.DB.First(&category, categoryID).Error; err != nil {
		RenderError(c, http.StatusBadRequest, "Unknown category")
		return
	}

	submission := models.Submission{
		VoterKey:   voterKey,
		Email:      email,
		ToolName:   toolName,
		Website:    website,
		CategoryID: category.ID,
		Pitch:      pitch,
		Status:     models.SubmissionStatusPendingPayment,
	}
	if user, exists := c.Get(middleware.CheckUserKey); exists {
		id := user.(*models.User).ID
		submission.UserID = &id
	}

	if err := db.DB.Create(&submission).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not record your submission")
		return
	}

	h.mailService.NotifySubmission(adminEmails(), toolName, website)

	Render(c, http.StatusOK, "submit/thanks.html", gin.H{"Submission": submission})
}
