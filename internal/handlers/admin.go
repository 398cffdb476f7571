package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"rankedbyus/internal/db"
	"rankedbyus/internal/logging"
	"rankedbyus/internal/middleware"
	"rankedbyus/internal/models"
	"rankedbyus/internal/services"
	"rankedbyus/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct{}

func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

// Dashboard shows the moderation queues and headline counts.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	var toolCount, pendingReviews, pendingSubmissions, voteCount int64
	db.DB.Model(&models.Tool{}).Where("status = ?", models.ToolStatusApproved).Count(&toolCount)
	db.DB.Model(&models.Review{}).Where("status = ?", models.ReviewStatusPending).Count(&pendingReviews)
	db.DB.Model(&models.Submission{}).Where("status IN ?",
		[]string{models.SubmissionStatusPendingPayment, models.SubmissionStatusPaid}).Count(&pendingSubmissions)
	db.DB.Model(&models.Vote{}).Count(&voteCount)

	Render(c, http.StatusOK, "admin/dashboard.html", gin.H{
		"ToolCount":          toolCount,
		"PendingReviews":     pendingReviews,
		"PendingSubmissions": pendingSubmissions,
		"VoteCount":          voteCount,
	})
}

// ListSubmissions shows the submission queue.
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	var submissions []models.Submission
	db.DB.Preload("Category").
		Where("status IN ?", []string{models.SubmissionStatusPendingPayment, models.SubmissionStatusPaid}).
		Order("created_at ASC").
		Find(&submissions)
	Render(c, http.StatusOK, "admin/submissions.html", gin.H{"Submissions": submissions})
}

// MarkPaid records that the payment provider confirmed the listing fee.
func (h *AdminHandler) MarkPaid(c *gin.Context) {
	id := utils.StringToInt(c.Param("id"))
	res := db.DB.Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusPendingPayment).
		UpdateColumn("status", models.SubmissionStatusPaid)
	if res.RowsAffected == 0 {
		RenderError(c, http.StatusNotFound, "Submission not found or not awaiting payment")
		return
	}
	c.Redirect(http.StatusFound, "/admin/submissions")
}

// ApproveSubmission turns a paid submission into a pending tool listing and
// kicks off AI enrichment for the marketing fields.
func (h *AdminHandler) ApproveSubmission(c *gin.Context) {
	id := utils.StringToInt(c.Param("id"))

	var submission models.Submission
	if err := db.DB.First(&submission, id).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Submission not found")
		return
	}
	if submission.Status != models.SubmissionStatusPaid {
		RenderError(c, http.StatusBadRequest, "Only paid submissions can be approved")
		return
	}

	slug := utils.Slugify(submission.ToolName)
	if slug == "" {
		slug = fmt.Sprintf("tool-%d", submission.ID)
	}
	var clash int64
	db.DB.Model(&models.Tool{}).Where("slug = ?", slug).Count(&clash)
	if clash > 0 {
		slug = fmt.Sprintf("%s-%d", slug, submission.ID)
	}

	// With enrichment configured the listing stays pending until the content
	// screen clears it; without, there is no screen and it goes live now.
	status := models.ToolStatusApproved
	if services.GetEnrichService().Enabled() {
		status = models.ToolStatusPending
	}

	tool := models.Tool{
		Slug:       slug,
		CategoryID: submission.CategoryID,
		Name:       submission.ToolName,
		Website:    submission.Website,
		Summary:    submission.Pitch,
		Status:     status,
	}
	if err := db.DB.Create(&tool).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not create the listing")
		return
	}

	db.DB.Model(&submission).UpdateColumns(map[string]interface{}{
		"status":  models.SubmissionStatusApproved,
		"tool_id": tool.ID,
	})

	services.EnrichToolAsync(tool.ID)
	services.UpdateToolRankSync(tool.ID)

	c.Redirect(http.StatusFound, "/admin/submissions")
}

// RejectSubmission closes a submission without listing it.
func (h *AdminHandler) RejectSubmission(c *gin.Context) {
	id := utils.StringToInt(c.Param("id"))
	db.DB.Model(&models.Submission{}).Where("id = ?", id).
		UpdateColumn("status", models.SubmissionStatusRejected)
	c.Redirect(http.StatusFound, "/admin/submissions")
}

// ListReviews shows the review moderation queue.
func (h *AdminHandler) ListReviews(c *gin.Context) {
	var reviews []models.Review
	db.DB.Preload("Tool").
		Where("status = ?", models.ReviewStatusPending).
		Order("created_at ASC").
		Find(&reviews)
	Render(c, http.StatusOK, "admin/reviews.html", gin.H{"Reviews": reviews})
}

// ModerateReview approves or rejects one review.
func (h *AdminHandler) ModerateReview(c *gin.Context) {
	id := utils.StringToInt(c.Param("id"))
	decision := c.PostForm("decision")

	status := models.ReviewStatusRejected
	if decision == "approve" {
		status = models.ReviewStatusApproved
	}

	var review models.Review
	if err := db.DB.First(&review, id).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Review not found")
		return
	}
	db.DB.Model(&review).UpdateColumn("status", status)

	if status == models.ReviewStatusApproved {
		// Approved reviews feed the listing rank.
		services.GetRankingService().ScheduleUpdate(review.ToolID)
	}

	c.Redirect(http.StatusFound, "/admin/reviews")
}

// ToggleFeatured pins or unpins a tool on the home page.
func (h *AdminHandler) ToggleFeatured(c *gin.Context) {
	slug := c.Param("slug")
	var tool models.Tool
	if err := db.DB.Where("slug = ?", slug).First(&tool).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Tool not found")
		return
	}
	db.DB.Model(&tool).UpdateColumn("featured", !tool.Featured)
	c.Redirect(http.StatusFound, "/t/"+tool.Slug)
}

// SaveArticle creates or updates an article; publishing stamps published_at.
func (h *AdminHandler) SaveArticle(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	title := strings.TrimSpace(c.PostForm("title"))
	body := strings.TrimSpace(c.PostForm("body"))
	if title == "" || body == "" {
		RenderError(c, http.StatusBadRequest, "Title and body are required")
		return
	}

	id := utils.StringToInt(c.PostForm("id"))
	publish := c.PostForm("publish") == "true"

	var article models.Article
	if id > 0 {
		if err := db.DB.First(&article, id).Error; err != nil {
			RenderError(c, http.StatusNotFound, "Article not found")
			return
		}
	} else {
		article = models.Article{
			Slug:     utils.Slugify(title),
			AuthorID: user.ID,
			Status:   models.ArticleStatusDraft,
		}
	}

	article.Title = title
	article.Summary = strings.TrimSpace(c.PostForm("summary"))
	article.Body = body
	if publish && article.Status != models.ArticleStatusPublished {
		now := time.Now()
		article.Status = models.ArticleStatusPublished
		article.PublishedAt = &now
	}

	if err := db.DB.Save(&article).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not save the article")
		return
	}
	c.Redirect(http.StatusFound, "/blog/"+article.Slug)
}

// CreateSponsor books a placement for a tool in a slot.
func (h *AdminHandler) CreateSponsor(c *gin.Context) {
	toolID := utils.StringToInt(c.PostForm("tool_id"))
	slot := c.PostForm("slot")
	weight := utils.StringToInt(c.PostForm("weight"))
	days := utils.StringToInt(c.PostForm("days"))

	if toolID <= 0 || (slot != models.SponsorSlotHome && slot != models.SponsorSlotCategory) {
		RenderError(c, http.StatusBadRequest, "Tool and a valid slot are required")
		return
	}
	if weight <= 0 {
		weight = 1
	}
	if days <= 0 {
		days = 30
	}

	sponsor := models.Sponsor{
		ToolID:   uint(toolID),
		Slot:     slot,
		Weight:   weight,
		StartsAt: time.Now(),
		EndsAt:   time.Now().AddDate(0, 0, days),
		Active:   true,
	}
	if err := db.DB.Create(&sponsor).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not create the placement")
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

// Recount repairs drifted aggregates from a full vote scan. This is the only
// write path for score/vote_count outside the vote transaction, and it is
// manual.
func (h *AdminHandler) Recount(c *gin.Context) {
	repaired, err := services.RecountAll(db.DB)
	if err != nil {
		logging.L().Error().Err(err).Msg("recount failed")
		RenderError(c, http.StatusInternalServerError, "Recount failed")
		return
	}
	logging.L().Info().Int("repaired", repaired).Msg("aggregate recount finished")
	Render(c, http.StatusOK, "admin/recount.html", gin.H{"Repaired": repaired})
}
