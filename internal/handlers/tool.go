package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"rankedbyus/internal/db"
	"rankedbyus/internal/middleware"
	"rankedbyus/internal/models"
	"rankedbyus/internal/services"
	"rankedbyus/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	toolsPerPage    = 30
	listingCacheTTL = 2 * time.Minute
)

type ToolHandler struct{}

func NewToolHandler() *ToolHandler {
	return &ToolHandler{}
}

// fillReviewCounts batch-fills the approved-review count for a page of tools.
func fillReviewCounts(tools []models.Tool) {
	if len(tools) == 0 {
		return
	}

	toolIDs := make([]uint, len(tools))
	for i, t := range tools {
		toolIDs[i] = t.ID
	}

	type countResult struct {
		ToolID uint
		Count  int
	}
	var results []countResult
	db.DB.Model(&models.Review{}).
		Select("tool_id, COUNT(*) as count").
		Where("tool_id IN ? AND status = ?", toolIDs, models.ReviewStatusApproved).
		Group("tool_id").
		Scan(&results)

	countMap := make(map[uint]int)
	for _, r := range results {
		countMap[r.ToolID] = r.Count
	}

	for i := range tools {
		tools[i].ReviewCount = countMap[tools[i].ID]
	}
}

// fillUserVotes marks each tool with the caller's stance so the buttons render
// highlighted.
func fillUserVotes(c *gin.Context, tools []models.Tool) {
	voterKey, ok := middleware.VoterKey(c)
	if !ok || len(tools) == 0 {
		return
	}
	toolIDs := make([]uint, len(tools))
	for i, t := range tools {
		toolIDs[i] = t.ID
	}
	stances, err := services.UserVotes(db.DB, toolIDs, voterKey)
	if err != nil {
		return
	}
	for i := range tools {
		tools[i].UserVote = stances[tools[i].ID]
	}
}

func pageParam(c *gin.Context) int {
	page := utils.StringToInt(c.Query("page"))
	if page < 1 {
		page = 1
	}
	return page
}

// topToolsPage returns one page of the home listing: approved tools ordered by
// the decayed rank. The cache holds the page before any per-voter
// personalization, and callers always get their own copy; handing out the
// cached backing array would let one request's stance fill leak into the next.
func topToolsPage(page int) []models.Tool {
	cacheKey := fmt.Sprintf("tool:top:page:%d", page)
	if cached := utils.GetCache().Get(cacheKey); cached != nil {
		return cloneTools(cached.([]models.Tool))
	}

	var tools []models.Tool
	db.DB.Preload("Category").
		Where("status = ?", models.ToolStatusApproved).
		Order("featured DESC, rank DESC, score DESC").
		Offset((page - 1) * toolsPerPage).Limit(toolsPerPage).
		Find(&tools)
	fillReviewCounts(tools)
	utils.GetCache().Set(cacheKey, cloneTools(tools), listingCacheTTL)
	return tools
}

func cloneTools(tools []models.Tool) []models.Tool {
	out := make([]models.Tool, len(tools))
	copy(out, tools)
	return out
}

// ListTop is the home page, with the sponsor slot on top.
func (h *ToolHandler) ListTop(c *gin.Context) {
	page := pageParam(c)

	tools := topToolsPage(page)
	fillUserVotes(c, tools)

	sponsor, _ := services.PickSponsor(db.DB, models.SponsorSlotHome)

	Render(c, http.StatusOK, "tool/list.html", gin.H{
		"Tools":   tools,
		"Sponsor": sponsor,
		"Page":    page,
		"Title":   "Top AI tools, ranked by us",
	})
}

// ListNew shows the latest approved listings.
func (h *ToolHandler) ListNew(c *gin.Context) {
	page := pageParam(c)

	var tools []models.Tool
	db.DB.Preload("Category").
		Where("status = ?", models.ToolStatusApproved).
		Order("created_at DESC").
		Offset((page - 1) * toolsPerPage).Limit(toolsPerPage).
		Find(&tools)
	fillReviewCounts(tools)
	fillUserVotes(c, tools)

	Render(c, http.StatusOK, "tool/list.html", gin.H{
		"Tools": tools,
		"Page":  page,
		"Title": "New tools",
	})
}

// ListByCategory shows a category page.
func (h *ToolHandler) ListByCategory(c *gin.Context) {
	slug := c.Param("slug")

	var category models.Category
	if err := db.DB.Where("slug = ?", slug).First(&category).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Category not found")
		return
	}

	page := pageParam(c)
	var tools []models.Tool
	db.DB.Where("category_id = ? AND status = ?", category.ID, models.ToolStatusApproved).
		Order("rank DESC, score DESC").
		Offset((page - 1) * toolsPerPage).Limit(toolsPerPage).
		Find(&tools)
	fillReviewCounts(tools)
	fillUserVotes(c, tools)

	sponsor, _ := services.PickSponsor(db.DB, models.SponsorSlotCategory)

	Render(c, http.StatusOK, "tool/list.html", gin.H{
		"Tools":    tools,
		"Category": category,
		"Sponsor":  sponsor,
		"Page":     page,
		"Title":    category.Name,
	})
}

// ListCategories is the category index.
func (h *ToolHandler) ListCategories(c *gin.Context) {
	var categories []models.Category
	db.DB.Order("position ASC").Find(&categories)
	Render(c, http.StatusOK, "category/list.html", gin.H{"Categories": categories})
}

// Detail renders one tool with its approved reviews and the caller's stance.
func (h *ToolHandler) Detail(c *gin.Context) {
	slug := c.Param("slug")

	var tool models.Tool
	if err := db.DB.Preload("Category").Where("slug = ? AND status = ?", slug, models.ToolStatusApproved).
		First(&tool).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Tool not found")
		return
	}

	// View counting is best effort, outside any vote transaction.
	db.DB.Model(&tool).UpdateColumn("views", gorm.Expr("views + 1"))

	var reviews []models.Review
	db.DB.Where("tool_id = ? AND status = ?", tool.ID, models.ReviewStatusApproved).
		Order("created_at DESC").Limit(50).
		Find(&reviews)

	if voterKey, ok := middleware.VoterKey(c); ok {
		if stance, err := services.UserVote(db.DB, tool.ID, voterKey); err == nil && stance != nil {
			tool.UserVote = *stance
		}
	}

	Render(c, http.StatusOK, "tool/detail.html", gin.H{
		"Tool":        tool,
		"Reviews":     reviews,
		"Description": utils.RenderMarkdown(tool.Summary),
	})
}

// Compare renders a side-by-side page for two tools.
func (h *ToolHandler) Compare(c *gin.Context) {
	leftSlug := c.Param("left")
	rightSlug := c.Param("right")
	if leftSlug == rightSlug {
		RenderError(c, http.StatusBadRequest, "Pick two different tools to compare")
		return
	}

	var left, right models.Tool
	if err := db.DB.Preload("Category").Where("slug = ? AND status = ?", leftSlug, models.ToolStatusApproved).First(&left).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Tool not found")
		return
	}
	if err := db.DB.Preload("Category").Where("slug = ? AND status = ?", rightSlug, models.ToolStatusApproved).First(&right).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Tool not found")
		return
	}

	pair := []models.Tool{left, right}
	fillReviewCounts(pair)
	fillUserVotes(c, pair)

	Render(c, http.StatusOK, "tool/compare.html", gin.H{
		"Left":  pair[0],
		"Right": pair[1],
		"Title": fmt.Sprintf("%s vs %s", left.Name, right.Name),
	})
}

// Search is plain substring matching over name and tagline. Relevance ranking
// is out of scope; results come back by score.
func (h *ToolHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))

	var tools []models.Tool
	if query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		db.DB.Preload("Category").
			Where("status = ? AND (LOWER(name) LIKE ? OR LOWER(tagline) LIKE ?)",
				models.ToolStatusApproved, pattern, pattern).
			Order("score DESC").Limit(50).
			Find(&tools)
		fillReviewCounts(tools)
		fillUserVotes(c, tools)
	}

	Render(c, http.StatusOK, "search.html", gin.H{
		"Query": query,
		"Tools": tools,
	})
}
