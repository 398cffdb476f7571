package handlers

import (
	"net/http"
	"strings"

	"rankedbyus/internal/db"
	"rankedbyus/internal/models"
	"rankedbyus/internal/utils"

	"github.com/gin-gonic/gin"
)

type ArticleHandler struct{}

func NewArticleHandler() *ArticleHandler {
	return &ArticleHandler{}
}

// List shows published articles, newest first. Articles written without a
// hand-picked summary get a plain-text preview clipped from the body.
func (h *ArticleHandler) List(c *gin.Context) {
	page := pageParam(c)

	var articles []models.Article
	db.DB.Preload("Author").
		Where("status = ?", models.ArticleStatusPublished).
		Order("published_at DESC").
		Offset((page - 1) * toolsPerPage).Limit(toolsPerPage).
		Find(&articles)
	for i := range articles {
		if articles[i].Summary == "" {
			articles[i].Summary = previewText(articles[i].Body)
		}
	}

	Render(c, http.StatusOK, "article/list.html", gin.H{
		"Articles": articles,
		"Page":     page,
	})
}

const previewRunes = 200

// previewText renders markdown to plain text and clips it for list pages.
func previewText(body string) string {
	plain := strings.TrimSpace(utils.StripHTML(string(utils.RenderMarkdown(body))))
	runes := []rune(plain)
	if len(runes) > previewRunes {
		return strings.TrimSpace(string(runes[:previewRunes])) + "…"
	}
	return plain
}

// Detail renders one published article.
func (h *ArticleHandler) Detail(c *gin.Context) {
	slug := c.Param("slug")

	var article models.Article
	if err := db.DB.Preload("Author").
		Where("slug = ? AND status = ?", slug, models.ArticleStatusPublished).
		First(&article).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Article not found")
		return
	}

	Render(c, http.StatusOK, "article/detail.html", gin.H{
		"Article": article,
		"Body":    utils.RenderMarkdown(article.Body),
	})
}
