package router

import (
	"rankedbyus/internal/handlers"
	"rankedbyus/internal/metrics"
	"rankedbyus/internal/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func RegisterRoutes(r *gin.Engine) {
	// Handlers
	authHandler := handlers.NewAuthHandler()
	toolHandler := handlers.NewToolHandler()
	voteHandler := handlers.NewVoteHandler()
	reviewHandler := handlers.NewReviewHandler()
	articleHandler := handlers.NewArticleHandler()
	submitHandler := handlers.NewSubmitHandler()
	adminHandler := handlers.NewAdminHandler()

	// Public pages
	r.GET("/", toolHandler.ListTop)
	r.GET("/new", toolHandler.ListNew)
	r.GET("/search", toolHandler.Search)
	r.GET("/t/:slug", toolHandler.Detail)
	r.GET("/c/:slug", toolHandler.ListByCategory)
	r.GET("/categories", toolHandler.ListCategories)
	r.GET("/compare/:left/:right", toolHandler.Compare)
	r.GET("/blog", articleHandler.List)
	r.GET("/blog/:slug", articleHandler.Detail)

	r.GET("/register", authHandler.ShowRegister)
	r.POST("/register", authHandler.Register)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	// Anyone with a resolvable voter key may vote or review; that includes
	// anonymous sessions
	r.POST("/t/:slug/review", reviewHandler.Create)
	r.GET("/submit", submitHandler.ShowCreate)
	r.POST("/submit", submitHandler.Create)

	// Vote API (JSON contract consumed by web/static/js/vote.js)
	api := r.Group("/api")
	api.Use(middleware.RateLimit(rate.Limit(2), 5))
	{
		api.POST("/vote", voteHandler.Submit)
		api.GET("/vote", voteHandler.Current)
	}

	// Admin area
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.GET("", adminHandler.Dashboard)
		admin.GET("/submissions", adminHandler.ListSubmissions)
		admin.POST("/submissions/:id/paid", adminHandler.MarkPaid)
		admin.POST("/submissions/:id/approve", adminHandler.ApproveSubmission)
		admin.POST("/submissions/:id/reject", adminHandler.RejectSubmission)
		admin.GET("/reviews", adminHandler.ListReviews)
		admin.POST("/reviews/:id", adminHandler.ModerateReview)
		admin.POST("/tools/:slug/feature", adminHandler.ToggleFeatured)
		admin.POST("/articles", adminHandler.SaveArticle)
		admin.POST("/sponsors", adminHandler.CreateSponsor)
		admin.POST("/recount", adminHandler.Recount)
	}

	r.GET("/metrics", metrics.Handler())
}
