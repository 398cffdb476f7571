package main

import (
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"rankedbyus/internal/db"
	"rankedbyus/internal/logging"
	"rankedbyus/internal/metrics"
	"rankedbyus/internal/middleware"
	"rankedbyus/internal/router"
	"rankedbyus/internal/services"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, reading env vars from system")
	}
	logging.Init()

	db.Init()

	// Start the async rank worker and its nightly refresh
	services.GetRankingService().StartScheduledRankUpdate()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.HTTPMiddleware())

	// Sessions back both logins and anonymous voter identity
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 60 * 60 * 24 * 365, HttpOnly: true})
	r.Use(sessions.Sessions("rankedbyus_session", store))

	r.HTMLRender = loadTemplates("./web/templates")
	r.Static("/static", "./web/static")

	r.Use(middleware.LoadUser())
	r.Use(middleware.ResolveVoter())

	router.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logging.L().Info().Str("port", port).Msg("rankedbyus server starting")
	if err := r.Run(":" + port); err != nil {
		logging.L().Fatal().Err(err).Msg("server exited")
	}
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	includes, err := filepath.Glob(templatesDir + "/includes/*.html")
	if err != nil {
		panic(err)
	}

	components, err := filepath.Glob(templatesDir + "/components/*.html")
	if err != nil {
		panic(err)
	}

	assemble := func(view string) []string {
		files := make([]string, 0)
		files = append(files, layouts...)
		files = append(files, includes...)
		files = append(files, components...)
		files = append(files, view)
		return files
	}

	funcMap := template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add": func(a, b int) int {
			return a + b
		},
		"timeAgo": func(t interface{}) string {
			var timeVal time.Time
			switch v := t.(type) {
			case time.Time:
				timeVal = v
			case *time.Time:
				if v == nil {
					return ""
				}
				timeVal = *v
			default:
				return ""
			}

			duration := time.Since(timeVal)
			seconds := int(duration.Seconds())

			if seconds < 60 {
				return fmt.Sprintf("%ds ago", seconds)
			} else if seconds < 3600 {
				return fmt.Sprintf("%dm ago", seconds/60)
			} else if seconds < 86400 {
				return fmt.Sprintf("%dh ago", seconds/3600)
			} else if seconds < 2592000 {
				return fmt.Sprintf("%dd ago", seconds/86400)
			} else if seconds < 31536000 {
				return fmt.Sprintf("%dmo ago", seconds/2592000)
			}
			return fmt.Sprintf("%dy ago", seconds/31536000)
		},
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
		"urlquery": func(s string) string {
			return url.QueryEscape(s)
		},
	}

	// Manual registration keeps template keys matching handler expectations
	r.AddFromFilesFuncs("auth/login.html", funcMap, assemble(templatesDir+"/views/auth/login.html")...)
	r.AddFromFilesFuncs("auth/register.html", funcMap, assemble(templatesDir+"/views/auth/register.html")...)

	r.AddFromFilesFuncs("tool/list.html", funcMap, assemble(templatesDir+"/views/tool/list.html")...)
	r.AddFromFilesFuncs("tool/detail.html", funcMap, assemble(templatesDir+"/views/tool/detail.html")...)
	r.AddFromFilesFuncs("tool/compare.html", funcMap, assemble(templatesDir+"/views/tool/compare.html")...)
	r.AddFromFilesFuncs("tool/review_submitted.html", funcMap, assemble(templatesDir+"/views/tool/review_submitted.html")...)

	r.AddFromFilesFuncs("category/list.html", funcMap, assemble(templatesDir+"/views/category/list.html")...)

	r.AddFromFilesFuncs("article/list.html", funcMap, assemble(templatesDir+"/views/article/list.html")...)
	r.AddFromFilesFuncs("article/detail.html", funcMap, assemble(templatesDir+"/views/article/detail.html")...)

	r.AddFromFilesFuncs("submit/create.html", funcMap, assemble(templatesDir+"/views/submit/create.html")...)
	r.AddFromFilesFuncs("submit/thanks.html", funcMap, assemble(templatesDir+"/views/submit/thanks.html")...)

	r.AddFromFilesFuncs("admin/dashboard.html", funcMap, assemble(templatesDir+"/views/admin/dashboard.html")...)
	r.AddFromFilesFuncs("admin/submissions.html", funcMap, assemble(templatesDir+"/views/admin/submissions.html")...)
	r.AddFromFilesFuncs("admin/reviews.html", funcMap, assemble(templatesDir+"/views/admin/reviews.html")...)
	r.AddFromFilesFuncs("admin/recount.html", funcMap, assemble(templatesDir+"/views/admin/recount.html")...)

	r.AddFromFilesFuncs("search.html", funcMap, assemble(templatesDir+"/views/search.html")...)
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	return r
}
