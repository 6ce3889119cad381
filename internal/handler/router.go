package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/fos7a/institute-api/internal/middleware"
	"github.com/fos7a/institute-api/internal/models"
	"github.com/fos7a/institute-api/pkg/config"
	"github.com/fos7a/institute-api/pkg/logger"
	corsmiddleware "github.com/fos7a/institute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/fos7a/institute-api/pkg/middleware/requestid"

	"go.uber.org/zap"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth        *AuthHandler
	Course      *CourseHandler
	Cart        *CartHandler
	Application *ApplicationHandler
	Inbox       *InboxHandler
	Portal      *PortalHandler
	Document    *DocumentHandler
	Student     *StudentHandler
	Gallery     *GalleryHandler
	Metrics     *MetricsHandler
}

// RouterDeps carries the cross-cutting collaborators of the router.
type RouterDeps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Tokens   middleware.TokenValidator
	Audit    middleware.AuditWriter
	Observer middleware.RequestObserver
}

// NewRouter builds the gin engine with every route of the API.
func NewRouter(deps RouterDeps, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	if deps.Logger != nil {
		r.Use(logger.GinMiddleware(deps.Logger))
	}
	var origins []string
	if deps.Config != nil {
		origins = deps.Config.CORS.AllowedOrigins
	}
	r.Use(corsmiddleware.New(origins))
	r.Use(middleware.Metrics(deps.Observer))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if deps.Config == nil || deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/api/v1"
	if deps.Config != nil && deps.Config.APIPrefix != "" {
		prefix = deps.Config.APIPrefix
	}
	api := r.Group(prefix)
	api.GET("/health", h.Metrics.Health)

	authRequired := middleware.JWT(deps.Tokens)

	courses := api.Group("/courses")
	courses.GET("", h.Course.List)
	courses.GET("/:id", h.Course.Get)
	courses.GET("/:id/stats", h.Course.Stats)

	auth := api.Group("/auth")
	auth.POST("/signup", h.Auth.Signup)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/forgot-password", h.Auth.ForgotPassword)
	auth.POST("/reset-password", h.Auth.ResetPassword)
	auth.POST("/logout", authRequired, h.Auth.Logout)
	auth.POST("/change-password", authRequired, h.Auth.ChangePassword)
	auth.GET("/me", authRequired, h.Auth.Me)

	cart := api.Group("/cart", authRequired)
	cart.GET("", h.Cart.Get)
	cart.POST("", h.Cart.Add)
	cart.DELETE("", h.Cart.Remove)
	cart.POST("/checkout", h.Cart.Checkout)

	api.GET("/gallery", h.Gallery.Public)
	api.GET("/gallery/:id/media", h.Gallery.Media)

	api.GET("/me/portal", middleware.OptionalJWT(deps.Tokens), h.Portal.Portal)

	me := api.Group("/me", authRequired)
	me.GET("/application", h.Application.GetMine)
	me.PUT("/application", h.Application.SaveDraft)
	me.POST("/application/submit", h.Application.Submit)
	me.GET("/student", h.Portal.Student)
	me.GET("/visa-letter", middleware.Audit(deps.Audit, models.AuditActionVisaLetterDownload, "visa_letter"), h.Portal.VisaLetter)
	me.GET("/documents", h.Document.List)
	me.POST("/documents", h.Document.Upload)
	me.GET("/documents/:id/url", h.Document.SignedURL)
	me.DELETE("/documents/:id", h.Document.Delete)

	// The signed token authorizes the download; a session is not required.
	api.GET("/documents/:id/download",
		middleware.OptionalJWT(deps.Tokens),
		middleware.Audit(deps.Audit, models.AuditActionDocumentDownload, "document"),
		h.Document.Download,
	)

	admin := api.Group("/admin", authRequired, middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/applications", h.Inbox.List)
	admin.POST("/applications/:id/review", h.Inbox.StartReview)
	admin.POST("/applications/:id/approve", h.Inbox.Approve)
	admin.POST("/applications/:id/reject", h.Inbox.Reject)
	admin.POST("/applications/:id/payment-link", h.Inbox.SendPaymentLink)
	admin.POST("/applications/:id/mark-paid", h.Inbox.MarkPaid)
	admin.PUT("/applications/:id/plan", h.Inbox.AssignPlan)

	admin.GET("/students", h.Student.List)
	admin.POST("/students", h.Student.Create)
	admin.PATCH("/students/:studentId/status", h.Student.UpdateStatus)

	admin.GET("/users/:id/documents", h.Document.ListForUser)
	admin.POST("/documents/:id/approve", h.Document.Approve)
	admin.POST("/documents/:id/reject", h.Document.Reject)

	admin.GET("/gallery", h.Gallery.List)
	admin.POST("/gallery", h.Gallery.Create)
	admin.POST("/gallery/upload", h.Gallery.Upload)
	admin.PATCH("/gallery/:id", h.Gallery.Update)
	admin.DELETE("/gallery/:id", h.Gallery.Delete)

	admin.GET("/courses/stats", h.Course.AdminStats)
	admin.PUT("/courses/:id/capacity", h.Course.SetCapacity)
	admin.GET("/metrics", h.Metrics.Snapshot)

	return r
}
