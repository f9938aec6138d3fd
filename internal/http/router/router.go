package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/rental-backend/internal/config"
	"github.com/ignatzorin/rental-backend/internal/http/handlers"
	"github.com/ignatzorin/rental-backend/internal/http/middleware"
	"github.com/ignatzorin/rental-backend/internal/models"
)

// Handlers - все хэндлеры API. Health и WS могут быть nil (CLI, тесты).
type Handlers struct {
	Contracts     *handlers.ContractHandler
	Wallets       *handlers.WalletHandler
	Loans         *handlers.LoanHandler
	Disputes      *handlers.DisputeHandler
	Checklists    *handlers.ChecklistHandler
	Ratings       *handlers.RatingHandler
	Verifications *handlers.VerificationHandler
	Listings      *handlers.ListingHandler
	Notifications *handlers.NotificationHandler
	Media         *handlers.MediaHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessParser) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	if h.Health != nil {
		r.GET("/health", h.Health.Health)
	}
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")

	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}
	api.GET("/listings/:id/availability", middleware.UUIDValidator("id"), h.Listings.Availability)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	{
		protected.POST("/contracts", h.Contracts.CreateContract)
		protected.GET("/contracts", h.Contracts.ListContracts)

		contract := protected.Group("/contracts/:ref")
		contract.Use(middleware.ContractRefValidator("ref"))
		contract.GET("", h.Contracts.GetContract)
		contract.POST("/sign", h.Contracts.SignContract)
		contract.PATCH("/status", adminOnly, h.Contracts.SetContractStatus)
		contract.GET("/document", h.Contracts.GetDocumentBundle)
		contract.POST("/media", h.Media.UploadContractMedia)

		contract.GET("/wallet", h.Wallets.GetWallet)
		contract.POST("/wallet/payments", adminOnly, h.Wallets.RecordPayment)

		contract.POST("/loans", h.Loans.ApplyLoan)
		contract.GET("/loans", h.Loans.ListContractLoans)

		contract.POST("/disputes", h.Disputes.RaiseDispute)
		contract.GET("/disputes", h.Disputes.ListContractDisputes)

		contract.POST("/checklists", h.Checklists.CreateChecklist)
		contract.GET("/checklists", h.Checklists.ListContractChecklists)
		contract.POST("/damage-assessment", h.Checklists.AssessDamage)

		contract.POST("/rating", h.Ratings.SubmitRating)
		contract.GET("/rating", h.Ratings.GetRating)
	}

	{
		loans := protected.Group("/loans/:id")
		loans.Use(middleware.UUIDValidator("id"))
		loans.GET("", h.Loans.GetLoan)
		loans.POST("/approve", adminOnly, h.Loans.ApproveLoan)
		loans.POST("/disburse", adminOnly, h.Loans.DisburseLoan)
		loans.POST("/reject", adminOnly, h.Loans.RejectLoan)
		loans.POST("/default", adminOnly, h.Loans.MarkLoanDefaulted)
		loans.POST("/payments", adminOnly, h.Loans.RecordEMIPayment)
	}

	{
		protected.GET("/disputes", h.Disputes.ListMyDisputes)
		disputes := protected.Group("/disputes/:id")
		disputes.Use(middleware.UUIDValidator("id"))
		disputes.GET("", h.Disputes.GetDispute)
		disputes.POST("/messages", h.Disputes.PostMessage)
		disputes.POST("/evidence", h.Disputes.AddEvidence)
		disputes.POST("/escalate", h.Disputes.EscalateDispute)
		disputes.POST("/close", h.Disputes.CloseDispute)
		disputes.POST("/review", adminOnly, h.Disputes.StartReview)
		disputes.POST("/resolve", adminOnly, h.Disputes.ResolveDispute)
	}

	{
		checklists := protected.Group("/checklists/:id")
		checklists.Use(middleware.UUIDValidator("id"))
		checklists.GET("", h.Checklists.GetChecklist)
		checklists.PUT("", h.Checklists.UpdateChecklist)
		checklists.POST("/approve", h.Checklists.ApproveChecklist)
	}

	{
		protected.POST("/verifications", h.Verifications.RequestVerification)
		verifications := protected.Group("/verifications/:id")
		verifications.Use(middleware.UUIDValidator("id"))
		verifications.GET("", h.Verifications.GetVerification)
		verifications.PUT("/documents", adminOnly, h.Verifications.UpdateDocument)
		verifications.PUT("/inspection", adminOnly, h.Verifications.UpdateInspection)
		verifications.POST("/approve", adminOnly, h.Verifications.ApproveVerification)
		verifications.POST("/reject", adminOnly, h.Verifications.RejectVerification)
	}

	{
		listings := protected.Group("/listings/:id")
		listings.Use(middleware.UUIDValidator("id"), adminOnly)
		listings.POST("/suspend", h.Listings.Suspend)
		listings.POST("/release", h.Listings.ForceRelease)
	}

	{
		protected.GET("/notifications", h.Notifications.ListNotifications)
		protected.GET("/notifications/unread-count", h.Notifications.UnreadCount)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkAsRead)
	}

	// Вебхук модуля бронирований. Вызывается служебным клиентом с токеном администратора.
	protected.POST("/internal/bookings/rejected", adminOnly, h.Contracts.BookingRejected)

	return r
}
