package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"MediCare/internal/handler"
	"MediCare/internal/middleware"
	"MediCare/internal/model"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.MetricsMiddleware())
	h.Use(middleware.GeneralRateLimitMiddleware())

	v1 := h.Group("/v1")

	// 认证相关路由
	auth := v1.Group("/auth")
	auth.Use(middleware.AuthRateLimitMiddleware())
	{
		auth.POST("/signup", handler.SignUp)
		auth.POST("/signin", handler.SignIn)
		auth.POST("/token/refresh", handler.RefreshToken)
		auth.POST("/signout", middleware.AuthMiddleware(), handler.SignOut)
	}

	// 用户相关路由
	users := v1.Group("/users")
	users.Use(middleware.AuthMiddleware())
	{
		users.GET("/me", handler.GetUserProfile)
		users.PATCH("/me", handler.UpdateUserProfile)
	}

	// 药品
	meds := v1.Group("/medications")
	meds.Use(middleware.AuthMiddleware())
	{
		meds.GET("", handler.ListMedications)
		meds.POST("", handler.CreateMedication)
	}

	// 服药记录
	logs := v1.Group("/dose-logs")
	logs.Use(middleware.AuthMiddleware())
	{
		logs.GET("", handler.ListDoseLogs)
		logs.POST("", handler.CreateDoseLog)
	}

	// 服药照片
	proofs := v1.Group("/proofs")
	proofs.Use(middleware.AuthMiddleware())
	{
		proofs.GET("/signed-url", handler.GetProofSignedURL)
		proofs.POST("", middleware.ProofUploadRateLimitMiddleware(), handler.UploadProof)
		proofs.PUT("/*path", middleware.ProofUploadRateLimitMiddleware(), handler.PutProof)
	}

	// 依从性
	adherence := v1.Group("/adherence")
	adherence.Use(middleware.AuthMiddleware())
	{
		adherence.GET("/summary", handler.GetAdherenceSummary)
		adherence.GET("/calendar", handler.GetAdherenceCalendar)
		adherence.GET("/day", handler.GetAdherenceDay)
	}

	// 患者管理自己的照护者
	caretakers := v1.Group("/caretakers")
	caretakers.Use(middleware.AuthMiddleware())
	{
		caretakers.GET("", handler.ListCaretakers)
		caretakers.POST("", handler.LinkCaretaker)
		caretakers.DELETE("/:caretaker_id", handler.UnlinkCaretaker)
	}

	// 照护者查看患者
	patients := v1.Group("/patients")
	patients.Use(middleware.AuthMiddleware(), middleware.RequireRole(model.UserRoleCaretaker))
	{
		patients.GET("", handler.ListPatients)
		patients.GET("/:patient_id/adherence/summary", handler.GetPatientSummary)
		patients.GET("/:patient_id/adherence/calendar", handler.GetPatientCalendar)
		patients.GET("/:patient_id/dose-logs", handler.ListPatientDoseLogs)
	}
}
