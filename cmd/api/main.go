package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"campus/internal/attendance"
	"campus/internal/auth"
	"campus/internal/config"
	"campus/internal/enrollment"
	"campus/internal/httpmiddleware"
	"campus/internal/queue"
	"campus/internal/roster"
	"campus/internal/store"
	"campus/pkg/logger"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, log *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.RunMigrations(db.Client, log); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campus:repair")
	}

	rosterRepo := roster.NewRepository(db.Client)
	attendanceRepo := attendance.NewRepository(db.Client)
	enroll := enrollment.NewService(rosterRepo, log)
	sessions := attendance.NewService(attendanceRepo, rosterRepo, log)
	policy := attendance.Policy{
		FinePerDay:  cfg.FinePerDay,
		SafePercent: cfg.SafePercent,
		WarnPercent: cfg.WarnPercent,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		role, subject, classCode := "", "", ""
		switch {
		case req.Username == cfg.AdminUser && req.Password == cfg.AdminSecret:
			role, subject = auth.RoleAdmin, req.Username
		default:
			st, err := rosterRepo.GetStudentByUsername(c.Request.Context(), req.Username)
			if err != nil || st.Secret != req.Password {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			role, subject = auth.RoleStudent, st.Username
			if cls, err := rosterRepo.GetClass(c.Request.Context(), st.ClassID); err == nil {
				classCode = cls.Code
			}
		}

		tokens, err := auth.Issue(subject, role, classCode, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"role":          role,
		})
	})

	admin := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))

	admin.POST("/classes", func(c *gin.Context) {
		var req struct {
			University string           `json:"university" binding:"required"`
			Course     string           `json:"course" binding:"required"`
			Year       int              `json:"year" binding:"required"`
			Semester   int              `json:"semester" binding:"required"`
			Subjects   []roster.Subject `json:"subjects"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cls := &roster.Class{
			University: req.University,
			Course:     req.Course,
			Year:       req.Year,
			Semester:   req.Semester,
			Subjects:   req.Subjects,
		}
		if err := rosterRepo.CreateClass(c.Request.Context(), cls); err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"classCode": cls.Code, "id": cls.ID})
	})

	admin.GET("/classes", func(c *gin.Context) {
		classes, err := rosterRepo.ListClasses(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"classes": classes})
	})

	admin.GET("/classes/:code", func(c *gin.Context) {
		cls, err := rosterRepo.GetClassByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cls)
	})

	admin.DELETE("/classes/:code", func(c *gin.Context) {
		if err := rosterRepo.DeleteClass(c.Request.Context(), c.Param("code")); err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		// Any students missed by the cascade are swept by the next repair run.
		_ = q.Publish(c.Request.Context(), queue.Job{Type: queue.JobRepairOrphans})
		c.JSON(http.StatusOK, gin.H{"message": "class deleted"})
	})

	admin.POST("/classes/:code/working-days", func(c *gin.Context) {
		var req struct {
			WorkingDays int `json:"workingDays" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := rosterRepo.SetWorkingDays(c.Request.Context(), c.Param("code"), req.WorkingDays); err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "working days locked", "workingDays": req.WorkingDays})
	})

	admin.POST("/classes/:code/students/upload", func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		if header.Size > cfg.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		rows, err := enrollment.ParseRows(file, header.Filename)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := enroll.EnrollBatch(c.Request.Context(), c.Param("code"), rows)
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin.POST("/attendance", func(c *gin.Context) {
		var req struct {
			Subject        string                 `json:"subject" binding:"required"`
			Date           string                 `json:"date" binding:"required"`
			ClassCode      string                 `json:"classCode" binding:"required"`
			AttendanceData []attendance.MarkInput `json:"attendanceData" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be ISO format"})
			return
		}

		res, err := sessions.TakeAttendance(c.Request.Context(), attendance.TakeInput{
			Subject:   req.Subject,
			Date:      date,
			ClassCode: req.ClassCode,
			TakenBy:   auth.FromContext(c).Subject,
			Marks:     req.AttendanceData,
		})
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		_ = q.Publish(c.Request.Context(), queue.Job{Type: queue.JobRepairLinkage, SessionID: res.AttendanceID})
		c.JSON(http.StatusCreated, res)
	})

	admin.PUT("/attendance/:id", func(c *gin.Context) {
		var req struct {
			AttendanceData []attendance.MarkInput `json:"attendanceData" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := sessions.UpdateAttendance(c.Request.Context(), c.Param("id"), req.AttendanceData)
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})

	admin.POST("/students/:roll/marks", func(c *gin.Context) {
		var req struct {
			Subject  string `json:"subject" binding:"required"`
			Score    int    `json:"score" binding:"min=0"`
			MaxScore int    `json:"maxScore" binding:"required,gt=0"`
			ExamType string `json:"examType" binding:"required,oneof=internal semester"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Score > req.MaxScore {
			c.JSON(http.StatusBadRequest, gin.H{"error": "score exceeds maximum"})
			return
		}
		st, err := rosterRepo.GetStudentByRoll(c.Request.Context(), c.Param("roll"))
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		mark := &roster.Mark{
			StudentID: st.ID,
			Subject:   req.Subject,
			Score:     req.Score,
			MaxScore:  req.MaxScore,
			ExamType:  req.ExamType,
		}
		if err := rosterRepo.AddMark(c.Request.Context(), mark); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"markId": mark.ID})
	})

	admin.POST("/admin/repair", func(c *gin.Context) {
		if err := q.Publish(c.Request.Context(), queue.Job{Type: queue.JobRepairOrphans}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "repair scheduled"})
	})

	authed := r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin, auth.RoleStudent))

	authed.GET("/students/:roll/dashboard", func(c *gin.Context) {
		st, err := rosterRepo.GetStudentByRoll(c.Request.Context(), c.Param("roll"))
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		claims := auth.FromContext(c)
		if claims.Role == auth.RoleStudent && claims.Subject != st.Username {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your record"})
			return
		}

		workingDays := 0
		if cls, err := rosterRepo.GetClass(c.Request.Context(), st.ClassID); err == nil {
			workingDays = cls.WorkingDays
		}
		records, err := sessions.StudentRecords(c.Request.Context(), st.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, attendance.Summarize(records, workingDays, policy))
	})

	authed.GET("/students/:roll/marks", func(c *gin.Context) {
		st, err := rosterRepo.GetStudentByRoll(c.Request.Context(), c.Param("roll"))
		if err != nil {
			c.JSON(httpStatus(err), gin.H{"error": err.Error()})
			return
		}
		claims := auth.FromContext(c)
		if claims.Role == auth.RoleStudent && claims.Subject != st.Username {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your record"})
			return
		}
		marks, err := rosterRepo.ListMarks(c.Request.Context(), st.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"marks": marks})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, roster.ErrClassNotFound),
		errors.Is(err, roster.ErrStudentNotFound),
		errors.Is(err, attendance.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrSessionExists),
		errors.Is(err, roster.ErrClassExists),
		errors.Is(err, roster.ErrWorkingDaysLocked):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrNoValidStudents),
		errors.Is(err, enrollment.ErrUnsupportedFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
