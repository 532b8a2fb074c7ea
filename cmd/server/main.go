// Package main runs the remote-classroom HTTP server with WebSocket live
// sessions and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/digi-kul/backend/config"
	"github.com/digi-kul/backend/internal/auth"
	"github.com/digi-kul/backend/internal/cohorts"
	"github.com/digi-kul/backend/internal/lectures"
	"github.com/digi-kul/backend/internal/live"
	"github.com/digi-kul/backend/internal/materials"
	"github.com/digi-kul/backend/internal/middleware"
	"github.com/digi-kul/backend/internal/models"
	"github.com/digi-kul/backend/internal/polls"
	"github.com/digi-kul/backend/internal/sessionlog"
	"github.com/digi-kul/backend/internal/worker"
	"github.com/digi-kul/backend/pkg/database"
	"github.com/digi-kul/backend/pkg/queue"
	"github.com/digi-kul/backend/pkg/redis"
	"github.com/digi-kul/backend/pkg/response"
	"github.com/digi-kul/backend/pkg/storage"
	"github.com/digi-kul/backend/pkg/utils"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MaterialsBucket:      cfg.AWS.MaterialsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Live session core: registry holds session state, relay fans events out
	// locally and across instances via Redis pub/sub.
	registry := live.NewRegistry(time.Duration(cfg.Live.CleanupDelaySeconds)*time.Second, logger)
	bus := live.NewRedisBus(rdb.Client, logger)
	relay := live.NewRelay(registry, bus, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	adminHash, err := utils.HashPassword(cfg.Admin.Password)
	if err != nil {
		logger.Fatal("hash admin password", zap.Error(err))
	}
	if err := authRepo.EnsureAdmin(ctx, cfg.Admin.Email, adminHash, cfg.Admin.Name); err != nil {
		logger.Fatal("ensure admin", zap.Error(err))
	}

	// Lectures and live sessions
	lectureRepo := lectures.NewRepository(pool)
	lectureHandler := lectures.NewHandler(lectureRepo, registry)
	liveHandler := live.NewHandler(registry, cfg.Live.ICEUrls, logger)

	// Cohorts
	cohortRepo := cohorts.NewRepository(pool)
	cohortHandler := cohorts.NewHandler(cohortRepo)

	// Materials
	compressor := materials.NewCompressor(cfg.Upload.ImageQuality, cfg.Upload.AudioBitrate, logger)
	materialRepo := materials.NewRepository(pool)
	materialHandler := materials.NewHandler(materialRepo, lectureRepo, s3Client, compressor, cfg.Upload.MaxFileSizeMB, logger)

	// Polls
	pollRepo := polls.NewRepository(pool)
	pollHandler := polls.NewHandler(pollRepo, lectureRepo, registry, relay)

	// Attendance logging and session archival
	sessionLogRepo := sessionlog.NewRepository(pool)
	sessionLogHandler := sessionlog.NewHandler(sessionLogRepo)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	archiveProcessor := worker.NewSessionArchiveProcessor(sessionLogRepo, jobQueue, logger)

	registry.SetPresenceHooks(
		func(sess live.Session, p live.Participant) {
			ctx := context.Background()
			lectureID, err := uuid.Parse(sess.LectureID)
			if err != nil {
				return
			}
			userID, err := uuid.Parse(p.UserID)
			if err != nil {
				return
			}
			if err := sessionLogRepo.LogJoin(ctx, sess.ID, lectureID, userID, p.Name, p.Role); err != nil {
				logger.Warn("attendance join log failed", zap.Error(err))
			}
		},
		func(sess live.Session, p live.Participant) {
			userID, err := uuid.Parse(p.UserID)
			if err != nil {
				return
			}
			if err := sessionLogRepo.LogLeave(context.Background(), sess.ID, userID); err != nil {
				logger.Warn("attendance leave log failed", zap.Error(err))
			}
		},
	)
	registry.SetEndedHook(func(sess live.Session) {
		lectureID, err1 := uuid.Parse(sess.LectureID)
		teacherID, err2 := uuid.Parse(sess.TeacherID)
		if err1 != nil || err2 != nil {
			return
		}
		payload := queue.SessionArchivePayload{
			SessionID:        sess.ID,
			LectureID:        lectureID,
			TeacherID:        teacherID,
			Title:            sess.Title,
			StartedAt:        sess.StartedAt,
			EndedAt:          time.Now(),
			PeakParticipants: sess.PeakParticipants,
		}
		if err := jobQueue.EnqueueSessionArchive(context.Background(), payload); err != nil {
			logger.Error("enqueue session archive failed", zap.String("session_id", sess.ID), zap.Error(err))
		}
	})

	validateToken := func(token string) (live.Identity, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return live.Identity{}, err
		}
		return live.Identity{
			UserID: claims.UserID.String(),
			Name:   claims.FullName,
			Role:   claims.Role,
		}, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	router.POST("/api/auth/login", authHandler.Login)

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		// Shared reads
		api.GET("/lectures/:id", lectureHandler.GetByID)
		api.GET("/lectures/:id/materials", materialHandler.ListByLecture)
		api.GET("/lectures/:id/polls", pollHandler.ListByLecture)
		api.GET("/lectures/:id/session", lectureHandler.GetSessionByLecture)
		api.GET("/session/by_lecture/:id", lectureHandler.GetSessionByLecture)
		api.GET("/lectures/:id/sessions", sessionLogHandler.ArchivesByLecture)
		api.GET("/materials/:id/download", materialHandler.Download)
		api.GET("/polls/:id/results", pollHandler.Results)
		api.GET("/live/ice_servers", liveHandler.ICEServers)
		api.GET("/live/sessions/:session_id", liveHandler.SessionInfo)

		// Admin
		admin := api.Group("", middleware.RequireRole(string(models.RoleAdmin)))
		{
			admin.POST("/admin/teachers", authHandler.RegisterTeacher)
			admin.POST("/admin/students", authHandler.RegisterStudent)
			admin.GET("/admin/teachers", authHandler.ListTeachers)
			admin.GET("/admin/students", authHandler.ListStudents)
			admin.POST("/admin/cohorts", cohortHandler.Create)
			admin.GET("/admin/cohorts", cohortHandler.List)
			admin.GET("/admin/cohorts/:id/students", cohortHandler.ListMembers)
			admin.POST("/admin/cohorts/:id/students", cohortHandler.AddStudent)
			admin.DELETE("/admin/cohorts/:id/students/:student_id", cohortHandler.RemoveStudent)
		}

		// Teacher
		teacher := api.Group("", middleware.RequireRole(string(models.RoleTeacher)))
		{
			teacher.POST("/teacher/lectures", lectureHandler.Create)
			teacher.GET("/teacher/lectures", lectureHandler.ListMine)
			teacher.PUT("/teacher/lectures/:id", lectureHandler.Update)
			teacher.DELETE("/teacher/lectures/:id", lectureHandler.Delete)
			teacher.POST("/teacher/live_session/start", lectureHandler.StartLiveSession)
			teacher.POST("/teacher/materials", materialHandler.Upload)
			teacher.DELETE("/teacher/materials/:id", materialHandler.Delete)
			teacher.POST("/teacher/polls", pollHandler.Create)
			teacher.GET("/teacher/cohorts", cohortHandler.ListMine)
			teacher.GET("/teacher/sessions", sessionLogHandler.MyArchives)
			teacher.GET("/teacher/sessions/:session_id/attendees", sessionLogHandler.Attendees)
		}

		// Student
		student := api.Group("", middleware.RequireRole(string(models.RoleStudent)))
		{
			student.GET("/student/lectures", lectureHandler.ListAvailable)
			student.GET("/student/lectures/enrolled", lectureHandler.ListEnrolled)
			student.POST("/student/lectures/:id/enroll", lectureHandler.Enroll)
			student.GET("/student/cohorts", cohortHandler.ListMine)
			student.POST("/student/polls/:id/vote", pollHandler.Vote)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", live.ServeWS(registry, relay, validateToken, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (session archive persistence)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go archiveProcessor.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
