package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ROLLCALL-backend/internal/attendance"
	"ROLLCALL-backend/internal/catalog"
	"ROLLCALL-backend/internal/evidence"
	"ROLLCALL-backend/internal/justification"
	"ROLLCALL-backend/internal/platform/apierr"
	"ROLLCALL-backend/internal/platform/auth"
	"ROLLCALL-backend/internal/platform/db"
	"ROLLCALL-backend/internal/platform/metrics"
	"ROLLCALL-backend/internal/report"
)

func main() {
	// 設定読み込み
	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		panic(err)
	}

	// 動作モード取得
	mode := cfg.Mode
	log.Printf("[INFO] mode:%s version:%s\n", mode, cfg.Version)

	if cfg.Mode != "dev" && cfg.Mode != "release" {
		fmt.Println("Usage: APP_MODE=[dev|release] go run main.go")
		return
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("[ERROR] auth.jwt_secret (or JWT_SECRET) is required")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal(err)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(ctx, conn); err != nil {
		cancel()
		log.Fatalf("[ERROR] migrate: %v", err)
	}
	cancel()

	// サービス組み立て
	secret := []byte(cfg.Auth.JWTSecret)
	authSvc := auth.NewService(conn, secret, cfg.TokenTTL())
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if mode == "dev" && cfg.SeedDemo {
		if err := db.SeedDemo(ctx, conn); err != nil {
			log.Printf("[WARN] demo seed failed: %v", err)
		}
	}
	if err := authSvc.EnsureAdmin(ctx, cfg.BootstrapAdmin.Name, cfg.BootstrapAdmin.Email, cfg.BootstrapAdmin.Password); err != nil {
		log.Printf("[WARN] bootstrap admin not created: %v", err)
	}
	cancel()

	evStore, err := evidence.NewStore(cfg.Evidence.Dir, cfg.Evidence.MaxBytes, cfg.Evidence.AllowedTypes)
	if err != nil {
		log.Fatal(err)
	}

	ledger := attendance.NewStore(conn)
	attendanceSvc := attendance.NewService(ledger, loc, attendance.Defaults{
		WindowMins:    cfg.Attendance.DefaultWindowMins,
		LateAfterMins: cfg.Attendance.DefaultLateAfterMins,
	})
	justificationSvc := justification.NewService(justification.NewStore(conn), ledger, evStore)
	reportSvc := report.NewService(report.NewStore(conn), cfg.Attendance.LowThreshold)
	catalogSvc := catalog.NewService(catalog.NewStore(conn))

	if err := attendance.RegisterValidators(); err != nil {
		log.Fatal(err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)
	r.MaxMultipartMemory = cfg.Evidence.MaxBytes

	if mode == "dev" {
		// CORS（開発中のみ必要）
		origins := cfg.Server.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス / メトリクス
	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", metrics.Handler())

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterPublicRoutes(api, authSvc)

	authed := api.Group("", auth.RequireAuth(secret))
	catalog.RegisterReadRoutes(authed, catalogSvc)
	// 証拠ファイルは静的配信しない（本人・担当教員・admin のみ）
	justification.RegisterEvidenceRoutes(authed, justificationSvc)

	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	auth.RegisterAdminRoutes(admin, authSvc)
	catalog.RegisterAdminRoutes(admin, catalogSvc)

	// 教員（admin も可）
	staff := authed.Group("", auth.RequireRole(auth.RoleFaculty, auth.RoleAdmin))
	attendance.RegisterFacultyRoutes(staff, attendanceSvc)
	justification.RegisterFacultyRoutes(staff, justificationSvc)
	report.RegisterFacultyRoutes(staff, reportSvc)

	// 学生本人
	me := authed.Group("/me", auth.RequireRole(auth.RoleStudent))
	attendance.RegisterStudentRoutes(me, attendanceSvc)
	justification.RegisterStudentRoutes(me, justificationSvc)
	report.RegisterStudentRoutes(me, reportSvc)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apierr.Body(apierr.CodeNotFound, "route not found"))
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if cfg.UseTLS() {
			// TLS設定
			certFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Cert)
			keyFile := fmt.Sprintf("config/tls/%s/%s", mode, cfg.Certificate.Key)
			log.Printf("[INFO] listening on https://%s", cfg.Server.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("[WARN] certificate not configured, listening on http://%s", cfg.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] shutting down...")
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}
