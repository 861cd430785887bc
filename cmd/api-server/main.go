package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"chapterwatch/internal/auth"
	"chapterwatch/internal/notify"
	"chapterwatch/internal/renderhub"
	"chapterwatch/internal/resolver"
	"chapterwatch/internal/runner"
	"chapterwatch/internal/tracker"
	"chapterwatch/pkg/database"
	"chapterwatch/pkg/utils"
)

func main() {
	dbCfg := database.DefaultConfig()
	db := database.MustOpen(dbCfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	srvCfg := utils.LoadServerConfig()
	resCfg := utils.LoadResolveConfig()

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := renderhub.NewHub()

	udpRegistry := notify.NewRegistry()
	udpSrv := notify.NewServer(srvCfg.UDPAddr, udpRegistry, nil)

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	// bind the notify socket before any re-admitted item can resolve,
	// so startup pushes are not dropped
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := udpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	run := runner.New(resCfg.Concurrency)
	res := resolver.New(srvCfg.APIBase, run, resolver.Options{
		ShortRetries:   resCfg.ShortRetries,
		ShortBase:      resCfg.ShortBase,
		AttemptTimeout: resCfg.AttemptTimeout,
	})

	trk := tracker.New(res, hub, udpSrv, tracker.Options{
		LongRetryMax: resCfg.LongRetryMax,
		LongBase:     resCfg.LongBase,
	})
	defer trk.Close()

	trackRepo := tracker.NewRepo(db)

	// restore the persisted threshold, then re-admit the watchlist;
	// chapters are always resolved fresh
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	if min, err := trackRepo.GetMinChapter(startCtx); err != nil {
		log.Printf("warning: load min chapter failed: %v", err)
	} else {
		trk.SetMinChapter(min)
	}
	if entries, err := trackRepo.ListItems(startCtx); err != nil {
		log.Printf("warning: load watchlist failed: %v", err)
	} else {
		for _, e := range entries {
			trk.Discover(e.Key, e.MangaID, e.Title)
		}
		if len(entries) > 0 {
			log.Printf("re-admitted %d watchlist items", len(entries))
		}
	}
	cancelStart()

	tcpSrv := renderhub.NewServer(srvCfg.TCPAddr, hub, trk.MinChapter)
	router.GET("/ws", renderhub.WSHandler(hub, trk.MinChapter))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": dbCfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	router.GET("/debug", func(c *gin.Context) {
		stats := hub.Stats()
		c.JSON(http.StatusOK, gin.H{
			"db":          dbCfg.Path,
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
			"jobs_active": run.Active(),
			"jobs_limit":  run.Limit(),
			"items":       trk.Counts(),
			"min_chapter": trk.MinChapter(),
		})
	})

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authHandler.RegisterRoutes(router.Group("/auth"))

	guard := auth.Middleware(tokenSvc)

	trackHandler := tracker.NewHandler(trk, trackRepo)
	trackHandler.RegisterItemRoutes(router.Group("/items"), guard)
	trackHandler.RegisterSettingsRoutes(router.Group("/settings"), guard)

	httpSrv := &http.Server{
		Addr:    srvCfg.HTTPAddr,
		Handler: router,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", srvCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := tcpSrv.Close(); err != nil {
		log.Printf("tcp shutdown error: %v", err)
	}
	if err := udpSrv.Close(); err != nil {
		log.Printf("udp shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
