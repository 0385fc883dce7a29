package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает маршруты. В production gin работает в release-режиме.
func NewRouter(h *Handler, production bool) *gin.Engine {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/today", h.Today)
		v1.GET("/leaders", h.Leaders)
		v1.GET("/views/:address", h.View)
		v1.GET("/streaks/:address", h.Streak)
		v1.GET("/claims/:address/last", h.LastClaim)
	}
	return r
}

// NewServer оборачивает роутер в http.Server с таймаутами.
func NewServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// requestLogger пишет запросы в logrus вместо стандартного логгера gin.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("HTTP запрос")
	}
}
