package radio

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusServer is a read-only observability listener. It exposes what the
// supervisor is doing (and prometheus metrics) but mutates nothing: the
// control plane talks to this process only through files and the process
// manager.
type StatusServer struct {
	engine *Engine
	router *gin.Engine
}

func NewStatusServer(engine *Engine, debug bool) *StatusServer {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &StatusServer{
		engine: engine,
		router: gin.New(),
	}
	s.router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	s.router.Use(cors.New(corsConfig))

	s.setupRoutes()
	return s
}

func (s *StatusServer) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "lofi-streamer"})
	})

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/state", s.getState)
		v1.GET("/now-playing", s.getNowPlaying)
		v1.GET("/recent", s.getRecent)
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *StatusServer) getState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": s.engine.State().String()})
}

func (s *StatusServer) getNowPlaying(c *gin.Context) {
	now := s.engine.Current()
	if now.Key == "" {
		c.JSON(http.StatusOK, gin.H{"playing": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playing": true, "track": now})
}

func (s *StatusServer) getRecent(c *gin.Context) {
	records, err := s.engine.ledger.Recent(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

// Start serves in the background; a status listener failure never takes the
// stream down.
func (s *StatusServer) Start(addr string) {
	go func() {
		log.Printf("Status listener at %s", addr)
		if err := s.router.Run(addr); err != nil {
			log.Printf("Status listener stopped: %v", err)
		}
	}()
}
