// Role-gated dashboard server exposing engine snapshots and commands
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"outletops-sim/internal/engine"
	"outletops-sim/internal/logging"
	"outletops-sim/internal/sim"
	"outletops-sim/internal/store"
)

//go:embed templates/login.html templates/index.html
var content embed.FS

// snapshotInterval is the cadence of websocket snapshot frames.
const snapshotInterval = 2 * time.Second

// Server serves the outlet monitoring dashboard.
type Server struct {
	sim      *sim.Simulator
	users    *store.UserRepository
	auth     *AuthService
	hub      *Hub
	router   *gin.Engine
	validate *validator.Validate
}

// NewServer wires routes and templates.
func NewServer(simulator *sim.Simulator, users *store.UserRepository, auth *AuthService) *Server {
	s := &Server{
		sim:      simulator,
		users:    users,
		auth:     auth,
		hub:      NewHub(logging.New()),
		validate: validator.New(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.SetHTMLTemplate(template.Must(template.ParseFS(content, "templates/*.html")))

	r.GET("/login", s.handleLoginPage)
	r.POST("/login", s.handleLogin)
	r.POST("/logout", s.handleLogout)

	r.GET("/", s.requireAuth, s.handleIndex)
	r.GET("/ws", s.requireAuth, s.handleWS)

	api := r.Group("/api", s.requireAuth)
	{
		api.GET("/outlets", s.handleSnapshots)
		api.GET("/outlets/health", s.handleHealth)
		api.GET("/outlets/:outlet/assets/:asset", s.handleSnapshot)

		ops := api.Group("", s.requireRole(store.RoleOperator))
		{
			ops.POST("/outlets/:outlet/assets/:asset/start", s.handleStart)
			ops.POST("/outlets/:outlet/assets/:asset/stop", s.handleStop)
			ops.POST("/outlets/:outlet/assets/:asset/refuel", s.handleRefuel)
			ops.PUT("/outlets/:outlet/assets/:asset/detection", s.handleDetection)
			ops.DELETE("/outlets/:outlet/assets/:asset/anomalies", s.handleClearAnomalies)
		}

		admin := api.Group("", s.requireRole(store.RoleAdmin))
		{
			admin.GET("/users", s.handleUsers)
		}
	}

	s.router = r
	return s
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server and the snapshot broadcast loop until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	go s.hub.Run(ctx)
	go s.broadcastLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv.ListenAndServe()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.hub.ClientCount() == 0 {
				continue
			}
			payload, err := json.Marshal(s.sim.Snapshots())
			if err != nil {
				continue
			}
			s.hub.Broadcast(payload)
		case <-ctx.Done():
			return
		}
	}
}

// --- auth middleware ---

func (s *Server) requireAuth(c *gin.Context) {
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		s.rejectUnauthenticated(c)
		return
	}
	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		s.rejectUnauthenticated(c)
		return
	}
	c.Set("claims", claims)
	c.Next()
}

func (s *Server) rejectUnauthenticated(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api") || c.Request.URL.Path == "/ws" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Redirect(http.StatusFound, "/login")
	c.Abort()
}

func (s *Server) requireRole(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := currentClaims(c)
		if claims == nil || roleRank(claims.Role) < roleRank(minRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		// An account scoped to one outlet may only command that outlet.
		if outlet := c.Param("outlet"); outlet != "" && claims.Outlet != "" && claims.Outlet != outlet {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "outlet not permitted"})
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *Claims {
	if v, ok := c.Get("claims"); ok {
		if claims, ok := v.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// --- session handlers ---

type loginRequest struct {
	Username string `form:"username" json:"username" validate:"required,min=3,max=50"`
	Password string `form:"password" json:"password" validate:"required,min=6"`
}

func (s *Server) handleLoginPage(c *gin.Context) {
	if token, _ := c.Cookie(CookieName); token != "" {
		if _, err := s.auth.ValidateToken(token); err == nil {
			c.Redirect(http.StatusFound, "/")
			return
		}
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"error": c.Query("error")})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"error": "Username and password are required"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"error": "Invalid username or password format"})
		return
	}

	user, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := s.auth.GenerateToken(user)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"error": "Failed to create session"})
		return
	}
	c.SetCookie(CookieName, token, int(tokenExpiry.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleLogout(c *gin.Context) {
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/login")
}

// --- dashboard handlers ---

func (s *Server) handleIndex(c *gin.Context) {
	claims := currentClaims(c)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Username":   claims.Username,
		"Role":       claims.Role,
		"Health":     s.sim.Health(),
		"Snapshots":  s.sim.Snapshots(),
		"CanOperate": roleRank(claims.Role) >= roleRank(store.RoleOperator),
	})
}

func (s *Server) handleSnapshots(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Snapshots())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Health())
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := s.sim.Snapshot(c.Param("outlet"), c.Param("asset"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleUsers(c *gin.Context) {
	users, err := s.users.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

// --- command handlers ---

func (s *Server) targetEngine(c *gin.Context) (*engine.Engine, bool) {
	e, err := s.sim.Engine(c.Param("outlet"), c.Param("asset"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return e, true
}

func (s *Server) handleStart(c *gin.Context) {
	e, ok := s.targetEngine(c)
	if !ok {
		return
	}
	if err := e.Start(); err != nil {
		if errors.Is(err, engine.ErrInsufficientFuel) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, e.Snapshot())
}

func (s *Server) handleStop(c *gin.Context) {
	e, ok := s.targetEngine(c)
	if !ok {
		return
	}
	e.Stop()
	c.JSON(http.StatusOK, e.Snapshot())
}

func (s *Server) handleRefuel(c *gin.Context) {
	e, ok := s.targetEngine(c)
	if !ok {
		return
	}
	added := e.Refuel()
	c.JSON(http.StatusOK, gin.H{"added_percent": added, "snapshot": e.Snapshot()})
}

type detectionRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) handleDetection(c *gin.Context) {
	e, ok := s.targetEngine(c)
	if !ok {
		return
	}
	var req detectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must contain enabled: true|false"})
		return
	}
	e.SetDetection(*req.Enabled)
	c.JSON(http.StatusOK, e.Snapshot())
}

func (s *Server) handleClearAnomalies(c *gin.Context) {
	e, ok := s.targetEngine(c)
	if !ok {
		return
	}
	e.ClearAnomalies()
	c.Status(http.StatusNoContent)
}

// --- websocket ---

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.hub.Add(conn)
	// Immediately push the current state so clients render without waiting
	// for the next broadcast tick. The hub serializes this against broadcasts.
	if payload, err := json.Marshal(s.sim.Snapshots()); err == nil {
		s.hub.Send(conn, payload)
	}
	go func() {
		defer s.hub.Remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
