// Package server exposes a Router over HTTP: a single-page form and a small JSON API.
package server

import (
	"context"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/botirk38/semanticrouter"
	"github.com/botirk38/semanticrouter/metrics"
	"github.com/botirk38/semanticrouter/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultFlashTTL  = 5 * time.Minute
	DefaultFlashSize = 1024
)

// Router is the part of semanticrouter.Router the handlers use.
type Router interface {
	Ask(ctx context.Context, question string) semanticrouter.Answer
	Entries(ctx context.Context) ([]types.Entry, error)
}

type Config struct {
	FlashTTL  time.Duration
	FlashSize int
}

type Server struct {
	router  Router
	metrics metrics.Metrics
	logger  logrus.FieldLogger
	flashes *flashStore
	engine  *gin.Engine
}

type askRequest struct {
	Question string `json:"question"`
}

type entryResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// New builds the handler tree. m may be nil, in which case nothing is
// recorded and /metrics is not served.
func New(router Router, m metrics.Metrics, logger logrus.FieldLogger, cfg Config) *Server {
	if cfg.FlashTTL <= 0 {
		cfg.FlashTTL = DefaultFlashTTL
	}
	if cfg.FlashSize <= 0 {
		cfg.FlashSize = DefaultFlashSize
	}

	s := &Server{
		router:  router,
		metrics: m,
		logger:  logger,
		flashes: newFlashStore(cfg.FlashSize, cfg.FlashTTL),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger, s.metricsMiddleware)
	engine.SetHTMLTemplate(template.Must(template.New("index").Parse(indexHTML)))

	engine.GET("/", s.handleIndex)
	engine.POST("/", s.handleForm)
	engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := engine.Group("/api")
	api.POST("/ask", s.handleAsk)
	api.GET("/entries", s.handleEntries)

	if m != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.GetRegistry(), promhttp.HandlerOpts{})))
	}

	s.engine = engine
	return s
}

// Handler returns the traced root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "semanticrouter")
}

func (s *Server) handleIndex(c *gin.Context) {
	data := gin.H{}
	if f, ok := s.flashes.pop(s.flashes.session(c)); ok {
		data["Question"] = f.Question
		data["Answer"] = f.Answer
	}
	c.HTML(http.StatusOK, "index", data)
}

func (s *Server) handleForm(c *gin.Context) {
	question := strings.TrimSpace(c.PostForm("question"))
	if question == "" {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	session := s.flashes.session(c)
	answer := s.router.Ask(c.Request.Context(), question)
	s.flashes.put(session, flash{Question: question, Answer: answer.Text})

	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	c.JSON(http.StatusOK, s.router.Ask(c.Request.Context(), question))
}

func (s *Server) handleEntries(c *gin.Context) {
	entries, err := s.router.Entries(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to list entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{Question: e.Question, Answer: e.Answer})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()

	s.logger.WithFields(logrus.Fields{
		"method":   c.Request.Method,
		"path":     c.Request.URL.Path,
		"status":   c.Writer.Status(),
		"duration": time.Since(start),
	}).Debug("Handled request")
}

func (s *Server) metricsMiddleware(c *gin.Context) {
	if s.metrics == nil {
		c.Next()
		return
	}

	start := time.Now()
	c.Next()

	handler := c.FullPath()
	if handler == "" {
		handler = "unmatched"
	}
	s.metrics.IncrementHTTPRequests()
	s.metrics.ObserveAPIEndpointDuration(handler, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Company Q&amp;A</title>
    <style>
        body { margin: 0; font-family: Tahoma, sans-serif; background: linear-gradient(135deg, #74ABE2, #5563DE);
               height: 100vh; display: flex; justify-content: center; align-items: center; }
        .card { background: #fff; border-radius: 15px; box-shadow: 0 8px 25px rgba(0,0,0,0.2);
                padding: 40px 30px; max-width: 500px; width: 90%; text-align: center; }
        input[type="text"] { width: 100%; padding: 12px; border-radius: 8px; border: 1px solid #ccc; box-sizing: border-box; }
        button { margin-top: 15px; padding: 12px 25px; border: none; border-radius: 8px; background: #5563DE; color: #fff; cursor: pointer; }
        .answer { margin-top: 25px; text-align: start; background: #f4f6ff; padding: 15px; border-radius: 8px; }
    </style>
</head>
<body>
<div class="card" dir="auto">
    <h2>Ask a question</h2>
    <form method="post" action="/">
        <input type="text" name="question" placeholder="Type your question..." dir="auto" required>
        <button type="submit">Send</button>
    </form>
    {{if .Question}}
    <div class="answer" dir="auto">
        <p><strong>Question:</strong> {{.Question}}</p>
        <p><strong>Answer:</strong> {{.Answer}}</p>
    </div>
    {{end}}
</div>
</body>
</html>
`
