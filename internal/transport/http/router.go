package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	Logger      logrus.FieldLogger
}

// NewRouter mounts the REST API, the WebSocket endpoint and the health check.
func NewRouter(service *app.SessionService, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	rest := NewRESTHandler(service)
	ws := NewWSHandler(service, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(middleware.RequestLogger(&requestLogFormatter{logger: logger}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", rest.StartSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", rest.GetSession)
			r.Delete("/", rest.DeleteSession)
			r.Put("/answers/{questionID}", rest.SubmitAnswer)
			r.Delete("/answers/{questionID}", rest.ClearAnswer)
			r.Post("/review/{questionID}", rest.ToggleReview)
			r.Post("/goto", rest.GoTo)
			r.Post("/next", rest.Next)
			r.Post("/prev", rest.Prev)
			r.Post("/page", rest.SelectPage)
			r.Post("/finish", rest.Finish)
			r.Post("/restart", rest.Restart)
			r.Get("/strokes", rest.ListStrokes)
			r.Post("/strokes", rest.AddStroke)
			r.Delete("/strokes", rest.ClearStrokes)
		})
		r.Get("/catalogs/{catalogID}", rest.GetCatalog)
		r.Get("/users/{userID}/progress", rest.UserProgress)
		r.Get("/users/{userID}/sessions", rest.UserSessions)
	})
	return r
}

// requestLogFormatter adapts chi's request logging to logrus.
type requestLogFormatter struct {
	logger logrus.FieldLogger
}

func (f *requestLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestLogEntry{logger: f.logger.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
	})}
}

type requestLogEntry struct {
	logger logrus.FieldLogger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	e.logger.WithFields(logrus.Fields{
		"status":  status,
		"bytes":   bytes,
		"elapsed": elapsed.String(),
	}).Info("request")
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.logger.WithFields(logrus.Fields{
		"panic": v,
		"stack": string(stack),
	}).Error("request panic")
}
