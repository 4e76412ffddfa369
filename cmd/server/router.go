package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/replyd/replyd/internal/api"
	"github.com/replyd/replyd/internal/api/middleware"
)

// newRouter builds the HTTP routing table.
func newRouter(tasks *api.TaskHandler, stream *api.StreamHandler, db api.Pinger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", api.HealthHandler(db))

	// The stream endpoint holds connections open; no request timeout.
	r.Group(func(r chi.Router) {
		r.Get("/api/stream", stream.StreamRun)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Route("/api/tasks", func(r chi.Router) {
			r.Post("/", tasks.SubmitTask)
			r.Get("/", tasks.ListTasks)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tasks.GetTask)
				r.Delete("/", tasks.DeleteTask)
				r.Get("/runs", tasks.ListRuns)
				r.Get("/audit", tasks.ListAudit)
				r.Post("/approve", tasks.ApproveTask)
				r.Post("/approve-run", tasks.ApproveAndRunTask)
				r.Post("/reject", tasks.RejectTask)
				r.Post("/retry", tasks.RetryTask)
			})
		})
	})

	return r
}
