package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

// NewRouter registers the control API and, when metricsHandler is set, the
// /metrics endpoint.
func NewRouter(handler *Handler, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/fl/start", handler.StartFl).Methods(http.MethodPost)
	router.HandleFunc("/fl/stop/{runId}", handler.StopFl).Methods(http.MethodPost)
	router.HandleFunc("/fl/status/{runId}", handler.GetStatus).Methods(http.MethodGet)
	router.HandleFunc("/fl/history/{runId}", handler.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/fl/runs", handler.ListRuns).Methods(http.MethodGet)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler)
	}
	return router
}

// StartHttpServer serves defaultRouter on port until SIGINT or SIGTERM and
// then shuts down gracefully.
func StartHttpServer(logger hclog.Logger, defaultRouter http.Handler, port int) error {
	// create a new server
	server := &http.Server{
		Addr:     fmt.Sprintf(":%d", port),                              // configure the bind address
		Handler:  defaultRouter,                                         // set the default handler
		ErrorLog: logger.StandardLogger(&hclog.StandardLoggerOptions{}), // set the logger for the server
	}

	serveErr := make(chan error, 1)

	// start the server
	go func() {
		logger.Info(fmt.Sprintf("Starting server on port: %d", port))

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Error starting server", "error", err)
			serveErr <- err
		}
	}()

	// trap sigterm or interupt and gracefully shutdown the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)
	defer signal.Stop(c)

	// Block until a signal is received.
	select {
	case sig := <-c:
		logger.Info(fmt.Sprintf("Got signal: %s", sig))
	case err := <-serveErr:
		return err
	}

	// gracefully shutdown the server, waiting max 30 seconds for current operations to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
