package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terraplan/siteplan/internal/batch"
	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/scoring"
	sig "github.com/terraplan/siteplan/internal/signal"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp()
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Fetcher, env.Batch),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(fetcher batch.Fetcher, coordinator *batch.Coordinator) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		MaxAge:         3600,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/score", handleScore(fetcher))
	r.Post("/api/score/batch", handleScoreBatch(coordinator))
	r.Get("/api/signals", handleSignals(fetcher))

	return r
}

func handleScore(fetcher batch.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coord, dr, ok := pointParams(w, r)
		if !ok {
			return
		}
		st, err := scoring.ParseStructureType(r.URL.Query().Get("type"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ov, err := queryOverrides(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		bundle := fetcher.Fetch(r.Context(), coord, dr, ov)
		result := scoring.Score(bundle, st)

		writeJSON(w, http.StatusOK, struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
			scoring.Result
		}{coord.Lat, coord.Lon, result})
	}
}

func handleScoreBatch(coordinator *batch.Coordinator) http.HandlerFunc {
	type request struct {
		Points []batch.Point `json:"points"`
		Start  string        `json:"start,omitempty"`
		End    string        `json:"end,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Points) == 0 {
			writeError(w, http.StatusBadRequest, "points is required")
			return
		}
		dr, err := parseDateRange(req.Start, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := coordinator.ScoreBatch(r.Context(), req.Points, dr)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func handleSignals(fetcher batch.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coord, dr, ok := pointParams(w, r)
		if !ok {
			return
		}

		bundle := fetcher.Fetch(r.Context(), coord, dr, sig.Overrides{})

		writeJSON(w, http.StatusOK, struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
			sig.Bundle
		}{coord.Lat, coord.Lon, bundle})
	}
}

// pointParams parses and validates the lat/lon/start/end query parameters,
// writing the 400 response itself on failure.
func pointParams(w http.ResponseWriter, r *http.Request) (geo.Coordinate, geo.DateRange, bool) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat is required and must be a number")
		return geo.Coordinate{}, geo.DateRange{}, false
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon is required and must be a number")
		return geo.Coordinate{}, geo.DateRange{}, false
	}
	coord, err := geo.NewCoordinate(lat, lon)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return geo.Coordinate{}, geo.DateRange{}, false
	}

	dr, err := parseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return geo.Coordinate{}, geo.DateRange{}, false
	}

	return coord, dr, true
}

func queryOverrides(r *http.Request) (sig.Overrides, error) {
	var ov sig.Overrides
	q := r.URL.Query()

	if s := q.Get("ndvi"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ov, eris.New("ndvi must be a number")
		}
		ov.NDVI = &v
	}
	if s := q.Get("population"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return ov, eris.New("population must be an integer")
		}
		ov.Population = &v
	}
	if s := q.Get("road_km"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ov, eris.New("road_km must be a number")
		}
		ov.RoadKm = &v
	}
	if s := q.Get("water_km"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ov, eris.New("water_km must be a number")
		}
		ov.WaterKm = &v
	}

	return ov, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
