package main

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/history"
	"github.com/phishguard/phishguard/pkg/report"
	"github.com/phishguard/phishguard/pkg/storage"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8080", "Listen address")
}

// server holds the long-lived components shared across requests. Each
// detection run owns its evidence context exclusively; only the store, the
// similarity index, and the stage chain are shared.
type server struct {
	pipeline *detection.Pipeline
	store    storage.Store
	index    *history.Index
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := &server{
		pipeline: buildPipeline(cfg),
		store:    store,
		index:    newHistoryIndex(cfg),
	}
	backfillIndex(ctx, srv.index, store)

	app := fiber.New(fiber.Config{
		AppName: "PhishGuard",
	})

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": version})
	})

	app.Post("/v1/detections", srv.handleDetect)
	app.Get("/v1/detections/:id", srv.handleGet)
	app.Get("/v1/detections/:id/report", srv.handleReport)
	app.Get("/v1/stats", srv.handleStats)

	log.Printf("[PhishGuard] HTTP API listening on %s", serveFlags.addr)
	return app.Listen(serveFlags.addr)
}

func (s *server) handleDetect(c fiber.Ctx) error {
	var req struct {
		Sender  string `json:"sender"`
		Message string `json:"message"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	dc, err := s.pipeline.Run(c.Context(), req.Sender, req.Message)
	if err != nil {
		if errors.Is(err, detection.ErrEmptyMessage) || errors.Is(err, detection.ErrInvalidSender) {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.store.Save(c.Context(), dc); err != nil {
		log.Printf("[PhishGuard] failed to persist detection %s: %v", dc.DetectionID, err)
	} else if s.index != nil {
		// Indexing needs an embedding round-trip; do it off the request
		// path so the response is not held up by Ollama.
		go func(dc *detection.Context) {
			if err := s.index.Add(context.Background(), dc); err != nil {
				log.Printf("[PhishGuard] failed to index detection %s: %v", dc.DetectionID, err)
			}
		}(dc)
	}

	return c.JSON(fiber.Map{
		"detection_id":     dc.DetectionID,
		"verdict":          dc.FinalVerdict,
		"confidence":       dc.FinalConfidence,
		"risk_score":       dc.FinalRiskScore,
		"normalized_score": dc.NormalizedScore,
		"red_flags":        len(dc.RedFlags),
		"green_flags":      len(dc.GreenFlags),
		"early_exit":       dc.EarlyExitReason,
	})
}

func (s *server) handleGet(c fiber.Ctx) error {
	dc, err := s.store.Load(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "detection not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(dc)
}

func (s *server) handleReport(c fiber.Ctx) error {
	dc, err := s.store.Load(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "detection not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	r, err := report.NewGenerator(s.store, s.index).Generate(c.Context(), dc)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(r)
}

func (s *server) handleStats(c fiber.Ctx) error {
	stats, err := s.store.Statistics(c.Context())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stats)
}
