package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/katescodes/tender-review/internal/config"
	"github.com/katescodes/tender-review/internal/llm"
	"github.com/katescodes/tender-review/internal/review"
	"github.com/katescodes/tender-review/internal/store"
)

func main() {
	configPath := flag.String("config", "tender-review.toml", "Config file path")
	projectID := flag.String("project", "", "Project ID")
	bidderName := flag.String("bidder", "", "Bidder name")
	useSemantic := flag.Bool("semantic", false, "Enable LLM semantic escalation")
	runID := flag.String("run-id", "", "Review run ID (generated when empty)")
	reportPath := flag.String("report", "", "Write a markdown report to this path")
	reportHTMLPath := flag.String("report-html", "", "Write an HTML report to this path")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall run deadline")
	flag.Parse()

	if *projectID == "" || *bidderName == "" {
		log.Fatal("-project and -bidder are required")
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	var model review.ChatModel
	if *useSemantic {
		client, err := llm.NewClient(llm.Config{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			log.Fatal(err)
		}
		if client == nil {
			log.Printf("no llm provider configured; semantic items will stay PENDING")
		} else {
			model = client
		}
	}

	th := review.Thresholds{
		ExactTolerance:  cfg.Thresholds.ExactTolerance,
		PriceWarnRatio:  cfg.Thresholds.PriceWarnRatio,
		ConfidenceFloor: cfg.Thresholds.ConfidenceFloor,
		SemanticBatch:   cfg.Thresholds.SemanticBatch,
		SemanticWorkers: cfg.Thresholds.SemanticWorkers,
	}
	pipeline := review.NewPipeline(db, db, db, review.Options{
		Model:      model,
		Sink:       db,
		Thresholds: &th,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	log.Printf("reviewing project=%s bidder=%s semantic=%v", *projectID, *bidderName, *useSemantic)
	result, err := pipeline.Run(ctx, review.RunInput{
		ProjectID:   *projectID,
		BidderName:  *bidderName,
		UseSemantic: *useSemantic,
		ReviewRunID: *runID,
	})
	if err != nil {
		log.Fatalf("review failed at %s: %v", review.StageNameFromError(err), err)
	}

	s := result.Stats
	fmt.Printf("run %s: total=%d pass=%d fail=%d warn=%d pending=%d\n",
		result.RunID, s.Total, s.Pass, s.Fail, s.Warn, s.Pending)

	if *reportPath != "" || *reportHTMLPath != "" {
		md := review.BuildReportMarkdown(*projectID, *bidderName, result)
		if *reportPath != "" {
			if err := os.WriteFile(*reportPath, []byte(md), 0o644); err != nil {
				log.Fatalf("write report: %v", err)
			}
			log.Printf("report written to %s", *reportPath)
		}
		if *reportHTMLPath != "" {
			html, err := review.RenderReportHTML(md)
			if err != nil {
				log.Fatalf("render report: %v", err)
			}
			if err := os.WriteFile(*reportHTMLPath, []byte(html), 0o644); err != nil {
				log.Fatalf("write report: %v", err)
			}
			log.Printf("html report written to %s", *reportHTMLPath)
		}
	}
}
