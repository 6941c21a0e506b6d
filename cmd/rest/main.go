package main

import (
	"context"
	"log"
	"os"

	"ai-livehost-be/internal/bootstrap"
	"ai-livehost-be/internal/config"
	"ai-livehost-be/internal/server"
	"ai-livehost-be/internal/tracer"
)

func main() {
	// 0. Initialize Tracer
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// Without the base face clip neither the compositor nor the idle loop
	// can work; refuse to start.
	if _, err := os.Stat(cfg.App.BaseVideoPath); err != nil {
		log.Fatalf("Base video not found at %s: %v", cfg.App.BaseVideoPath, err)
	}
	if err := os.MkdirAll(cfg.App.MediaDir, 0o755); err != nil {
		log.Fatalf("Cannot create media directory %s: %v", cfg.App.MediaDir, err)
	}

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start Background Services
	ctx := context.Background()

	go func() {
		log.Println("Background: Starting Pipeline Scheduler...")
		container.PipelineService.Start(ctx)
	}()

	go func() {
		log.Println("Background: Starting On-Air Scheduler...")
		if err := container.OnAirService.Start(ctx); err != nil {
			log.Printf("Background On-Air Error: %v", err)
		}
	}()

	go func() {
		log.Println("Background: Starting Scene Capture Loop...")
		container.CaptureService.Start(ctx)
	}()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	// 5. Run Server
	log.Fatal(srv.Run())
}
