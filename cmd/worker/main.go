// cmd/worker runs the Temporal worker that polls the videosearch-jobs
// task queue and executes the job orchestrator's workflow/activity
// pair -- the process that actually drives ingestion (and, when an
// external handler is registered, export/person_photo) end to end.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/heimdex/videosearch/internal/appctx"
	"github.com/heimdex/videosearch/internal/config"
	"github.com/heimdex/videosearch/internal/jobs/orchestrator"
	"github.com/heimdex/videosearch/internal/pkg/envutil"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/pkg/shutdown"
)

func main() {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	app, err := appctx.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build app", "error", err)
	}
	defer app.Close()

	if app.Temporal == nil {
		log.Fatal("TEMPORAL_ADDRESS is required to run the job worker")
	}

	w, err := orchestrator.NewWorker(app.Temporal, cfg, app.Activities, log)
	if err != nil {
		log.Fatal("failed to construct job worker", "error", err)
	}

	log.Info("job worker starting", "task_queue", orchestrator.TaskQueue)
	if err := w.Run(ctx); err != nil {
		log.Fatal("job worker exited with error", "error", err)
	}
}
