// cmd/ingest registers one uploaded video and dispatches its ingest job
// through the job orchestrator. Object upload itself is an external
// collaborator's job; this tool only takes the object-store key the
// caller already wrote to and wires a Video row + job dispatch to it --
// the same two steps any upload-completion webhook would perform.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/heimdex/videosearch/internal/appctx"
	"github.com/heimdex/videosearch/internal/config"
	vdomain "github.com/heimdex/videosearch/internal/domain/video"
	"github.com/heimdex/videosearch/internal/pkg/envutil"
	"github.com/heimdex/videosearch/internal/pkg/logger"
)

func main() {
	tenantFlag := flag.String("tenant", "", "tenant UUID")
	keyFlag := flag.String("storage-key", "", "object-store key of the already-uploaded video")
	filenameFlag := flag.String("filename", "", "original filename")
	languageFlag := flag.String("language", "", "transcript language hint, e.g. en-US")
	reprocessFlag := flag.Bool("reprocess", false, "dispatch as a reprocess job against an existing video instead of creating one")
	videoFlag := flag.String("video", "", "existing video UUID, required with -reprocess")
	flag.Parse()

	if *tenantFlag == "" || (!*reprocessFlag && *keyFlag == "") || (*reprocessFlag && *videoFlag == "") {
		fmt.Println("usage: ingest -tenant <uuid> -storage-key <key> -filename <name> [-language en-US]")
		fmt.Println("       ingest -tenant <uuid> -reprocess -video <uuid> [-language en-US]")
		os.Exit(2)
	}

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

	ctx := context.Background()
	app, err := appctx.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build app", "error", err)
	}
	defer app.Close()

	if app.Dispatcher == nil {
		log.Fatal("TEMPORAL_ADDRESS is required to dispatch jobs")
	}

	tenantID, err := uuid.Parse(*tenantFlag)
	if err != nil {
		log.Fatal("invalid -tenant", "error", err)
	}

	kind := vdomain.JobIngest
	var videoID uuid.UUID
	if *reprocessFlag {
		kind = vdomain.JobReprocess
		videoID, err = uuid.Parse(*videoFlag)
		if err != nil {
			log.Fatal("invalid -video", "error", err)
		}
	} else {
		v, err := app.Videos.Create(ctx, nil, &vdomain.Video{
			TenantID:           tenantID,
			StorageKey:         *keyFlag,
			Filename:           *filenameFlag,
			Status:             vdomain.StatusPending,
			TranscriptLanguage: *languageFlag,
		})
		if err != nil {
			log.Fatal("failed to create video row", "error", err)
		}
		videoID = v.ID
	}

	job, err := app.Dispatcher.Enqueue(ctx, tenantID, videoID, kind, *languageFlag)
	if err != nil {
		log.Fatal("failed to dispatch job", "error", err)
	}
	fmt.Printf("dispatched %s job %s for video %s (fingerprint=%s)\n", kind, job.ID, videoID, job.Fingerprint)
}
