// cmd/search is a one-shot CLI over the search service: it runs a
// single query end to end and prints the fused, gated, calibrated result
// set as JSON. The HTTP/auth surface lives in a separate service; this
// entrypoint exercises the same service.Service.Search an HTTP layer
// would call, without building that layer here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/heimdex/videosearch/internal/appctx"
	"github.com/heimdex/videosearch/internal/config"
	"github.com/heimdex/videosearch/internal/pkg/envutil"
	"github.com/heimdex/videosearch/internal/pkg/logger"
	"github.com/heimdex/videosearch/internal/search/service"
)

func main() {
	tenantFlag := flag.String("tenant", "", "tenant UUID")
	queryFlag := flag.String("query", "", "search query text")
	videoFlag := flag.String("video", "", "optional video UUID to restrict the search to")
	limitFlag := flag.Int("limit", 10, "max results")
	fusionFlag := flag.String("fusion", "", "fusion method override: rrf | minmax_mean")
	visualModeFlag := flag.String("visual-mode", "", "visual routing override: recall | rerank | skip | auto")
	savedPrefsFlag := flag.Bool("saved-prefs", true, "apply the tenant's saved channel-weight preferences")
	flag.Parse()

	if *tenantFlag == "" || *queryFlag == "" {
		fmt.Println("usage: search -tenant <uuid> -query <text> [-video <uuid>] [-limit N] [-fusion rrf|minmax_mean] [-visual-mode recall|rerank|skip|auto]")
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

	tenantID, err := uuid.Parse(*tenantFlag)
	if err != nil {
		log.Fatal("invalid -tenant", "error", err)
	}

	req := service.Request{
		TenantID:            tenantID,
		Query:                *queryFlag,
		Limit:                *limitFlag,
		FusionMethod:         *fusionFlag,
		VisualMode:           *visualModeFlag,
		UseSavedPreferences:  *savedPrefsFlag,
	}
	if *videoFlag != "" {
		vid, err := uuid.Parse(*videoFlag)
		if err != nil {
			log.Fatal("invalid -video", "error", err)
		}
		req.VideoID = &vid
	}

	resp, err := app.Search.Search(ctx, req)
	if err != nil {
		log.Fatal("search failed", "error", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.Fatal("failed to marshal response", "error", err)
	}
	fmt.Println(string(out))
}
