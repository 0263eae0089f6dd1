package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/texkit/bibgen/internal/bib"
	"github.com/texkit/bibgen/internal/config"
	"github.com/texkit/bibgen/internal/inspire"
	"github.com/texkit/bibgen/internal/pipeline"
	"github.com/texkit/bibgen/internal/store"
)

// runEnv bundles everything a document pass needs.
type runEnv struct {
	texPath string
	bibPath string
	text    string
	bibFile *bib.File
	suppl   *bib.File
	cache   *store.DB
	client  *inspire.Client
	opts    pipeline.Options
}

// setupRun validates the document path and loads config, bibliography,
// supplemental file, cache, and client. Exits on fatal errors.
func setupRun(texPath, bibFlag, canonicalFlag string, overwrite bool, workers int) *runEnv {
	if !strings.HasSuffix(texPath, ".tex") {
		exitWithError(ExitDataError, "%s is not a .tex file", texPath)
	}

	data, err := os.ReadFile(texPath)
	if err != nil {
		exitWithError(ExitDataError, "reading %s: %v", texPath, err)
	}

	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	priority, err := cfg.Priority(canonicalFlag)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	bibPath := bibFlag
	if bibPath == "" {
		bibPath = strings.TrimSuffix(texPath, ".tex") + ".bib"
	}

	dir := filepath.Dir(texPath)

	suppl, err := bib.LoadSupplemental(config.SupplementalPath(dir))
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	bibFile, err := bib.Load(bibPath)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	if overwrite {
		bibFile = bibFile.Rebuild(suppl)
	}

	if workers <= 0 {
		workers = cfg.Workers
	}
	if workers <= 0 {
		workers = config.DefaultWorkers
	}

	return &runEnv{
		texPath: texPath,
		bibPath: bibPath,
		text:    string(data),
		bibFile: bibFile,
		suppl:   suppl,
		cache:   openCache(dir),
		client:  newClient(cfg),
		opts: pipeline.Options{
			Priority:  priority,
			Overwrite: overwrite,
			Workers:   workers,
		},
	}
}

// pipelineCache adapts the optional cache to the pipeline interface,
// avoiding a non-nil interface wrapping a nil *store.DB.
func (e *runEnv) pipelineCache() pipeline.Cache {
	if e.cache == nil {
		return nil
	}
	return e.cache
}

func (e *runEnv) close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// openCache opens the resolver cache next to the document. A cache that
// cannot be opened downgrades to uncached lookups with a warning.
func openCache(dir string) *store.DB {
	path := config.CachePath(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		warn("cannot create cache directory: %v", err)
		return nil
	}
	db, err := store.Open(path)
	if err != nil {
		warn("cannot open cache: %v", err)
		return nil
	}
	return db
}

func newClient(cfg *config.Config) *inspire.Client {
	var opts []inspire.ClientOption
	if url := cfg.BaseURL(); url != "" {
		opts = append(opts, inspire.WithBaseURL(strings.TrimRight(url, "/")))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, inspire.WithRateLimit(cfg.RateLimit))
	}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, inspire.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}))
	}
	return inspire.NewClient(opts...)
}
