// Command contentctl is the operator CLI for the content core. It talks
// directly to the configured storage medium, so it works against the same
// data contentd serves.
//
// Usage:
//
//	contentctl [options] <command> [args]
//
// Commands:
//
//	get                      list documents of --type
//	upsert <slug> <json>     merge a JSON field map into a document
//	delete <slug>            delete a document of --type
//	history                  show change records (optionally --type)
//	backups                  list backup identifiers, newest first
//	restore <timestamp>      restore --type from a backup snapshot
//	search <query...>        run a search (--type, --tags, --featured)
//	suggest <query>          autocomplete suggestions
//	tags                     list all tags
//	tagstats                 tag usage counts
//	related <slug>           related documents for --type/<slug>
//	metrics <slug>           engagement metrics for --type/<slug>
//	allmetrics               metrics for every content item with recorded views
//	top                      top content by lifetime views
//	trending                 trending content by last-week views
//	perf                     performance summary (--days)
//	export                   bulk export (--format json|jsonl|csv)
//	import <file>            bulk import a JSON array
//	record-view <json>       record a view event (mirrored to Kafka if enabled)
//	record-perf <json>       record a performance sample
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/geoaziz/contentcore/pkg/config"
	"github.com/geoaziz/contentcore/pkg/kafka"
	"github.com/geoaziz/contentcore/pkg/logger"
	"github.com/geoaziz/contentcore/pkg/redis"

	"github.com/geoaziz/contentcore/internal/analytics"
	"github.com/geoaziz/contentcore/internal/content"
	"github.com/geoaziz/contentcore/internal/eventlog"
	"github.com/geoaziz/contentcore/internal/search"
	"github.com/geoaziz/contentcore/internal/storage"
)

type options struct {
	Config   string   `short:"c" long:"config" description:"path to config file" env:"CC_CONFIG"`
	Type     string   `short:"t" long:"type" description:"content type: blog, research, or project"`
	Tags     []string `long:"tags" description:"tag filter (repeatable)"`
	Featured string   `long:"featured" description:"featured filter: true or false" choice:"true" choice:"false"`
	Limit    int      `short:"n" long:"limit" description:"maximum results"`
	Offset   int      `long:"offset" description:"pagination offset"`
	Format   string   `short:"f" long:"format" default:"json" description:"export format" choice:"json" choice:"jsonl" choice:"csv"`
	Days     int      `long:"days" default:"1" description:"performance summary window in days"`

	Args struct {
		Command string   `positional-arg-name:"command" required:"yes"`
		Rest    []string `positional-arg-name:"args"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fatal("loading config: %v", err)
	}
	// Keep stdout clean for command output.
	logger.SetupWriter(os.Stderr, "warn", "text")

	medium, err := storage.Open(cfg)
	if err != nil {
		fatal("opening storage medium: %v", err)
	}
	defer medium.Close()

	ctx := context.Background()
	store := content.NewStore(medium, nil)
	log := eventlog.NewLog(medium, nil)

	var cache *search.QueryCache
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			// The cache is an optimisation; run uncached when Redis is down.
			slog.Warn("redis unavailable, running uncached", "error", err)
		} else {
			defer client.Close()
			cache = search.NewQueryCache(client, cfg.Redis, nil)
		}
	}
	engine := search.NewEngine(store, cache, nil, cfg.Search)
	agg := analytics.NewAggregator(log, func(ctx context.Context, t content.Type, slug string) (string, bool) {
		return store.Title(ctx, t, slug)
	})

	if err := run(ctx, &opts, cfg, store, log, engine, agg, cache); err != nil {
		fatal("%v", err)
	}
}

func run(
	ctx context.Context,
	opts *options,
	cfg *config.Config,
	store *content.Store,
	log *eventlog.Log,
	engine *search.Engine,
	agg *analytics.Aggregator,
	cache *search.QueryCache,
) error {
	// Cached search results go stale after any content mutation.
	switch opts.Args.Command {
	case "upsert", "delete", "restore", "import":
		if cache != nil {
			defer cache.Invalidate(ctx)
		}
	}
	switch opts.Args.Command {
	case "get":
		t, err := requireType(opts)
		if err != nil {
			return err
		}
		return emit(store.Get(ctx, t))

	case "upsert":
		t, err := requireType(opts)
		if err != nil {
			return err
		}
		if len(opts.Args.Rest) < 2 {
			return fmt.Errorf("usage: upsert <slug> <json>")
		}
		var updates map[string]any
		if err := json.Unmarshal([]byte(opts.Args.Rest[1]), &updates); err != nil {
			return fmt.Errorf("parsing field updates: %w", err)
		}
		return emit(store.Upsert(ctx, t, opts.Args.Rest[0], updates))

	case "delete":
		t, err := requireType(opts)
		if err != nil {
			return err
		}
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: delete <slug>")
		}
		return emit(store.Delete(ctx, t, opts.Args.Rest[0]))

	case "history":
		return emit(store.History(ctx, content.Type(opts.Type), opts.Limit))

	case "backups":
		return emit(store.ListBackups(ctx, content.Type(opts.Type)))

	case "restore":
		t, err := requireType(opts)
		if err != nil {
			return err
		}
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: restore <backup-timestamp>")
		}
		return emit(store.Restore(ctx, t, opts.Args.Rest[0]))

	case "search":
		q := search.Query{
			Text:   strings.Join(opts.Args.Rest, " "),
			Type:   content.Type(opts.Type),
			Tags:   opts.Tags,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		}
		if opts.Featured != "" {
			featured := opts.Featured == "true"
			q.Featured = &featured
		}
		return emit(engine.Search(ctx, q))

	case "suggest":
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: suggest <query>")
		}
		return emit(engine.Suggestions(ctx, opts.Args.Rest[0], opts.Limit))

	case "tags":
		return emit(engine.AllTags(ctx))

	case "tagstats":
		return emit(engine.TagStats(ctx))

	case "related":
		t, err := requireType(opts)
		if err != nil {
			return err
		}
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: related <slug>")
		}
		return emit(engine.RelatedContent(ctx, t, opts.Args.Rest[0], opts.Limit))

	case "metrics":
		t, err := requireType(opts)
		if err != nil {
			return err
		}
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: metrics <slug>")
		}
		slug := opts.Args.Rest[0]
		title, ok := store.Title(ctx, t, slug)
		if !ok {
			title = slug
		}
		return emit(agg.MetricsFor(ctx, t, slug, title))

	case "allmetrics":
		return emit(agg.AllMetrics(ctx))

	case "top":
		return emit(agg.TopContent(ctx, opts.Limit))

	case "trending":
		return emit(agg.TrendingContent(ctx, opts.Limit))

	case "perf":
		return emit(agg.Summary(ctx, opts.Days))

	case "export":
		var types []content.Type
		if opts.Type != "" {
			t, err := requireType(opts)
			if err != nil {
				return err
			}
			types = []content.Type{t}
		}
		out, err := store.Export(ctx, content.ExportOptions{
			Types:           types,
			Format:          content.ExportFormat(opts.Format),
			IncludeMetadata: true,
		})
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil

	case "import":
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: import <file>")
		}
		data, err := os.ReadFile(opts.Args.Rest[0])
		if err != nil {
			return fmt.Errorf("reading import file: %w", err)
		}
		return emit(store.Import(ctx, string(data)))

	case "record-view":
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: record-view <json>")
		}
		var view eventlog.ViewEvent
		if err := json.Unmarshal([]byte(opts.Args.Rest[0]), &view); err != nil {
			return fmt.Errorf("parsing view event: %w", err)
		}
		done := attachMirror(ctx, cfg.Kafka, log)
		log.RecordView(ctx, view)
		done()
		return emit(map[string]bool{"recorded": true})

	case "record-perf":
		if len(opts.Args.Rest) < 1 {
			return fmt.Errorf("usage: record-perf <json>")
		}
		var sample eventlog.PerformanceSample
		if err := json.Unmarshal([]byte(opts.Args.Rest[0]), &sample); err != nil {
			return fmt.Errorf("parsing performance sample: %w", err)
		}
		done := attachMirror(ctx, cfg.Kafka, log)
		log.RecordPerformance(ctx, sample)
		done()
		return emit(map[string]bool{"recorded": true})

	default:
		return fmt.Errorf("unknown command %q", opts.Args.Command)
	}
}

// attachMirror wires a Kafka mirror onto the log when brokers are
// configured. The returned func flushes and disconnects it.
func attachMirror(ctx context.Context, cfg config.KafkaConfig, log *eventlog.Log) func() {
	if !cfg.Enabled {
		return func() {}
	}
	views := kafka.NewProducer(cfg, cfg.Topics.ViewEvents)
	samples := kafka.NewProducer(cfg, cfg.Topics.PerformanceSamples)
	fwd := eventlog.NewForwarder(views, samples, 16)
	fwd.Start(ctx)
	log.SetMirror(fwd)
	return func() {
		fwd.Close()
		views.Close()
		samples.Close()
	}
}

func requireType(opts *options) (content.Type, error) {
	t := content.Type(opts.Type)
	if !t.Valid() {
		return "", fmt.Errorf("--type must be one of blog, research, project")
	}
	return t, nil
}

func emit(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
