package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"strand/croutine"
	"strand/event"
	"strand/hal"
	"strand/internal/buildinfo"
	"strand/internal/config"
	"strand/internal/database"
	"strand/internal/database/repository"
	"strand/sched"
)

type runOptions struct {
	procs    int
	routines int
	steps    int
	nap      time.Duration
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var (
		cfgPath  = fs.String("config", "", "Config file (default ~/.config/strand/config.toml).")
		procs    = fs.Int("procs", 0, "Processors (0 = scheduler.processor_num).")
		routines = fs.Int("routines", 0, "Routines (0 = scheduler.routine_num).")
		steps    = fs.Int("steps", 1000, "Steps each routine runs before returning.")
		trace    = fs.Bool("trace", false, "Record swap events to the trace database.")
		dbPath   = fs.String("db", "", "Trace database (overrides database.path).")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *procs > 0 {
		cfg.Scheduler.ProcessorNum = *procs
	}
	if *trace {
		cfg.Perf.Enabled = true
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if *steps <= 0 {
		return fmt.Errorf("-steps must be positive, got %d", *steps)
	}
	n := *routines
	if n <= 0 {
		n = cfg.Scheduler.RoutineNum
	}
	croutine.SetDefaultCapacity(cfg.Scheduler.RoutineNum)

	logger := hal.NewWriterLogger(os.Stderr)
	croutine.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var cache *event.Cache
	if cfg.Perf.Enabled {
		var db *sql.DB
		cache, db, err = openTrace(ctx, cfg, logger)
		if err != nil {
			return err
		}
		event.SetDefault(cache)
		defer func() {
			event.SetDefault(nil)
			if err := cache.Close(); err != nil {
				logger.WriteLineString(fmt.Sprintf("strand: final trace flush: %v", err))
			}
			if err := db.Close(); err != nil {
				logger.WriteLineString(fmt.Sprintf("strand: close trace db: %v", err))
			}
		}()
	}

	res, err := runWorkload(ctx, croutine.DefaultPool(), logger, runOptions{
		procs:    cfg.Scheduler.ProcessorNum,
		routines: n,
		steps:    *steps,
		nap:      100 * time.Microsecond,
	})
	if err != nil {
		return err
	}

	printRun(res, cache)
	if res.short > 0 {
		return fmt.Errorf("%d routines did not complete %d steps", res.short, *steps)
	}
	return nil
}

// openTrace prepares the trace database and starts a cache flushing into it.
// The caller closes the cache first, then the returned db.
func openTrace(ctx context.Context, cfg config.Config, logger hal.Logger) (*event.Cache, *sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir trace dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return nil, nil, fmt.Errorf("migrate trace db: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	cache := event.NewCache(repository.NewEventRepo(db), event.CacheOptions{
		BufferSize:    cfg.Perf.BufferSize,
		FlushInterval: cfg.Perf.FlushInterval,
		Logger:        logger,
	})
	logger.WriteLineString(fmt.Sprintf("strand %s: tracing session %s to %s", buildinfo.Read().Short(), cache.Session(), cfg.Database.Path))
	cache.Start(ctx)
	return cache, db, nil
}

type runResult struct {
	elapsed  time.Duration
	procs    []sched.ProcessorStats
	counters []int
	steps    int
	short    int
}

// runWorkload spreads opts.routines counting routines across opts.procs
// processors and runs them to completion.
func runWorkload(ctx context.Context, pool *croutine.Pool, logger hal.Logger, opts runOptions) (runResult, error) {
	res := runResult{counters: make([]int, opts.routines), steps: opts.steps}

	procs := make([]*sched.Processor, opts.procs)
	for i := range procs {
		procs[i] = sched.NewProcessor(i, sched.WithLogger(logger))
	}

	for i := 0; i < opts.routines; i++ {
		r, err := croutine.New(func(rctx context.Context) {
			for n := 0; n < opts.steps; n++ {
				res.counters[i]++
				if n == opts.steps-1 {
					return
				}
				if n%3 == 2 {
					sched.SleepFor(rctx, opts.nap)
				} else {
					croutine.Yield(rctx, croutine.Ready)
				}
			}
		}, croutine.WithPool(pool), croutine.WithName("worker-"+strconv.Itoa(i)))
		if err != nil {
			for _, p := range procs {
				p.Close()
			}
			return res, err
		}
		procs[i%len(procs)].Add(r)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range procs {
		g.Go(func() error { return p.Run(gctx) })
	}
	err := g.Wait()
	res.elapsed = time.Since(start)

	for _, p := range procs {
		res.procs = append(res.procs, p.Stats())
	}
	for _, c := range res.counters {
		if c != opts.steps {
			res.short++
		}
	}
	return res, err
}

func printRun(res runResult, cache *event.Cache) {
	var resumes, faults uint64
	rows := make([][]string, 0, len(res.procs))
	for _, st := range res.procs {
		resumes += st.Resumes
		faults += st.Faults
		rows = append(rows, []string{
			strconv.Itoa(st.ID),
			strconv.FormatUint(st.Finished, 10),
			strconv.FormatUint(st.Resumes, 10),
			strconv.FormatUint(st.Faults, 10),
		})
	}

	status := okStyle.Render("ok")
	if res.short > 0 || faults > 0 {
		status = failStyle.Render("incomplete")
	}

	fmt.Println(titleStyle.Render("strand run"))
	fmt.Println(field("routines", strconv.Itoa(len(res.counters))))
	fmt.Println(field("steps", strconv.Itoa(res.steps)))
	fmt.Println(field("resumes", strconv.FormatUint(resumes, 10)))
	fmt.Println(field("elapsed", res.elapsed.Round(time.Microsecond).String()))
	fmt.Println(field("status", status))
	if cache != nil {
		st := cache.Stats()
		fmt.Println(field("trace", fmt.Sprintf("session %s, %d recorded, %d dropped", cache.Session(), st.Added, st.Dropped)))
	}
	fmt.Println(renderTable([]string{"proc", "finished", "resumes", "faults"}, rows))
}
