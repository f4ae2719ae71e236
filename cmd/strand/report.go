package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"strand/croutine"
	"strand/internal/config"
	"strand/internal/database"
	"strand/internal/database/repository"
	"strand/sched"
)

func reportCmd(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	var (
		cfgPath = fs.String("config", "", "Config file (default ~/.config/strand/config.toml).")
		dbPath  = fs.String("db", "", "Trace database (overrides database.path).")
		session = fs.String("session", "", "Session to summarise (default: list sessions).")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		return fmt.Errorf("trace database: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return fmt.Errorf("migrate trace db: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewEventRepo(db)
	ctx := context.Background()
	if *session == "" {
		return listSessions(ctx, repo)
	}
	return summarise(ctx, repo, *session)
}

func listSessions(ctx context.Context, repo *repository.EventRepo) error {
	sessions, err := repo.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println(labelStyle.Render("no trace sessions recorded"))
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			s.ID,
			s.First.Format(time.DateTime),
			s.Last.Sub(s.First).Round(time.Microsecond).String(),
			strconv.Itoa(s.Routines),
			strconv.Itoa(s.Events),
		})
	}
	fmt.Println(titleStyle.Render("trace sessions"))
	fmt.Println(renderTable([]string{"session", "started", "span", "routines", "events"}, rows))
	return nil
}

func summarise(ctx context.Context, repo *repository.EventRepo, session string) error {
	sums, err := repo.Summaries(ctx, session)
	if err != nil {
		return fmt.Errorf("summarise %s: %w", session, err)
	}
	if len(sums) == 0 {
		return fmt.Errorf("session %s has no events", session)
	}

	var total time.Duration
	rows := make([][]string, 0, len(sums))
	for _, s := range sums {
		total += s.TotalOnCPU
		var avg time.Duration
		if s.Resumes > 0 {
			avg = s.TotalOnCPU / time.Duration(s.Resumes)
		}
		procs := make([]string, len(s.Processors))
		for i, p := range s.Processors {
			procs[i] = strconv.Itoa(p)
		}
		rows = append(rows, []string{
			strconv.FormatUint(s.RoutineID, 16),
			strconv.Itoa(s.Resumes),
			s.TotalOnCPU.String(),
			avg.String(),
			s.MaxOnCPU.String(),
			sched.StateName(croutine.State(s.LastState)),
			strings.Join(procs, ","),
		})
	}

	fmt.Println(titleStyle.Render("session " + session))
	fmt.Println(field("routines", strconv.Itoa(len(sums))))
	fmt.Println(field("on-cpu", total.String()))
	fmt.Println(renderTable([]string{"routine", "resumes", "on-cpu", "avg", "max", "last state", "procs"}, rows))
	return nil
}
