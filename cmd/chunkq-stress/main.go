package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/plus3/chunkq/metrics"
	"github.com/plus3/chunkq/world"
)

func main() {
	if err := godotenv.Load(".env"); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("Starting spatial query stress test...")

	// 1. Setup metrics, world and systems
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	collector := metrics.New(reg, "chunkq")

	worldCfg := world.DefaultConfig()
	worldCfg.RegionSize = cfg.RegionSize
	worldCfg.Capacity = cfg.Agents + cfg.Food
	worldCfg.Query.Observer = collector
	w := world.New(NewTagRegistry(), worldCfg)

	rng := rand.New(rand.NewSource(cfg.Seed))
	arena := NewArena(cfg)
	arena.Load(w)

	scheduler := world.NewScheduler(w)
	perception := &PerceptionSystem{
		Arena:       arena,
		SenseRadius: cfg.SenseRadius,
		EatRadius:   cfg.EatRadius,
		Rng:         rng,
	}
	churn := &ChurnSystem{Arena: arena, Every: cfg.ChurnEvery, Rng: rng}
	snapshots := &SnapshotSystem{Every: 10, Scheduler: scheduler, Perception: perception}
	scheduler.Register(&WanderSystem{Arena: arena, Speed: cfg.Speed, Rng: rng})
	scheduler.Register(perception)
	scheduler.Register(churn)
	scheduler.Register(&metrics.WorldSystem{Collector: collector, Scheduler: scheduler, Every: 10})
	scheduler.Register(snapshots)

	// 2. Populate the world
	log.Printf("Populating %d agents and %d food over %d regions...\n", cfg.Agents, cfg.Food, cfg.WorldRegions*cfg.WorldRegions)
	if err := Populate(w, cfg, rng); err != nil {
		log.Fatalf("Failed to populate world: %v", err)
	}
	log.Println("Population complete.")

	var server *http.Server
	if cfg.MetricsAddr != "" {
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: NewRouter(reg, snapshots)}
		go func() {
			log.Printf("Serving /metrics and /stats on %s", cfg.MetricsAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	// 3. Run the simulation loop
	report := &Report{
		Config: cfg,
		UpdateTime: Stats{
			Samples: make([]time.Duration, 0),
		},
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	log.Printf("Running simulation for %s...\n", cfg.Duration)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	startTime := time.Now()
	var totalUpdates int64
	lastFrameTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			updateStart := time.Now()
			if err := scheduler.Once(deltaTime.Seconds()); err != nil {
				log.Printf("Tick %d flush failed: %v", w.Tick(), err)
			}
			updateDuration := time.Since(updateStart)

			report.UpdateTime.Samples = append(report.UpdateTime.Samples, updateDuration)
			totalUpdates++
		}
	}

	report.TotalTime = time.Since(startTime)
	report.TotalUpdates = totalUpdates
	report.UpdateTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)

	schedulerStats := scheduler.GetStats()
	report.FlushErrors = schedulerStats.FlushErrors
	report.Systems = schedulerStats.Systems
	report.Perception = perception.Stats
	report.Churned = churn.Churned
	report.World = w.CollectStats()

	log.Println("Simulation finished.")

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server shutdown: %v", err)
		}
		cancelShutdown()
	}

	// 4. Generate Report to Console
	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}
	fmt.Println("--- End of Report ---")

	log.Println("Stress test complete.")
}
