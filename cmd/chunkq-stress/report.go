package main

import (
	"fmt"
	"io"
	"runtime"
	"slices"
	"text/template"
	"time"

	"github.com/plus3/chunkq/world"
)

type Report struct {
	// Configuration
	Config Config

	// Results
	TotalUpdates  int64
	TotalTime     time.Duration
	UpdateTime    Stats
	FlushErrors   int64
	Churned       int64
	Perception    PerceptionStats
	World         world.Stats
	Systems       []world.SystemStats
	MemStatsStart runtime.MemStats
	MemStatsEnd   runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	P99     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		if sample < s.Min {
			s.Min = sample
		}
		if sample > s.Max {
			s.Max = sample
		}
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))

	sorted := slices.Clone(s.Samples)
	slices.Sort(sorted)
	s.P99 = sorted[(len(sorted)-1)*99/100]
}

// QueriesPerSecond is the perception query throughput over the whole run.
func (r *Report) QueriesPerSecond() float64 {
	if r.TotalTime <= 0 {
		return 0
	}
	return float64(r.Perception.Queries) / r.TotalTime.Seconds()
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Spatial Query Stress Test Report

## Test Configuration
- **Run Duration:** {{.Config.Duration}}
- **Agents:** {{.Config.Agents}} ({{.Config.HostileRatio}} hostile)
- **Food:** {{.Config.Food}}
- **Loaded Regions:** {{.Config.WorldRegions}} x {{.Config.WorldRegions}} of size {{.Config.RegionSize}}
- **Sense Radius:** {{.Config.SenseRadius}}
- **Churn Every:** {{.Config.ChurnEvery}} ticks

## Performance Results
- **Total Updates:** {{.TotalUpdates}}
- **Total Test Time:** {{.TotalTime}}
- **Update Time (Frame):**
  - **Avg:** {{.UpdateTime.Avg}}
  - **P99:** {{.UpdateTime.P99}}
  - **Min:** {{.UpdateTime.Min}}
  - **Max:** {{.UpdateTime.Max}}
- **Command Flush Errors:** {{.FlushErrors}}

## Queries
- **Total:** {{.Perception.Queries}} ({{printf "%.0f" .QueriesPerSecond}}/s)
- **Errors:** {{.Perception.Errors}}
- **Food Sensed:** {{.Perception.Sensed}}
- **Food Eaten:** {{.Perception.Eaten}}
- **Threatened Checks:** {{.Perception.Threatened}}
- **Prey Tracked:** {{.Perception.Tracked}}
- **Regions Churned:** {{.Churned}}

## Systems
{{range .Systems}}- **{{.Name}}:** {{.ExecutionCount}} runs, avg {{.AvgDuration}}, max {{.MaxDuration}}
{{end}}
## World At Exit
- **Tick:** {{.World.Tick}}
- **Entities:** {{.World.EntityCount}} ({{.World.Unindexed}} unindexed)
- **Caches:** {{.World.CacheCount}} ({{.World.DirtyCaches}} dirty)
{{range .World.TagCounts}}- **{{.Tag.Name}}:** {{.Count}} indexed
{{end}}
## Memory Usage (Raw Bytes)
- Heap Alloc:     {{.MemStatsStart.HeapAlloc}} (start) -> {{.MemStatsEnd.HeapAlloc}} (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}}
- Total Alloc:    {{.MemStatsStart.TotalAlloc}} (start) -> {{.MemStatsEnd.TotalAlloc}} (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc}}
- Sys Memory:     {{.MemStatsStart.Sys}} (start) -> {{.MemStatsEnd.Sys}} (end) -> delta: {{bsub .MemStatsEnd.Sys .MemStatsStart.Sys}}
- Heap In Use:    {{mb .MemStatsEnd.HeapInuse}} MB (end)
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}

{{if .Config.GCPauseMetrics}}
## GC Pause Durations
- **Total GC Pause:** {{.MemStatsEnd.PauseTotalNs | ns}}
- **Num GC Cycles:** {{ usub .MemStatsEnd.NumGC .MemStatsStart.NumGC }}
{{end}}
`

	fm := template.FuncMap{
		"mb": func(v any) string {
			switch val := v.(type) {
			case uint64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			case int64:
				return fmt.Sprintf("%.2f", float64(val)/1024/1024)
			default:
				return "N/A"
			}
		},
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
