package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bantay-ai/bantay/internal/classifier"
	"github.com/bantay-ai/bantay/internal/config"
	"github.com/bantay-ai/bantay/internal/features"
	"github.com/bantay-ai/bantay/internal/inference"
	"github.com/bantay-ai/bantay/internal/redact"
)

func main() {
	cfgPath := flag.String("config", "bantay.yaml", "path to config yaml")
	n := flag.Int("n", 200, "number of iterations")
	title := flag.String("title", "Nawalan ng cellphone sa jeep", "report title")
	description := flag.String("description", "Ninakaw ang cellphone ko habang nakasakay sa jeep papuntang palengke kaninang umaga.", "report description")
	incidentType := flag.String("incident-type", "Theft", "incident type")
	flag.Parse()

	// Force single session to avoid queueing noise in the benchmark.
	if err := os.Setenv("BANTAY_MAX_SESSIONS", "1"); err != nil {
		redact.Fatalf("set BANTAY_MAX_SESSIONS: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		redact.Fatalf("load config: %v", err)
	}

	engine := classifier.NewEngine(classifier.NewONNXBackend(classifier.RuntimeSettings{
		LibraryPath:  cfg.Runtime.LibraryPath,
		IntraThreads: cfg.Model.IntraThreads,
		InterThreads: cfg.Model.InterThreads,
	}), cfg.Model.Path)
	if !engine.Load() {
		redact.Fatalf("load model: %v", engine.LoadErr())
	}
	defer engine.Close()

	report := inference.Report{Title: *title, Description: *description, IncidentType: *incidentType}
	pipeline := classifier.NewPipeline(engine)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := pipeline.ClassifyReport(ctx, report, false); err != nil {
			redact.Fatalf("warmup classify failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	extract := make([]time.Duration, 0, *n)
	infer := make([]time.Duration, 0, *n)
	total := make([]time.Duration, 0, *n)
	var last *classifier.Result
	for i := 0; i < *n; i++ {
		res, t, err := pipeline.ClassifyReport(ctx, report, false)
		if err != nil {
			redact.Fatalf("classify failed: %v", err)
		}
		last = res
		extract = append(extract, t.Features)
		infer = append(infer, t.Inference)
		total = append(total, t.Total)
	}

	fmt.Printf("bench: n=%d dim=%d model=%s category=%s confidence=%s\n",
		*n, features.Dim, cfg.Model.Path, last.PredictedCategory, last.ConfidencePercentage)
	printStage("features", extract)
	printStage("inference", infer)
	printStage("total", total)
}

func printStage(name string, durations []time.Duration) {
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

	avg := ms(sum) / float64(len(durations))
	p50 := ms(durations[len(durations)/2])
	p95 := ms(durations[int(float64(len(durations)-1)*0.95)])
	fmt.Printf("  %-9s avg_ms=%.3f p50_ms=%.3f p95_ms=%.3f\n", name, avg, p50, p95)
}
