package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var defaultSymptomSets = []string{
	"fever,cough",
	"fever,cough,fatigue",
	"headache,nausea",
	"headache,nausea,vomiting",
	"itching,skin_rash",
	"chills,high_fever,sweating",
	"joint_pain,fatigue",
	"continuous_sneezing,runny_nose",
	"abdominal_pain,vomiting,nausea",
	"chest_pain,breathlessness",
	"loss_of_appetite",
	"yellowish_skin,dark_urine,fatigue",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	TopK        int
	SymptomSets []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	mu            sync.Mutex
	latencies     []time.Duration
	statusCodes   map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, cacheHit bool, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	topK := flag.Int("top-k", 5, "top_k sent with every query")
	sets := flag.String("symptoms", "", "semicolon-separated symptom sets, e.g. \"fever,cough;headache\"")
	flag.Parse()

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		TopK:        *topK,
		SymptomSets: defaultSymptomSets,
	}
	if *sets != "" {
		cfg.SymptomSets = strings.Split(*sets, ";")
	}

	fmt.Println("=== Symptom Search Load Test ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:  %d\n", cfg.Concurrency)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Symptom sets: %d unique\n", len(cfg.SymptomSets))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	stats := runLoadTest(ctx, cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func queryURL(cfg Config, symptoms string) string {
	return fmt.Sprintf("%s/api/v1/query?symptoms=%s&top_k=%d", cfg.BaseURL, url.QueryEscape(symptoms), cfg.TopK)
}

func runLoadTest(ctx context.Context, cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	defer client.CloseIdleConnections()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(next int) {
			defer wg.Done()
			for ctx.Err() == nil {
				symptoms := cfg.SymptomSets[next%len(cfg.SymptomSets)]
				next++
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL(cfg, symptoms), nil)
				if err != nil {
					stats.RecordRequest(0, 0, false, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(elapsed, 0, false, err)
					}
					continue
				}
				var body struct {
					CacheHit bool `json:"cache_hit"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&body)
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(elapsed, resp.StatusCode, body.CacheHit, nil)
			}
		}(w)
	}
	wg.Wait()
	return stats
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failed := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", failed)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.latencies...)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(codes))
	for _, code := range codes {
		counts[code] = stats.statusCodes[code]
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, counts[code])
	}

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
