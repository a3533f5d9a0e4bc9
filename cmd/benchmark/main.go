// Benchmark tool for load-testing a running engine instance.
//
// Usage:
//
//	go run cmd/benchmark/main.go -url http://localhost:8080 -n 5000 -c 10
//
// This tool:
//  1. Creates a case via the API
//  2. Ingests n synthetic transactions with c concurrent workers
//  3. Runs a full case analysis
//  4. Reports throughput and latency percentiles
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type ingestRequest struct {
	SourceEntity string   `json:"sourceEntity"`
	DestEntity   string   `json:"destEntity"`
	Amount       float64  `json:"amount"`
	Currency     string   `json:"currency"`
	Channels     []string `json:"channels,omitempty"`
}

type caseRequest struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	RiskLevel      string  `json:"riskLevel"`
	AmountInvolved float64 `json:"amountInvolved"`
}

var channels = []string{"wire", "cash", "online", "crypto"}

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8080", "engine base URL")
		total   = flag.Int("n", 1000, "number of transactions to ingest")
		workers = flag.Int("c", 10, "concurrent workers")
		parties = flag.Int("entities", 50, "size of the synthetic entity pool")
		seed    = flag.Int64("seed", 42, "PRNG seed for reproducible load")
	)
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	caseID := fmt.Sprintf("bench-%d", time.Now().Unix())

	if err := createCase(client, *baseURL, caseID); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create case: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("case %s created, ingesting %d transactions with %d workers\n",
		caseID, *total, *workers)

	var (
		okCount   atomic.Int64
		failCount atomic.Int64
		latencies = make([]time.Duration, *total)
	)

	jobs := make(chan int, *total)
	for i := 0; i < *total; i++ {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(*seed + int64(workerID)))

			for i := range jobs {
				req := ingestRequest{
					SourceEntity: fmt.Sprintf("bench-acct-%03d", rng.Intn(*parties)),
					DestEntity:   fmt.Sprintf("bench-acct-%03d", rng.Intn(*parties)),
					Amount:       float64(rng.Intn(20000)) + rng.Float64(),
					Currency:     "USD",
					Channels:     []string{channels[rng.Intn(len(channels))]},
				}

				txStart := time.Now()
				err := postJSON(client, fmt.Sprintf("%s/cases/%s/transactions", *baseURL, caseID), req, http.StatusCreated)
				latencies[i] = time.Since(txStart)

				if err != nil {
					failCount.Add(1)
				} else {
					okCount.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
	ingestElapsed := time.Since(start)

	analyzeStart := time.Now()
	analyzeErr := postJSON(client, fmt.Sprintf("%s/cases/%s/analyze", *baseURL, caseID), struct{}{}, http.StatusOK)
	analyzeElapsed := time.Since(analyzeStart)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Println()
	fmt.Println("=== Ingestion ===")
	fmt.Printf("  total:      %d ok, %d failed\n", okCount.Load(), failCount.Load())
	fmt.Printf("  elapsed:    %s\n", ingestElapsed.Round(time.Millisecond))
	fmt.Printf("  throughput: %.1f tx/s\n", float64(okCount.Load())/ingestElapsed.Seconds())
	fmt.Printf("  latency:    p50=%s p95=%s p99=%s max=%s\n",
		percentile(latencies, 50), percentile(latencies, 95),
		percentile(latencies, 99), latencies[len(latencies)-1].Round(time.Microsecond))

	fmt.Println()
	fmt.Println("=== Analysis ===")
	if analyzeErr != nil {
		fmt.Printf("  failed: %v\n", analyzeErr)
		os.Exit(1)
	}
	fmt.Printf("  full case analysis: %s\n", analyzeElapsed.Round(time.Millisecond))
}

func createCase(client *http.Client, baseURL, caseID string) error {
	return postJSON(client, baseURL+"/cases", caseRequest{
		ID:             caseID,
		Title:          "Benchmark load",
		RiskLevel:      "medium",
		AmountInvolved: 1_000_000,
	}, http.StatusCreated)
}

func postJSON(client *http.Client, url string, body interface{}, wantStatus int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return nil
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx].Round(time.Microsecond)
}
