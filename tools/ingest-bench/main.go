package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-zeromq/zmq4"

	arrowipc "github.com/VanDung-dev/DeltaKernel-Engine/arrow"
)

// BenchConfig holds configuration for the ingest benchmark.
type BenchConfig struct {
	Endpoint    string
	Concurrency int
	Duration    time.Duration
	RowsPerReq  int
	ReportFile  string
}

// BenchResult holds the results of a benchmark run.
type BenchResult struct {
	TotalRequests  int64
	SuccessfulReqs int64
	FailedReqs     int64
	TotalDuration  time.Duration
	AvgLatency     time.Duration
	MinLatency     time.Duration
	MaxLatency     time.Duration
	RequestsPerSec float64
}

func main() {
	config := parseFlags()

	fmt.Println("=== DeltaKernel Ingest Benchmark ===")
	fmt.Printf("Target: %s\n", config.Endpoint)
	fmt.Printf("Concurrency: %d workers\n", config.Concurrency)
	fmt.Printf("Duration: %v\n", config.Duration)
	fmt.Printf("Rows per request: %d\n", config.RowsPerReq)
	fmt.Println()

	payload, err := buildPayload(config.RowsPerReq)
	if err != nil {
		log.Fatalf("Failed to build payload: %v", err)
	}

	result := runBench(config, payload)

	printResults(result)

	if config.ReportFile != "" {
		saveReport(config, result)
	}
}

func parseFlags() BenchConfig {
	config := BenchConfig{}

	flag.StringVar(&config.Endpoint, "endpoint", "tcp://127.0.0.1:5601", "ingest server endpoint")
	flag.IntVar(&config.Concurrency, "c", 1, "Number of concurrent workers (>1 exercises commit conflicts)")
	flag.DurationVar(&config.Duration, "d", 30*time.Second, "Duration of benchmark")
	flag.IntVar(&config.RowsPerReq, "rows", 1024, "Rows per record batch")
	flag.StringVar(&config.ReportFile, "o", "", "Output report file (JSON)")

	flag.Parse()

	return config
}

// buildPayload encodes one reusable record batch as an IPC stream.
func buildPayload(rows int) ([]byte, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "number", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	values := make([]int64, rows)
	for i := range values {
		values[i] = int64(i)
	}
	builder.Field(0).(*array.Int64Builder).AppendValues(values, nil)

	record := builder.NewRecord()
	defer record.Release()

	return arrowipc.NewCodec().EncodeBatch(record)
}

func runBench(config BenchConfig, payload []byte) BenchResult {
	var (
		totalReqs    int64
		successReqs  int64
		failedReqs   int64
		totalLatency int64
		minLatency   int64 = 1<<63 - 1
		maxLatency   int64
		wg           sync.WaitGroup
		stopChan     = make(chan struct{})
	)

	startTime := time.Now()

	// Start workers, each with its own REQ socket
	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(config, payload, stopChan, &totalReqs, &successReqs, &failedReqs, &totalLatency, &minLatency, &maxLatency)
		}()
	}

	time.Sleep(config.Duration)
	close(stopChan)
	wg.Wait()

	duration := time.Since(startTime)
	total := atomic.LoadInt64(&totalReqs)
	success := atomic.LoadInt64(&successReqs)
	failed := atomic.LoadInt64(&failedReqs)
	latencySum := atomic.LoadInt64(&totalLatency)
	minLat := atomic.LoadInt64(&minLatency)
	maxLat := atomic.LoadInt64(&maxLatency)

	var avgLatency time.Duration
	if success > 0 {
		avgLatency = time.Duration(latencySum / success)
	}

	return BenchResult{
		TotalRequests:  total,
		SuccessfulReqs: success,
		FailedReqs:     failed,
		TotalDuration:  duration,
		AvgLatency:     avgLatency,
		MinLatency:     time.Duration(minLat),
		MaxLatency:     time.Duration(maxLat),
		RequestsPerSec: float64(total) / duration.Seconds(),
	}
}

func runWorker(config BenchConfig, payload []byte, stop chan struct{}, totalReqs, successReqs, failedReqs, totalLatency, minLatency, maxLatency *int64) {
	sock := zmq4.NewReq(context.Background())
	if err := sock.Dial(config.Endpoint); err != nil {
		log.Printf("Failed to dial %s: %v", config.Endpoint, err)
		return
	}
	defer sock.Close()

	for {
		select {
		case <-stop:
			return
		default:
			latency, err := sendRequest(sock, payload)
			atomic.AddInt64(totalReqs, 1)

			if err != nil {
				atomic.AddInt64(failedReqs, 1)
				// Small sleep on error to avoid hammering
				time.Sleep(10 * time.Millisecond)
			} else {
				atomic.AddInt64(successReqs, 1)
				atomic.AddInt64(totalLatency, int64(latency))

				lat := int64(latency)
				for {
					old := atomic.LoadInt64(minLatency)
					if lat >= old || atomic.CompareAndSwapInt64(minLatency, old, lat) {
						break
					}
				}
				for {
					old := atomic.LoadInt64(maxLatency)
					if lat <= old || atomic.CompareAndSwapInt64(maxLatency, old, lat) {
						break
					}
				}
			}
		}
	}
}

// sendRequest submits one batch. Conflict replies ("ERR ...") count as
// failures since concurrent workers race for the same commit version.
func sendRequest(sock zmq4.Socket, payload []byte) (time.Duration, error) {
	start := time.Now()

	if err := sock.Send(zmq4.NewMsg(payload)); err != nil {
		return 0, err
	}

	reply, err := sock.Recv()
	latency := time.Since(start)
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(string(reply.Bytes()), "OK ") {
		return 0, fmt.Errorf("server rejected batch: %s", reply.Bytes())
	}

	return latency, nil
}

func printResults(result BenchResult) {
	fmt.Println("=== Results ===")
	fmt.Printf("Duration:        %v\n", result.TotalDuration.Round(time.Millisecond))
	fmt.Printf("Total Requests:  %d\n", result.TotalRequests)
	fmt.Printf("Successful:      %d (%.2f%%)\n", result.SuccessfulReqs, float64(result.SuccessfulReqs)/float64(result.TotalRequests)*100)
	fmt.Printf("Failed:          %d (%.2f%%)\n", result.FailedReqs, float64(result.FailedReqs)/float64(result.TotalRequests)*100)
	fmt.Printf("Requests/sec:    %.2f\n", result.RequestsPerSec)
	fmt.Printf("Avg Latency:     %v\n", result.AvgLatency.Round(time.Microsecond))
	fmt.Printf("Min Latency:     %v\n", result.MinLatency.Round(time.Microsecond))
	fmt.Printf("Max Latency:     %v\n", result.MaxLatency.Round(time.Microsecond))
}

func saveReport(config BenchConfig, result BenchResult) {
	report := map[string]interface{}{
		"config": map[string]interface{}{
			"endpoint":     config.Endpoint,
			"concurrency":  config.Concurrency,
			"duration":     config.Duration.String(),
			"rows_per_req": config.RowsPerReq,
		},
		"results": map[string]interface{}{
			"total_requests":   result.TotalRequests,
			"successful":       result.SuccessfulReqs,
			"failed":           result.FailedReqs,
			"requests_per_sec": result.RequestsPerSec,
			"avg_latency_ms":   float64(result.AvgLatency.Microseconds()) / 1000,
			"min_latency_ms":   float64(result.MinLatency.Microseconds()) / 1000,
			"max_latency_ms":   float64(result.MaxLatency.Microseconds()) / 1000,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	data, _ := json.MarshalIndent(report, "", "  ")
	if err := os.WriteFile(config.ReportFile, data, 0644); err != nil {
		log.Printf("Failed to write report: %v", err)
	} else {
		fmt.Printf("Report saved to: %s\n", config.ReportFile)
	}
}
