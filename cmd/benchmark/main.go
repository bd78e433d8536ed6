package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	kwikpik "github.com/kwikpik/kwikpik-go"
	"github.com/kwikpik/kwikpik-go/internal/config"
)

// Config holds the benchmark settings
var (
	concurrency int
	duration    time.Duration
	vehicle     string
)

// Metrics
var (
	totalFlows  uint64
	completed   uint64 // create, pay, confirm and get all succeeded
	rejected    uint64 // validation or argument errors
	fail409     uint64 // Conflicts
	fail422     uint64 // Payment rule violations
	failOther   uint64
	failNetwork uint64
)

func init() {
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&vehicle, "vehicle", "", "Vehicle type for every request (random when empty)")
}

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	opts := []kwikpik.Option{kwikpik.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
	if cfg.BaseURL != "" {
		opts = append(opts, kwikpik.WithBaseURL(cfg.BaseURL))
	}
	api, err := kwikpik.Initialize(cfg.APIKey, cfg.Env, opts...)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", cfg.Env, concurrency, duration)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, api)
		}()
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(ctx context.Context, api *kwikpik.API) {
	for ctx.Err() == nil {
		err := runFlow(ctx, api)
		if ctx.Err() != nil {
			return
		}
		atomic.AddUint64(&totalFlows, 1)
		record(err)
	}
}

// runFlow walks one request through create, pay, confirm and get.
func runFlow(ctx context.Context, api *kwikpik.API) error {
	create, err := api.Requests.CreateDispatchRequest(randomRequest())
	if err != nil {
		return err
	}
	created, err := create.Send(ctx)
	if err != nil {
		return err
	}
	if created.Amount == nil {
		return fmt.Errorf("request %s: server returned no amount", created.ID)
	}

	pay, err := api.Accounts.PayForRequest(kwikpik.PaymentInput{RequestID: created.ID, Amount: *created.Amount})
	if err != nil {
		return err
	}
	if _, err := pay.Send(ctx); err != nil {
		return err
	}

	confirm, err := api.Requests.ConfirmDispatchRequest(created.ID)
	if err != nil {
		return err
	}
	if _, err := confirm.Send(ctx); err != nil {
		return err
	}

	get, err := api.Requests.GetSingleRequest(created.ID)
	if err != nil {
		return err
	}
	_, err = get.Call(ctx)
	return err
}

func record(err error) {
	var statusErr *kwikpik.StatusError
	switch {
	case err == nil:
		atomic.AddUint64(&completed, 1)
	case errors.Is(err, kwikpik.ErrValidation), errors.Is(err, kwikpik.ErrInvalidArgument):
		atomic.AddUint64(&rejected, 1)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict:
		atomic.AddUint64(&fail409, 1)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnprocessableEntity:
		atomic.AddUint64(&fail422, 1)
	case errors.As(err, &statusErr):
		atomic.AddUint64(&failOther, 1)
	default:
		atomic.AddUint64(&failNetwork, 1)
	}
}

// randomRequest is a trip of up to roughly 20 km around central Lagos.
func randomRequest() kwikpik.DispatchRequest {
	vt := kwikpik.VehicleType(vehicle)
	if vt == "" {
		all := []kwikpik.VehicleType{kwikpik.VehicleBicycle, kwikpik.VehicleMotorcycle, kwikpik.VehicleCar, kwikpik.VehicleVan}
		vt = all[rand.Intn(len(all))]
	}
	jitter := func() float64 { return (rand.Float64() - 0.5) * 0.2 }
	return kwikpik.DispatchRequest{
		Latitude:             6.5244 + jitter(),
		Longitude:            3.3792 + jitter(),
		Category:             "parcel",
		Product:              "documents",
		Quantity:             rand.Intn(3) + 1,
		DestinationLatitude:  6.5244 + jitter(),
		DestinationLongitude: 3.3792 + jitter(),
		VehicleType:          vt,
		RecipientName:        "Bench Recipient",
		RecipientPhoneNumber: "+2348012345678",
		PhoneNumber:          "+2348098765432",
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalFlows)
	ok := atomic.LoadUint64(&completed)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)

	var abortRate float64
	if total > 0 {
		abortRate = float64(f409+f422) / float64(total) * 100
	}

	results := map[string]interface{}{
		"duration_sec":     d.Seconds(),
		"workers":          concurrency,
		"total_flows":      total,
		"throughput_fps":   float64(total) / d.Seconds(),
		"completed":        ok,
		"rejected_locally": atomic.LoadUint64(&rejected),
		"conflicts":        f409,
		"payment_rejected": f422,
		"abort_rate_pct":   abortRate,
		"errors":           atomic.LoadUint64(&failOther),
		"transport_errors": atomic.LoadUint64(&failNetwork),
	}

	// Results go to stdout and results_flow.json
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	file, err := os.Create("results_flow.json")
	if err != nil {
		log.Printf("Unable to save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
