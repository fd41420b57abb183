package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	idempotencyHeader = "Idempotency-Key"
	defaultPrice      = int64(1000)
	defaultQty        = int32(1)

	// statusTransportError помечает запросы, не получившие HTTP-ответа.
	statusTransportError = 0
)

type loadMode string

const (
	modeCreate             loadMode = "create"
	modeCreateSubmit       loadMode = "create-submit"
	modeCreateSubmitReview loadMode = "create-submit-review"
)

type config struct {
	baseURL        string
	total          int
	totalSet       bool
	duration       time.Duration
	concurrency    int
	timeout        time.Duration
	mode           loadMode
	rejectRate     int
	currency       string
	productID      string
	manufacturerID string
	retailerID     string
	priceMinor     int64
	outputPath     string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time               `json:"started_at"`
	DurationSeconds   float64                 `json:"duration_seconds"`
	TotalScenarios    int64                   `json:"total_scenarios"`
	SuccessScenarios  int64                   `json:"success_scenarios"`
	FailedScenarios   int64                   `json:"failed_scenarios"`
	ErrorRate         float64                 `json:"error_rate"`
	RPS               float64                 `json:"rps"`
	ScenarioLatencyMs latencySummary          `json:"scenario_latency_ms"`
	Methods           map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}

	stats.calls++
	stats.codes[statusLabel(status)]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
	if status == http.StatusOK {
		stats.success++
	} else {
		stats.failed++
	}
}

func statusLabel(status int) string {
	if status == statusTransportError {
		return "transport_error"
	}
	return strconv.Itoa(status)
}

func (c *collector) snapshot(name string) (methodReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[name]
	if !ok {
		return methodReport{}, false
	}

	codes := make(map[string]int64, len(stats.codes))
	for code, count := range stats.codes {
		codes[code] = count
	}

	return methodReport{
		Calls:     stats.calls,
		Success:   stats.success,
		Failed:    stats.failed,
		ErrorRate: ratio(stats.failed, stats.calls),
		Codes:     codes,
		LatencyMs: buildLatencySummary(append([]float64(nil), stats.latencies...)),
	}, true
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Methods:         make(map[string]methodReport),
	}

	c.mu.Lock()
	names := make([]string, 0, len(c.methods))
	for name := range c.methods {
		names = append(names, name)
	}
	c.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		snapshot, ok := c.snapshot(name)
		if !ok {
			continue
		}
		if name == "scenario" {
			result.TotalScenarios = snapshot.Calls
			result.SuccessScenarios = snapshot.Success
			result.FailedScenarios = snapshot.Failed
			result.ErrorRate = snapshot.ErrorRate
			result.ScenarioLatencyMs = snapshot.LatencyMs
			if duration > 0 {
				result.RPS = float64(snapshot.Calls) / duration.Seconds()
			}
			continue
		}
		result.Methods[name] = snapshot
	}

	return result
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string

	flag.StringVar(&cfg.baseURL, "base-url", "http://localhost:8080", "REST API base URL")
	flag.IntVar(&cfg.total, "total", 400, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 10m, 15m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-submit | create-submit-review")
	flag.IntVar(&cfg.rejectRate, "reject-rate", 0, "reject probability in percent for create-submit-review mode (0..100)")
	flag.StringVar(&cfg.currency, "currency", "USD", "payment currency")
	flag.StringVar(&cfg.productID, "product-id", "product-load", "product id for order lines")
	flag.StringVar(&cfg.manufacturerID, "manufacturer-id", "manufacturer-load", "manufacturer id")
	flag.StringVar(&cfg.retailerID, "retailer-id", "retailer-load", "retailer id known to the target instance")
	flag.Int64Var(&cfg.priceMinor, "price-minor", defaultPrice, "line price in minor units")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if strings.TrimSpace(cfg.baseURL) == "" {
		return cfg, errors.New("base-url is required")
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.priceMinor <= 0 {
		return cfg, errors.New("price-minor must be > 0")
	}
	if cfg.rejectRate < 0 || cfg.rejectRate > 100 {
		return cfg, errors.New("reject-rate must be between 0 and 100")
	}
	if strings.TrimSpace(cfg.currency) == "" {
		return cfg, errors.New("currency is required")
	}
	if strings.TrimSpace(cfg.productID) == "" {
		return cfg, errors.New("product-id is required")
	}
	if strings.TrimSpace(cfg.retailerID) == "" {
		return cfg, errors.New("retailer-id is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreateSubmit:
		return modeCreateSubmit, nil
	case modeCreateSubmitReview:
		return modeCreateSubmitReview, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: cfg.timeout}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if runErr := runScenario(client, cfg, id, runID, col); runErr != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)
	if result.FailedScenarios == 0 && failures > 0 {
		result.FailedScenarios = failures
		result.ErrorRate = ratio(result.FailedScenarios, result.TotalScenarios)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

type apiEnvelope struct {
	Message      string          `json:"message"`
	ErrorMessage string          `json:"errorMessage"`
	Data         json.RawMessage `json:"data"`
}

type orderDetailPayload struct {
	OrderDetailID string `json:"orderDetailId"`
}

type orderPayload struct {
	OrderID      string               `json:"orderId"`
	OrderDetails []orderDetailPayload `json:"orderDetails"`
}

func runScenario(client *http.Client, cfg config, index int, runID string, col *collector) error {
	scenarioStart := time.Now()
	scenarioStatus := http.StatusOK
	defer func() {
		col.record("scenario", time.Since(scenarioStart), scenarioStatus)
	}()

	createKey := fmt.Sprintf("lt-create-%s-%d", runID, index)
	order, status, err := callCreateOrder(client, cfg, createKey, col)
	if err != nil {
		scenarioStatus = status
		return err
	}
	if order.OrderID == "" {
		scenarioStatus = http.StatusInternalServerError
		return errors.New("create response returned empty order id")
	}

	if cfg.mode == modeCreate {
		return nil
	}

	if status, err := callSubmitOrder(client, cfg, order.OrderID, col); err != nil {
		scenarioStatus = status
		return err
	}

	if cfg.mode == modeCreateSubmitReview {
		reject := shouldRejectScenario(index, cfg.rejectRate)
		if status, err := callReviewOrder(client, cfg, order, reject, col); err != nil {
			scenarioStatus = status
			return err
		}
	}

	return nil
}

func callCreateOrder(client *http.Client, cfg config, key string, col *collector) (orderPayload, int, error) {
	body := map[string]interface{}{
		"retailerId":      cfg.retailerID,
		"manufacturerId":  cfg.manufacturerID,
		"createdBy":       cfg.retailerID,
		"paymentCurrency": cfg.currency,
		"orderDetails": []map[string]interface{}{
			{
				"productId":      cfg.productID,
				"manufacturerId": cfg.manufacturerID,
				"quantity":       defaultQty,
				"productPrice":   cfg.priceMinor,
			},
		},
	}

	headers := map[string]string{idempotencyHeader: key}
	data, status, err := doJSON(client, http.MethodPost, cfg.baseURL+"/api/orders", body, headers, col, "CreateOrder")
	if err != nil {
		return orderPayload{}, status, err
	}

	var order orderPayload
	if unmarshalErr := json.Unmarshal(data, &order); unmarshalErr != nil {
		return orderPayload{}, http.StatusInternalServerError, fmt.Errorf("decode create response: %w", unmarshalErr)
	}
	return order, status, nil
}

func callSubmitOrder(client *http.Client, cfg config, orderID string, col *collector) (int, error) {
	body := map[string]interface{}{
		"orderId":     orderID,
		"orderStatus": "Submitted",
		"updatedBy":   cfg.retailerID,
	}

	_, status, err := doJSON(client, http.MethodPut, cfg.baseURL+"/api/orders", body, nil, col, "SubmitOrder")
	return status, err
}

func callReviewOrder(client *http.Client, cfg config, order orderPayload, reject bool, col *collector) (int, error) {
	decisions := make([]map[string]interface{}, 0, len(order.OrderDetails))
	for i, detail := range order.OrderDetails {
		accepted := true
		if reject && i == 0 {
			accepted = false
		}
		decisions = append(decisions, map[string]interface{}{
			"orderDetailId": detail.OrderDetailID,
			"isAccepted":    accepted,
		})
	}

	body := map[string]interface{}{
		"decisions":  decisions,
		"reviewedBy": cfg.manufacturerID,
	}

	_, status, err := doJSON(client, http.MethodPost, cfg.baseURL+"/api/orders/"+order.OrderID+"/review", body, nil, col, "ReviewOrder")
	return status, err
}

// doJSON выполняет JSON-запрос и разворачивает конверт ответа API.
func doJSON(
	client *http.Client,
	method, url string,
	body interface{},
	headers map[string]string,
	col *collector,
	metric string,
) (json.RawMessage, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		col.record(metric, time.Since(start), statusTransportError)
		return nil, statusTransportError, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	col.record(metric, time.Since(start), resp.StatusCode)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	var env apiEnvelope
	if unmarshalErr := json.Unmarshal(raw, &env); unmarshalErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response envelope: %w", unmarshalErr)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("%s failed with status %d: %s", metric, resp.StatusCode, env.ErrorMessage)
	}

	return env.Data, resp.StatusCode, nil
}

func shouldRejectScenario(index, rejectRate int) bool {
	if rejectRate <= 0 {
		return false
	}
	if rejectRate >= 100 {
		return true
	}
	return index%100 < rejectRate
}

func writeJSONReport(path string, result report) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}

	return nil
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}

func printReport(result report, cfg config) {
	fmt.Printf("mode=%s base-url=%s concurrency=%d target=%s\n", cfg.mode, cfg.baseURL, cfg.concurrency, runTarget(cfg))
	fmt.Printf("scenarios: total=%d success=%d failed=%d error_rate=%.4f rps=%.2f\n",
		result.TotalScenarios, result.SuccessScenarios, result.FailedScenarios, result.ErrorRate, result.RPS)
	fmt.Printf("scenario latency ms: p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.P50, result.ScenarioLatencyMs.P95, result.ScenarioLatencyMs.P99, result.ScenarioLatencyMs.Max)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		method := result.Methods[name]
		fmt.Printf("%s: calls=%d success=%d failed=%d error_rate=%.4f p95=%.2fms codes=%v\n",
			name, method.Calls, method.Success, method.Failed, method.ErrorRate, method.LatencyMs.P95, method.Codes)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sort.Float64s(values)

	var total float64
	for _, value := range values {
		total += value
	}

	return latencySummary{
		Min: values[0],
		Max: values[len(values)-1],
		Avg: total / float64(len(values)),
		P50: percentile(values, 50),
		P95: percentile(values, 95),
		P99: percentile(values, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func ratio(failed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
