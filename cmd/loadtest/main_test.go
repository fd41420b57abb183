package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubAPIServer имитирует REST API заказов для нагрузочных сценариев.
type stubAPIServer struct {
	mu          sync.Mutex
	createCalls []createCall
	submitCalls []submitCall
	reviewCalls []reviewCall

	createStatus int
	submitStatus int
	reviewStatus int
}

type createCall struct {
	idempotencyKey string
	retailerID     string
}

type submitCall struct {
	orderID string
	status  string
}

type reviewCall struct {
	orderID   string
	decisions []map[string]interface{}
}

func newStubAPIServer() *stubAPIServer {
	return &stubAPIServer{
		createStatus: http.StatusOK,
		submitStatus: http.StatusOK,
		reviewStatus: http.StatusOK,
	}
}

func (s *stubAPIServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]interface{}
		_ = json.Unmarshal(body, &decoded)

		s.mu.Lock()
		defer s.mu.Unlock()

		switch r.Method {
		case http.MethodPost:
			s.createCalls = append(s.createCalls, createCall{
				idempotencyKey: r.Header.Get(idempotencyHeader),
				retailerID:     stringField(decoded, "retailerId"),
			})
			if s.createStatus != http.StatusOK {
				writeStubEnvelope(w, s.createStatus, nil, "create failed")
				return
			}
			orderID := fmt.Sprintf("order-%d", len(s.createCalls))
			writeStubEnvelope(w, http.StatusOK, map[string]interface{}{
				"orderId": orderID,
				"orderDetails": []map[string]interface{}{
					{"orderDetailId": orderID + "-detail-1"},
				},
			}, "")
		case http.MethodPut:
			s.submitCalls = append(s.submitCalls, submitCall{
				orderID: stringField(decoded, "orderId"),
				status:  stringField(decoded, "orderStatus"),
			})
			if s.submitStatus != http.StatusOK {
				writeStubEnvelope(w, s.submitStatus, nil, "submit failed")
				return
			}
			writeStubEnvelope(w, http.StatusOK, map[string]interface{}{"orderId": stringField(decoded, "orderId")}, "")
		default:
			writeStubEnvelope(w, http.StatusMethodNotAllowed, nil, "method not allowed")
		}
	})

	mux.HandleFunc("/api/orders/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/review") {
			writeStubEnvelope(w, http.StatusNotFound, nil, "not found")
			return
		}

		orderID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/orders/"), "/review")
		body, _ := io.ReadAll(r.Body)
		var decoded struct {
			Decisions []map[string]interface{} `json:"decisions"`
		}
		_ = json.Unmarshal(body, &decoded)

		s.mu.Lock()
		defer s.mu.Unlock()

		s.reviewCalls = append(s.reviewCalls, reviewCall{orderID: orderID, decisions: decoded.Decisions})
		if s.reviewStatus != http.StatusOK {
			writeStubEnvelope(w, s.reviewStatus, nil, "review failed")
			return
		}
		writeStubEnvelope(w, http.StatusOK, map[string]interface{}{"orderId": orderID}, "")
	})

	return mux
}

func writeStubEnvelope(w http.ResponseWriter, status int, data interface{}, errorMessage string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"message":      "",
		"errorMessage": errorMessage,
		"data":         data,
	})
}

func stringField(decoded map[string]interface{}, key string) string {
	value, _ := decoded[key].(string)
	return value
}

func withCLIArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"loadtest"}, args...)
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flag.CommandLine = fs

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    loadMode
		wantErr string
	}{
		{name: "create", input: "create", want: modeCreate},
		{name: "create-submit", input: "create-submit", want: modeCreateSubmit},
		{name: "create-submit-review", input: "create-submit-review", want: modeCreateSubmitReview},
		{name: "unsupported", input: "bad", wantErr: "unsupported mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseMode(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected mode: got %q want %q", got, tc.want)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		withCLIArgs(t, []string{
			"-base-url=http://example.test:8080",
			"-total=10",
			"-concurrency=3",
			"-timeout=2s",
			"-mode=create-submit-review",
			"-reject-rate=25",
			"-retailer-id=retailer-1",
		}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.baseURL != "http://example.test:8080" {
				t.Fatalf("unexpected base url: %s", cfg.baseURL)
			}
			if cfg.total != 10 || !cfg.totalSet {
				t.Fatalf("unexpected total: %+v", cfg)
			}
			if cfg.mode != modeCreateSubmitReview {
				t.Fatalf("unexpected mode: %s", cfg.mode)
			}
			if cfg.rejectRate != 25 {
				t.Fatalf("unexpected reject rate: %d", cfg.rejectRate)
			}
			if cfg.timeout != 2*time.Second {
				t.Fatalf("unexpected timeout: %s", cfg.timeout)
			}
		})
	})

	t.Run("duration mode without explicit total", func(t *testing.T) {
		withCLIArgs(t, []string{"-duration=2s"}, func() {
			cfg, err := parseConfig()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.duration != 2*time.Second {
				t.Fatalf("unexpected duration: %s", cfg.duration)
			}
			if cfg.totalSet {
				t.Fatalf("total must not be marked as explicitly set")
			}
		})
	})

	t.Run("validation errors", func(t *testing.T) {
		cases := []struct {
			name string
			args []string
			want string
		}{
			{name: "empty base url", args: []string{"-base-url="}, want: "base-url is required"},
			{name: "zero total", args: []string{"-total=0"}, want: "total must be > 0"},
			{name: "bad concurrency", args: []string{"-concurrency=0"}, want: "concurrency must be > 0"},
			{name: "bad timeout", args: []string{"-timeout=0s"}, want: "timeout must be > 0"},
			{name: "bad mode", args: []string{"-mode=bogus"}, want: "unsupported mode"},
			{name: "bad reject rate", args: []string{"-reject-rate=150"}, want: "reject-rate must be between 0 and 100"},
			{name: "bad price", args: []string{"-price-minor=0"}, want: "price-minor must be > 0"},
			{name: "empty retailer", args: []string{"-retailer-id="}, want: "retailer-id is required"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				withCLIArgs(t, tc.args, func() {
					_, err := parseConfig()
					if err == nil || !strings.Contains(err.Error(), tc.want) {
						t.Fatalf("expected error containing %q, got %v", tc.want, err)
					}
				})
			})
		}
	})
}

func TestDispatchJobs(t *testing.T) {
	t.Run("count mode", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{total: 5})

		var got []int
		for id := range jobs {
			got = append(got, id)
		}
		if len(got) != 5 {
			t.Fatalf("expected 5 jobs, got %d", len(got))
		}
	})

	t.Run("duration mode stops by timer", func(t *testing.T) {
		jobs := make(chan int, 1024)
		done := make(chan struct{})
		go func() {
			dispatchJobs(jobs, config{duration: 50 * time.Millisecond})
			close(done)
		}()

		count := 0
		for range jobs {
			count++
		}
		<-done
		if count == 0 {
			t.Fatalf("expected at least one job in duration mode")
		}
	})

	t.Run("duration mode honors explicit total cap", func(t *testing.T) {
		jobs := make(chan int, 16)
		dispatchJobs(jobs, config{duration: time.Minute, total: 3, totalSet: true})

		count := 0
		for range jobs {
			count++
		}
		if count != 3 {
			t.Fatalf("expected 3 jobs with explicit cap, got %d", count)
		}
	})
}

func TestCollectorAndReport(t *testing.T) {
	c := newCollector()
	c.record("scenario", 10*time.Millisecond, http.StatusOK)
	c.record("scenario", 20*time.Millisecond, http.StatusConflict)
	c.record("CreateOrder", 15*time.Millisecond, http.StatusOK)

	snap, ok := c.snapshot("scenario")
	if !ok {
		t.Fatalf("scenario snapshot missing")
	}
	if snap.Calls != 2 || snap.Success != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected scenario snapshot: %+v", snap)
	}
	if snap.Codes["200"] != 1 || snap.Codes["409"] != 1 {
		t.Fatalf("unexpected codes: %+v", snap.Codes)
	}

	r := c.buildReport(time.Now(), 2*time.Second)
	if r.TotalScenarios != 2 || r.FailedScenarios != 1 {
		t.Fatalf("unexpected report totals: %+v", r)
	}
	if r.RPS <= 0 {
		t.Fatalf("expected positive rps, got %f", r.RPS)
	}
	if _, ok := r.Methods["CreateOrder"]; !ok {
		t.Fatalf("expected CreateOrder stats in report")
	}
}

func TestUtilityFunctions(t *testing.T) {
	if got := statusLabel(http.StatusOK); got != "200" {
		t.Fatalf("unexpected status label: %s", got)
	}
	if got := statusLabel(statusTransportError); got != "transport_error" {
		t.Fatalf("unexpected transport error label: %s", got)
	}

	if got := ratio(1, 4); got != 0.25 {
		t.Fatalf("ratio mismatch: %f", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("ratio with zero total must be 0, got %f", got)
	}

	values := []float64{10, 20, 30, 40}
	summary := buildLatencySummary(values)
	if summary.P50 <= 0 || summary.P95 <= 0 || summary.Max != 40 {
		t.Fatalf("unexpected latency summary: %+v", summary)
	}
	if p := percentile(values, 95); p <= 0 {
		t.Fatalf("unexpected percentile: %f", p)
	}

	if got := runTarget(config{total: 50}); got != "count:50" {
		t.Fatalf("unexpected run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second}); got != "duration:2s" {
		t.Fatalf("unexpected duration run target: %s", got)
	}
	if got := runTarget(config{duration: 2 * time.Second, total: 10, totalSet: true}); got != "duration:2s,max-total:10" {
		t.Fatalf("unexpected capped duration run target: %s", got)
	}
}

func TestShouldRejectScenario(t *testing.T) {
	if shouldRejectScenario(5, 0) {
		t.Fatalf("reject rate 0 must never reject")
	}
	if !shouldRejectScenario(5, 100) {
		t.Fatalf("reject rate 100 must always reject")
	}
	if !shouldRejectScenario(10, 25) {
		t.Fatalf("index 10 with rate 25 must reject")
	}
	if shouldRejectScenario(80, 25) {
		t.Fatalf("index 80 with rate 25 must not reject")
	}
}

func TestWriteJSONReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	sample := report{TotalScenarios: 2, SuccessScenarios: 2}
	if err := writeJSONReport(path, sample); err != nil {
		t.Fatalf("writeJSONReport error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.TotalScenarios != 2 || decoded.SuccessScenarios != 2 {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
}

func TestHTTPHelpersAndRunScenario(t *testing.T) {
	t.Run("create records idempotency key", func(t *testing.T) {
		stub := newStubAPIServer()
		srv := httptest.NewServer(stub.handler())
		defer srv.Close()

		cfg := config{baseURL: srv.URL, retailerID: "retailer-lt", manufacturerID: "maker-lt", currency: "USD", productID: "product-lt", priceMinor: 500}
		col := newCollector()

		order, status, err := callCreateOrder(srv.Client(), cfg, "lt-create-run-1", col)
		if err != nil {
			t.Fatalf("unexpected create error: %v", err)
		}
		if status != http.StatusOK || order.OrderID == "" || len(order.OrderDetails) != 1 {
			t.Fatalf("unexpected create result: status=%d order=%+v", status, order)
		}
		if len(stub.createCalls) != 1 || stub.createCalls[0].idempotencyKey != "lt-create-run-1" {
			t.Fatalf("unexpected create calls: %+v", stub.createCalls)
		}
		if stub.createCalls[0].retailerID != "retailer-lt" {
			t.Fatalf("unexpected retailer in create request: %+v", stub.createCalls[0])
		}
	})

	t.Run("full review scenario", func(t *testing.T) {
		stub := newStubAPIServer()
		srv := httptest.NewServer(stub.handler())
		defer srv.Close()

		cfg := config{
			baseURL:        srv.URL,
			mode:           modeCreateSubmitReview,
			rejectRate:     100,
			retailerID:     "retailer-lt",
			manufacturerID: "maker-lt",
			currency:       "USD",
			productID:      "product-lt",
			priceMinor:     500,
		}
		col := newCollector()

		if err := runScenario(srv.Client(), cfg, 0, "run", col); err != nil {
			t.Fatalf("unexpected scenario error: %v", err)
		}

		if len(stub.submitCalls) != 1 || stub.submitCalls[0].status != "Submitted" {
			t.Fatalf("unexpected submit calls: %+v", stub.submitCalls)
		}
		if len(stub.reviewCalls) != 1 {
			t.Fatalf("expected one review call, got %d", len(stub.reviewCalls))
		}
		decisions := stub.reviewCalls[0].decisions
		if len(decisions) != 1 {
			t.Fatalf("unexpected decisions: %+v", decisions)
		}
		if accepted, _ := decisions[0]["isAccepted"].(bool); accepted {
			t.Fatalf("reject rate 100 must reject the first line: %+v", decisions[0])
		}

		snap, ok := col.snapshot("scenario")
		if !ok || snap.Success != 1 {
			t.Fatalf("unexpected scenario stats: %+v", snap)
		}
	})

	t.Run("submit failure propagates status", func(t *testing.T) {
		stub := newStubAPIServer()
		stub.submitStatus = http.StatusConflict
		srv := httptest.NewServer(stub.handler())
		defer srv.Close()

		cfg := config{
			baseURL:        srv.URL,
			mode:           modeCreateSubmit,
			retailerID:     "retailer-lt",
			manufacturerID: "maker-lt",
			currency:       "USD",
			productID:      "product-lt",
			priceMinor:     500,
		}
		col := newCollector()

		if err := runScenario(srv.Client(), cfg, 0, "run", col); err == nil {
			t.Fatalf("expected scenario error on submit conflict")
		}

		snap, ok := col.snapshot("scenario")
		if !ok || snap.Failed != 1 {
			t.Fatalf("unexpected scenario stats: %+v", snap)
		}
		if snap.Codes["409"] != 1 {
			t.Fatalf("scenario must carry the submit status: %+v", snap.Codes)
		}
	})

	t.Run("transport error recorded", func(t *testing.T) {
		cfg := config{
			baseURL:        "http://127.0.0.1:1",
			retailerID:     "retailer-lt",
			manufacturerID: "maker-lt",
			currency:       "USD",
			productID:      "product-lt",
			priceMinor:     500,
		}
		col := newCollector()
		client := &http.Client{Timeout: 200 * time.Millisecond}

		if _, status, err := callCreateOrder(client, cfg, "lt-create-x", col); err == nil || status != statusTransportError {
			t.Fatalf("expected transport error, got status=%d err=%v", status, err)
		}

		snap, ok := col.snapshot("CreateOrder")
		if !ok || snap.Codes["transport_error"] != 1 {
			t.Fatalf("unexpected create stats: %+v", snap)
		}
	})
}

func TestMainSmoke(t *testing.T) {
	stub := newStubAPIServer()
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "main-report.json")

	withCLIArgs(t, []string{
		"-base-url=" + srv.URL,
		"-mode=create",
		"-total=5",
		"-concurrency=2",
		"-timeout=2s",
		"-output=" + outPath,
	}, func() {
		main()
	})

	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected report file from main: %v", err)
	}
	if len(stub.createCalls) != 5 {
		t.Fatalf("expected 5 create calls, got %d", len(stub.createCalls))
	}
}

func TestPrintReport(t *testing.T) {
	result := report{
		TotalScenarios:   4,
		SuccessScenarios: 3,
		FailedScenarios:  1,
		ErrorRate:        0.25,
		RPS:              12.5,
		Methods: map[string]methodReport{
			"CreateOrder": {Calls: 4, Success: 3, Failed: 1, Codes: map[string]int64{"200": 3, "409": 1}},
		},
	}

	out := captureStdout(t, func() {
		printReport(result, config{mode: modeCreate, baseURL: "http://example.test", concurrency: 4, total: 4})
	})

	if !strings.Contains(out, "scenarios: total=4") || !strings.Contains(out, "CreateOrder") {
		t.Fatalf("unexpected report output: %s", out)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read captured output: %v", err)
	}
	_ = r.Close()

	return string(data)
}
