// cmd/megaload/main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type purchaseRequest struct {
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id"`
	ActivityID string `json:"activity_id"`
	Quantity   int64  `json:"quantity"`
}

type purchaseResponse struct {
	Status string `json:"status"`
}

type Metrics struct {
	requestsSent      int64
	requestsCompleted int64

	confirmed     int64 // CONFIRMED
	clientErrors4xx int64
	serverErrors5xx int64
	networkErrors   int64

	soldOut410     int64 // SOLD_OUT
	limitExceeded422 int64 // LIMIT_EXCEEDED
	queued202      int64 // QUEUED
	badRequest400  int64
}

func (m *Metrics) recordResponse(statusCode int) {
	atomic.AddInt64(&m.requestsCompleted, 1)

	switch statusCode {
	case 200:
		atomic.AddInt64(&m.confirmed, 1)
	case 202:
		atomic.AddInt64(&m.queued202, 1)
	case 400:
		atomic.AddInt64(&m.badRequest400, 1)
		atomic.AddInt64(&m.clientErrors4xx, 1)
	case 410:
		atomic.AddInt64(&m.soldOut410, 1)
		atomic.AddInt64(&m.clientErrors4xx, 1)
	case 422:
		atomic.AddInt64(&m.limitExceeded422, 1)
		atomic.AddInt64(&m.clientErrors4xx, 1)
	default:
		if statusCode >= 500 {
			atomic.AddInt64(&m.serverErrors5xx, 1)
		} else if statusCode >= 400 {
			atomic.AddInt64(&m.clientErrors4xx, 1)
		}
	}
}

func (m *Metrics) recordNetworkError() {
	atomic.AddInt64(&m.requestsCompleted, 1)
	atomic.AddInt64(&m.networkErrors, 1)
}

func (m *Metrics) printProgress(done, total int) {
	sent := atomic.LoadInt64(&m.requestsSent)
	completed := atomic.LoadInt64(&m.requestsCompleted)
	confirmed := atomic.LoadInt64(&m.confirmed)
	inFlight := sent - completed

	fmt.Printf("Progress: %d/%d | Sent: %d | Completed: %d | In-flight: %d | Confirmed: %d\n",
		done, total, sent, completed, inFlight, confirmed)
}

func (m *Metrics) printFinal(duration time.Duration) {
	sent := atomic.LoadInt64(&m.requestsSent)
	completed := atomic.LoadInt64(&m.requestsCompleted)

	fmt.Printf("\n=== FINAL RESULTS ===\n")
	fmt.Printf("Duration: %v\n", duration)
	fmt.Printf("Requests sent: %d\n", sent)
	fmt.Printf("Requests completed: %d (%.2f%%)\n", completed, float64(completed)/float64(sent)*100)
	fmt.Printf("Requests lost: %d\n", sent-completed)

	fmt.Printf("\n--- Outcomes ---\n")
	fmt.Printf("200 Confirmed: %d\n", atomic.LoadInt64(&m.confirmed))
	fmt.Printf("202 Queued: %d\n", atomic.LoadInt64(&m.queued202))
	fmt.Printf("410 Sold out: %d\n", atomic.LoadInt64(&m.soldOut410))
	fmt.Printf("422 Limit exceeded: %d\n", atomic.LoadInt64(&m.limitExceeded422))
	fmt.Printf("400 Bad request: %d\n", atomic.LoadInt64(&m.badRequest400))

	fmt.Printf("\n--- Server Issues ---\n")
	fmt.Printf("5xx Server Errors: %d\n", atomic.LoadInt64(&m.serverErrors5xx))
	fmt.Printf("Network Errors: %d\n", atomic.LoadInt64(&m.networkErrors))

	fmt.Printf("\n--- Performance ---\n")
	fmt.Printf("Overall rate: %.2f req/s\n", float64(sent)/duration.Seconds())
	fmt.Printf("Completed rate: %.2f req/s\n", float64(completed)/duration.Seconds())
	fmt.Printf("Confirmed rate: %.2f req/s\n", float64(atomic.LoadInt64(&m.confirmed))/duration.Seconds())
}

func main() {
	var (
		target     = flag.String("target", "http://localhost:8080", "server base URL")
		activityID = flag.String("activity", "", "activity id to purchase against (must already be IN_PROGRESS)")
		totalUsers = flag.Int("users", 1000000, "number of simulated users")
		concurrent = flag.Int("concurrency", 2000, "number of concurrent in-flight requests")
	)
	flag.Parse()

	if *activityID == "" {
		fmt.Println("megaload: -activity is required (create and start one via POST /admin/activities first)")
		return
	}

	var metrics Metrics

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *concurrent * 2,
			MaxIdleConnsPerHost: *concurrent,
			MaxConnsPerHost:     *concurrent,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fmt.Printf("Starting load test: %d users, %d concurrent, activity=%s\n", *totalUsers, *concurrent, *activityID)
	start := time.Now()

	var wg sync.WaitGroup
	sem := make(chan struct{}, *concurrent)

	progressDone := make(chan bool)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics.printProgress(int(atomic.LoadInt64(&metrics.requestsSent)), *totalUsers)
			case <-progressDone:
				return
			}
		}
	}()

	purchaseURL := *target + "/purchase"

	for i := 0; i < *totalUsers; i++ {
		wg.Add(1)
		sem <- struct{}{}
		atomic.AddInt64(&metrics.requestsSent, 1)

		go func(userNum int) {
			defer wg.Done()
			defer func() { <-sem }()

			userID := fmt.Sprintf("mega_user_%d", userNum)
			body, _ := json.Marshal(purchaseRequest{
				UserID:     userID,
				DeviceID:   fmt.Sprintf("mega_device_%d", userNum),
				ActivityID: *activityID,
				Quantity:   1,
			})

			resp, err := client.Post(purchaseURL, "application/json", bytes.NewReader(body))
			if err != nil {
				metrics.recordNetworkError()
				return
			}
			defer resp.Body.Close()

			var result purchaseResponse
			json.NewDecoder(resp.Body).Decode(&result)

			metrics.recordResponse(resp.StatusCode)
		}(i)
	}

	wg.Wait()
	close(progressDone)
	duration := time.Since(start)

	metrics.printFinal(duration)

	fmt.Printf("\n=== INSIGHTS ===\n")
	if metrics.serverErrors5xx > 0 {
		fmt.Printf("Server errors detected: the server struggled under load.\n")
	}
	if metrics.networkErrors > int64(float64(metrics.requestsSent)*0.01) {
		fmt.Printf("High network error rate (>1%%): server might be dropping connections.\n")
	}

	lostRequests := metrics.requestsSent - metrics.requestsCompleted
	if lostRequests > 0 {
		fmt.Printf("%d requests never completed: possible timeout or connection issues.\n", lostRequests)
	}
}
