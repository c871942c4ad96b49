// Benchmark tool for exercising the UBK engine with synthetic applications.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 5000
//
// This tool:
//   1. Generates synthetic benefit applications, a fraction with injected
//      fraud patterns (cloned households, zero-income large families,
//      late filings from high-incidence regions)
//   2. Sends each application to POST /process
//   3. Compares the engine's verdict with the injected labels
//   4. Calculates precision, recall, F1-score, and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// FamilyMember mirrors the API payload shape.
type FamilyMember struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Relation string `json:"relation"`
	Income   int64  `json:"income"`
}

// ApplicationRequest is the UBK API request format.
type ApplicationRequest struct {
	ID             string         `json:"id"`
	FamilyHead     string         `json:"familyHead"`
	RegionID       string         `json:"regionId"`
	ChildrenCount  int            `json:"childrenCount"`
	FamilyMembers  []FamilyMember `json:"familyMembers"`
	MonthlyIncome  int64          `json:"monthlyIncome"`
	Documents      []string       `json:"documents"`
	SubmissionDate string         `json:"submissionDate"`
}

// ProcessResponse is the UBK API response format.
type ProcessResponse struct {
	Result struct {
		ApplicationID string `json:"applicationId"`
		RiskScore     int    `json:"riskScore"`
		RiskLevel     string `json:"riskLevel"`
		Action        string `json:"recommendedAction"`
		DuplicateRisk bool   `json:"duplicateRisk"`
	} `json:"result"`
}

// labeledApplication pairs a request with its injected ground truth.
type labeledApplication struct {
	Request    ApplicationRequest
	Suspicious bool
	Pattern    string
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Suspicious flagged for review or inspection
	FalsePositives int64 // Clean flagged
	TrueNegatives  int64 // Clean auto-approved or rejected on eligibility
	FalseNegatives int64 // Suspicious passed through

	TotalProcessed  int64
	TotalSuspicious int64
	TotalClean      int64
	TotalErrors     int64

	ProcessingTimeMs int64
}

var (
	firstNames = []string{"Aigul", "Bakyt", "Gulnara", "Nurlan", "Aida", "Timur", "Jyldyz", "Erlan", "Cholpon", "Azamat"}
	lastNames  = []string{"Asanova", "Toktogulov", "Sydykova", "Omurbekov", "Isakova", "Mambetov", "Usenova", "Kadyrov"}
	regionIDs  = []string{"bishkek", "osh", "naryn", "issyk-kul", "batken", "osh-region", "jalal-abad", "talas", "chui"}

	allDocuments = []string{"birth_certificates", "income_declaration", "residence_certificate"}
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "UBK base URL")
	count := flag.Int("count", 5000, "Number of applications to generate")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	suspectRate := flag.Float64("suspect-rate", 0.15, "Fraction of applications with injected fraud patterns")
	seed := flag.Int64("seed", 42, "Random seed for reproducible runs")
	verbose := flag.Bool("verbose", false, "Print each application result")
	flag.Parse()

	fmt.Println("UBK BENCHMARK - synthetic application screening")
	fmt.Printf("\nUBK URL:      %s\n", *baseURL)
	fmt.Printf("Count:        %d\n", *count)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Suspect Rate: %.2f\n", *suspectRate)
	fmt.Printf("Seed:         %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: UBK not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure UBK is running:")
		fmt.Println("  go run cmd/ubk/main.go")
		os.Exit(1)
	}
	fmt.Println("UBK is healthy")

	rng := rand.New(rand.NewSource(*seed))
	apps := generateApplications(rng, *count, *suspectRate)

	suspicious := 0
	for _, app := range apps {
		if app.Suspicious {
			suspicious++
		}
	}
	fmt.Printf("\nGenerated %d applications (%d with injected patterns)\n", len(apps), suspicious)

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(apps, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func randomName(rng *rand.Rand) string {
	return firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]
}

// generateApplications builds the labeled synthetic workload. Clean
// applications are modest rural households with complete documents; the
// injected patterns mirror the fraud heuristics the engine screens for.
func generateApplications(rng *rand.Rand, count int, suspectRate float64) []labeledApplication {
	apps := make([]labeledApplication, 0, count)

	for i := 0; i < count; i++ {
		head := randomName(rng)
		children := 1 + rng.Intn(3)
		adultIncome := int64(3000 + rng.Intn(6000))
		spouseIncome := int64(rng.Intn(4000))

		members := []FamilyMember{
			{Name: head, Age: 25 + rng.Intn(20), Relation: "mother", Income: adultIncome},
			{Name: randomName(rng), Age: 27 + rng.Intn(20), Relation: "father", Income: spouseIncome},
		}
		for c := 0; c < children; c++ {
			members = append(members, FamilyMember{
				Name:     randomName(rng),
				Age:      1 + rng.Intn(14),
				Relation: "child",
			})
		}

		app := labeledApplication{
			Request: ApplicationRequest{
				ID:             fmt.Sprintf("bench-%06d", i),
				FamilyHead:     head,
				RegionID:       regionIDs[rng.Intn(len(regionIDs))],
				ChildrenCount:  children,
				FamilyMembers:  members,
				MonthlyIncome:  adultIncome + spouseIncome,
				Documents:      allDocuments,
				SubmissionDate: fmt.Sprintf("2025-06-%02d", 1+rng.Intn(20)),
			},
		}

		if rng.Float64() < suspectRate {
			app.Suspicious = true
			switch rng.Intn(3) {
			case 0:
				app.Pattern = "clone"
				// Resubmit an earlier household under a new ID.
				if len(apps) > 0 {
					prev := apps[rng.Intn(len(apps))]
					app.Request = prev.Request
					app.Request.ID = fmt.Sprintf("bench-%06d", i)
				}
			case 1:
				app.Pattern = "zero-income"
				// Large family, no working adult, nothing declared.
				for m := range app.Request.FamilyMembers {
					app.Request.FamilyMembers[m].Income = 0
				}
				for c := 0; c < 4; c++ {
					app.Request.FamilyMembers = append(app.Request.FamilyMembers, FamilyMember{
						Name:     randomName(rng),
						Age:      1 + rng.Intn(14),
						Relation: "child",
					})
				}
				app.Request.ChildrenCount += 4
				app.Request.MonthlyIncome = 0
			case 2:
				app.Pattern = "late-border"
				// Late filing from a high-incidence region with understated income.
				app.Request.RegionID = "batken"
				app.Request.SubmissionDate = fmt.Sprintf("2025-06-%02d", 26+rng.Intn(4))
				app.Request.MonthlyIncome = 0
				for m := range app.Request.FamilyMembers {
					app.Request.FamilyMembers[m].Income = 0
				}
			}
		}

		apps = append(apps, app)
	}

	return apps
}

func runBenchmark(apps []labeledApplication, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan labeledApplication, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for app := range work {
				start := time.Now()
				result, err := processApplication(client, baseURL, app.Request)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", app.Request.ID, err)
					}
					continue
				}

				if app.Suspicious {
					atomic.AddInt64(&metrics.TotalSuspicious, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				flagged := result.Result.Action == "review_required" ||
					result.Result.Action == "field_inspection"
				actual := app.Suspicious

				switch {
				case flagged && actual:
					atomic.AddInt64(&metrics.TruePositives, 1)
				case flagged && !actual:
					atomic.AddInt64(&metrics.FalsePositives, 1)
				case !flagged && !actual:
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				default:
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "ok  "
					if flagged != actual {
						status = "miss"
					}
					fmt.Printf("%s %-12s | pattern: %-11s | action: %-16s | risk: %3d | dup: %v\n",
						status,
						app.Request.ID,
						app.Pattern,
						result.Result.Action,
						result.Result.RiskScore,
						result.Result.DuplicateRisk,
					)
				}
			}
		}()
	}

	for _, app := range apps {
		work <- app
	}
	close(work)

	wg.Wait()

	return metrics
}

func processApplication(client *http.Client, baseURL string, req ApplicationRequest) (*ProcessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ProcessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nWORKLOAD\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Suspicious:       %d\n", m.TotalSuspicious)
	fmt.Printf("   Clean:            %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Printf("   Flagged suspicious:   %8d   Missed suspicious:  %8d\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("   Flagged clean:        %8d   Passed clean:       %8d\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	fmt.Printf("\nSCREENING METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged, how many had injected patterns)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of injected patterns, how many were flagged)\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		aps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f apps/sec\n", aps)
	}

	fmt.Println()
}
