package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/openwelfare/ubk/internal/bus"
	"github.com/openwelfare/ubk/internal/cache"
	"github.com/openwelfare/ubk/internal/domain"
	"github.com/openwelfare/ubk/internal/engine"
	"github.com/openwelfare/ubk/internal/regions"
	"github.com/openwelfare/ubk/internal/repository"
	"github.com/openwelfare/ubk/internal/rules"
)

// createTestServer wires a full Community-tier stack: temp SQLite,
// in-process LRU cache, channel bus.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "ubk-api-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := cache.NewLRUCache(100)
	t.Cleanup(func() { c.Close() })

	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	registry := regions.NewRegistry(repo, c)
	orchestrator := engine.NewOrchestrator(domain.DefaultPolicy(), registry, engine.NewReferenceStore())

	rulesEngine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("failed to create rules engine: %v", err)
	}
	orchestrator.SetScreener(rulesEngine)

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, repo, c, eventBus, orchestrator, rulesEngine, "test-v1")
}

func testRequest() domain.ApplicationRequest {
	return domain.ApplicationRequest{
		ID:         "app-api-001",
		FamilyHead: "Aigul Asanova",
		RegionID:   "naryn",
		FamilyMembers: []domain.FamilyMember{
			{Name: "Aigul Asanova", Age: 34, Relation: "mother", Income: 9000},
			{Name: "Bakyt Asanov", Age: 36, Relation: "father", Income: 3000},
			{Name: "Nurlan Asanov", Age: 8, Relation: "child"},
			{Name: "Aida Asanova", Age: 5, Relation: "child"},
		},
		ChildrenCount: 2,
		MonthlyIncome: 12000,
		Documents: []string{
			"birth_certificates",
			"income_declaration",
			"residence_certificate",
		},
		SubmissionDate: "2025-03-10",
	}
}

func postJSON(t *testing.T, server *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(data))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestProcessEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulProcess", func(t *testing.T) {
		rr := postJSON(t, server, "/process", testRequest())

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ProcessResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.Result == nil {
			t.Fatal("expected result in response")
		}
		if resp.Result.Action != domain.ActionAutoApprove {
			t.Errorf("expected auto_approve, got %s", resp.Result.Action)
		}
		if resp.Result.BenefitAmount != 2760 {
			t.Errorf("expected benefit 2760, got %d", resp.Result.BenefitAmount)
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("GeneratesIDWhenMissing", func(t *testing.T) {
		req := testRequest()
		req.ID = ""
		rr := postJSON(t, server, "/process", req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ProcessResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Result.ApplicationID == "" {
			t.Error("expected generated application id")
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/process", bytes.NewBufferString("not-json"))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingRegion", func(t *testing.T) {
		req := testRequest()
		req.RegionID = ""
		rr := postJSON(t, server, "/process", req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownRegion", func(t *testing.T) {
		req := testRequest()
		req.RegionID = "atlantis"
		rr := postJSON(t, server, "/process", req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestBatchEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulBatch", func(t *testing.T) {
		first := testRequest()
		first.ID = "batch-a"
		second := testRequest()
		second.ID = "batch-b"
		second.FamilyHead = "Gulnara Toktogulova"
		second.FamilyMembers = []domain.FamilyMember{
			{Name: "Gulnara Toktogulova", Age: 41, Relation: "mother", Income: 11000},
			{Name: "Timur Toktogulov", Age: 12, Relation: "child"},
		}
		second.ChildrenCount = 1
		second.MonthlyIncome = 11000
		second.RegionID = "bishkek"

		rr := postJSON(t, server, "/batch", []domain.ApplicationRequest{first, second})

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp BatchResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if len(resp.Results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(resp.Results))
		}
		if resp.Stats.Total != 2 {
			t.Errorf("expected stats total 2, got %d", resp.Stats.Total)
		}
		if _, ok := resp.Results["batch-a"]; !ok {
			t.Error("expected result for batch-a")
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		rr := postJSON(t, server, "/batch", []domain.ApplicationRequest{})

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRetrievalEndpoints(t *testing.T) {
	server := createTestServer(t)

	rr := postJSON(t, server, "/process", testRequest())
	if rr.Code != http.StatusOK {
		t.Fatalf("setup process failed: %d: %s", rr.Code, rr.Body.String())
	}
	var resp ProcessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	t.Run("GetApplication", func(t *testing.T) {
		rr := get(t, server, "/applications/app-api-001")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var app domain.Application
		if err := json.Unmarshal(rr.Body.Bytes(), &app); err != nil {
			t.Fatalf("failed to parse application: %v", err)
		}
		if app.FamilyHead != "Aigul Asanova" {
			t.Errorf("expected family head Aigul Asanova, got %s", app.FamilyHead)
		}
	})

	t.Run("GetApplicationNotFound", func(t *testing.T) {
		rr := get(t, server, "/applications/no-such-app")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("GetResult", func(t *testing.T) {
		rr := get(t, server, "/results/"+resp.Result.ID)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var result domain.ProcessingResult
		if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
			t.Fatalf("failed to parse result: %v", err)
		}
		if result.ApplicationID != "app-api-001" {
			t.Errorf("expected application id app-api-001, got %s", result.ApplicationID)
		}
	})

	t.Run("GetResultNotFound", func(t *testing.T) {
		rr := get(t, server, "/results/no-such-result")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestRegionEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("ListSeededRegions", func(t *testing.T) {
		rr := get(t, server, "/regions")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Regions []*domain.Region `json:"regions"`
			Count   int              `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != len(domain.DefaultRegions()) {
			t.Errorf("expected %d regions, got %d", len(domain.DefaultRegions()), resp.Count)
		}
	})

	t.Run("SaveRegion", func(t *testing.T) {
		rr := postJSON(t, server, "/regions", domain.Region{
			ID:          "alai",
			Name:        "Alai",
			Type:        domain.RegionMountainous,
			Coefficient: 1.15,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		// The new region is immediately usable for processing.
		req := testRequest()
		req.ID = "app-alai-001"
		req.RegionID = "alai"
		procRR := postJSON(t, server, "/process", req)
		if procRR.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", procRR.Code, procRR.Body.String())
		}
	})

	t.Run("RejectsLowCoefficient", func(t *testing.T) {
		rr := postJSON(t, server, "/regions", domain.Region{
			ID:          "bad",
			Name:        "Bad",
			Coefficient: 0.5,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRuleEndpoints(t *testing.T) {
	server := createTestServer(t)

	rule := domain.ScreeningRule{
		ID:         "screen-round-income",
		Name:       "Round income",
		Expression: "declared_income > 0.0 && int(declared_income) % 1000 == 0",
		Weight:     10,
		Reason:     "declared income is a round number",
		Enabled:    true,
	}

	t.Run("CreateRule", func(t *testing.T) {
		rr := postJSON(t, server, "/rules", rule)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("ListRules", func(t *testing.T) {
		rr := get(t, server, "/rules")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp struct {
			Rules []*domain.ScreeningRule `json:"rules"`
			Count int                     `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Fatalf("expected 1 loaded rule, got %d", resp.Count)
		}
		if resp.Rules[0].ID != rule.ID {
			t.Errorf("expected rule %s, got %s", rule.ID, resp.Rules[0].ID)
		}
	})

	t.Run("GetRule", func(t *testing.T) {
		rr := get(t, server, "/rules/"+rule.ID)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("InvalidExpression", func(t *testing.T) {
		bad := rule
		bad.ID = "screen-bad"
		bad.Expression = "family_size >"
		rr := postJSON(t, server, "/rules", bad)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadRules", func(t *testing.T) {
		rr := postJSON(t, server, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("expected 1 rule after reload, got %d", resp.Count)
		}
	})

	t.Run("DeleteRule", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/rules/"+rule.ID, nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		getRR := get(t, server, "/rules/"+rule.ID)
		if getRR.Code != http.StatusNotFound {
			t.Errorf("expected status 404 after delete, got %d", getRR.Code)
		}
	})

	t.Run("DeleteUnknownRule", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/rules/no-such-rule", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestReferenceReload(t *testing.T) {
	server := createTestServer(t)

	rr := postJSON(t, server, "/process", testRequest())
	if rr.Code != http.StatusOK {
		t.Fatalf("setup process failed: %d: %s", rr.Code, rr.Body.String())
	}

	reloadRR := postJSON(t, server, "/reference/reload", nil)
	if reloadRR.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", reloadRR.Code, reloadRR.Body.String())
	}

	var reload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(reloadRR.Body.Bytes(), &reload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if reload.Count != 1 {
		t.Fatalf("expected 1 reference application, got %d", reload.Count)
	}

	// A near-identical resubmission is now flagged as a duplicate.
	clone := testRequest()
	clone.ID = "app-api-002"
	cloneRR := postJSON(t, server, "/process", clone)
	if cloneRR.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", cloneRR.Code, cloneRR.Body.String())
	}

	var resp ProcessResponse
	if err := json.Unmarshal(cloneRR.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Result.DuplicateRisk {
		t.Error("expected duplicate risk on resubmission")
	}
	if resp.Result.Action != domain.ActionReviewRequired {
		t.Errorf("expected review_required, got %s", resp.Result.Action)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := createTestServer(t)

	rr := postJSON(t, server, "/process", testRequest())
	if rr.Code != http.StatusOK {
		t.Fatalf("setup process failed: %d: %s", rr.Code, rr.Body.String())
	}

	t.Run("Aggregates", func(t *testing.T) {
		rr := get(t, server, "/stats")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var stats domain.ProcessingStats
		if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
			t.Fatalf("failed to parse stats: %v", err)
		}
		if stats.Total != 1 {
			t.Errorf("expected total 1, got %d", stats.Total)
		}
		if stats.AutoApproved != 1 {
			t.Errorf("expected 1 auto-approved, got %d", stats.AutoApproved)
		}
		if stats.TotalBenefitAmount != 2760 {
			t.Errorf("expected total benefit 2760, got %d", stats.TotalBenefitAmount)
		}
	})

	t.Run("LatestVerdictWins", func(t *testing.T) {
		// A reprocessed application has several stored results; only the
		// newest one may count toward the aggregates.
		repo := server.Handler().repo
		ctx := context.Background()
		now := time.Now().UTC()

		older := &domain.ProcessingResult{
			ID:            "stat-res-old",
			ApplicationID: "app-reprocessed",
			Eligible:      true,
			RiskScore:     10,
			RiskLevel:     domain.RiskLow,
			BenefitAmount: 2760,
			Action:        domain.ActionAutoApprove,
			Reasons:       []string{"all automated checks passed"},
			Timestamp:     now.Add(-time.Hour),
		}
		newer := &domain.ProcessingResult{
			ID:            "stat-res-new",
			ApplicationID: "app-reprocessed",
			Eligible:      true,
			RiskScore:     45,
			RiskLevel:     domain.RiskMedium,
			BenefitAmount: 2760,
			Action:        domain.ActionReviewRequired,
			Reasons:       []string{"medium risk level requires manual review"},
			Timestamp:     now,
		}
		if err := repo.SaveResult(ctx, older); err != nil {
			t.Fatalf("failed to save result: %v", err)
		}
		if err := repo.SaveResult(ctx, newer); err != nil {
			t.Fatalf("failed to save result: %v", err)
		}

		rr := get(t, server, "/stats")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var stats domain.ProcessingStats
		if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
			t.Fatalf("failed to parse stats: %v", err)
		}
		if stats.Total != 2 {
			t.Errorf("expected total 2, got %d", stats.Total)
		}
		if stats.ReviewRequired != 1 {
			t.Errorf("expected 1 review_required, got %d", stats.ReviewRequired)
		}
		if stats.AutoApproved != 1 {
			t.Errorf("expected 1 auto_approved, got %d", stats.AutoApproved)
		}
	})

	t.Run("BadSinceParameter", func(t *testing.T) {
		rr := get(t, server, "/stats?since=yesterday")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rr := get(t, server, "/health")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		rr := get(t, server, "/ready")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})
}
