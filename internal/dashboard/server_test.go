package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/deskhand/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestStart_NilDB(t *testing.T) {
	err := Start(context.Background(), StartOpts{DB: nil})
	if err == nil {
		t.Fatal("expected error for nil db")
	}
	if !strings.Contains(err.Error(), "db is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db is required")
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	data, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		t.Fatalf("index.html not embedded: %v", err)
	}
	if !strings.Contains(string(data), "Deskhand") {
		t.Error("index.html does not contain 'Deskhand'")
	}
}

// findFreePort finds an available port for testing.
func findFreePort() int {
	// Use a high port range unlikely to conflict.
	return 18080 + int(time.Now().UnixNano()%1000)
}

func strPtr(s string) *string { return &s }

// seedDB creates an in-memory store with three requests in mixed states.
func seedDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named shared in-memory DB keeps the data visible across the
	// connection pool that serves concurrent HTTP handlers.
	dsn := fmt.Sprintf("file:dash%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Request{}, &models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := []models.Request{
		{SubmitterID: "U1", SubmitterHandle: "@ivan", SubmitterFullName: strPtr("Ivanov Ivan"),
			Category: "Electrical", Urgency: "Urgent", Location: "Room 204",
			Description: "Light not working", Status: models.StatusNew},
		{SubmitterID: "U2", SubmitterHandle: "@petr",
			Category: "Plumbing", Urgency: "Normal", Location: "Room 5",
			Description: "Tap drips", Status: models.StatusInProgress},
		{SubmitterID: "U1", SubmitterHandle: "@ivan", SubmitterFullName: strPtr("Ivanov Ivan"),
			Category: "Cleaning", Urgency: "Normal", Location: "Lobby",
			Description: "Dusty", Status: models.StatusDone},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db
}

// startTestServer runs a dashboard over a seeded DB and returns its base URL.
func startTestServer(t *testing.T) string {
	t.Helper()
	db := seedDB(t)
	port := findFreePort()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- Start(ctx, StartOpts{DB: db, Port: port})
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("server exited with: %v", err)
		}
	})

	baseURL := fmt.Sprintf("http://localhost:%d", port)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/api/requests")
		if err == nil {
			resp.Body.Close()
			return baseURL
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("server did not come up")
	return ""
}

func getBody(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIndex_RendersRequestTable(t *testing.T) {
	baseURL := startTestServer(t)

	code, html := getBody(t, baseURL+"/")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	for _, want := range []string{"Ivanov Ivan", "Room 204", "Tap drips", "in_progress"} {
		if !strings.Contains(html, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestIndex_StatusFilter(t *testing.T) {
	baseURL := startTestServer(t)

	code, html := getBody(t, baseURL+"/?status=done")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if !strings.Contains(html, "Dusty") {
		t.Error("filtered page missing the done request")
	}
	if strings.Contains(html, "Tap drips") {
		t.Error("filtered page leaks an in-progress request")
	}
}

func TestAPIRequests_ListsAll(t *testing.T) {
	baseURL := startTestServer(t)

	code, body := getBody(t, baseURL+"/api/requests")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var payload struct {
		Requests []RequestRow `json:"requests"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Requests) != 3 {
		t.Fatalf("requests = %d, want 3", len(payload.Requests))
	}
	// Newest first.
	if payload.Requests[0].Description != "Dusty" {
		t.Errorf("first request = %q, want newest", payload.Requests[0].Description)
	}
	// Full name preferred over handle.
	if payload.Requests[0].Submitter != "Ivanov Ivan" {
		t.Errorf("Submitter = %q", payload.Requests[0].Submitter)
	}
}

func TestAPIRequests_StatusFilter(t *testing.T) {
	baseURL := startTestServer(t)

	code, body := getBody(t, baseURL+"/api/requests?status=new")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var payload struct {
		Requests []RequestRow `json:"requests"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(payload.Requests) != 1 || payload.Requests[0].Status != "new" {
		t.Errorf("payload = %+v, want exactly the new request", payload.Requests)
	}
}

func TestAPIRequestDetail(t *testing.T) {
	baseURL := startTestServer(t)

	code, body := getBody(t, baseURL+"/api/requests/1")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var req RequestRow
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.ID != 1 || req.Location != "Room 204" {
		t.Errorf("request = %+v", req)
	}
}

func TestAPIRequestDetail_NotFound(t *testing.T) {
	baseURL := startTestServer(t)

	code, _ := getBody(t, baseURL+"/api/requests/999")
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestAPIRequestDetail_BadID(t *testing.T) {
	baseURL := startTestServer(t)

	code, _ := getBody(t, baseURL+"/api/requests/abc")
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestStatusSummary(t *testing.T) {
	db := seedDB(t)

	counts, err := StatusSummary(db)
	if err != nil {
		t.Fatalf("StatusSummary: %v", err)
	}
	want := map[string]int64{"new": 1, "in_progress": 1, "done": 1, "rejected": 0}
	if len(counts) != 4 {
		t.Fatalf("counts = %d, want 4 statuses", len(counts))
	}
	for _, c := range counts {
		if want[c.Status] != c.Count {
			t.Errorf("count[%s] = %d, want %d", c.Status, c.Count, want[c.Status])
		}
	}
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		name string
		when time.Time
		want string
	}{
		{"zero", time.Time{}, "—"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m ago"},
		{"hours", time.Now().Add(-3 * time.Hour), "3h ago"},
		{"days", time.Now().Add(-48 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeAgo(tt.when); got != tt.want {
				t.Errorf("TimeAgo = %q, want %q", got, tt.want)
			}
		})
	}
}
