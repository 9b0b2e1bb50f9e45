package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zulandar/deskhand/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Request{}, &models.User{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	s, err := New(Opts{DB: db})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func testRequest(submitterID string) models.Request {
	return models.Request{
		SubmitterID: submitterID,
		Category:    "Plumbing",
		Urgency:     "Normal",
		Location:    "2nd floor kitchen",
		Description: "Sink is leaking",
	}
}

func TestNew_NilDB(t *testing.T) {
	_, err := New(Opts{})
	if err == nil {
		t.Fatal("expected error for nil DB")
	}
}

func TestCreate_AssignsMonotonicIDs(t *testing.T) {
	s := openTestStore(t)

	var prev uint
	seen := make(map[uint]bool)
	for i := 0; i < 5; i++ {
		id, err := s.Create(testRequest("U1"))
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestCreate_DefaultsToNew(t *testing.T) {
	s := openTestStore(t)

	// Status supplied by the caller is ignored: every request starts new.
	req := testRequest("U1")
	req.Status = models.StatusDone
	id, err := s.Create(req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var stored models.Request
	if err := s.db.First(&stored, id).Error; err != nil {
		t.Fatalf("load stored: %v", err)
	}
	if stored.Status != models.StatusNew {
		t.Errorf("Status = %q, want %q", stored.Status, models.StatusNew)
	}
}

func TestCreate_MissingFields(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name   string
		mutate func(*models.Request)
		want   string
	}{
		{"no submitter", func(r *models.Request) { r.SubmitterID = "" }, "submitter"},
		{"no category", func(r *models.Request) { r.Category = "" }, "category"},
		{"no urgency", func(r *models.Request) { r.Urgency = "" }, "urgency"},
		{"no location", func(r *models.Request) { r.Location = "" }, "location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest("U1")
			tt.mutate(&req)
			_, err := s.Create(req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err, tt.want)
			}
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.Create(testRequest("U1"))

	if err := s.UpdateStatus(id, models.StatusInProgress); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	var stored models.Request
	s.db.First(&stored, id)
	if stored.Status != models.StatusInProgress {
		t.Errorf("Status = %q, want %q", stored.Status, models.StatusInProgress)
	}
}

func TestUpdateStatus_Idempotent(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.Create(testRequest("U1"))

	if err := s.UpdateStatus(id, models.StatusInProgress); err != nil {
		t.Fatalf("first UpdateStatus: %v", err)
	}
	if err := s.UpdateStatus(id, models.StatusInProgress); err != nil {
		t.Fatalf("repeated UpdateStatus: %v", err)
	}

	var stored models.Request
	s.db.First(&stored, id)
	if stored.Status != models.StatusInProgress {
		t.Errorf("Status = %q, want %q after repeat", stored.Status, models.StatusInProgress)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateStatus(9999, models.StatusDone)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.Create(testRequest("U1"))

	if err := s.UpdateStatus(id, models.Status("bogus")); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestStatusOf(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.Create(testRequest("U1"))

	status, err := s.StatusOf(id)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if status != models.StatusNew {
		t.Errorf("status = %q, want new", status)
	}

	s.UpdateStatus(id, models.StatusDone)
	status, _ = s.StatusOf(id)
	if status != models.StatusDone {
		t.Errorf("status = %q, want done", status)
	}

	if _, err := s.StatusOf(777); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGet(t *testing.T) {
	s := openTestStore(t)
	id, _ := s.Create(testRequest("U7"))

	ref, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ref.SubmitterID != "U7" {
		t.Errorf("SubmitterID = %q, want U7", ref.SubmitterID)
	}
	if ref.Description != "Sink is leaking" {
		t.Errorf("Description = %q, want original text", ref.Description)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListBySubmitter_LastTenNewestFirst(t *testing.T) {
	s := openTestStore(t)

	var ids []uint
	for i := 0; i < 12; i++ {
		req := testRequest("U1")
		req.Description = fmt.Sprintf("issue %d", i)
		id, err := s.Create(req)
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		ids = append(ids, id)
	}
	// Noise from another submitter must not appear.
	if _, err := s.Create(testRequest("U2")); err != nil {
		t.Fatalf("Create other submitter: %v", err)
	}

	reqs, err := s.ListBySubmitter("U1")
	if err != nil {
		t.Fatalf("ListBySubmitter: %v", err)
	}
	if len(reqs) != ListLimit {
		t.Fatalf("len = %d, want %d", len(reqs), ListLimit)
	}
	// Newest first: the 10 most recent of the 12, descending.
	for i, r := range reqs {
		want := ids[len(ids)-1-i]
		if r.ID != want {
			t.Errorf("reqs[%d].ID = %d, want %d", i, r.ID, want)
		}
		if r.SubmitterID != "U1" {
			t.Errorf("reqs[%d].SubmitterID = %q, want U1", i, r.SubmitterID)
		}
	}
}

func TestListActive_ExcludesClosedOldestFirst(t *testing.T) {
	s := openTestStore(t)

	id1, _ := s.Create(testRequest("U1"))
	id2, _ := s.Create(testRequest("U2"))
	id3, _ := s.Create(testRequest("U3"))
	id4, _ := s.Create(testRequest("U4"))

	s.UpdateStatus(id2, models.StatusDone)
	s.UpdateStatus(id3, models.StatusRejected)
	s.UpdateStatus(id4, models.StatusInProgress)

	reqs, err := s.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("len = %d, want 2", len(reqs))
	}
	if reqs[0].ID != id1 || reqs[1].ID != id4 {
		t.Errorf("ids = [%d %d], want [%d %d] (oldest first)", reqs[0].ID, reqs[1].ID, id1, id4)
	}
	for _, r := range reqs {
		if r.Status.Terminal() {
			t.Errorf("request %d has terminal status %q in active list", r.ID, r.Status)
		}
	}
}

func TestFullName_UnknownSubmitter(t *testing.T) {
	s := openTestStore(t)

	name, err := s.FullName("U1")
	if err != nil {
		t.Fatalf("FullName: %v", err)
	}
	if name != "" {
		t.Errorf("name = %q, want empty for unknown submitter", name)
	}
}

func TestSetFullName_RoundTripAndReplace(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetFullName("U1", "Ivanov Ivan"); err != nil {
		t.Fatalf("SetFullName: %v", err)
	}
	name, err := s.FullName("U1")
	if err != nil {
		t.Fatalf("FullName: %v", err)
	}
	if name != "Ivanov Ivan" {
		t.Errorf("name = %q, want Ivanov Ivan", name)
	}

	// Re-registration replaces the remembered name.
	if err := s.SetFullName("U1", "Petrov Petr"); err != nil {
		t.Fatalf("SetFullName replace: %v", err)
	}
	name, _ = s.FullName("U1")
	if name != "Petrov Petr" {
		t.Errorf("name = %q, want Petrov Petr after re-registration", name)
	}

	var count int64
	s.db.Model(&models.User{}).Where("submitter_id = ?", "U1").Count(&count)
	if count != 1 {
		t.Errorf("user rows = %d, want 1 after upsert", count)
	}
}

func TestSetFullName_Validation(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetFullName("", "Name"); err == nil {
		t.Error("expected error for empty submitter")
	}
	if err := s.SetFullName("U1", ""); err == nil {
		t.Error("expected error for empty name")
	}
}
