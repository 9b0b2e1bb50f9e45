package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/deskhand/internal/models"
	"gorm.io/gorm"
)

// RequestRow holds request data shaped for display and the JSON API.
type RequestRow struct {
	ID          uint      `json:"id"`
	Submitter   string    `json:"submitter"`
	Handle      string    `json:"handle,omitempty"`
	Category    string    `json:"category"`
	Urgency     string    `json:"urgency"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	PhotoRef    string    `json:"photo_ref,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRow(r models.Request) RequestRow {
	row := RequestRow{
		ID:          r.ID,
		Handle:      r.SubmitterHandle,
		Category:    r.Category,
		Urgency:     r.Urgency,
		Location:    r.Location,
		Description: r.Description,
		PhotoRef:    r.PhotoRef,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.SubmitterFullName != nil {
		row.Submitter = *r.SubmitterFullName
	} else {
		row.Submitter = r.SubmitterHandle
	}
	return row
}

// ListRequests returns requests newest first, optionally filtered by status.
func ListRequests(db *gorm.DB, status string) ([]RequestRow, error) {
	q := db.Model(&models.Request{}).Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reqs []models.Request
	if err := q.Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("dashboard: list requests: %w", err)
	}
	rows := make([]RequestRow, len(reqs))
	for i, r := range reqs {
		rows[i] = toRow(r)
	}
	return rows, nil
}

// GetRequest returns a single request by id. The bool reports existence.
func GetRequest(db *gorm.DB, id uint) (RequestRow, bool, error) {
	var req models.Request
	err := db.First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RequestRow{}, false, nil
	}
	if err != nil {
		return RequestRow{}, false, fmt.Errorf("dashboard: get request %d: %w", id, err)
	}
	return toRow(req), true, nil
}

// StatusCount holds the number of requests in a single status.
type StatusCount struct {
	Status string
	Count  int64
}

// StatusSummary returns per-status request counts in workflow order.
func StatusSummary(db *gorm.DB) ([]StatusCount, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := db.Model(&models.Request{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("dashboard: status summary: %w", err)
	}

	counts := map[string]int64{}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	order := []models.Status{
		models.StatusNew, models.StatusInProgress, models.StatusDone, models.StatusRejected,
	}
	result := make([]StatusCount, 0, len(order))
	for _, s := range order {
		result = append(result, StatusCount{Status: string(s), Count: counts[string(s)]})
	}
	return result, nil
}

// TimeAgo formats a timestamp as a short relative duration.
func TimeAgo(when time.Time) string {
	if when.IsZero() {
		return "—"
	}
	d := time.Since(when)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
