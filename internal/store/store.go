// Package store persists maintenance requests and remembered submitter names.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/deskhand/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when an operation references a request id that
// does not exist.
var ErrNotFound = errors.New("store: request not found")

// ListLimit bounds per-submitter request listings.
const ListLimit = 10

// Store is the row-store over the requests and users tables. All operations
// are single-row reads or writes; no cross-row transactions are needed.
type Store struct {
	db *gorm.DB
}

// Opts holds parameters for creating a Store.
type Opts struct {
	DB *gorm.DB
}

// New creates a Store.
func New(opts Opts) (*Store, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &Store{db: opts.DB}, nil
}

// RequestRef is the minimal projection used for submitter notifications.
type RequestRef struct {
	SubmitterID string
	Description string
}

// Create inserts a new request with status "new" and returns the assigned id.
func (s *Store) Create(req models.Request) (uint, error) {
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	req.ID = 0
	req.Status = models.StatusNew

	if err := s.db.Create(&req).Error; err != nil {
		return 0, fmt.Errorf("store: create request: %w", err)
	}
	return req.ID, nil
}

// validateRequest checks the fields a request row cannot be stored without.
func validateRequest(req models.Request) error {
	var missing []string
	if req.SubmitterID == "" {
		missing = append(missing, "submitter")
	}
	if req.Category == "" {
		missing = append(missing, "category")
	}
	if req.Urgency == "" {
		missing = append(missing, "urgency")
	}
	if req.Location == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return fmt.Errorf("store: create request: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// UpdateStatus sets the status for the request matching id. Last write wins;
// re-applying the same status is a harmless overwrite. Returns ErrNotFound
// when no row matches.
func (s *Store) UpdateStatus(id uint, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("store: invalid status %q", status)
	}
	result := s.db.Model(&models.Request{}).Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("store: update status for %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: update status for %d: %w", id, ErrNotFound)
	}
	return nil
}

// StatusOf returns the current status of a request.
func (s *Store) StatusOf(id uint) (models.Status, error) {
	var req models.Request
	err := s.db.Select("status").First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("store: status of %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: status of %d: %w", id, err)
	}
	return req.Status, nil
}

// Get returns the submitter id and description for a request, the fields
// needed to notify the original submitter of a status change.
func (s *Store) Get(id uint) (*RequestRef, error) {
	var req models.Request
	err := s.db.Select("submitter_id", "description").First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: get %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %d: %w", id, err)
	}
	return &RequestRef{SubmitterID: req.SubmitterID, Description: req.Description}, nil
}

// ListBySubmitter returns the submitter's most recent requests, newest
// first, bounded to the last ListLimit.
func (s *Store) ListBySubmitter(submitterID string) ([]models.Request, error) {
	var reqs []models.Request
	err := s.db.Where("submitter_id = ?", submitterID).
		Order("id DESC").Limit(ListLimit).Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list for %s: %w", submitterID, err)
	}
	return reqs, nil
}

// ListActive returns all requests still awaiting triage or completion,
// oldest first so administrators work the queue in arrival order.
func (s *Store) ListActive() ([]models.Request, error) {
	var reqs []models.Request
	err := s.db.Where("status NOT IN ?", []models.Status{models.StatusDone, models.StatusRejected}).
		Order("id ASC").Find(&reqs).Error
	if err != nil {
		return nil, fmt.Errorf("store: list active: %w", err)
	}
	return reqs, nil
}

// FullName returns the remembered full name for a submitter, or the empty
// string when the submitter has never registered one.
func (s *Store) FullName(submitterID string) (string, error) {
	var user models.User
	err := s.db.Where("submitter_id = ?", submitterID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: full name for %s: %w", submitterID, err)
	}
	return user.FullName, nil
}

// SetFullName remembers a submitter's full name. Re-registration replaces
// the previous name.
func (s *Store) SetFullName(submitterID, name string) error {
	if submitterID == "" {
		return fmt.Errorf("store: set full name: submitter is required")
	}
	if name == "" {
		return fmt.Errorf("store: set full name: name is required")
	}

	user := models.User{SubmitterID: submitterID, FullName: name}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submitter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name"}),
	}).Create(&user)
	if result.Error != nil {
		return fmt.Errorf("store: set full name for %s: %w", submitterID, result.Error)
	}
	return nil
}
