package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"powertrust/internal/core"
)

// AllViews asks the worker to render every view.
const AllViews = "all"

// ExportRequest asks the worker to render one view (or all of them) with the
// given filters into the export directory.
type ExportRequest struct {
	ID          string       `json:"id"`
	View        string       `json:"view"`
	Filters     core.Filters `json:"filters"`
	RequestedAt time.Time    `json:"requested_at"`
}

var ErrInvalidRequest = errors.New("invalid export request")

// ErrPermanent marks handler errors that will fail again on redelivery.
var ErrPermanent = errors.New("permanent failure")

// validID matches the ids the export processor accepts as file name prefixes.
var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Permanent wraps err so the consumer drops the message instead of requeueing it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// NewExportRequest builds a request stamped with the current time. view is a
// view slug or AllViews.
func NewExportRequest(id, view string, f core.Filters) *ExportRequest {
	return &ExportRequest{
		ID:          id,
		View:        view,
		Filters:     f.Normalize(),
		RequestedAt: time.Now().UTC(),
	}
}

// Views resolves the requested view names.
func (m *ExportRequest) Views() ([]core.View, error) {
	if m.View == "" || m.View == AllViews {
		return core.AllViews(), nil
	}
	v, err := core.ParseView(m.View)
	if err != nil {
		return nil, err
	}
	return []core.View{v}, nil
}

// Validate checks the fields a worker relies on.
func (m *ExportRequest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRequest)
	}
	if !validID.MatchString(m.ID) {
		return fmt.Errorf("%w: id %q must match %s", ErrInvalidRequest, m.ID, validID)
	}
	if _, err := m.Views(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (m *ExportRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportRequestFromJSON decodes and validates a request body.
func ExportRequestFromJSON(data []byte) (*ExportRequest, error) {
	var msg ExportRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
