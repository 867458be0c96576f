package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretimiss/queuematic/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// QueueAuthority is the visitor-facing contract against the remote queue
// authority. All operations are single round-trips; retry policy belongs to
// the polling scheduler, not here.
type QueueAuthority interface {
	Register(ctx context.Context, idCardNumber string) (models.Ticket, error)
	GetStatus(ctx context.Context, queueNumber int) (models.QueueStatusSnapshot, error)
	CheckNotification(ctx context.Context, queueNumber int) (bool, error)
	FindByIDCard(ctx context.Context, idCardNumber string) (models.Ticket, bool, error)
	UpdateStatus(ctx context.Context, queueNumber int, status, nextDepartment string) (bool, error)
}

const (
	actionRegister          = "registerQueue"
	actionGetStatus         = "getQueueStatus"
	actionCheckNotification = "checkNotification"
	actionUpdateStatus      = "updateQueueStatus"
	actionFindByIDCard      = "getQueueByIdCard"
)

type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ValidIDCard reports whether value is exactly 13 numeric characters.
func ValidIDCard(value string) bool {
	if len(value) != 13 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type request struct {
	Action         string `json:"action"`
	IDCardNumber   string `json:"idCardNumber,omitempty"`
	QueueNumber    int    `json:"queueNumber,omitempty"`
	Status         string `json:"status,omitempty"`
	NextDepartment string `json:"nextDepartment,omitempty"`
}

// wireRecord is the authority's queue record shape, camelCase per its contract.
type wireRecord struct {
	ID             string           `json:"id"`
	IDCardNumber   string           `json:"idCardNumber"`
	Timestamp      time.Time        `json:"timestamp"`
	QueueNumber    int              `json:"queueNumber"`
	Status         string           `json:"status"`
	Department     models.TextField `json:"department"`
	NextDepartment models.TextField `json:"nextDepartment"`
}

type wireStatus struct {
	CurrentQueueNumber   int              `json:"currentQueueNumber"`
	YourQueueNumber      int              `json:"yourQueueNumber"`
	Position             models.IntField  `json:"position"`
	WaitingCount         int              `json:"waitingCount"`
	EstimatedTimeMinutes int              `json:"estimatedTimeMinutes"`
	Department           models.TextField `json:"department"`
	NextDepartment       models.TextField `json:"nextDepartment"`
}

func (r wireRecord) ticket() models.Ticket {
	return models.Ticket{
		ID:             r.ID,
		IDCardNumber:   r.IDCardNumber,
		QueueNumber:    r.QueueNumber,
		Status:         r.Status,
		Department:     r.Department,
		NextDepartment: r.NextDepartment,
		CreatedAt:      r.Timestamp,
	}
}

func (c *Client) Register(ctx context.Context, idCardNumber string) (models.Ticket, error) {
	if !ValidIDCard(idCardNumber) {
		return models.Ticket{}, ErrInvalidIDCard
	}

	var record wireRecord
	if err := c.call(ctx, request{Action: actionRegister, IDCardNumber: idCardNumber}, &record); err != nil {
		return models.Ticket{}, err
	}
	if record.QueueNumber <= 0 {
		return models.Ticket{}, netErr(actionRegister, errors.New("authority returned no queue number"))
	}
	return record.ticket(), nil
}

func (c *Client) GetStatus(ctx context.Context, queueNumber int) (models.QueueStatusSnapshot, error) {
	var status wireStatus
	if err := c.call(ctx, request{Action: actionGetStatus, QueueNumber: queueNumber}, &status); err != nil {
		return models.QueueStatusSnapshot{}, err
	}
	return models.QueueStatusSnapshot{
		CurrentQueueNumber:   status.CurrentQueueNumber,
		Position:             status.Position,
		WaitingCount:         status.WaitingCount,
		EstimatedTimeMinutes: status.EstimatedTimeMinutes,
		Department:           status.Department,
		NextDepartment:       status.NextDepartment,
		FetchedAt:            time.Now().UTC(),
	}, nil
}

func (c *Client) CheckNotification(ctx context.Context, queueNumber int) (bool, error) {
	var result struct {
		ShouldNotify bool `json:"shouldNotify"`
	}
	if err := c.call(ctx, request{Action: actionCheckNotification, QueueNumber: queueNumber}, &result); err != nil {
		return false, err
	}
	return result.ShouldNotify, nil
}

// FindByIDCard looks up an existing registration. Absence is a normal result,
// not an error.
func (c *Client) FindByIDCard(ctx context.Context, idCardNumber string) (models.Ticket, bool, error) {
	if !ValidIDCard(idCardNumber) {
		return models.Ticket{}, false, ErrInvalidIDCard
	}

	var record *wireRecord
	if err := c.call(ctx, request{Action: actionFindByIDCard, IDCardNumber: idCardNumber}, &record); err != nil {
		return models.Ticket{}, false, err
	}
	if record == nil || record.QueueNumber <= 0 {
		return models.Ticket{}, false, nil
	}
	return record.ticket(), true, nil
}

func (c *Client) UpdateStatus(ctx context.Context, queueNumber int, status, nextDepartment string) (bool, error) {
	var result struct {
		Success bool `json:"success"`
	}
	req := request{
		Action:         actionUpdateStatus,
		QueueNumber:    queueNumber,
		Status:         status,
		NextDepartment: nextDepartment,
	}
	if err := c.call(ctx, req, &result); err != nil {
		return false, err
	}
	return result.Success, nil
}

func (c *Client) call(ctx context.Context, req request, out interface{}) error {
	body, err := json.Marshal(req)
	if err != nil {
		return netErr(req.Action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return netErr(req.Action, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return netErr(req.Action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return netErr(req.Action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return netErr(req.Action, fmt.Errorf("authority returned status %d", resp.StatusCode))
	}

	// An error field in any payload is a failure, regardless of HTTP status.
	var failure struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &failure); err == nil && failure.Error != "" {
		return netErr(req.Action, errors.New(failure.Error))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return netErr(req.Action, fmt.Errorf("malformed payload: %w", err))
	}
	return nil
}
