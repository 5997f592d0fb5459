package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	pb "github.com/dmitrijs2005/vaxsync/internal/proto"
	"github.com/go-resty/resty/v2"
)

// IdempotencyKeyHeader carries the queue id of a submitted message.
const IdempotencyKeyHeader = "Idempotency-Key"

// REST routes served by the HTTP mirror of the Records service.
const (
	RoutePing         = "/v1/ping"
	RouteCollection   = "/v1/records/{collection}"
	RouteRecord       = "/v1/records/{collection}/{id}"
	RouteMessages     = "/v1/messages"
	RouteProfileEdits = "/v1/profile-edits"
)

// ErrorResponse is the body of a non-2xx REST response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RESTClient implements Client over HTTP/JSON.
type RESTClient struct {
	http *resty.Client
}

// NewRESTClient returns a client for baseURL. Retries are left to the sync
// coordinator, so resty's own retry loop stays off.
func NewRESTClient(baseURL, accessToken string, timeout time.Duration) *RESTClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if accessToken != "" {
		c.SetAuthToken(accessToken)
	}
	return &RESTClient{http: c}
}

func (c *RESTClient) request(ctx context.Context, result any) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&ErrorResponse{})
}

func (c *RESTClient) Ping(ctx context.Context) error {
	var out pb.PingResponse
	resp, err := c.request(ctx, &out).Get(RoutePing)
	if err := mapHTTPError(resp, err); err != nil {
		return err
	}
	if out.Status != "OK" {
		return fmt.Errorf("%w: status %q", ErrTransientNetwork, out.Status)
	}
	return nil
}

func (c *RESTClient) Fetch(ctx context.Context, col models.Collection, id string) (models.Record, error) {
	var out pb.RecordResponse
	resp, err := c.request(ctx, &out).
		SetPathParams(map[string]string{"collection": string(col), "id": id}).
		Get(RouteRecord)
	if err := mapHTTPError(resp, err); err != nil {
		return models.Record{}, err
	}
	return recordFromWire(out.Record), nil
}

func (c *RESTClient) List(ctx context.Context, col models.Collection) ([]models.Record, error) {
	var out pb.RecordsResponse
	resp, err := c.request(ctx, &out).
		SetPathParam("collection", string(col)).
		Get(RouteCollection)
	if err := mapHTTPError(resp, err); err != nil {
		return nil, err
	}
	return recordsFromWire(out.Records), nil
}

func (c *RESTClient) Query(ctx context.Context, col models.Collection, indexField, value string) ([]models.Record, error) {
	var out pb.RecordsResponse
	resp, err := c.request(ctx, &out).
		SetPathParam("collection", string(col)).
		SetQueryParams(map[string]string{"index": indexField, "value": value}).
		Get(RouteCollection)
	if err := mapHTTPError(resp, err); err != nil {
		return nil, err
	}
	return recordsFromWire(out.Records), nil
}

func (c *RESTClient) SubmitMessage(ctx context.Context, id string, msg models.MessagePayload) (models.DeliveryResult, error) {
	var out pb.Delivery
	resp, err := c.request(ctx, &out).
		SetHeader(IdempotencyKeyHeader, id).
		SetBody(pb.SubmitMessageRequest{ID: id, Message: messageToWire(msg)}).
		Post(RouteMessages)
	if err := mapHTTPError(resp, err); err != nil {
		return models.DeliveryResult{}, err
	}
	return deliveryFromWire(out), nil
}

func (c *RESTClient) ApplyProfileEdit(ctx context.Context, id string, edit models.ProfileEdit) (models.Record, error) {
	var out pb.RecordResponse
	resp, err := c.request(ctx, &out).
		SetHeader(IdempotencyKeyHeader, id).
		SetBody(pb.ApplyProfileEditRequest{ID: id, Edit: editToWire(edit)}).
		Post(RouteProfileEdits)
	if err := mapHTTPError(resp, err); err != nil {
		return models.Record{}, err
	}
	return recordFromWire(out.Record), nil
}

func (c *RESTClient) Close() error {
	return nil
}

func mapHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransientNetwork, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := http.StatusText(resp.StatusCode())
	if e, ok := resp.Error().(*ErrorResponse); ok && e.Error != "" {
		msg = e.Error
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrNotFound, msg)
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %d %s", ErrTransientNetwork, code, msg)
	default:
		return fmt.Errorf("%w: %d %s", ErrValidation, code, msg)
	}
}
