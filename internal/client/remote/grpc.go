package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/common"
	pb "github.com/dmitrijs2005/vaxsync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCClient implements Client over the Records gRPC service.
type GRPCClient struct {
	endpointURL string
	accessToken string
	timeout     time.Duration

	conn   *grpc.ClientConn
	client pb.RecordsClient
}

// NewGRPCClient dials endpointURL lazily. A zero timeout leaves deadlines to
// the caller's context.
func NewGRPCClient(endpointURL, accessToken string, timeout time.Duration, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken, timeout: timeout}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewRecordsClient(conn)
	return c, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if c.accessToken != "" {
		ctx = withAccessToken(ctx, c.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (c *GRPCClient) call(ctx context.Context,
	rpc func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error),
	req, resp any) error {

	in, err := pb.Encode(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := rpc(ctx, in)
	if err != nil {
		return mapError(err)
	}
	if resp == nil {
		return nil
	}
	if err := pb.Decode(out, resp); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrTransientNetwork, err)
	}
	return nil
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	var resp pb.PingResponse
	if err := c.call(ctx, c.client.Ping, struct{}{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return fmt.Errorf("%w: status %q", ErrTransientNetwork, resp.Status)
	}
	return nil
}

func (c *GRPCClient) Fetch(ctx context.Context, col models.Collection, id string) (models.Record, error) {
	var resp pb.RecordResponse
	if err := c.call(ctx, c.client.Fetch, pb.FetchRequest{Collection: string(col), ID: id}, &resp); err != nil {
		return models.Record{}, err
	}
	return recordFromWire(resp.Record), nil
}

func (c *GRPCClient) List(ctx context.Context, col models.Collection) ([]models.Record, error) {
	var resp pb.RecordsResponse
	if err := c.call(ctx, c.client.List, pb.ListRequest{Collection: string(col)}, &resp); err != nil {
		return nil, err
	}
	return recordsFromWire(resp.Records), nil
}

func (c *GRPCClient) Query(ctx context.Context, col models.Collection, indexField, value string) ([]models.Record, error) {
	var resp pb.RecordsResponse
	req := pb.QueryRequest{Collection: string(col), IndexField: indexField, Value: value}
	if err := c.call(ctx, c.client.Query, req, &resp); err != nil {
		return nil, err
	}
	return recordsFromWire(resp.Records), nil
}

func (c *GRPCClient) SubmitMessage(ctx context.Context, id string, msg models.MessagePayload) (models.DeliveryResult, error) {
	var resp pb.Delivery
	req := pb.SubmitMessageRequest{ID: id, Message: messageToWire(msg)}
	if err := c.call(ctx, c.client.SubmitMessage, req, &resp); err != nil {
		return models.DeliveryResult{}, err
	}
	return deliveryFromWire(resp), nil
}

func (c *GRPCClient) ApplyProfileEdit(ctx context.Context, id string, edit models.ProfileEdit) (models.Record, error) {
	var resp pb.RecordResponse
	req := pb.ApplyProfileEditRequest{ID: id, Edit: editToWire(edit)}
	if err := c.call(ctx, c.client.ApplyProfileEdit, req, &resp); err != nil {
		return models.Record{}, err
	}
	return recordFromWire(resp.Record), nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTransientNetwork, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", ErrTransientNetwork, err)
	}

	msg := st.Message()
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case codes.NotFound:
		return fmt.Errorf("%w: %w: %s", ErrValidation, ErrNotFound, msg)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists, codes.OutOfRange, codes.Unimplemented:
		return fmt.Errorf("%w: %s", ErrValidation, msg)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal, codes.Canceled, codes.Unknown, codes.DataLoss:
		return fmt.Errorf("%w: %s", ErrTransientNetwork, strings.TrimSpace(st.Code().String()+" "+msg))
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
