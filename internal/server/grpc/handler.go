package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/vaxsync/internal/common"
	pb "github.com/dmitrijs2005/vaxsync/internal/proto"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
	"github.com/dmitrijs2005/vaxsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/vaxsync/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func recordToWire(r models.Record) pb.Record {
	return pb.Record{Key: r.ID, Version: r.Version, UpdatedAt: r.UpdatedAt, Fields: r.Fields}
}

func recordsToWire(rs []models.Record) []pb.Record {
	out := make([]pb.Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, recordToWire(r))
	}
	return out
}

// toStatus maps service errors onto gRPC codes the client classifies.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorUnknownField),
		errors.Is(err, common.ErrorIncorrectMetadata),
		errors.Is(err, records.ErrUnknownCollection),
		errors.Is(err, records.ErrNotIndexed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

// decode reads the request and the caller's guardian id.
func decode(ctx context.Context, in *structpb.Struct, req any) (string, error) {
	guardianID, ok := guardianFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "unauthenticated")
	}
	if err := pb.Decode(in, req); err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	return guardianID, nil
}

func encode(resp any) (*structpb.Struct, error) {
	out, err := pb.Encode(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(pb.PingResponse{Status: "OK", Time: time.Now().UTC()})
}

func (s *GRPCServer) Fetch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.FetchRequest
	guardianID, err := decode(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.Fetch(ctx, guardianID, models.Collection(req.Collection), req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.RecordResponse{Record: recordToWire(*rec)})
}

func (s *GRPCServer) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.ListRequest
	guardianID, err := decode(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	recs, err := s.records.List(ctx, guardianID, models.Collection(req.Collection))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.RecordsResponse{Records: recordsToWire(recs)})
}

func (s *GRPCServer) Query(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.QueryRequest
	guardianID, err := decode(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	recs, err := s.records.Query(ctx, guardianID, models.Collection(req.Collection), req.IndexField, req.Value)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.RecordsResponse{Records: recordsToWire(recs)})
}

func (s *GRPCServer) SubmitMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.SubmitMessageRequest
	guardianID, err := decode(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		ConversationID: req.Message.ConversationID,
		GuardianID:     req.Message.GuardianID,
		Body:           req.Message.Body,
		ComposedAt:     req.Message.ComposedAt,
	}
	stored, duplicate, err := s.records.SubmitMessage(ctx, guardianID, req.ID, msg)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.Delivery{
		MessageID:   stored.ID,
		ServerID:    stored.ServerID,
		DeliveredAt: stored.DeliveredAt,
		Duplicate:   duplicate,
	})
}

func (s *GRPCServer) ApplyProfileEdit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.ApplyProfileEditRequest
	guardianID, err := decode(ctx, in, &req)
	if err != nil {
		return nil, err
	}

	edit := services.ProfileEdit{
		Collection: models.Collection(req.Edit.Collection),
		EntityID:   req.Edit.EntityID,
		Changes:    req.Edit.Changes,
	}
	rec, err := s.records.ApplyProfileEdit(ctx, guardianID, req.ID, edit)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return encode(pb.RecordResponse{Record: recordToWire(*rec)})
}
