// Package grpc exposes RecordService over the hand-described Records gRPC
// service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/vaxsync/internal/logging"
	pb "github.com/dmitrijs2005/vaxsync/internal/proto"
	"github.com/dmitrijs2005/vaxsync/internal/server/models"
	"github.com/dmitrijs2005/vaxsync/internal/server/services"
	"google.golang.org/grpc"
)

// RecordService is the business API the handlers call.
type RecordService interface {
	Fetch(ctx context.Context, guardianID string, c models.Collection, id string) (*models.Record, error)
	List(ctx context.Context, guardianID string, c models.Collection) ([]models.Record, error)
	Query(ctx context.Context, guardianID string, c models.Collection, field, value string) ([]models.Record, error)
	SubmitMessage(ctx context.Context, guardianID, id string, msg models.Message) (*models.Message, bool, error)
	ApplyProfileEdit(ctx context.Context, guardianID, id string, edit services.ProfileEdit) (*models.Record, error)
}

var _ RecordService = (*services.RecordService)(nil)

type GRPCServer struct {
	address   string
	records   RecordService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(address string, l logging.Logger, rs RecordService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		records:   rs,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterRecordsServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
