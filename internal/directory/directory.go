// Package directory is the cross-service user lookup: a single-method
// gRPC service the identity service exposes and the chat service calls as
// a last resort when its replica misses. The wire types are JSON over a
// registered codec, so the service needs no generated stubs.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/driftchat/drift/internal/domain"
)

const (
	serviceName   = "identity.v1.UserDirectory"
	getUserMethod = "/identity.v1.UserDirectory/GetUser"

	// CodecName is the content subtype both ends agree on.
	CodecName = "json"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GetUserRequest asks for one user by id.
type GetUserRequest struct {
	UserID string `json:"user_id"`
}

// GetUserResponse carries the public slice of a user record.
type GetUserResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserGetter is the identity-side surface the directory serves.
type UserGetter interface {
	Get(ctx context.Context, id domain.UserID) (domain.User, error)
}

// ServiceDesc is the hand-written descriptor for the directory service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*UserGetter)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetUser", Handler: getUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "identity/v1/directory",
}

// Register mounts the directory service on srv.
func Register(srv *grpc.Server, impl UserGetter) {
	srv.RegisterService(&ServiceDesc, impl)
}

func getUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetUserRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return handleGetUser(ctx, srv.(UserGetter), in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getUserMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return handleGetUser(ctx, srv.(UserGetter), req.(*GetUserRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleGetUser(ctx context.Context, users UserGetter, req *GetUserRequest) (*GetUserResponse, error) {
	id, err := domain.ParseUserID(req.UserID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid user id")
	}
	user, err := users.Get(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "user lookup failed")
	}
	return &GetUserResponse{
		UserID:    user.ID.String(),
		Username:  user.Username.String(),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}, nil
}
