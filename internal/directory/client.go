package directory

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/driftchat/drift/internal/domain"
)

// Client is the chat-side directory stub. It satisfies the chat service's
// UserDirectory port and maps transport failures onto the shared
// sentinels, so callers never see gRPC status types.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects the stub to the identity service.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial directory: %w", err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }

// GetUser fetches the user as a replica row.
func (c *Client) GetUser(ctx context.Context, id domain.UserID) (domain.UserReplica, error) {
	req := &GetUserRequest{UserID: id.String()}
	resp := new(GetUserResponse)
	err := c.conn.Invoke(ctx, getUserMethod, req, resp)
	switch status.Code(err) {
	case codes.OK:
	case codes.NotFound:
		return domain.UserReplica{}, domain.ErrUserNotFound
	default:
		return domain.UserReplica{}, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	userID, err := domain.ParseUserID(resp.UserID)
	if err != nil {
		return domain.UserReplica{}, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	username, err := domain.NewUsername(resp.Username)
	if err != nil {
		return domain.UserReplica{}, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return domain.UserReplica{
		ID:        userID,
		Username:  username,
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
		SyncedAt:  time.Now().UTC(),
	}, nil
}
