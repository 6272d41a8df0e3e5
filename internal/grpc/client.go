package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"semaphore/auth-session/internal/access"
	"semaphore/auth-session/internal/model"
)

// SessionClient calls the session service of a running auth-session.
type SessionClient struct {
	conn *grpc.ClientConn
}

func Dial(ctx context.Context, addr, serviceToken string, timeout time.Duration, extra ...grpc.DialOption) (*SessionClient, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if serviceToken != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(serviceAuthUnaryClientInterceptor(serviceToken)))
	}
	conn, err := grpc.DialContext(ctx, addr, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	return &SessionClient{conn: conn}, nil
}

func (c *SessionClient) Close() error {
	return c.conn.Close()
}

// Introspect returns nil without error for anonymous tokens.
func (c *SessionClient) Introspect(ctx context.Context, token string) (*model.Identity, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, introspectMethod, wrapperspb.String(token), out); err != nil {
		return nil, err
	}
	fields := out.GetFields()
	if !fields["active"].GetBoolValue() {
		return nil, nil
	}

	role, err := access.ParseRole(fields["role"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("introspect: %w", err)
	}
	identity := &model.Identity{
		ID:       fields["id"].GetStringValue(),
		Email:    fields["email"].GetStringValue(),
		Role:     role,
		IsActive: true,
	}
	if v, ok := fields["firstName"]; ok {
		name := v.GetStringValue()
		identity.FirstName = &name
	}
	if v, ok := fields["lastName"]; ok {
		name := v.GetStringValue()
		identity.LastName = &name
	}
	return identity, nil
}
