package grpc

import (
	"context"

	"github.com/go-logr/logr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"semaphore/auth-session/internal/auth"
	"semaphore/auth-session/internal/model"
)

const (
	SessionServiceName = "semaphore.auth.v1.SessionService"
	introspectMethod   = "/" + SessionServiceName + "/Introspect"
	healthCheckMethod  = "/grpc.health.v1.Health/Check"
)

// SessionIntrospector resolves a session token for sibling services.
type SessionIntrospector interface {
	Introspect(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
}

// IdentityResolver is satisfied by *auth.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (model.Identity, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*SessionIntrospector)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func introspectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionIntrospector).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: introspectMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionIntrospector).Introspect(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func RegisterSessionServer(s *grpc.Server, srv SessionIntrospector) {
	s.RegisterService(&sessionServiceDesc, srv)
}

type SessionServer struct {
	resolver IdentityResolver
	log      logr.Logger
}

func NewSessionServer(resolver IdentityResolver, log logr.Logger) *SessionServer {
	return &SessionServer{resolver: resolver, log: log}
}

// Introspect answers {"active": false} for anonymous tokens so callers
// need no error handling for the common case.
func (s *SessionServer) Introspect(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error) {
	if token.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "token required")
	}
	identity, err := s.resolver.Resolve(ctx, token.GetValue())
	if err != nil {
		if auth.IsAnonymous(err) {
			return structpb.NewStruct(map[string]interface{}{"active": false})
		}
		s.log.Error(err, "introspection failed")
		return nil, status.Error(codes.Unavailable, "identity lookup failed")
	}
	return identityStruct(identity)
}

func identityStruct(identity model.Identity) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"active": true,
		"id":     identity.ID,
		"email":  identity.Email,
		"role":   identity.Role.String(),
	}
	if identity.FirstName != nil {
		fields["firstName"] = *identity.FirstName
	}
	if identity.LastName != nil {
		fields["lastName"] = *identity.LastName
	}
	return structpb.NewStruct(fields)
}

// NewServer builds the gRPC server with health reporting and the session
// service. An empty serviceToken leaves the session service unauthenticated.
func NewServer(resolver IdentityResolver, serviceToken string, log logr.Logger) (*grpc.Server, *health.Server, error) {
	var opts []grpc.ServerOption
	if serviceToken != "" {
		interceptor, err := NewServiceAuthUnaryInterceptor(serviceToken, healthCheckMethod)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.UnaryInterceptor(interceptor))
	}

	server := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	RegisterSessionServer(server, NewSessionServer(resolver, log))
	healthServer.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)
	return server, healthServer, nil
}
