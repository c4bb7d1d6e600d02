package guard

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/gatewarden/gatewarden/pkg/pipeline"
	"github.com/gatewarden/gatewarden/pkg/realm"
)

// MetadataTokenKey is the incoming gRPC metadata key carrying the sealed
// credential. Metadata values are text, so policies used behind this
// adapter declare base64 transport.
const MetadataTokenKey = "security-token"

// UnaryServerInterceptor returns a gRPC unary interceptor enforcing the
// policy. The credential is read from request metadata; admitted calls
// reach the handler with the authenticated subject in the context.
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ex := pipeline.NewExchange()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(MetadataTokenKey); len(values) > 0 {
				ex.SetHeader(SecurityTokenHeader, values[0])
			}
		}

		if err := i.Apply(ctx, ex); err != nil {
			serr, ok := err.(*SecurityError)
			if !ok {
				return nil, status.Error(codes.Internal, "authentication failed")
			}
			i.logger.Info("rpc denied",
				"method", info.FullMethod,
				"error_code", serr.Code,
			)
			return nil, status.Error(grpcCode(serr), serr.Message)
		}

		if v, ok := ex.Property(SubjectProperty); ok {
			if s, ok := v.(*realm.Session); ok {
				ctx = ContextWithSubject(ctx, s)
			}
		}
		return handler(ctx, req)
	}
}

// grpcCode maps a SecurityError's HTTP status to a gRPC status code.
func grpcCode(serr *SecurityError) codes.Code {
	switch serr.Status {
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden, http.StatusLocked:
		return codes.PermissionDenied
	case http.StatusBadRequest:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}
