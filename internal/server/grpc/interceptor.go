package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/notematic/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userIDKey ctxKey = "userID"

const healthServicePrefix = "/grpc.health.v1.Health/"

// UserIDFromContext returns the id stored by the access token interceptor.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "latency", time.Since(start)}
	if err != nil && code != codes.Unauthenticated {
		s.logger.Error(ctx, "gRPC call failed", append(args, "error", err)...)
	} else {
		s.logger.Debug(ctx, "gRPC call", args...)
	}
	return resp, err
}

// accessTokenInterceptor guards everything except the health service.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
		return handler(ctx, req)
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AuthorizationHeaderName)
		if len(values) > 0 {
			header = values[0]
		}
	}

	accessToken, ok := common.BearerToken(header)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userID, err := s.verifier.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = context.WithValue(ctx, userIDKey, userID)
	return handler(ctx, req)
}
