package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/dmitrijs2005/notematic/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeVerifier struct{}

func (fakeVerifier) VerifyAccessToken(_ context.Context, token string) (string, error) {
	if token == "good" {
		return "u-1", nil
	}
	return "", common.ErrInvalidToken
}

// helper to build server
func newTestServer() *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), fakeVerifier{}, nil)
}

func withAuth(value string) context.Context {
	md := metadata.New(map[string]string{common.AuthorizationHeaderName: value})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_HealthAllowedWithoutToken(t *testing.T) {
	s := newTestServer()

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: "/notematic.Notes/List"}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	for _, ctx := range []context.Context{context.Background(), withAuth(""), withAuth("Basic abc")} {
		_, err := s.accessTokenInterceptor(ctx, nil, info, h)
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
		}
		if status.Convert(err).Message() != "missing token" {
			t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
		}
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: "/notematic.Notes/List"}

	_, err := s.accessTokenInterceptor(withAuth("Bearer forged"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called for invalid token")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "invalid token" {
		t.Fatalf("unexpected message %q", status.Convert(err).Message())
	}
}

func TestInterceptor_ValidToken_PutsUserID(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: "/notematic.Notes/List"}

	var got string
	_, err := s.accessTokenInterceptor(withAuth("Bearer good"), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got, _ = UserIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "u-1" {
		t.Fatalf("userID = %q, want u-1", got)
	}
}

func TestUserIDFromContext_Absent(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Fatal("expected no user id")
	}
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}
	boom := errors.New("boom")

	resp, err := s.loggingInterceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", boom
	})
	if resp != "resp" || !errors.Is(err, boom) {
		t.Fatalf("got (%v, %v)", resp, err)
	}
}
