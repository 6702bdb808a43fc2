package grpcweb

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"lexcal-scheduler/internal/auth"
	"lexcal-scheduler/internal/grpcapi"
	"lexcal-scheduler/internal/middleware"
	"lexcal-scheduler/internal/model"
	"lexcal-scheduler/internal/schedule"
	"lexcal-scheduler/internal/store/sqlite"
)

const secret = "test-secret"

func setup(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)
	logger := log.New(io.Discard)
	svc := schedule.New(st, schedule.Config{Logger: logger})

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(middleware.Auth(secret)))
	grpcapi.Register(srv, grpcapi.New(svc))
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	hs := httptest.NewServer(New(conn, grpcapi.ServiceName, logger))
	t.Cleanup(hs.Close)
	return hs
}

// post sends one grpc-web call and returns the data frame (if any) and the
// trailer text.
func post(t *testing.T, hs *httptest.Server, method, token string, req map[string]any) ([]byte, string) {
	t.Helper()
	msg, err := structpb.NewStruct(req)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := proto.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	hr, _ := http.NewRequest(http.MethodPost, hs.URL+grpcapi.FullMethod(method), bytes.NewReader(frame(0x00, payload)))
	hr.Header.Set("Content-Type", "application/grpc-web+proto")
	if token != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(hr)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var data []byte
	var trailer string
	for len(body) >= 5 {
		n := binary.BigEndian.Uint32(body[1:5])
		chunk := body[5 : 5+n]
		if body[0]&0x80 != 0 {
			trailer = string(chunk)
		} else {
			data = chunk
		}
		body = body[5+n:]
	}
	return data, trailer
}

func TestBridgeForwardsCalls(t *testing.T) {
	hs := setup(t)
	tok, _ := auth.MakeToken("C", model.RoleClient, secret)

	data, trailer := post(t, hs, "RequestAppointment", tok, map[string]any{
		"lawyerId": "L", "clientId": "C", "start": "2025-11-03T10:00:00Z",
	})
	if !strings.Contains(trailer, "grpc-status:0") {
		t.Fatalf("trailer = %q", trailer)
	}
	out := new(structpb.Struct)
	if err := proto.Unmarshal(data, out); err != nil {
		t.Fatal(err)
	}
	if out.GetFields()["status"].GetStringValue() != "pending" {
		t.Errorf("response = %v", out)
	}

	_, trailer = post(t, hs, "RequestAppointment", tok, map[string]any{
		"lawyerId": "L", "clientId": "C", "start": "2025-11-03T10:15:00Z",
	})
	if !strings.Contains(trailer, "grpc-status:6") || !strings.Contains(trailer, "SlotConflict") {
		t.Errorf("conflict trailer = %q", trailer)
	}

	_, trailer = post(t, hs, "ListForLawyer", "", map[string]any{"lawyerId": "L"})
	if !strings.Contains(trailer, "grpc-status:16") {
		t.Errorf("anonymous trailer = %q", trailer)
	}
}

func TestBridgeRejectsBadRequests(t *testing.T) {
	hs := setup(t)

	resp, err := http.Post(hs.URL+grpcapi.FullMethod("ListForLawyer"), "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("json body: %d", resp.StatusCode)
	}

	if _, err := unframe([]byte{0, 0, 0, 0, 9, 1}); err == nil {
		t.Error("short frame accepted")
	}
	if _, err := unframe([]byte{1, 0, 0, 0, 0}); err == nil {
		t.Error("compressed frame accepted")
	}
}
