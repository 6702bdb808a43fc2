// Package grpcapi exposes the scheduling operations over gRPC. Payloads are
// google.protobuf.Struct values carrying the same JSON documents as the REST
// routes, so no generated stubs are needed.
package grpcapi

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"lexcal-scheduler/internal/apperr"
	"lexcal-scheduler/internal/middleware"
	"lexcal-scheduler/internal/schedule"
)

const ServiceName = "lexcal.scheduling.v1.SchedulingService"

// FullMethod returns the wire name of a method, e.g. for interceptor lists.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

type SchedulingServer interface {
	CreateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListForUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListForLawyer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPendingForLawyer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RespondToRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	svc *schedule.Service
}

var _ SchedulingServer = (*Server)(nil)

func New(svc *schedule.Service) *Server {
	return &Server{svc: svc}
}

func Register(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&serviceDesc, srv)
}

func method(name string, call func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if icpt == nil {
				return call(srv.(SchedulingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return icpt(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		method("CreateAppointment", SchedulingServer.CreateAppointment),
		method("RequestAppointment", SchedulingServer.RequestAppointment),
		method("ListForUser", SchedulingServer.ListForUser),
		method("ListForLawyer", SchedulingServer.ListForLawyer),
		method("ListPendingForLawyer", SchedulingServer.ListPendingForLawyer),
		method("RespondToRequest", SchedulingServer.RespondToRequest),
		method("UpdateAppointment", SchedulingServer.UpdateAppointment),
		method("CancelAppointment", SchedulingServer.CancelAppointment),
		method("DeleteAppointment", SchedulingServer.DeleteAppointment),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lexcal/scheduling/v1/scheduling.proto",
}

type idRequest struct {
	ID string `json:"id"`
}

type listRequest struct {
	UserID   string `json:"userId"`
	LawyerID string `json:"lawyerId"`
}

type respondRequest struct {
	ID string `json:"id"`
	schedule.RespondInput
}

type updateRequest struct {
	ID string `json:"id"`
	schedule.EditInput
}

func (s *Server) CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in schedule.CreateInput
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		a, err := s.svc.Create(ctx, v, in)
		if err != nil {
			return nil, err
		}
		return schedule.FullView(a), nil
	})
}

func (s *Server) RequestAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in schedule.RequestInput
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		a, err := s.svc.Request(ctx, v, in)
		if err != nil {
			return nil, err
		}
		return schedule.FullView(a), nil
	})
}

// ListForUser merges in a lawyer's calendar when lawyerId is set.
func (s *Server) ListForUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listRequest
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		var (
			views []schedule.View
			err   error
		)
		if in.LawyerID != "" {
			views, err = s.svc.CalendarFor(ctx, v, in.UserID, in.LawyerID)
		} else {
			views, err = s.svc.ListForUser(ctx, v, in.UserID)
		}
		return listing(views), err
	})
}

func (s *Server) ListForLawyer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listRequest
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		views, err := s.svc.ListForLawyer(ctx, v, in.LawyerID)
		return listing(views), err
	})
}

func (s *Server) ListPendingForLawyer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listRequest
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		views, err := s.svc.ListPendingForLawyer(ctx, v, in.LawyerID)
		return listing(views), err
	})
}

func (s *Server) RespondToRequest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in respondRequest
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		a, err := s.svc.Respond(ctx, v, in.ID, in.RespondInput)
		if err != nil {
			return nil, err
		}
		return schedule.FullView(a), nil
	})
}

func (s *Server) UpdateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateRequest
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		a, err := s.svc.Update(ctx, v, in.ID, in.EditInput)
		if err != nil {
			return nil, err
		}
		return schedule.FullView(a), nil
	})
}

func (s *Server) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		a, err := s.svc.Cancel(ctx, v, in.ID)
		if err != nil {
			return nil, err
		}
		return schedule.FullView(a), nil
	})
}

func (s *Server) DeleteAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	return s.handle(ctx, req, &in, func(v schedule.Viewer) (any, error) {
		if err := s.svc.Delete(ctx, v, in.ID); err != nil {
			return nil, err
		}
		return map[string]any{"success": true, "id": in.ID}, nil
	})
}

func listing(views []schedule.View) map[string]any {
	if views == nil {
		views = []schedule.View{}
	}
	return map[string]any{"appointments": views}
}

// handle decodes req into in, runs fn as the authenticated viewer and encodes
// its result.
func (s *Server) handle(ctx context.Context, req *structpb.Struct, in any, fn func(schedule.Viewer) (any, error)) (*structpb.Struct, error) {
	v, ok := middleware.ViewerFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no viewer in context")
	}
	raw, err := protojson.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "unreadable request")
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, toStatus(apperr.Wrap(err, apperr.ValidationError, "invalid request payload"))
	}
	out, err := fn(v)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(out)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func codeFor(kind apperr.Kind) codes.Code {
	switch kind {
	case apperr.OutOfHours, apperr.ValidationError:
		return codes.InvalidArgument
	case apperr.InvalidTransition:
		return codes.FailedPrecondition
	case apperr.SlotConflict:
		return codes.AlreadyExists
	case apperr.Forbidden:
		return codes.PermissionDenied
	case apperr.NotFound:
		return codes.NotFound
	default:
		return codes.Unavailable
	}
}

// toStatus keeps the error kind as the message prefix so clients can branch
// on it without parsing the code alone.
func toStatus(err error) error {
	kind := apperr.KindOf(err)
	msg := apperr.Message(err)
	if kind == apperr.StorageError {
		msg = "internal error"
	}
	return status.Error(codeFor(kind), string(kind)+": "+msg)
}
