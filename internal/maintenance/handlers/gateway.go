package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// route binds an HTTP method and path template to a gRPC method. Path
// parameters and, for reads, query parameters are merged into the message.
type route struct {
	method  string
	pattern string
	rpc     string
	body    bool
}

var routes = []route{
	{http.MethodPost, "/v1/teams", "CreateTeam", true},
	{http.MethodGet, "/v1/teams", "ListTeams", false},
	{http.MethodPost, "/v1/teams/{team_id}/members", "AssignMember", true},
	{http.MethodGet, "/v1/profiles/unassigned", "ListUnassigned", false},
	{http.MethodPost, "/v1/equipment", "CreateEquipment", true},
	{http.MethodGet, "/v1/equipment", "ListEquipment", false},
	{http.MethodGet, "/v1/equipment/{id}", "GetEquipment", false},
	{http.MethodGet, "/v1/equipment/{id}/open_requests", "OpenRequestCount", false},
	{http.MethodPost, "/v1/requests", "CreateRequest", true},
	{http.MethodGet, "/v1/requests/{id}", "GetRequest", false},
	{http.MethodPatch, "/v1/requests/{id}/status", "TransitionRequest", true},
	{http.MethodPatch, "/v1/requests/{id}/assignee", "AssignRequest", true},
	{http.MethodGet, "/v1/board", "Board", false},
	{http.MethodGet, "/v1/calendar/{month}", "Calendar", false},
}

func registerRoutes(mux *runtime.ServeMux, conn grpc.ClientConnInterface) error {
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, forward(mux, conn, rt)); err != nil {
			return err
		}
	}
	return nil
}

func forward(mux *runtime.ServeMux, conn grpc.ClientConnInterface, rt route) runtime.HandlerFunc {
	fullMethod := FullMethod(rt.rpc)
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		inbound, outbound := runtime.MarshalerForRequest(mux, r)

		ctx, err := runtime.AnnotateContext(ctx, mux, r, fullMethod, runtime.WithHTTPPathPattern(rt.pattern))
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}

		in := &structpb.Struct{Fields: map[string]*structpb.Value{}}
		if rt.body {
			if err := inbound.NewDecoder(r.Body).Decode(in); err != nil && err != io.EOF {
				runtime.HTTPError(ctx, mux, outbound, w, r, status.Errorf(codes.InvalidArgument, "invalid body: %v", err))
				return
			}
			if in.Fields == nil {
				in.Fields = map[string]*structpb.Value{}
			}
		} else {
			for key, values := range r.URL.Query() {
				if len(values) > 0 {
					in.Fields[key] = structpb.NewStringValue(values[0])
				}
			}
		}
		for key, value := range pathParams {
			in.Fields[key] = structpb.NewStringValue(value)
		}

		var md runtime.ServerMetadata
		out := new(structpb.Struct)
		err = conn.Invoke(ctx, fullMethod, in, out, grpc.Header(&md.HeaderMD), grpc.Trailer(&md.TrailerMD))
		ctx = runtime.NewServerMetadataContext(ctx, md)
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}
		runtime.ForwardResponseMessage(ctx, mux, outbound, w, r, out)
	}
}
