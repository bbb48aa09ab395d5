package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AdminServiceName is the fully-qualified name of the admin service.
const AdminServiceName = "decobox.admin.v1.AdminService"

// Procedure paths of the admin service.
const (
	GetStatusProcedure    = "/" + AdminServiceName + "/GetStatus"
	PauseProcedure        = "/" + AdminServiceName + "/Pause"
	ResumeProcedure       = "/" + AdminServiceName + "/Resume"
	SkipProcedure         = "/" + AdminServiceName + "/Skip"
	LeaveProcedure        = "/" + AdminServiceName + "/Leave"
	EnqueueProcedure      = "/" + AdminServiceName + "/Enqueue"
	ListPluginsProcedure  = "/" + AdminServiceName + "/ListPlugins"
	LoadPluginProcedure   = "/" + AdminServiceName + "/LoadPlugin"
	UnloadPluginProcedure = "/" + AdminServiceName + "/UnloadPlugin"
	ReloadPluginProcedure = "/" + AdminServiceName + "/ReloadPlugin"
)

// AdminServiceHandler is the server side of the admin service.
type AdminServiceHandler interface {
	GetStatus(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error)
	Pause(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)
	Resume(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)
	Skip(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)
	Leave(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)
	Enqueue(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[wrapperspb.StringValue], error)
	ListPlugins(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[structpb.ListValue], error)
	LoadPlugin(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)
	UnloadPlugin(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)
	ReloadPlugin(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)
}

// Ensure AdminService implements the interface.
var _ AdminServiceHandler = (*AdminService)(nil)

// NewAdminServiceHandler builds an HTTP handler serving svc. It returns the
// path to mount the handler on.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(PauseProcedure, connect.NewUnaryHandler(PauseProcedure, svc.Pause, opts...))
	mux.Handle(ResumeProcedure, connect.NewUnaryHandler(ResumeProcedure, svc.Resume, opts...))
	mux.Handle(SkipProcedure, connect.NewUnaryHandler(SkipProcedure, svc.Skip, opts...))
	mux.Handle(LeaveProcedure, connect.NewUnaryHandler(LeaveProcedure, svc.Leave, opts...))
	mux.Handle(EnqueueProcedure, connect.NewUnaryHandler(EnqueueProcedure, svc.Enqueue, opts...))
	mux.Handle(ListPluginsProcedure, connect.NewUnaryHandler(ListPluginsProcedure, svc.ListPlugins, opts...))
	mux.Handle(LoadPluginProcedure, connect.NewUnaryHandler(LoadPluginProcedure, svc.LoadPlugin, opts...))
	mux.Handle(UnloadPluginProcedure, connect.NewUnaryHandler(UnloadPluginProcedure, svc.UnloadPlugin, opts...))
	mux.Handle(ReloadPluginProcedure, connect.NewUnaryHandler(ReloadPluginProcedure, svc.ReloadPlugin, opts...))
	return "/" + AdminServiceName + "/", mux
}

// AdminServiceClient is a client for the admin service.
type AdminServiceClient struct {
	getStatus    *connect.Client[emptypb.Empty, structpb.Struct]
	pause        *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	resume       *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	skip         *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	leave        *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	enqueue      *connect.Client[structpb.Struct, wrapperspb.StringValue]
	listPlugins  *connect.Client[emptypb.Empty, structpb.ListValue]
	loadPlugin   *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	unloadPlugin *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
	reloadPlugin *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
}

// NewAdminServiceClient creates a client for the admin service at baseURL.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &AdminServiceClient{
		getStatus:    connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+GetStatusProcedure, opts...),
		pause:        connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+PauseProcedure, opts...),
		resume:       connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+ResumeProcedure, opts...),
		skip:         connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+SkipProcedure, opts...),
		leave:        connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+LeaveProcedure, opts...),
		enqueue:      connect.NewClient[structpb.Struct, wrapperspb.StringValue](httpClient, baseURL+EnqueueProcedure, opts...),
		listPlugins:  connect.NewClient[emptypb.Empty, structpb.ListValue](httpClient, baseURL+ListPluginsProcedure, opts...),
		loadPlugin:   connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+LoadPluginProcedure, opts...),
		unloadPlugin: connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+UnloadPluginProcedure, opts...),
		reloadPlugin: connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](httpClient, baseURL+ReloadPluginProcedure, opts...),
	}
}

func (c *AdminServiceClient) GetStatus(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	return c.getStatus.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Pause(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.pause.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Resume(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.resume.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Skip(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.skip.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Leave(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.leave.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Enqueue(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.enqueue.CallUnary(ctx, req)
}

func (c *AdminServiceClient) ListPlugins(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.ListValue], error) {
	return c.listPlugins.CallUnary(ctx, req)
}

func (c *AdminServiceClient) LoadPlugin(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.loadPlugin.CallUnary(ctx, req)
}

func (c *AdminServiceClient) UnloadPlugin(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.unloadPlugin.CallUnary(ctx, req)
}

func (c *AdminServiceClient) ReloadPlugin(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	return c.reloadPlugin.CallUnary(ctx, req)
}
