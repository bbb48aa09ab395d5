// Package connect provides the Connect RPC admin service.
package connect

import (
	"context"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/decobox/internal/app/filter"
	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/app/session"
	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/domain/track"
)

// AdminService implements the AdminService RPC.
type AdminService struct {
	sessions  *session.Manager
	plugins   *plugin.Manager
	chain     *filter.Chain
	startedAt time.Time
}

// NewAdminService creates a new AdminService. chain may be nil.
func NewAdminService(sessions *session.Manager, plugins *plugin.Manager, chain *filter.Chain, startedAt time.Time) *AdminService {
	if chain == nil {
		chain = filter.NewChain()
	}
	return &AdminService{
		sessions:  sessions,
		plugins:   plugins,
		chain:     chain,
		startedAt: startedAt,
	}
}

// GetStatus returns uptime, loaded plugins and every voice session.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	loaded := []any{}
	for _, name := range s.plugins.Loaded() {
		loaded = append(loaded, name)
	}

	sessions := []any{}
	for _, sess := range s.sessions.Sessions() {
		b := sess.Binding()
		status, err := sess.Status(ctx)
		if err != nil {
			continue
		}
		entry := map[string]any{
			"guild_id":      b.GuildID,
			"guild_name":    b.GuildName,
			"voice_channel": b.VoiceChannelName,
			"text_channel":  b.TextChannelID,
			"joined":        humanize.Time(b.JoinedAt),
			"state":         status.State.String(),
			"paused":        status.Paused,
			"volume":        status.Volume,
			"pending":       status.Pending,
			"capacity":      status.Capacity,
		}
		if status.NowPlaying != nil {
			entry["now_playing"] = status.NowPlaying.String()
		}
		sessions = append(sessions, entry)
	}

	st, err := structpb.NewStruct(map[string]any{
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime":     time.Since(s.startedAt).Round(time.Second).String(),
		"plugins":    loaded,
		"sessions":   sessions,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}

// Pause pauses a guild's track.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	sess, err := s.session(req.Msg.GetValue())
	if err != nil {
		return nil, err
	}
	if err := sess.Pause(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return message("Playback paused")
}

// Resume resumes a guild's paused track.
func (s *AdminService) Resume(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	sess, err := s.session(req.Msg.GetValue())
	if err != nil {
		return nil, err
	}
	if err := sess.Resume(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return message("Playback resumed")
}

// Skip stops a guild's track and starts the next one.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	sess, err := s.session(req.Msg.GetValue())
	if err != nil {
		return nil, err
	}
	status, err := sess.Status(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if status.NowPlaying == nil {
		return nil, toConnectError(playback.ErrNotPlaying)
	}
	if err := sess.Stop(ctx); err != nil {
		return nil, toConnectError(err)
	}
	return message("Skipped " + status.NowPlaying.String())
}

// Leave disconnects a guild's voice session.
func (s *AdminService) Leave(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	b, err := s.sessions.Leave(ctx, req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}
	return message("Left " + b.VoiceChannelName)
}

// Enqueue requests a track in a guild. The request passes the same
// filters as chat commands, as an admin requester.
func (s *AdminService) Enqueue(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[wrapperspb.StringValue], error) {
	fields := req.Msg.GetFields()
	guildID := fields["guild_id"].GetStringValue()
	source := fields["source"].GetStringValue()

	sess, err := s.session(guildID)
	if err != nil {
		return nil, err
	}

	result := s.chain.Execute(ctx, filter.Request{
		Message:       chat.Message{GuildID: guildID, Content: source},
		Plugin:        "admin",
		Command:       "enqueue",
		Args:          source,
		TakesSource:   true,
		RequesterType: track.RequesterTypeAdmin,
	})
	if !result.Accepted {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("rejected by %s: %s", result.Filter, result.Code))
	}

	source = filter.CleanSource(source)
	placement, err := sess.Enqueue(ctx, track.NewRequest(source, track.Requester{
		ID:   "admin",
		Name: "admin",
		Type: track.RequesterTypeAdmin,
	}, ""))
	if err != nil {
		return nil, toConnectError(err)
	}
	if placement.Started {
		return message("Playing " + source)
	}
	return message("Queued " + source + " at position " + humanize.Comma(int64(placement.Position)))
}

// ListPlugins lists available plugins and whether they are loaded.
func (s *AdminService) ListPlugins(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.ListValue], error) {
	var items []any
	for _, reg := range plugin.GetRegistered() {
		items = append(items, map[string]any{
			"name":        reg.Name,
			"description": reg.Description,
			"loaded":      s.plugins.IsLoaded(reg.Name),
		})
	}
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(list), nil
}

// LoadPlugin loads a plugin.
func (s *AdminService) LoadPlugin(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	name := strings.ToLower(req.Msg.GetValue())
	if err := s.plugins.Load(ctx, name); err != nil {
		return nil, toConnectError(err)
	}
	return message("Loaded " + name)
}

// UnloadPlugin unloads a plugin.
func (s *AdminService) UnloadPlugin(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	name := strings.ToLower(req.Msg.GetValue())
	if err := s.plugins.Unload(ctx, name); err != nil {
		return nil, toConnectError(err)
	}
	return message("Unloaded " + name)
}

// ReloadPlugin reloads a plugin and its templates.
func (s *AdminService) ReloadPlugin(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	name := strings.ToLower(req.Msg.GetValue())
	if err := s.plugins.Reload(ctx, name); err != nil {
		return nil, toConnectError(err)
	}
	return message("Reloaded " + name)
}

func (s *AdminService) session(guildID string) (*session.Session, error) {
	if guildID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("guild id is required"))
	}
	sess, ok := s.sessions.Get(guildID)
	if !ok {
		return nil, toConnectError(session.ErrNotJoined)
	}
	return sess, nil
}

func message(msg string) (*connect.Response[wrapperspb.StringValue], error) {
	return connect.NewResponse(wrapperspb.String(msg)), nil
}

// toConnectError maps domain errors to RPC codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotJoined),
		errors.Is(err, plugin.ErrUnknownPlugin):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, playback.ErrNotPlaying),
		errors.Is(err, plugin.ErrNotLoaded):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, playback.ErrDuplicate),
		errors.Is(err, plugin.ErrAlreadyLoaded):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, playback.ErrCapacity):
		return connect.NewError(connect.CodeResourceExhausted, err)
	case errors.Is(err, playback.ErrEmptyRequest),
		errors.Is(err, playback.ErrOutOfRange),
		errors.Is(err, track.ErrUnsupportedSource):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case track.IsStartFailure(err):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
