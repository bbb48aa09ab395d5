package connect_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apiconnect "github.com/osa030/decobox/internal/api/connect"
	"github.com/osa030/decobox/internal/app/filter"
	"github.com/osa030/decobox/internal/app/notification"
	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/app/session"
	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/domain/voice"
	"github.com/osa030/decobox/internal/infra/store"
)

const testToken = "secret"

type fakeConn struct{}

func (fakeConn) Speaking(bool) error                    { return nil }
func (fakeConn) SendOpus(context.Context, []byte) error { return nil }
func (fakeConn) Move(context.Context, string) error     { return nil }
func (fakeConn) Disconnect() error                      { return nil }

type fakeConnector struct{}

func (fakeConnector) JoinVoice(context.Context, string, string) (voice.Conn, error) {
	return fakeConn{}, nil
}

func (fakeConnector) UserVoiceChannel(_, userID string) (string, bool) {
	return "vc-" + userID, userID != ""
}

func (fakeConnector) ChannelName(id string) string { return "name-" + id }
func (fakeConnector) GuildName(id string) string   { return "guild-" + id }

type fakeHandle struct {
	id     string
	onDone playback.FinishFunc
	once   sync.Once
}

func (h *fakeHandle) ID() string        { return h.id }
func (h *fakeHandle) Info() track.Info  { return track.Info{Title: h.id, Uploader: "Band"} }
func (h *fakeHandle) Start() error      { return nil }
func (h *fakeHandle) Pause()            {}
func (h *fakeHandle) Resume()           {}
func (h *fakeHandle) SetVolume(float64) {}
func (h *fakeHandle) Stop()             { h.once.Do(func() { go h.onDone(h, nil) }) }

type fakePlayer struct{}

func (fakePlayer) Load(_ context.Context, req track.Request, onFinish playback.FinishFunc) (track.Handle, error) {
	return &fakeHandle{id: req.Source, onDone: onFinish}, nil
}

type nopPlugin struct{}

func (nopPlugin) Name() string                 { return "admintest" }
func (nopPlugin) Commands() []plugin.Command   { return nil }
func (nopPlugin) Load(context.Context) error   { return nil }
func (nopPlugin) Unload(context.Context) error { return nil }

func init() {
	plugin.Register("admintest", "Does nothing", func(*plugin.Host) plugin.Plugin { return nopPlugin{} })
}

type fixture struct {
	client   *apiconnect.AdminServiceClient
	sessions *session.Manager
	plugins  *plugin.Manager
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions := session.NewManager(
		session.Config{QueueCapacity: 10, DefaultVolume: 1.0},
		fakeConnector{}, st,
		func(voice.Conn) playback.Player { return fakePlayer{} },
		notification.NewManager(), nil,
	)
	t.Cleanup(sessions.Close)

	plugins := plugin.NewManager(&plugin.Host{}, nil)

	chain := filter.NewChain()
	chain.Add(filter.NewSourceFilter([]string{"youtube.com"}))

	svc := apiconnect.NewAdminService(sessions, plugins, chain, time.Now().Add(-time.Hour))
	mux := http.NewServeMux()
	path, handler := apiconnect.NewAdminServiceHandler(svc,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(testToken)))
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := apiconnect.NewAdminServiceClient(srv.Client(), srv.URL,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(token)))
	return &fixture{client: client, sessions: sessions, plugins: plugins}
}

func guild(id string) *connect.Request[wrapperspb.StringValue] {
	return connect.NewRequest(wrapperspb.String(id))
}

func enqueueReq(t *testing.T, guildID, source string) *connect.Request[structpb.Struct] {
	t.Helper()
	s, err := structpb.NewStruct(map[string]any{"guild_id": guildID, "source": source})
	require.NoError(t, err)
	return connect.NewRequest(s)
}

func TestAdminService_Auth(t *testing.T) {
	f := newFixture(t, "wrong")
	_, err := f.client.GetStatus(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestAdminService_EmptyTokenRejectsAll(t *testing.T) {
	interceptor := apiconnect.NewAdminAuthInterceptor("")
	called := false
	next := interceptor(func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
		called = true
		return nil, nil
	})
	_, err := next(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	assert.False(t, called)
}

func TestAdminService_Status(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testToken)
	require.NoError(t, f.plugins.Load(ctx, "admintest"))
	_, err := f.sessions.Join(ctx, "g1", "u1", "tc1")
	require.NoError(t, err)

	resp, err := f.client.GetStatus(ctx, connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)

	st := resp.Msg.AsMap()
	assert.Equal(t, "1h0m0s", st["uptime"])
	assert.Equal(t, []any{"admintest"}, st["plugins"])

	sessions := st["sessions"].([]any)
	require.Len(t, sessions, 1)
	sess := sessions[0].(map[string]any)
	assert.Equal(t, "g1", sess["guild_id"])
	assert.Equal(t, "guild-g1", sess["guild_name"])
	assert.Equal(t, "name-vc-u1", sess["voice_channel"])
	assert.Equal(t, "idle", sess["state"])
	assert.Equal(t, float64(10), sess["capacity"])
	assert.NotContains(t, sess, "now_playing")
}

func TestAdminService_Playback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testToken)
	_, err := f.sessions.Join(ctx, "g1", "u1", "tc1")
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() (*connect.Response[wrapperspb.StringValue], error)
		want string
		code connect.Code
	}{
		{
			name: "skip while idle",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Skip(ctx, guild("g1"))
			},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "pause while idle",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Pause(ctx, guild("g1"))
			},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "enqueue starts",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Enqueue(ctx, enqueueReq(t, "g1", "first song"))
			},
			want: "Playing first song",
		},
		{
			name: "enqueue queues",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Enqueue(ctx, enqueueReq(t, "g1", "<https://www.youtube.com/watch?v=x>"))
			},
			want: "Queued https://www.youtube.com/watch?v=x at position 1",
		},
		{
			name: "enqueue duplicate",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Enqueue(ctx, enqueueReq(t, "g1", "https://www.youtube.com/watch?v=x"))
			},
			code: connect.CodeAlreadyExists,
		},
		{
			name: "enqueue unsupported host",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Enqueue(ctx, enqueueReq(t, "g1", "https://example.com/a.mp3"))
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "enqueue unknown guild",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Enqueue(ctx, enqueueReq(t, "g2", "song"))
			},
			code: connect.CodeNotFound,
		},
		{
			name: "pause",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Pause(ctx, guild("g1"))
			},
			want: "Playback paused",
		},
		{
			name: "resume",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Resume(ctx, guild("g1"))
			},
			want: "Playback resumed",
		},
		{
			name: "skip",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Skip(ctx, guild("g1"))
			},
			want: "Skipped first song - Band",
		},
		{
			name: "missing guild id",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Resume(ctx, guild(""))
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "leave",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Leave(ctx, guild("g1"))
			},
			want: "Left name-vc-u1",
		},
		{
			name: "leave again",
			call: func() (*connect.Response[wrapperspb.StringValue], error) {
				return f.client.Leave(ctx, guild("g1"))
			},
			code: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.call()
			if tt.code != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.code, connect.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Msg.GetValue())
		})
	}
}

func TestAdminService_Plugins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testToken)

	resp, err := f.client.LoadPlugin(ctx, guild("AdminTest"))
	require.NoError(t, err)
	assert.Equal(t, "Loaded admintest", resp.Msg.GetValue())

	_, err = f.client.LoadPlugin(ctx, guild("admintest"))
	assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))

	list, err := f.client.ListPlugins(ctx, connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	var found bool
	for _, item := range list.Msg.AsSlice() {
		p := item.(map[string]any)
		if p["name"] == "admintest" {
			found = true
			assert.Equal(t, true, p["loaded"])
			assert.Equal(t, "Does nothing", p["description"])
		}
	}
	assert.True(t, found)

	resp, err = f.client.ReloadPlugin(ctx, guild("admintest"))
	require.NoError(t, err)
	assert.Equal(t, "Reloaded admintest", resp.Msg.GetValue())

	resp, err = f.client.UnloadPlugin(ctx, guild("admintest"))
	require.NoError(t, err)
	assert.Equal(t, "Unloaded admintest", resp.Msg.GetValue())

	_, err = f.client.UnloadPlugin(ctx, guild("admintest"))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = f.client.LoadPlugin(ctx, guild("nope"))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}
