// Package repl provides the owner-only JavaScript REPL.
package repl

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/infra/logger"
	"github.com/osa030/decobox/internal/infra/text"
)

// Name is the plugin and template table name.
const Name = "repl"

const dataKey = "repl_plugin_data"

func init() {
	plugin.Register(Name, "owner-only JavaScript REPL sessions", New)
}

// Settings represents the repl plugin settings.
type Settings struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10" validate:"gte=1,lte=300"`
	MaxOutput      int `mapstructure:"max_output" default:"1990" validate:"gte=100,lte=1990"`
}

// Plugin runs one REPL session per channel.
type Plugin struct {
	host     *plugin.Host
	texts    *text.Messages
	settings Settings
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session // by channel ID
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates the repl plugin.
func New(host *plugin.Host) plugin.Plugin {
	return &Plugin{
		host:     host,
		texts:    host.Texts.For(Name),
		log:      logger.For("repl"),
		sessions: make(map[string]*session),
	}
}

func (p *Plugin) Name() string {
	return Name
}

func (p *Plugin) Commands() []plugin.Command {
	// Anyone but the owner is ignored.
	return []plugin.Command{{Name: "repl", OwnerOnly: true, Handler: p.start}}
}

func (p *Plugin) Load(ctx context.Context) error {
	var settings Settings
	if err := p.host.Config.DecodePluginSettings(Name, &settings); err != nil {
		return err
	}
	p.settings = settings
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	return nil
}

// Unload ends every session.
func (p *Plugin) Unload(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// Active returns the number of running sessions.
func (p *Plugin) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func (p *Plugin) start(ctx context.Context, inv *plugin.Invocation) error {
	channelID := inv.Message.ChannelID

	p.mu.Lock()
	if _, ok := p.sessions[channelID]; ok {
		p.mu.Unlock()
		return inv.Reply(ctx, p.texts.Get(dataKey, 0))
	}
	s := newSession(uuid.NewString(), p.host, inv, time.Duration(p.settings.TimeoutSeconds)*time.Second)
	p.sessions[channelID] = s
	p.mu.Unlock()

	p.log.Info().Msgf("repl: session started: id=%s channel=%s", s.id, channelID)
	if err := inv.Reply(ctx, p.texts.Get(dataKey, 1)); err != nil {
		p.end(s)
		return err
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.end(s)
		p.loop(p.ctx, s)
	}()
	return nil
}

func (p *Plugin) end(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions[s.channelID] == s {
		delete(p.sessions, s.channelID)
	}
	p.log.Info().Msgf("repl: session ended: id=%s channel=%s", s.id, s.channelID)
}

func (p *Plugin) loop(ctx context.Context, s *session) {
	for {
		msg, err := p.host.Plugins.WaitForMessage(ctx, s.accepts)
		if err != nil {
			return
		}

		code := CleanupCode(msg.Content)
		if isExit(code) {
			p.reply(ctx, s, p.texts.Get(dataKey, 2))
			return
		}

		out, ok := s.eval(ctx, msg, code)
		if !ok {
			continue
		}
		for _, chunk := range fence(out, p.settings.MaxOutput) {
			p.reply(ctx, s, chunk)
		}
	}
}

// reply posts to the session channel. Missing permissions are ignored;
// other failures are reported in the channel.
func (p *Plugin) reply(ctx context.Context, s *session, content string) {
	err := p.host.Sender.Send(ctx, s.channelID, content)
	if err == nil || errors.Is(err, chat.ErrForbidden) {
		return
	}
	p.log.Warn().Err(err).Msgf("repl: failed to send output: id=%s", s.id)
	if err := p.host.Sender.Send(ctx, s.channelID, p.texts.Format(dataKey, 3, err.Error())); err != nil {
		p.log.Warn().Err(err).Msgf("repl: failed to report send error: id=%s", s.id)
	}
}

// CleanupCode strips a surrounding code fence, dropping its first and last
// lines, or inline backticks.
func CleanupCode(content string) string {
	if len(content) >= 6 && strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) < 3 {
			return ""
		}
		return strings.Join(lines[1:len(lines)-1], "\n")
	}
	return strings.Trim(content, "` \n")
}

func isExit(code string) bool {
	switch code {
	case "quit", "exit", "exit()":
		return true
	}
	return false
}

// fence wraps output in code fences. Output longer than a chat message is
// split into chunks of at most size runes.
func fence(output string, size int) []string {
	if output == "" {
		return nil
	}
	if utf8.RuneCountInString(output) <= chat.MaxMessageLength {
		return []string{"```js\n" + output + "```"}
	}

	var chunks []string
	runes := []rune(output)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		chunks = append(chunks, "```js\n"+string(runes[i:end])+"```")
	}
	return chunks
}
