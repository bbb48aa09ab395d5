package repl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dop251/goja"

	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/domain/chat"
)

// session is one channel's REPL. Its runtime is only used by the
// session goroutine.
type session struct {
	id        string
	channelID string
	authorID  string
	timeout   time.Duration

	vm     *goja.Runtime
	output strings.Builder
}

func newSession(id string, host *plugin.Host, inv *plugin.Invocation, timeout time.Duration) *session {
	s := &session{
		id:        id,
		channelID: inv.Message.ChannelID,
		authorID:  inv.Message.AuthorID,
		timeout:   timeout,
		vm:        goja.New(),
	}
	s.vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	console := s.vm.NewObject()
	_ = console.Set("log", s.print)
	_ = s.vm.Set("console", console)
	_ = s.vm.Set("print", s.print)

	_ = s.vm.Set("ctx", map[string]any{
		"plugin":  inv.Plugin,
		"command": inv.Command,
		"args":    inv.Args,
		"session": id,
	})
	_ = s.vm.Set("bot", &bot{host: host})
	_ = s.vm.Set("guild", map[string]any{"id": inv.Message.GuildID})
	_ = s.vm.Set("channel", map[string]any{"id": inv.Message.ChannelID})
	_ = s.vm.Set("author", map[string]any{"id": inv.Message.AuthorID, "name": inv.Message.AuthorName})
	_ = s.vm.Set("last", goja.Null())
	s.setMessage(inv.Message)
	return s
}

// accepts reports whether msg is input for this session.
func (s *session) accepts(msg chat.Message) bool {
	return msg.AuthorID == s.authorID &&
		msg.ChannelID == s.channelID &&
		strings.HasPrefix(msg.Content, "`")
}

func (s *session) setMessage(msg chat.Message) {
	_ = s.vm.Set("message", map[string]any{
		"id":        msg.ID,
		"content":   msg.Content,
		"channelId": msg.ChannelID,
		"guildId":   msg.GuildID,
		"authorId":  msg.AuthorID,
	})
}

func (s *session) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, a := range call.Arguments {
		parts[i] = a.String()
	}
	s.output.WriteString(strings.Join(parts, " "))
	s.output.WriteByte('\n')
	return goja.Undefined()
}

// eval runs code and returns the text to post. ok is false when there is
// nothing to post.
func (s *session) eval(ctx context.Context, msg chat.Message, code string) (string, bool) {
	prog, err := goja.Compile("<repl session>", code, false)
	if err != nil {
		return syntaxError(err), true
	}

	s.setMessage(msg)
	s.output.Reset()

	timer := time.AfterFunc(s.timeout, func() { s.vm.Interrupt("execution timed out") })
	stop := context.AfterFunc(ctx, func() { s.vm.Interrupt("session closed") })
	result, err := s.vm.RunProgram(prog)
	timer.Stop()
	stop()
	s.vm.ClearInterrupt()

	out := s.output.String()
	if err != nil {
		return out + exceptionText(err) + "\n", true
	}
	if result != nil && !goja.IsUndefined(result) {
		_ = s.vm.Set("last", result)
		return out + result.String() + "\n", true
	}
	if out != "" {
		return out, true
	}
	return "", false
}

func syntaxError(err error) string {
	msg := err.Error()
	if !strings.HasPrefix(msg, "SyntaxError") {
		msg = "SyntaxError: " + msg
	}
	return msg + "\n"
}

func exceptionText(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return strings.TrimRight(ex.String(), "\n")
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return fmt.Sprintf("Interrupted: %v", ie.Value())
	}
	return err.Error()
}

// bot is the REPL's view of the running bot.
type bot struct {
	host *plugin.Host
}

func (b *bot) Uptime() string {
	return time.Since(b.host.StartedAt).Round(time.Second).String()
}

func (b *bot) Plugins() []string {
	if b.host.Plugins == nil {
		return nil
	}
	return b.host.Plugins.Loaded()
}

func (b *bot) Prefix() string {
	return b.host.Config.Bot.Prefix
}

func (b *bot) Send(channelID, content string) error {
	return b.host.Sender.Send(context.Background(), channelID, content)
}

func (b *bot) VoiceSessions() []map[string]any {
	if b.host.Sessions == nil {
		return nil
	}
	var out []map[string]any
	for _, s := range b.host.Sessions.Sessions() {
		binding := s.Binding()
		out = append(out, map[string]any{
			"guildId":      binding.GuildID,
			"guildName":    binding.GuildName,
			"voiceChannel": binding.VoiceChannelName,
			"textChannel":  binding.TextChannelID,
			"joinedAt":     binding.JoinedAt.Format(time.RFC3339),
		})
	}
	return out
}
