// Package core provides the administrative commands.
package core

import (
	"context"
	"strings"
	"time"

	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/infra/text"
)

// Name is the plugin and template table name.
const Name = "corecommands"

const (
	uptimeKey = "Uptime_command_data"
	reloadKey = "reload_command_data"
)

func init() {
	plugin.Register(Name, "uptime and plugin management commands", New)
}

// Plugin implements the core commands.
type Plugin struct {
	host  *plugin.Host
	texts *text.Messages
	now   func() time.Time
}

// New creates the core plugin.
func New(host *plugin.Host) plugin.Plugin {
	return &Plugin{host: host, texts: host.Texts.For(Name), now: time.Now}
}

func (p *Plugin) Name() string {
	return Name
}

func (p *Plugin) Commands() []plugin.Command {
	ownerOnly := func(_ *plugin.Invocation, code string) string {
		if code == "owner_only" {
			return p.texts.Get(reloadKey, 3)
		}
		return ""
	}
	return []plugin.Command{
		{Name: "uptime", Handler: p.uptime},
		{Name: "reload", OwnerOnly: true, Handler: p.manage(actionReload), Rejected: ownerOnly},
		{Name: "reloadplugin", OwnerOnly: true, Handler: p.manage(actionReloadPlugin), Rejected: ownerOnly},
		{Name: "loadplugin", OwnerOnly: true, Handler: p.manage(actionLoad), Rejected: ownerOnly},
		{Name: "unloadplugin", OwnerOnly: true, Handler: p.manage(actionUnload), Rejected: ownerOnly},
	}
}

func (p *Plugin) Load(context.Context) error {
	return nil
}

func (p *Plugin) Unload(context.Context) error {
	return nil
}

func (p *Plugin) uptime(ctx context.Context, inv *plugin.Invocation) error {
	d, h, m, s := splitDuration(p.now().Sub(p.host.StartedAt))
	return inv.Reply(ctx, p.texts.Format(uptimeKey, 0, d, h, m, s))
}

// splitDuration returns whole days, hours, minutes and seconds.
func splitDuration(d time.Duration) (days, hours, minutes, seconds int) {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	minutes, seconds = total/60, total%60
	hours, minutes = minutes/60, minutes%60
	days, hours = hours/24, hours%24
	return days, hours, minutes, seconds
}

type action struct {
	done  string // Past tense appended to the success reply
	verb  string // Replaces "Reloading" in the failure reply
	apply func(m *plugin.Manager, ctx context.Context, name string) error
}

var (
	actionReload = action{
		done:  "Reloaded",
		verb:  "Reloading",
		apply: (*plugin.Manager).Reload,
	}
	actionReloadPlugin = action{
		done:  "Reloaded",
		verb:  "Reloading Plugin",
		apply: (*plugin.Manager).Reload,
	}
	actionLoad = action{
		done:  "Loaded",
		verb:  "Loading Plugin",
		apply: (*plugin.Manager).Load,
	}
	actionUnload = action{
		done:  "Unloaded",
		verb:  "Unloading Plugin",
		apply: (*plugin.Manager).Unload,
	}
)

func (p *Plugin) manage(a action) plugin.Handler {
	return func(ctx context.Context, inv *plugin.Invocation) error {
		name := strings.ToLower(strings.TrimSpace(inv.Args))
		if name == "" {
			return inv.Reply(ctx, p.texts.Get(reloadKey, 2))
		}

		// Replies are rendered before the call; reloading this plugin
		// re-reads its templates.
		failed := p.texts.Get(reloadKey, 1)
		done := p.texts.Get(reloadKey, 0)

		if err := a.apply(p.host.Plugins, ctx, name); err != nil {
			failed = strings.Replace(failed, "Reloading", a.verb, 1)
			return inv.Reply(ctx, text.Format(failed, err.Error()))
		}
		return inv.Reply(ctx, done+" "+a.done+" "+name+".")
	}
}
