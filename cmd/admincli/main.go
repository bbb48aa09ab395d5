// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apiconnect "github.com/osa030/decobox/internal/api/connect"
)

var (
	app    = kingpin.New("decobox-admincli", "decobox admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	statusCmd = app.Command("status", "Show uptime, plugins and voice sessions")

	pauseCmd   = app.Command("pause", "Pause a guild's track")
	pauseGuild = pauseCmd.Arg("guild-id", "Guild ID").Required().String()

	resumeCmd   = app.Command("resume", "Resume a guild's track")
	resumeGuild = resumeCmd.Arg("guild-id", "Guild ID").Required().String()

	skipCmd   = app.Command("skip", "Skip a guild's current track")
	skipGuild = skipCmd.Arg("guild-id", "Guild ID").Required().String()

	leaveCmd   = app.Command("leave", "Leave a guild's voice channel")
	leaveGuild = leaveCmd.Arg("guild-id", "Guild ID").Required().String()

	enqueueCmd    = app.Command("enqueue", "Request a track in a guild").Alias("play")
	enqueueGuild  = enqueueCmd.Arg("guild-id", "Guild ID").Required().String()
	enqueueSource = enqueueCmd.Arg("source", "Link or search text").Required().String()

	pluginsCmd = app.Command("plugins", "List plugins").Alias("list")

	loadCmd    = app.Command("load", "Load a plugin")
	loadPlugin = loadCmd.Arg("name", "Plugin name").Required().String()

	unloadCmd    = app.Command("unload", "Unload a plugin")
	unloadPlugin = unloadCmd.Arg("name", "Plugin name").Required().String()

	reloadCmd    = app.Command("reload", "Reload a plugin and its templates")
	reloadPlugin = reloadCmd.Arg("name", "Plugin name").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(*token)),
	)

	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		status(ctx, client)
	case pauseCmd.FullCommand():
		call(ctx, client.Pause, *pauseGuild)
	case resumeCmd.FullCommand():
		call(ctx, client.Resume, *resumeGuild)
	case skipCmd.FullCommand():
		call(ctx, client.Skip, *skipGuild)
	case leaveCmd.FullCommand():
		call(ctx, client.Leave, *leaveGuild)
	case enqueueCmd.FullCommand():
		enqueue(ctx, client, *enqueueGuild, *enqueueSource)
	case pluginsCmd.FullCommand():
		listPlugins(ctx, client)
	case loadCmd.FullCommand():
		call(ctx, client.LoadPlugin, *loadPlugin)
	case unloadCmd.FullCommand():
		call(ctx, client.UnloadPlugin, *unloadPlugin)
	case reloadCmd.FullCommand():
		call(ctx, client.ReloadPlugin, *reloadPlugin)
	}
}

type stringCall func(context.Context, *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error)

// call runs an RPC taking and returning a single string.
func call(ctx context.Context, fn stringCall, arg string) {
	resp, err := fn(ctx, connect.NewRequest(wrapperspb.String(arg)))
	if err != nil {
		fail(err)
	}
	fmt.Println(resp.Msg.GetValue())
}

func enqueue(ctx context.Context, client *apiconnect.AdminServiceClient, guildID, source string) {
	req, err := structpb.NewStruct(map[string]any{
		"guild_id": guildID,
		"source":   source,
	})
	if err != nil {
		fail(err)
	}
	resp, err := client.Enqueue(ctx, connect.NewRequest(req))
	if err != nil {
		fail(err)
	}
	fmt.Println(resp.Msg.GetValue())
}

func status(ctx context.Context, client *apiconnect.AdminServiceClient) {
	resp, err := client.GetStatus(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		fail(err)
	}

	s := resp.Msg.AsMap()
	fmt.Println("\n=== BOT STATUS ===")
	fmt.Printf("Started: %v\n", s["started_at"])
	fmt.Printf("Uptime: %v\n", s["uptime"])
	fmt.Printf("Plugins: %v\n", s["plugins"])

	sessions, _ := s["sessions"].([]any)
	if len(sessions) == 0 {
		fmt.Println("\nNo voice sessions")
		fmt.Println()
		return
	}

	fmt.Printf("\nVoice Sessions (%d):\n", len(sessions))
	for _, item := range sessions {
		sess, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("  %v (%v)\n", sess["guild_name"], sess["guild_id"])
		fmt.Printf("    Channel: %v, joined %v\n", sess["voice_channel"], sess["joined"])
		fmt.Printf("    State: %v", sess["state"])
		if paused, _ := sess["paused"].(bool); paused {
			fmt.Print(" (paused)")
		}
		fmt.Println()
		if np, ok := sess["now_playing"]; ok {
			fmt.Printf("    Now Playing: %v\n", np)
		}
		fmt.Printf("    Queue: %v/%v\n", sess["pending"], sess["capacity"])
		fmt.Printf("    Volume: %v\n", sess["volume"])
	}
	fmt.Println()
}

func listPlugins(ctx context.Context, client *apiconnect.AdminServiceClient) {
	resp, err := client.ListPlugins(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		fail(err)
	}

	items := resp.Msg.AsSlice()
	fmt.Printf("Plugins (%d):\n", len(items))
	for _, item := range items {
		p, ok := item.(map[string]any)
		if !ok {
			continue
		}
		mark := " "
		if loaded, _ := p["loaded"].(bool); loaded {
			mark = "*"
		}
		fmt.Printf("  %s %-20v %v\n", mark, p["name"], p["description"])
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}
