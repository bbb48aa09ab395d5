package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// RouteLogs sends discordgo's internal log lines to zerolog.
func RouteLogs() {
	discordgo.Logger = func(msgL, caller int, format string, a ...any) {
		zlog.WithLevel(level(msgL)).Str("component", "discordgo").Msg(fmt.Sprintf(format, a...))
	}
}

func level(msgL int) zerolog.Level {
	switch msgL {
	case discordgo.LogError:
		return zerolog.ErrorLevel
	case discordgo.LogWarning:
		return zerolog.WarnLevel
	case discordgo.LogInformational:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
