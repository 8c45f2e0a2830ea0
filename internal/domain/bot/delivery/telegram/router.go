package telegram

import (
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/alex-away/tg-ytdl-gofile/internal/domain/bot/consts"
)

// Router registers Telegram bot handlers
type Router struct {
	handlers *Handlers
	logger   zerolog.Logger
}

// NewRouter creates new Telegram router
func NewRouter(handlers *Handlers, logger zerolog.Logger) *Router {
	return &Router{
		handlers: handlers,
		logger:   logger,
	}
}

// RegisterRoutes registers all command handlers on the bot.
// Prefix matching also catches "/cmd@BotName" and arguments after the command.
func (r *Router) RegisterRoutes(bot *tgbot.Bot) {
	routes := []struct {
		cmd     consts.Command
		handler tgbot.HandlerFunc
	}{
		{consts.CommandStart, r.handlers.HandleStart},
		{consts.CommandHelp, r.handlers.HandleHelp},
		{consts.CommandDownload, r.handlers.HandleDownload},
		{consts.CommandCookieDownload, r.handlers.HandleCookieDownload},
		{consts.CommandAddUser, r.handlers.HandleAddUser},
		{consts.CommandRemoveUser, r.handlers.HandleRemoveUser},
		{consts.CommandListUsers, r.handlers.HandleListUsers},
		{consts.CommandSetLogChannel, r.handlers.HandleSetLogChannel},
		{consts.CommandSetCookie, r.handlers.HandleSetCookie},
		{consts.CommandCancel, r.handlers.HandleCancel},
	}

	for _, route := range routes {
		bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/"+route.cmd.Name, tgbot.MatchTypePrefix, route.handler)
	}
	bot.RegisterHandler(tgbot.HandlerTypeCallbackQueryData, CallbackPrefix, tgbot.MatchTypePrefix, r.handlers.HandleFormatCallback)

	r.logger.Info().Int("commands", len(routes)).Msg("All Telegram command handlers registered successfully")
}

// DefaultHandler returns the handler for updates no route matched
func (r *Router) DefaultHandler() tgbot.HandlerFunc {
	return r.handlers.DefaultHandler
}

// MenuCommands returns the command menu published to Telegram clients
func MenuCommands() []models.BotCommand {
	commands := make([]models.BotCommand, 0, len(consts.AllCommands))
	for _, c := range consts.AllCommands {
		commands = append(commands, models.BotCommand{Command: c.Name, Description: c.Description})
	}
	return commands
}
