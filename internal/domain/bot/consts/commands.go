// Package consts contains constants for the bot domain
package consts

// Command represents a bot command
type Command struct {
	Name        string
	Description string
}

// Bot commands
var (
	CommandStart          = Command{Name: "start", Description: "Start the bot"}
	CommandHelp           = Command{Name: "help", Description: "Show help message"}
	CommandDownload       = Command{Name: "download", Description: "Download a YouTube video or its audio"}
	CommandCookieDownload = Command{Name: "cookieytdl", Description: "Download a restricted video using stored cookies"}
	CommandAddUser        = Command{Name: "adduser", Description: "Give a user access"}
	CommandRemoveUser     = Command{Name: "removeuser", Description: "Revoke access from a user"}
	CommandListUsers      = Command{Name: "listusers", Description: "List users with access"}
	CommandSetLogChannel  = Command{Name: "setlogchannel", Description: "Set the activity log channel"}
	CommandSetCookie      = Command{Name: "setcookie", Description: "Upload a cookies.txt file"}
	CommandCancel         = Command{Name: "cancel", Description: "Abort a pending cookie upload"}
)

// AllCommands contains the commands shown in the client menu.
// Admin commands stay out of it and are listed by /help for sudo users.
var AllCommands = []Command{
	CommandStart,
	CommandHelp,
	CommandDownload,
	CommandCookieDownload,
}

// AdminCommands contains the commands only sudo users may run
var AdminCommands = []Command{
	CommandAddUser,
	CommandRemoveUser,
	CommandListUsers,
	CommandSetLogChannel,
	CommandSetCookie,
	CommandCancel,
}
