// Package entities contains domain entities
package entities

import "fmt"

// Tier is the permission level of a user
type Tier int

const (
	TierUnauthorized Tier = iota
	TierAllowed
	TierSudo
)

func (t Tier) String() string {
	switch t {
	case TierAllowed:
		return "allowed"
	case TierSudo:
		return "sudo"
	default:
		return "unauthorized"
	}
}

// UserRecord is one entry of the permission list
type UserRecord struct {
	ID   int64 `json:"id"`
	Tier Tier  `json:"tier"`
}

// Command is a chat command known to the permission gate
type Command int

const (
	CommandUnknown Command = iota
	CommandStart
	CommandHelp
	CommandDownload
	CommandCookieDownload
	CommandAddUser
	CommandRemoveUser
	CommandListUsers
	CommandSetLogChannel
	CommandSetCookie
	CommandCancel
)

var commandNames = map[Command]string{
	CommandStart:          "start",
	CommandHelp:           "help",
	CommandDownload:       "download",
	CommandCookieDownload: "cookieytdl",
	CommandAddUser:        "adduser",
	CommandRemoveUser:     "removeuser",
	CommandListUsers:      "listusers",
	CommandSetLogChannel:  "setlogchannel",
	CommandSetCookie:      "setcookie",
	CommandCancel:         "cancel",
}

// String returns the command name without the leading slash
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCommand maps a command name ("/download", "download@MyBot" or "download") to a Command
func ParseCommand(name string) Command {
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '@' {
			name = name[:i]
			break
		}
	}
	for c, n := range commandNames {
		if n == name {
			return c
		}
	}
	return CommandUnknown
}

// Sender identifies the Telegram user behind an update
type Sender struct {
	ID        int64
	Username  string
	FirstName string
}

// DisplayName returns @username when set, the first name otherwise
func (s Sender) DisplayName() string {
	if s.Username != "" {
		return "@" + s.Username
	}
	if s.FirstName != "" {
		return s.FirstName
	}
	return fmt.Sprintf("%d", s.ID)
}
