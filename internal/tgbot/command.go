package tgbot

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBadEndTime     = errors.New("end time must be RFC3339 or 2006-01-02T15:04 (UTC)")
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadTrackArgs   = errors.New("usage: /track <platform-url> <token> <end-time> <team name>")
)

// Command is a parsed user request. Parsing is fully decoupled from
// session logic; the handler switches on the concrete type.
type Command interface {
	isCommand()
}

type StartTracking struct {
	PlatformURL string
	Token       string
	TeamName    string
	End         time.Time
}

type StopTracking struct{}

type FindEasy struct {
	Limit int
}

type ListUpcoming struct{}

type Help struct{}

func (StartTracking) isCommand() {}
func (StopTracking) isCommand()  {}
func (FindEasy) isCommand()      {}
func (ListUpcoming) isCommand()  {}
func (Help) isCommand()          {}

// ParseCommand turns one message text into a Command.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return nil, ErrUnknownCommand
	}
	// "/track@BotName" works in group chats
	cmd := strings.SplitN(fields[0], "@", 2)[0]

	switch cmd {
	case "/track":
		if len(fields) < 5 {
			return nil, ErrBadTrackArgs
		}
		end, err := parseEndTime(fields[3])
		if err != nil {
			return nil, err
		}
		return StartTracking{
			PlatformURL: fields[1],
			Token:       fields[2],
			End:         end,
			TeamName:    strings.Join(fields[4:], " "),
		}, nil
	case "/stop":
		return StopTracking{}, nil
	case "/easy":
		limit := 5
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 {
				return nil, errors.New("usage: /easy [count]")
			}
			limit = n
		}
		return FindEasy{Limit: limit}, nil
	case "/upcoming":
		return ListUpcoming{}, nil
	case "/start", "/help":
		return Help{}, nil
	default:
		return nil, ErrUnknownCommand
	}
}

func parseEndTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrBadEndTime
}
