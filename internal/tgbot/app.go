package tgbot

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ctf-notify-bot/internal/config"
	"ctf-notify-bot/internal/ctftime"
	"ctf-notify-bot/internal/format"
	"ctf-notify-bot/internal/models"
	"ctf-notify-bot/internal/tracker"
)

const helpText = `*CTF notify bot*
/track url token end\-time team: track a team on a CTFd deployment
/stop: stop tracking
/easy \[n\]: most\-solved challenges you haven't done yet
/upcoming: upcoming CTFs from CTFtime`

type App struct {
	cfg config.Config
	bot *tgbotapi.BotAPI

	tracker *tracker.Manager
	listing *ctftime.Client
}

func New(cfg config.Config) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return &App{cfg: cfg, bot: b}, nil
}

// Attach wires the session manager and the contest listing in after
// construction (the manager itself needs the app as its Sender).
func (a *App) Attach(tr *tracker.Manager, listing *ctftime.Client) {
	a.tracker = tr
	a.listing = listing
}

// SendMarkdown sends one MarkdownV2 message. Used as the Sender for both
// the scheduler and the tracker.
func (a *App) SendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				if err := a.handleMessage(ctx, upd.Message); err != nil {
					log.Printf("handle msg: %v", err)
				}
			}
		}
	}
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	chatID := m.Chat.ID

	cmd, err := ParseCommand(m.Text)
	if err != nil {
		if errors.Is(err, ErrUnknownCommand) {
			return nil
		}
		return a.SendMarkdown(chatID, format.EscapeMarkdownV2(err.Error()))
	}

	switch c := cmd.(type) {
	case StartTracking:
		return a.handleTrack(ctx, chatID, c)
	case StopTracking:
		if a.tracker.Stop(chatID) {
			return a.SendMarkdown(chatID, "Tracking stopped\\.")
		}
		return a.SendMarkdown(chatID, "No active tracking session\\.")
	case FindEasy:
		return a.handleFindEasy(ctx, chatID, c.Limit)
	case ListUpcoming:
		return a.handleUpcoming(ctx, chatID)
	case Help:
		return a.SendMarkdown(chatID, helpText)
	}
	return nil
}

func (a *App) handleTrack(ctx context.Context, chatID int64, c StartTracking) error {
	outcome, err := a.tracker.Start(ctx, chatID, c.PlatformURL, c.TeamName, c.Token, c.End)
	if err != nil {
		// User-input errors are surfaced verbatim.
		if errors.Is(err, tracker.ErrAlreadyEnded) || errors.Is(err, tracker.ErrTeamNotFound) {
			return a.SendMarkdown(chatID, format.EscapeMarkdownV2(err.Error()))
		}
		return err
	}
	return a.SendMarkdown(chatID, format.EscapeMarkdownV2(outcome))
}

func (a *App) handleFindEasy(ctx context.Context, chatID int64, limit int) error {
	sess, ok := a.tracker.Session(chatID)
	if !ok {
		return a.SendMarkdown(chatID, "No active tracking session\\. Start one with /track first\\.")
	}

	p := tracker.DefaultPlatform(sess.PlatformURL, sess.Token)
	challenges, err := p.Challenges(ctx)
	if err != nil {
		log.Printf("find easy for chat %d: %v", chatID, err)
		challenges = nil
	}

	unsolved := challenges[:0]
	for _, ch := range challenges {
		if !sess.KnownSolveIDs[ch.ID] {
			unsolved = append(unsolved, ch)
		}
	}
	sort.SliceStable(unsolved, func(i, j int) bool {
		return unsolved[i].Solves > unsolved[j].Solves
	})
	if len(unsolved) > limit {
		unsolved = unsolved[:limit]
	}

	names := make([]string, len(unsolved))
	counts := make([]int, len(unsolved))
	for i, ch := range unsolved {
		names[i] = ch.Name
		counts[i] = ch.Solves
	}
	return a.SendMarkdown(chatID, format.EasyChallengesMessage(names, counts))
}

func (a *App) handleUpcoming(ctx context.Context, chatID int64) error {
	now := time.Now()
	events, err := a.listing.UpcomingEvents(ctx, now, now.Add(14*24*time.Hour), 20)
	if err != nil {
		log.Printf("upcoming for chat %d: %v", chatID, err)
		events = nil
	}
	shown := []models.ContestEvent{}
	for _, ev := range events {
		if ev.Format != "Jeopardy" || ev.Onsite {
			continue
		}
		shown = append(shown, ev)
		if len(shown) == 5 {
			break
		}
	}
	return a.SendMarkdown(chatID, format.UpcomingMessage(shown))
}
