package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/log"
)

const (
	msgStart = `👋 Привет! Я присылаю сводки facestream: цвет кожи, выражения лица и пульс.

📋 Команды:
/status — последняя сводка
/mark <1-3> <значение> — поставить отметку
/help — справка`

	msgHelp = `ℹ️ Сводка строится раз в секунду по последним кадрам с лицом.

📋 Команды:
/status — последняя сводка
/mark 1 1 — включить отметку 1
/mark 1 0 — выключить отметку 1`

	msgNoSummary      = "⏳ Сводки ещё нет, стример не подключён или лицо не найдено."
	msgMarkUsage      = "❓ Формат: /mark <1-3> <значение>"
	msgForbidden      = "⛔ Этот чат не может менять отметки."
	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgNotCommand     = "📋 Я понимаю только команды. Используйте /help."

	topBlendshapes = 5
)

// Controls отметки слушателя.
type Controls interface {
	Markers() entity.Markers
	SetMarker(n, value int) error
}

// Summaries источник последней сводки.
type Summaries interface {
	Latest() (entity.Summary, bool)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type updater interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота слушателя
type Bot struct {
	api       sender
	updates   updater
	controls  Controls
	summaries Summaries
	chats     []int64
	interval  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	lastPush time.Time
}

var _ port.SummaryWriter = (*Bot)(nil)

// NewBot создаёт нового бота. Сводки уходят в chats не чаще раза в interval.
func NewBot(token string, chats []int64, interval time.Duration, controls Controls, summaries Summaries) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info("telegram authorized", "account", api.Self.UserName)

	b := newBot(api, chats, interval, controls, summaries)
	b.updates = api
	return b, nil
}

func newBot(api sender, chats []int64, interval time.Duration, controls Controls, summaries Summaries) *Bot {
	return &Bot{
		api:       api,
		controls:  controls,
		summaries: summaries,
		chats:     chats,
		interval:  interval,
		now:       time.Now,
	}
}

// Run обрабатывает команды до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	if b.updates == nil {
		return errors.New("telegram updates are not configured")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.updates.GetUpdatesChan(u)
	defer b.updates.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendMessage(msg.Chat.ID, msgNotCommand)
		return
	}

	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "status":
		sum, ok := b.summaries.Latest()
		if !ok {
			b.sendMessage(msg.Chat.ID, msgNoSummary)
			return
		}
		b.sendMessage(msg.Chat.ID, formatSummary(sum))

	case "mark":
		b.handleMark(msg)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleMark(msg *tgbotapi.Message) {
	if !b.allowed(msg.Chat.ID) {
		b.sendMessage(msg.Chat.ID, msgForbidden)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.sendMessage(msg.Chat.ID, msgMarkUsage)
		return
	}
	n, err1 := strconv.Atoi(args[0])
	v, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		b.sendMessage(msg.Chat.ID, msgMarkUsage)
		return
	}
	if err := b.controls.SetMarker(n, v); err != nil {
		b.sendMessage(msg.Chat.ID, "⚠️ "+err.Error())
		return
	}

	log.Info("marker changed", "marker", n, "value", v, "source", "telegram")
	b.sendMessage(msg.Chat.ID, "✅ Отметки: "+formatMarkers(b.controls.Markers()))
}

// allowed менять отметки могут только чаты рассылки, если они заданы.
func (b *Bot) allowed(chatID int64) bool {
	if len(b.chats) == 0 {
		return true
	}
	for _, id := range b.chats {
		if id == chatID {
			return true
		}
	}
	return false
}

// WriteSummary рассылает сводку, но не чаще interval. Сводки без лица пропускаются.
func (b *Bot) WriteSummary(ctx context.Context, s entity.Summary) error {
	if len(b.chats) == 0 || s.Samples == 0 {
		return nil
	}

	b.mu.Lock()
	now := b.now()
	if !b.lastPush.IsZero() && now.Sub(b.lastPush) < b.interval {
		b.mu.Unlock()
		return nil
	}
	b.lastPush = now
	b.mu.Unlock()

	text := formatSummary(s)
	var errs []error
	for _, chatID := range b.chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			errs = append(errs, fmt.Errorf("send summary to %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Warn("telegram send failed", "chat", chatID, "error", err)
	}
}

func formatMarkers(m entity.Markers) string {
	parts := make([]string, len(m))
	for i, v := range m {
		parts[i] = fmt.Sprintf("%d=%d", i+1, v)
	}
	return strings.Join(parts, " ")
}

func formatSummary(s entity.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Сводка %s\n", s.At.Format("15:04:05"))
	fmt.Fprintf(&sb, "Кадров с лицом: %d\n", s.Samples)
	fmt.Fprintf(&sb, "RGB: %.1f %.1f %.1f\n", s.AvgRGB.R, s.AvgRGB.G, s.AvgRGB.B)
	if s.HeartRate > 0 {
		fmt.Fprintf(&sb, "❤️ Пульс: %.1f уд/мин\n", s.HeartRate)
	} else {
		sb.WriteString("❤️ Пульс: мало данных\n")
	}
	sb.WriteString("Отметки: " + formatMarkers(s.Markers))

	names := make([]string, 0, len(s.Blendshapes))
	for name := range s.Blendshapes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Blendshapes[names[i]] != s.Blendshapes[names[j]] {
			return s.Blendshapes[names[i]] > s.Blendshapes[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > topBlendshapes {
		names = names[:topBlendshapes]
	}
	for _, name := range names {
		fmt.Fprintf(&sb, "\n• %s %.2f", name, s.Blendshapes[name])
	}
	return sb.String()
}
