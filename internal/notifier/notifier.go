// Package notifier sends portfolio alerts over Telegram and records every
// message in the notification history, delivered or not.
package notifier

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/config"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/domain"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/logger"
	"github.com/DiegoMartinotti/cedears-manager-sub008/internal/storage"
)

type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	repo    *storage.Repository
	logger  *logger.Logger
}

func New(cfg *config.Config, repo *storage.Repository, log *logger.Logger) *Notifier {
	if !cfg.Telegram.Enabled {
		return &Notifier{enabled: false, repo: repo, logger: log}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("failed to create telegram bot", "error", err)
		return &Notifier{enabled: false, repo: repo, logger: log}
	}

	log.Info("telegram bot connected", "username", bot.Self.UserName)

	return &Notifier{
		bot:     bot,
		chatID:  cfg.Telegram.ChatID,
		enabled: true,
		repo:    repo,
		logger:  log,
	}
}

func (n *Notifier) NotifyTrade(symbol, tradeType string, quantity, price, commission float64) {
	emoji := "🟢"
	if tradeType == "SELL" {
		emoji = "🔴"
	}
	body := fmt.Sprintf("Cantidad: %.2f\nPrecio: %.2f\nComisión: %.2f",
		quantity, price, commission)
	n.send("info", fmt.Sprintf("%s *%s* %s", emoji, tradeType, symbol), body)
}

func (n *Notifier) NotifySellSignal(symbol string, recommendation domain.Recommendation, score, profitPct float64) {
	body := fmt.Sprintf("Recomendación: %s\nScore: %.0f/100\nResultado: %+.1f%%",
		recommendation, score, profitPct)
	n.send("alert", "📊 Señal de venta "+symbol, body)
}

func (n *Notifier) NotifyCustody(month string, totalCharged float64, exempt bool) {
	body := fmt.Sprintf("Mes: %s\nCargo: %.2f", month, totalCharged)
	if exempt {
		body = fmt.Sprintf("Mes: %s\nCartera exenta de custodia", month)
	}
	n.send("info", "🏦 Custodia mensual", body)
}

func (n *Notifier) NotifyError(context string, err error) {
	n.send("error", "⚠️ Error ["+context+"]", fmt.Sprint(err))
}

func (n *Notifier) NotifyStatus(message string) {
	n.send("info", message, "")
}

func (n *Notifier) send(level, title, body string) {
	delivered := false
	if n.enabled {
		text := title
		if body != "" {
			text += "\n" + body
		}
		msg := tgbotapi.NewMessage(n.chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown

		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error("send telegram message", "error", err)
		} else {
			delivered = true
		}
	}

	if n.repo != nil {
		record := &storage.Notification{
			Level:     level,
			Title:     title,
			Body:      body,
			Delivered: delivered,
		}
		if err := n.repo.SaveNotification(record); err != nil {
			n.logger.Error("save notification", "error", err)
		}
	}
}
