package telegram

import (
	"context"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-painter/internal/genai"
	"ai-painter/internal/persist"
	"ai-painter/internal/quota"
	"ai-painter/internal/session"
	"ai-painter/internal/storage"
)

const (
	navPrevCmd    = "nav_prev"
	navNextCmd    = "nav_next"
	regenCmd      = "regen"
	addImageCmd   = "add_image"
	editPromptCmd = "edit_prompt"
	stylePrefix   = "style:"
)

type Bot struct {
	api       *tgbotapi.BotAPI
	s         sender
	store     *persist.Store
	ledger    *quota.Ledger
	restorer  *session.Restorer
	generator genai.Generator
	refiner   genai.Refiner
	recorder  storage.Recorder

	adminUserID int64
	parseMode   string
	uploadWait  time.Duration

	// One pending follow-up (image upload or prompt edit) per user.
	pendingMu      sync.Mutex
	pendingUploads map[int64]chan []byte
	pendingPrompts map[int64]chan string
}

func New(
	botToken string,
	store *persist.Store,
	ledger *quota.Ledger,
	restorer *session.Restorer,
	generator genai.Generator,
	refiner genai.Refiner,
	recorder storage.Recorder,
	adminUserID int64,
	parseMode string,
	uploadWait time.Duration,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:            api,
		s:              botAPISender{api: api},
		store:          store,
		ledger:         ledger,
		restorer:       restorer,
		generator:      generator,
		refiner:        refiner,
		recorder:       recorder,
		adminUserID:    adminUserID,
		parseMode:      parseMode,
		uploadWait:     uploadWait,
		pendingUploads: make(map[int64]chan []byte),
		pendingPrompts: make(map[int64]chan string),
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			// Each update runs in its own goroutine so slow disk or API
			// calls on one interaction never stall the others.
			if update.Message != nil {
				msg := update.Message
				go b.handleIncomingMessage(ctx, msg)
				continue
			}
			if update.CallbackQuery != nil {
				cb := update.CallbackQuery
				go b.handleCallback(ctx, cb)
				continue
			}
		}
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if b.parseMode != "" {
		msg.ParseMode = b.parseMode
	}
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

func (b *Bot) answerCallback(cb *tgbotapi.CallbackQuery, text string) {
	if b.api == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		log.Printf("failed to answer callback: %v", err)
	}
}
