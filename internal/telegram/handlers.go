package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-painter/internal/persist"
	"ai-painter/internal/quota"
)

const restoreFailedMsg = "This session could not be restored. Please start a new request."

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, "Send a text description and/or an image and I will generate a picture. Use the buttons under the result to browse, restyle and regenerate.")
	case "status":
		b.handleStatusCommand(msg)
	case "usage":
		b.handleUsageCommand(msg)
	case "cleanup":
		b.handleCleanupCommand(msg)
	case "settier":
		b.handleSetTierCommand(msg)
	case "resetquota":
		b.handleResetQuotaCommand(msg)
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command.")
	}
}

func (b *Bot) handleStatusCommand(msg *tgbotapi.Message) {
	userID := msg.From.ID
	now := time.Now().UTC()
	tier := b.ledger.TierOf(userID)
	active := b.ledger.Active(userID, now)
	var line string
	if capacity, capped := tier.Capacity(); capped {
		line = fmt.Sprintf("Tier: %s. Slots in use: %d/%d.", tier, active, capacity)
		if at, busy := b.ledger.AvailableAt(userID, now); busy {
			line += fmt.Sprintf(" Next slot frees at %s UTC.", at.UTC().Format("15:04"))
		}
	} else {
		line = fmt.Sprintf("Tier: %s. No generation limit.", tier)
	}
	b.sendMessage(msg.Chat.ID, line)
}

func (b *Bot) handleUsageCommand(msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	userID := msg.From.ID
	if arg != "" && b.isAdmin(msg.From.ID) {
		if arg == "all" {
			total, users := b.ledger.TotalUsage()
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(
				"Users: %d\nRequests: %d\nImages: %d\nTokens: %d (prompt %d, output %d)",
				users, total.Requests, total.Images, total.TotalTokens, total.PromptTokens, total.OutputTokens))
			return
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			b.sendMessage(msg.Chat.ID, "Usage: /usage [all|<user id>]")
			return
		}
		userID = id
	}
	stats, ok := b.ledger.Usage(userID)
	if !ok {
		b.sendMessage(msg.Chat.ID, "No usage recorded yet.")
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf(
		"Requests: %d\nImages: %d\nTokens: %d (prompt %d, output %d)",
		stats.Requests, stats.Images, stats.TotalTokens, stats.PromptTokens, stats.OutputTokens))
}

func (b *Bot) handleCleanupCommand(msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.sendMessage(msg.Chat.ID, "Admin only.")
		return
	}
	days := 30
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		d, err := strconv.Atoi(arg)
		if err != nil || d <= 0 {
			b.sendMessage(msg.Chat.ID, "Usage: /cleanup [days]")
			return
		}
		days = d
	}
	removed, err := b.store.Cleanup(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		log.Printf("cleanup command failed: %v", err)
		b.sendMessage(msg.Chat.ID, "Cleanup failed, see logs.")
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Removed %d interaction(s) older than %d day(s).", removed, days))
}

func (b *Bot) handleSetTierCommand(msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.sendMessage(msg.Chat.ID, "Admin only.")
		return
	}
	parts := strings.Fields(msg.CommandArguments())
	if len(parts) != 2 {
		b.sendMessage(msg.Chat.ID, "Usage: /settier <user id> <standard|limited|strict|extra|unlimited>")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		b.sendMessage(msg.Chat.ID, "Bad user id.")
		return
	}
	tier, err := quota.ParseTier(parts[1])
	if err != nil {
		b.sendMessage(msg.Chat.ID, err.Error())
		return
	}
	b.ledger.SetTier(id, tier)
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("User %d is now on tier %s.", id, tier))
}

func (b *Bot) handleResetQuotaCommand(msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.sendMessage(msg.Chat.ID, "Admin only.")
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.sendMessage(msg.Chat.ID, "Usage: /resetquota <user id>")
		return
	}
	b.ledger.Reset(id)
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Cleared charge slots for user %d.", id))
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminUserID != 0 && userID == b.adminUserID
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	// A message may be the follow-up an earlier action is waiting for.
	if len(msg.Photo) > 0 && b.feedPendingUpload(msg) {
		return
	}
	if msg.Text != "" && b.feedPendingPrompt(msg.From.ID, msg.Text) {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	var inputs [][]byte
	if len(msg.Photo) > 0 {
		data, err := b.downloadPhoto(msg.Photo)
		if err != nil {
			log.Printf("failed to download photo from %d: %v", msg.From.ID, err)
			b.sendMessage(msg.Chat.ID, "Could not download your image, please try again.")
			return
		}
		inputs = append(inputs, data)
	}
	if text == "" && len(inputs) == 0 {
		b.sendMessage(msg.Chat.ID, "Send a text description and/or an image to start.")
		return
	}

	now := time.Now().UTC()
	if !b.ledger.Admit(msg.From.ID, now) {
		b.sendMessage(msg.Chat.ID, b.quotaDeniedMessage(msg.From.ID, now))
		return
	}

	st, err := b.store.NewInteraction(persist.KindRequestPending, msg.From.ID, msg.Chat.ID, msg.MessageID, text, inputs)
	if err != nil {
		log.Printf("failed to create interaction for %d: %v", msg.From.ID, err)
		b.sendMessage(msg.Chat.ID, "Something went wrong storing your request, please try again.")
		return
	}
	b.restorer.Track(st)
	log.Printf("new interaction %s for user %d (%d input image(s))", st.ID, msg.From.ID, len(inputs))

	b.runGeneration(ctx, st, msg.From, "")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}
	text := cb.Message.Caption
	if text == "" {
		text = cb.Message.Text
	}
	comp, err := b.restorer.ResolveFromMessage(text)
	if err != nil {
		b.answerCallback(cb, "")
		b.sendMessage(cb.Message.Chat.ID, restoreFailedMsg)
		return
	}
	st := comp.State

	switch {
	case cb.Data == navPrevCmd:
		if !st.NavPrev() {
			b.answerCallback(cb, "Already at the first result")
			return
		}
		b.answerCallback(cb, "")
		b.saveAndRefresh(st, cb.Message.Chat.ID, cb.Message.MessageID)
	case cb.Data == navNextCmd:
		if !st.NavNext() {
			b.answerCallback(cb, "Already at the latest result")
			return
		}
		b.answerCallback(cb, "")
		b.saveAndRefresh(st, cb.Message.Chat.ID, cb.Message.MessageID)
	case cb.Data == regenCmd:
		b.answerCallback(cb, "Generating…")
		b.regenerate(ctx, st, cb.From, "", cb.Message.Chat.ID, cb.Message.MessageID)
	case strings.HasPrefix(cb.Data, stylePrefix):
		key := strings.TrimPrefix(cb.Data, stylePrefix)
		b.answerCallback(cb, "Generating…")
		b.regenerate(ctx, st, cb.From, key, cb.Message.Chat.ID, cb.Message.MessageID)
	case cb.Data == addImageCmd:
		b.answerCallback(cb, "")
		b.handleAddImage(st, cb.Message.Chat.ID)
	case cb.Data == editPromptCmd:
		b.answerCallback(cb, "")
		b.handleEditPrompt(st, cb.Message.Chat.ID)
	default:
		b.answerCallback(cb, "")
	}
}

func (b *Bot) quotaDeniedMessage(userID int64, now time.Time) string {
	if at, ok := b.ledger.AvailableAt(userID, now); ok {
		return fmt.Sprintf("You are out of image generations for now. Try again at %s UTC.", at.UTC().Format("15:04"))
	}
	return "You are out of image generations for now. Try again later."
}

// handleAddImage suspends the flow until the user uploads an image or
// the wait deadline passes.
func (b *Bot) handleAddImage(st *persist.InteractionState, chatID int64) {
	ch, ok := b.registerPendingUpload(st.UserID)
	if !ok {
		b.sendMessage(chatID, "Already waiting for an image from you.")
		return
	}
	defer b.clearPendingUpload(st.UserID)
	b.sendMessage(chatID, fmt.Sprintf("Send the image you want to add within %s.", b.uploadWait))

	select {
	case data := <-ch:
		ref, err := b.store.SaveInputImage(data, st.ID, len(st.InputImagePaths))
		if err != nil {
			log.Printf("failed to save added image for %s: %v", st.ID, err)
			b.sendMessage(chatID, "Could not store the image, please try again.")
			return
		}
		st.InputImagePaths = append(st.InputImagePaths, ref)
		if err := b.store.Save(st); err != nil {
			log.Printf("failed to save interaction %s: %v", st.ID, err)
		}
		b.sendMessage(chatID, "Image added. Tap regenerate to use it.")
	case <-time.After(b.uploadWait):
		b.sendMessage(chatID, "No image received, action cancelled.")
	}
}

// handleEditPrompt suspends the flow until the user sends replacement
// text or the wait deadline passes.
func (b *Bot) handleEditPrompt(st *persist.InteractionState, chatID int64) {
	ch, ok := b.registerPendingPrompt(st.UserID)
	if !ok {
		b.sendMessage(chatID, "Already waiting for a new prompt from you.")
		return
	}
	defer b.clearPendingPrompt(st.UserID)
	b.sendMessage(chatID, fmt.Sprintf("Send the new prompt text within %s.", b.uploadWait))

	select {
	case text := <-ch:
		st.OriginalText = text
		if err := b.store.Save(st); err != nil {
			log.Printf("failed to save interaction %s: %v", st.ID, err)
			b.sendMessage(chatID, "Could not store the new prompt, please try again.")
			return
		}
		b.sendMessage(chatID, "Prompt updated. Tap regenerate to apply it.")
	case <-time.After(b.uploadWait):
		b.sendMessage(chatID, "No text received, action cancelled.")
	}
}

func (b *Bot) registerPendingUpload(userID int64) (chan []byte, bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if _, exists := b.pendingUploads[userID]; exists {
		return nil, false
	}
	ch := make(chan []byte, 1)
	b.pendingUploads[userID] = ch
	return ch, true
}

func (b *Bot) clearPendingUpload(userID int64) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	delete(b.pendingUploads, userID)
}

func (b *Bot) feedPendingUpload(msg *tgbotapi.Message) bool {
	b.pendingMu.Lock()
	ch, ok := b.pendingUploads[msg.From.ID]
	b.pendingMu.Unlock()
	if !ok {
		return false
	}
	data, err := b.downloadPhoto(msg.Photo)
	if err != nil {
		log.Printf("failed to download awaited photo from %d: %v", msg.From.ID, err)
		b.sendMessage(msg.Chat.ID, "Could not download your image, please try again.")
		return true
	}
	select {
	case ch <- data:
	default:
	}
	return true
}

func (b *Bot) registerPendingPrompt(userID int64) (chan string, bool) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	if _, exists := b.pendingPrompts[userID]; exists {
		return nil, false
	}
	ch := make(chan string, 1)
	b.pendingPrompts[userID] = ch
	return ch, true
}

func (b *Bot) clearPendingPrompt(userID int64) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	delete(b.pendingPrompts, userID)
}

func (b *Bot) feedPendingPrompt(userID int64, text string) bool {
	b.pendingMu.Lock()
	ch, ok := b.pendingPrompts[userID]
	b.pendingMu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- text:
	default:
	}
	return true
}

// downloadPhoto fetches the largest size of a Telegram photo.
func (b *Bot) downloadPhoto(sizes []tgbotapi.PhotoSize) ([]byte, error) {
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no photo sizes")
	}
	best := sizes[len(sizes)-1]
	url, err := b.api.GetFileDirectURL(best.FileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
		}
	}(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
