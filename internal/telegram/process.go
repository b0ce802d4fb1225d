package telegram

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-painter/internal/persist"
	"ai-painter/internal/session"
	"ai-painter/internal/storage"
)

// placeholderPNG is a 1x1 transparent PNG substituted when a
// referenced artifact file is gone.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// runGeneration produces the first output for a fresh interaction and
// sends the result message carrying the session footer.
func (b *Bot) runGeneration(ctx context.Context, st *persist.InteractionState, from *tgbotapi.User, styleKey string) {
	b.sendMessage(st.ChannelID, "🎨 Generating your image…")
	if errMsg := b.generateOutput(ctx, st, from, styleKey); errMsg != "" {
		b.sendMessage(st.ChannelID, errMsg)
		return
	}
	b.sendResult(st)
}

// regenerate produces a new output for an existing interaction and
// edits the message in place.
func (b *Bot) regenerate(ctx context.Context, st *persist.InteractionState, from *tgbotapi.User, styleKey string, chatID int64, messageID int) {
	if errMsg := b.generateOutput(ctx, st, from, styleKey); errMsg != "" {
		b.sendMessage(chatID, errMsg)
		return
	}
	b.refreshDisplay(st, chatID, messageID)
}

// generateOutput runs admit -> refine -> generate -> charge -> persist.
// It returns a user-facing message on failure and "" on success.
func (b *Bot) generateOutput(ctx context.Context, st *persist.InteractionState, from *tgbotapi.User, styleKey string) string {
	now := time.Now().UTC()
	if !b.ledger.Admit(st.UserID, now) {
		return b.quotaDeniedMessage(st.UserID, now)
	}

	text := st.OriginalText
	if styleKey != "" {
		text = applyStyle(styleKey, text)
	}
	if strings.TrimSpace(text) == "" {
		text = "a creative interpretation of the provided image"
	}

	prompt := text
	var promptTokens, outputTokens int
	if b.refiner != nil {
		ref, err := b.refiner.RefinePrompt(ctx, text)
		if err != nil {
			log.Printf("prompt refinement failed for %s, using raw text: %v", st.ID, err)
		} else if strings.TrimSpace(ref.Prompt) != "" {
			prompt = strings.TrimSpace(ref.Prompt)
			promptTokens += ref.PromptTokens
			outputTokens += ref.CompletionTokens
		}
	}

	res, err := b.generator.GenerateImage(ctx, prompt)
	if err != nil {
		log.Printf("image generation failed for %s: %v", st.ID, err)
		return "Image generation failed, please try again."
	}
	b.ledger.Charge(st.UserID, time.Now().UTC())

	label := styleKey
	if label == "" {
		label = "result"
	}
	// Sequence number keeps filenames unique within one second.
	label = fmt.Sprintf("%s_%d", label, len(st.Outputs))
	ref, err := b.store.SaveOutputImage(res.Image, st.ID, label)
	if err != nil {
		log.Printf("failed to store output for %s: %v", st.ID, err)
		return "Something went wrong storing the result, please try again."
	}

	evicted := st.AddOutput(persist.OutputRecord{
		ImagePath:  ref,
		Filename:   path.Base(ref),
		PromptUsed: prompt,
		Timestamp:  time.Now().UTC(),
	})
	for _, old := range evicted {
		b.store.RemoveArtifact(old.ImagePath)
	}
	st.Kind = persist.KindResultsBrowser
	if err := b.store.Save(st); err != nil {
		log.Printf("failed to save interaction %s: %v", st.ID, err)
	}

	username := ""
	if from != nil {
		username = from.UserName
	}
	b.ledger.RecordUsage(st.UserID, username, promptTokens, outputTokens, 1)
	if b.recorder != nil {
		err := b.recorder.AppendGeneration(storage.Event{
			Timestamp:     time.Now().UTC(),
			UserID:        st.UserID,
			Username:      username,
			InteractionID: st.ID,
			Prompt:        prompt,
			Model:         res.Model,
			PromptTokens:  promptTokens,
			OutputTokens:  outputTokens,
			Images:        1,
		})
		if err != nil {
			log.Printf("failed to record generation event: %v", err)
		}
	}
	return ""
}

// sendResult sends a fresh photo message for the current output.
func (b *Bot) sendResult(st *persist.InteractionState) {
	img, note := b.currentImage(st)
	photo := tgbotapi.NewPhoto(st.ChannelID, tgbotapi.FileBytes{Name: "result.png", Bytes: img})
	photo.Caption = b.buildCaption(st, note)
	photo.ReplyMarkup = b.resultKeyboard(st)
	if _, err := b.s.Send(photo); err != nil {
		log.Printf("failed to send result for %s: %v", st.ID, err)
	}
}

func (b *Bot) saveAndRefresh(st *persist.InteractionState, chatID int64, messageID int) {
	if err := b.store.Save(st); err != nil {
		log.Printf("failed to save interaction %s: %v", st.ID, err)
	}
	b.refreshDisplay(st, chatID, messageID)
}

// refreshDisplay replaces the photo and caption of the result message
// with the output under the cursor.
func (b *Bot) refreshDisplay(st *persist.InteractionState, chatID int64, messageID int) {
	img, note := b.currentImage(st)
	media := tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{Name: "result.png", Bytes: img})
	media.Caption = b.buildCaption(st, note)
	kb := b.resultKeyboard(st)
	edit := tgbotapi.EditMessageMediaConfig{
		BaseEdit: tgbotapi.BaseEdit{
			ChatID:      chatID,
			MessageID:   messageID,
			ReplyMarkup: &kb,
		},
		Media: media,
	}
	if _, err := b.s.Send(edit); err != nil {
		log.Printf("failed to refresh display for %s: %v", st.ID, err)
	}
}

// currentImage resolves the artifact under the cursor, substituting
// the placeholder when the file is gone.
func (b *Bot) currentImage(st *persist.InteractionState) (img []byte, note string) {
	out, ok := st.CurrentOutput()
	if !ok {
		return placeholderPNG, "No results yet."
	}
	data, err := b.store.ResolveArtifact(out.ImagePath)
	if err != nil {
		log.Printf("artifact %s unavailable for %s: %v", out.ImagePath, st.ID, err)
		return placeholderPNG, "⚠️ The original image file is no longer available."
	}
	return data, ""
}

func (b *Bot) buildCaption(st *persist.InteractionState, note string) string {
	var sb strings.Builder
	if st.OriginalText != "" {
		text := st.OriginalText
		if len(text) > 200 {
			text = text[:200] + "…"
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	if len(st.Outputs) > 0 {
		sb.WriteString(fmt.Sprintf("Result %d of %d", st.CurrentIndex+1, len(st.Outputs)))
	}
	if note != "" {
		sb.WriteString("\n")
		sb.WriteString(note)
	}
	return session.EmbedID(sb.String(), st.ID)
}

func (b *Bot) resultKeyboard(st *persist.InteractionState) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(st.Outputs) > 1 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", navPrevCmd),
			tgbotapi.NewInlineKeyboardButtonData("▶️", navNextCmd),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔁 Regenerate", regenCmd),
		tgbotapi.NewInlineKeyboardButtonData("➕ Add image", addImageCmd),
		tgbotapi.NewInlineKeyboardButtonData("✏️ Edit prompt", editPromptCmd),
	))
	var styleRow []tgbotapi.InlineKeyboardButton
	for _, key := range styleKeys() {
		styleRow = append(styleRow, tgbotapi.NewInlineKeyboardButtonData(styleTemplates[key].Name, stylePrefix+key))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(styleRow...))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
