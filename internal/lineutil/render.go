package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/tanakritw/sheetqna-linebot-go/internal/kb"
)

// Render converts composed reply content into LINE messages, dropping
// anything past the per-reply message cap.
func Render(items []kb.Content) []messaging_api.MessageInterface {
	if len(items) > kb.MaxReplyItems {
		items = items[:kb.MaxReplyItems]
	}

	messages := make([]messaging_api.MessageInterface, 0, len(items))
	for _, item := range items {
		switch c := item.(type) {
		case kb.TextContent:
			messages = append(messages, NewTextMessage(c.Body))
		case kb.ImageContent:
			messages = append(messages, NewImageMessage(c.URL, c.PreviewURL))
		case kb.VideoContent:
			messages = append(messages, NewVideoMessage(c.URL, c.PreviewURL))
		case kb.AudioContent:
			messages = append(messages, NewAudioMessage(c.URL, c.DurationMs))
		case kb.ButtonContent:
			messages = append(messages, NewButtonsTemplate(c.Prompt, c.Prompt, NewURIAction(c.Label, c.URI)))
		}
	}
	return messages
}
