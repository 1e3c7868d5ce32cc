// Package lineutil builds LINE Messaging API messages from reply
// content, clamping everything to the platform's documented limits.
package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// LINE API limits.
const (
	maxTextRunes    = 5000
	maxAltTextRunes = 400
	maxButtonText   = 160 // buttons template without thumbnail
	maxButtonLabel  = 20
)

// NewTextMessage creates a text message, truncating past the 5000
// character limit.
func NewTextMessage(text string) *messaging_api.TextMessage {
	return &messaging_api.TextMessage{
		Text: clampRunes(text, maxTextRunes),
	}
}

// NewImageMessage creates an image message. Both URLs must be HTTPS.
func NewImageMessage(originalContentURL, previewImageURL string) *messaging_api.ImageMessage {
	return &messaging_api.ImageMessage{
		OriginalContentUrl: originalContentURL,
		PreviewImageUrl:    previewImageURL,
	}
}

// NewVideoMessage creates a video message with its preview thumbnail.
func NewVideoMessage(originalContentURL, previewImageURL string) *messaging_api.VideoMessage {
	return &messaging_api.VideoMessage{
		OriginalContentUrl: originalContentURL,
		PreviewImageUrl:    previewImageURL,
	}
}

// NewAudioMessage creates an audio message. duration is in milliseconds.
func NewAudioMessage(originalContentURL string, durationMs int) *messaging_api.AudioMessage {
	return &messaging_api.AudioMessage{
		OriginalContentUrl: originalContentURL,
		Duration:           int64(durationMs),
	}
}

// NewURIAction creates a URI action for a template button.
func NewURIAction(label, uri string) Action {
	return &messaging_api.UriAction{
		Label: clampRunes(label, maxButtonLabel),
		Uri:   uri,
	}
}

// NewButtonsTemplate creates a buttons template message carrying one or
// more actions. altText shows in push notifications and chat lists.
func NewButtonsTemplate(altText, text string, actions ...Action) *messaging_api.TemplateMessage {
	if len(actions) > 4 {
		actions = actions[:4]
	}

	return &messaging_api.TemplateMessage{
		AltText: clampRunes(altText, maxAltTextRunes),
		Template: &messaging_api.ButtonsTemplate{
			Text:    clampRunes(text, maxButtonText),
			Actions: actions,
		},
	}
}

// clampRunes truncates text to maxRunes, marking the cut with an
// ellipsis when there is room for one.
func clampRunes(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
