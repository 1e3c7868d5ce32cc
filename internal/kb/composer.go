package kb

import (
	"strconv"
	"strings"
)

// MaxReplyItems is the LINE Messaging API cap on messages per reply.
const MaxReplyItems = 5

// numPlaceholder in a TextReply template is substituted with the first
// capture group of the keyword match.
const numPlaceholder = "{num}"

// defaultAudioDurationMs is used when DurationMillis is absent or not a number.
const defaultAudioDurationMs = 60000

// Compose builds the reply items for a matched row. The result carries
// between zero and MaxReplyItems entries; an empty result tells the
// resolver to keep scanning.
func Compose(row Row, m Match) []Content {
	switch row.Type {
	case TypeText:
		return []Content{TextContent{Body: renderTemplate(row.TextReply, m)}}

	case TypeImage:
		url := row.ImageURL
		if url == "" {
			url = row.ImageURLs[0] // multi-sheet variants use ImageURL1
		}
		if url == "" {
			return nil
		}
		return []Content{ImageContent{URL: url, PreviewURL: url}}

	case TypeVideo:
		if row.VideoURL == "" || row.PreviewImageURL == "" {
			return nil
		}
		return []Content{VideoContent{URL: row.VideoURL, PreviewURL: row.PreviewImageURL}}

	case TypeAudio:
		if row.AudioURL == "" {
			return nil
		}
		return []Content{AudioContent{URL: row.AudioURL, DurationMs: audioDuration(row.DurationMillis)}}

	case TypeRedirect:
		uri := redirectURI(row)
		if uri == "" {
			return nil
		}
		prompt := row.TextReply
		if prompt == "" {
			prompt = ButtonPromptFallback
		}
		return []Content{ButtonContent{Prompt: prompt, Label: buttonLabel(row), URI: uri}}

	case TypeCombo:
		return composeCombo(row)

	default:
		return nil
	}
}

// composeCombo assembles a multi-item reply in fixed order: text, up to
// four images, video, button. Every append is checked against the cap.
func composeCombo(row Row) []Content {
	items := make([]Content, 0, MaxReplyItems)

	if row.TextReply != "" {
		items = append(items, TextContent{Body: row.TextReply})
	}

	for _, url := range row.ImageURLs {
		if len(items) >= MaxReplyItems {
			break
		}
		if url != "" {
			items = append(items, ImageContent{URL: url, PreviewURL: url})
		}
	}

	if len(items) < MaxReplyItems && row.VideoURL != "" && row.PreviewImageURL != "" {
		items = append(items, VideoContent{URL: row.VideoURL, PreviewURL: row.PreviewImageURL})
	}

	if len(items) < MaxReplyItems {
		if uri := redirectURI(row); uri != "" {
			prompt := row.TextReply
			if prompt == "" {
				prompt = ButtonPromptFallback
			} else if hasText(items) {
				// The TextReply is already a standalone text item.
				prompt = ButtonMorePrompt
			}
			items = append(items, ButtonContent{Prompt: prompt, Label: buttonLabel(row), URI: uri})
		}
	}

	return items
}

// renderTemplate substitutes the {num} placeholder with the first capture
// group. Without a placeholder or without a group the template passes
// through verbatim.
func renderTemplate(template string, m Match) string {
	if m.HasGroup && strings.Contains(template, numPlaceholder) {
		return strings.ReplaceAll(template, numPlaceholder, m.Group)
	}
	return template
}

// redirectURI resolves the effective button target. An explicit
// RedirectURL wins over the OA deep link synthesized from RedirectOA_ID.
func redirectURI(row Row) string {
	if row.RedirectURL != "" {
		return row.RedirectURL
	}
	if row.RedirectOAID != "" {
		return OADeepLink(row.RedirectOAID)
	}
	return ""
}

func buttonLabel(row Row) string {
	if row.ButtonLabel != "" {
		return row.ButtonLabel
	}
	return ButtonLabelFallback
}

func audioDuration(cell string) int {
	if cell == "" {
		return defaultAudioDurationMs
	}
	ms, err := strconv.Atoi(cell)
	if err != nil || ms <= 0 {
		return defaultAudioDurationMs
	}
	return ms
}

func hasText(items []Content) bool {
	for _, it := range items {
		if _, ok := it.(TextContent); ok {
			return true
		}
	}
	return false
}
