// Package kb implements the knowledge-base lookup engine: keyword
// matching against spreadsheet rows and composition of reply content.
package kb

import (
	"fmt"
	"strings"
)

// ResponseType selects which reply-construction rule applies to a row.
// The set is closed; the composer switches exhaustively over it.
type ResponseType int

// Response types understood by the composer.
const (
	TypeUnknown ResponseType = iota
	TypeText
	TypeImage
	TypeVideo
	TypeAudio
	TypeRedirect
	TypeCombo
)

// ParseResponseType maps a ResponseType cell value to its tag.
// "image_text" is a legacy alias for combo. Unknown values map to
// TypeUnknown, which composes to nothing.
func ParseResponseType(s string) ResponseType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text":
		return TypeText
	case "image":
		return TypeImage
	case "video":
		return TypeVideo
	case "audio":
		return TypeAudio
	case "redirect":
		return TypeRedirect
	case "combo", "image_text":
		return TypeCombo
	default:
		return TypeUnknown
	}
}

// String returns the canonical cell value for the response type.
func (t ResponseType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeImage:
		return "image"
	case TypeVideo:
		return "video"
	case TypeAudio:
		return "audio"
	case TypeRedirect:
		return "redirect"
	case TypeCombo:
		return "combo"
	default:
		return "unknown"
	}
}

// ComboImageSlots is the number of numbered image columns a combo row carries.
const ComboImageSlots = 4

// Row is one knowledge-base entry: a keyword pattern paired with the
// content fields its response type draws from.
type Row struct {
	Keyword string
	Type    ResponseType

	TextReply string

	ImageURL  string
	ImageURLs [ComboImageSlots]string // ImageURL1..ImageURL4

	VideoURL        string
	PreviewImageURL string

	AudioURL       string
	DurationMillis string // raw cell value; parsed at compose time

	ButtonLabel  string
	RedirectURL  string
	RedirectOAID string
}

// Column names in the spreadsheet vocabulary.
const (
	colKeyword         = "Keyword"
	colResponseType    = "ResponseType"
	colTextReply       = "TextReply"
	colImageURL        = "ImageURL"
	colVideoURL        = "VideoURL"
	colPreviewImageURL = "PreviewImageURL"
	colAudioURL        = "AudioURL"
	colDurationMillis  = "DurationMillis"
	colButtonLabel     = "ButtonLabel"
	colRedirectURL     = "RedirectURL"
	colRedirectOAID    = "RedirectOA_ID"
)

// RowFromRecord builds a Row from a raw column-name to cell-value mapping.
// Cell values are trimmed; unknown columns are ignored.
func RowFromRecord(rec map[string]string) Row {
	cell := func(name string) string {
		return strings.TrimSpace(rec[name])
	}

	row := Row{
		Keyword:         cell(colKeyword),
		Type:            ParseResponseType(cell(colResponseType)),
		TextReply:       cell(colTextReply),
		ImageURL:        cell(colImageURL),
		VideoURL:        cell(colVideoURL),
		PreviewImageURL: cell(colPreviewImageURL),
		AudioURL:        cell(colAudioURL),
		DurationMillis:  cell(colDurationMillis),
		ButtonLabel:     cell(colButtonLabel),
		RedirectURL:     cell(colRedirectURL),
		RedirectOAID:    cell(colRedirectOAID),
	}

	for i := 0; i < ComboImageSlots; i++ {
		row.ImageURLs[i] = cell(fmt.Sprintf("%s%d", colImageURL, i+1))
	}

	return row
}
