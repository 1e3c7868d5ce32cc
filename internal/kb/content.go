package kb

// Content is one reply item produced by the composer. The set of
// implementations is closed; renderers switch over the concrete types.
type Content interface {
	contentItem()
}

// TextContent is a plain text reply item.
type TextContent struct {
	Body string
}

// ImageContent is an image reply item.
type ImageContent struct {
	URL        string
	PreviewURL string
}

// VideoContent is a video reply item. Both URLs are always set.
type VideoContent struct {
	URL        string
	PreviewURL string
}

// AudioContent is an audio reply item.
type AudioContent struct {
	URL        string
	DurationMs int
}

// ButtonContent is a single-action button template reply item.
type ButtonContent struct {
	Prompt string // body text shown above the button
	Label  string // button label
	URI    string // target opened on tap
}

func (TextContent) contentItem()   {}
func (ImageContent) contentItem()  {}
func (VideoContent) contentItem()  {}
func (AudioContent) contentItem()  {}
func (ButtonContent) contentItem() {}
