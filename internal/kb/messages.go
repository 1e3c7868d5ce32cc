package kb

// Fixed user-facing texts. The bot serves a Thai-speaking audience;
// these match the wording the sheet owners ship to production.
const (
	// NotFoundText is the default reply when no row in any table matches.
	NotFoundText = "ขออภัยค่ะ ไม่พบข้อมูลที่ท่านสอบถาม"

	// ErrorText is the single generic reply for table-read and
	// composition failures.
	ErrorText = "Sorry, there was an error processing your request."

	// FollowGreetingText is the fallback greeting for follow events when
	// the designated table has no row for the follow sentinel.
	FollowGreetingText = "สวัสดีค่ะ ขอบคุณที่เพิ่มเราเป็นเพื่อน หากมีข้อสงสัยสามารถพิมพ์สอบถามได้เลยนะคะ"

	// ButtonPromptFallback is the button body text when a row has no TextReply.
	ButtonPromptFallback = "กรุณาเลือกเมนูด้านล่าง"

	// ButtonMorePrompt replaces the button body text when the combo reply
	// already carries the TextReply as its own text item.
	ButtonMorePrompt = "ตัวเลือกเพิ่มเติม"

	// ButtonLabelFallback is the button label when a row has no ButtonLabel.
	ButtonLabelFallback = "ดูรายละเอียด"
)

// FollowSentinel is the reserved lookup key resolved when a user follows
// the official account. Sheet owners add a row whose Keyword matches it.
const FollowSentinel = "#follow"

// oaDeepLinkPrefix is the LINE add-friend deep link template an OA id is
// substituted into when a row has no explicit RedirectURL.
const oaDeepLinkPrefix = "https://line.me/R/ti/p/"

// OADeepLink synthesizes the add-friend deep link for an OA id.
func OADeepLink(oaID string) string {
	return oaDeepLinkPrefix + oaID
}
