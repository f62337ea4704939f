package signal

import (
	"regexp"
	"strings"
)

var (
	offerPickRe      = regexp.MustCompile(`(?i)(беру|берём|возьму|подходит|подойдет|подойдёт|первый|второй|третий|оригинал|аналог|этот|вариант\s*\d|давайте)`)
	offerObjectionRe = regexp.MustCompile(`(?i)(дорого|дешевле|скидк|подешевле|другой вариант|а есть еще|а есть ещё|не устраивает|почему так)`)
	bareChoiceRe     = regexp.MustCompile(`^\s*\d{1,2}\s*$`)
)

// LooksLikeOfferReply reports whether a short text reads as a reaction to an
// already-presented offer list: a pick ("беру первый", "2"), or a price
// objection ("дорого"). Used only to let plain text through on the pricing
// stage; it never creates offers by itself.
func LooksLikeOfferReply(text string) bool {
	raw := strings.TrimSpace(text)
	if raw == "" || len([]rune(raw)) > 160 {
		return false
	}
	if bareChoiceRe.MatchString(raw) {
		return true
	}
	return offerPickRe.MatchString(raw) || offerObjectionRe.MatchString(raw)
}
