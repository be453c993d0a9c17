package services

import "github.com/ahmetcoskunkizilkaya/phish-review/internal/token"

const (
	EmojiUnknownClassification = "grey_question"
	EmojiDefaultReviewer       = "bust_in_silhouette"
	EmojiMarkedSafe            = "shield"
	EmojiVerdictRecorded       = "white_check_mark"
	EmojiVerdictFailed         = "x"
)

var classificationEmojis = map[token.Classification]string{
	token.ClassificationPostal:    "mailbox",
	token.ClassificationBanking:   "bank",
	token.ClassificationItemScams: "customs",
	token.ClassificationOther:     "question",
}

// ClassificationEmoji maps a classification to the reaction added to its
// feed post. Unknown values get a grey question mark.
func ClassificationEmoji(c token.Classification) string {
	if e, ok := classificationEmojis[c]; ok {
		return e
	}
	return EmojiUnknownClassification
}
