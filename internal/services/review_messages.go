package services

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/token"
)

// Action ids carried by the review message controls.
const (
	ActionClassification = "domain_classification"
	ActionMarkSafe       = "domain_safe"
	ActionScan           = "domain_scan"
)

const reviewFallbackText = "New domain classification needed"

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}

// reviewBlocks renders the review message. Every control value is an encoded
// token for domain bound to messageID, which is empty on the first post.
func reviewBlocks(domain, messageID string) []slack.Block {
	base := token.ReportToken{Domain: domain, ReviewMessageID: messageID}

	options := make([]*slack.OptionBlockObject, 0, len(token.Classifications))
	for _, c := range token.Classifications {
		t := base
		t.Classification = c
		options = append(options, slack.NewOptionBlockObject(token.Encode(t), plain(c.Label()), nil))
	}
	selectMenu := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select an item"), ActionClassification, options...)

	safe := slack.NewButtonBlockElement(ActionMarkSafe, token.Encode(base), plain("Mark safe"))
	scan := slack.NewButtonBlockElement(ActionScan, token.Encode(base), plain("Scan"))

	return []slack.Block{
		slack.NewSectionBlock(markdown(":mag: New Domain Classification Needed!"), nil, nil),
		slack.NewSectionBlock(markdown(fmt.Sprintf("*Domain*: _%s_", domain)), nil, nil),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			markdown(fmt.Sprintf("Pick a classification for this domain (%s)", domain)),
			nil,
			slack.NewAccessory(selectMenu),
		),
		slack.NewActionBlock("domain_actions", safe, scan),
		slack.NewDividerBlock(),
	}
}

func classifiedText(domain string, c token.Classification, user string) string {
	return fmt.Sprintf("> Domain: %s has been classified as %s by <@%s>", domain, c.Label(), user)
}

func markedSafeText(domain, user string) string {
	return fmt.Sprintf("> Domain: %s has been marked safe by <@%s>", domain, user)
}

func verdictRecordedText(domain string) string {
	return fmt.Sprintf("Verdict for %s recorded.", domain)
}

func verdictFailedText(domain, response string) string {
	return fmt.Sprintf("Failed to record verdict for %s:\n```%s```", domain, response)
}

func scanStartedText(domain, resultURL string) string {
	return fmt.Sprintf(":microscope: Scan submitted for %s: %s", domain, resultURL)
}

func scanFeedText(domain, user, resultURL string) string {
	return fmt.Sprintf("> Domain: %s is being scanned at the request of <@%s>: %s", domain, user, resultURL)
}

func scanFailedText(domain string, err error) string {
	return fmt.Sprintf(":warning: Scan for %s failed: %v", domain, err)
}
