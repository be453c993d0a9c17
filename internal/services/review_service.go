package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/dispatch"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/phish-review/internal/token"
)

// Dispatcher is the outbound job queue. *dispatch.Queue implements it.
type Dispatcher interface {
	Enqueue(job dispatch.Job) *dispatch.Future
}

type ReviewConfig struct {
	ReviewChannel string
	FeedChannel   string
	// VerdictSuccessBody is the only verdict response treated as accepted.
	VerdictSuccessBody string
	// ReviewerEmojis maps Slack user ids to the reaction added for them.
	ReviewerEmojis map[string]string
}

// ReviewService drives a reported domain from the review message to its
// verdict. It keeps no state; everything it needs comes back in the token
// carried by the control a reviewer used.
type ReviewService struct {
	queue   Dispatcher
	verdict VerdictSink
	scanner Scanner
	cfg     ReviewConfig
	logger  *slog.Logger
}

func NewReviewService(queue Dispatcher, verdict VerdictSink, scanner Scanner, cfg ReviewConfig, logger *slog.Logger) *ReviewService {
	if cfg.VerdictSuccessBody == "" {
		cfg.VerdictSuccessBody = DefaultVerdictSuccessBody
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		queue:   queue,
		verdict: verdict,
		scanner: scanner,
		cfg:     cfg,
		logger:  logger.With("component", "review"),
	}
}

// SubmitReport posts the review message for domain and, once the post has an
// id, rewrites its controls so every token carries that id. It returns the
// review message id after the rewrite lands. If ctx ends first the rewrite
// still happens in the background.
func (s *ReviewService) SubmitReport(ctx context.Context, domain, requestedBy string) (string, error) {
	if err := ValidateDomain(domain); err != nil {
		return "", err
	}

	post := s.queue.Enqueue(dispatch.Post(gateway.Message{
		Channel: s.cfg.ReviewChannel,
		Text:    reviewFallbackText,
		Blocks:  reviewBlocks(domain, ""),
	}))

	type submitted struct {
		id  string
		err error
	}
	done := make(chan submitted, 1)
	go func() {
		id, err := s.bindReviewMessage(post, domain)
		done <- submitted{id, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		s.logger.Info("review requested", "domain", domain, "requested_by", requestedBy, "review_message_id", r.id)
		return r.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// bindReviewMessage waits for the post, then for the update binding its id.
// A message whose controls were never bound cannot be acted on, so it is
// deleted.
func (s *ReviewService) bindReviewMessage(post *dispatch.Future, domain string) (string, error) {
	res, err := post.Result()
	if err != nil {
		return "", fmt.Errorf("failed to post review message: %w", err)
	}
	update := s.queue.Enqueue(dispatch.Update(res.MessageID, gateway.Message{
		Channel: s.cfg.ReviewChannel,
		Text:    reviewFallbackText,
		Blocks:  reviewBlocks(domain, res.MessageID),
	}))
	if _, err := update.Result(); err != nil {
		s.logger.Error("review message not bound, removing it", "domain", domain, "review_message_id", res.MessageID, "error", err)
		s.queue.Enqueue(dispatch.Delete(s.cfg.ReviewChannel, res.MessageID))
		return "", fmt.Errorf("failed to bind review message %s: %w", res.MessageID, err)
	}
	return res.MessageID, nil
}

// HandleClassification applies a reviewer's classification: the review
// message goes away, the verdict is recorded and the feed is told.
func (s *ReviewService) HandleClassification(ctx context.Context, raw, user string) error {
	t, err := token.Decode(raw, token.FieldReviewMessageID, token.FieldClassification)
	if err != nil {
		s.logger.Warn("classification token rejected", "user", user, "error", err)
		return err
	}

	s.queue.Enqueue(dispatch.Delete(s.cfg.ReviewChannel, t.ReviewMessageID))

	body, sinkErr := s.verdict.RecordVerdict(ctx, t.Domain, user, t.Classification)
	outcome := s.verdictOutcome(body, sinkErr)

	feed := s.queue.Enqueue(dispatch.Post(gateway.Message{
		Channel: s.cfg.FeedChannel,
		Text:    classifiedText(t.Domain, t.Classification, user),
	}))
	res, err := feed.Wait(ctx)
	if err != nil {
		if outcome != nil {
			s.logger.Error("verdict rejected", "domain", t.Domain, "classification", string(t.Classification), "user", user, "error", outcome)
		}
		return errors.Join(fmt.Errorf("failed to post classification to feed: %w", err), outcome)
	}

	s.react(res.MessageID, ClassificationEmoji(t.Classification))
	s.react(res.MessageID, s.ReviewerEmoji(user))

	var se *SinkError
	if errors.As(outcome, &se) {
		s.logger.Error("verdict rejected", "domain", t.Domain, "classification", string(t.Classification), "user", user, "error", outcome)
		s.queue.Enqueue(dispatch.Post(gateway.Message{
			Channel:  s.cfg.FeedChannel,
			ThreadID: res.MessageID,
			Text:     verdictFailedText(t.Domain, se.Body),
		}))
		s.react(res.MessageID, EmojiVerdictFailed)
		return outcome
	}

	s.queue.Enqueue(dispatch.Post(gateway.Message{
		Channel:  s.cfg.FeedChannel,
		ThreadID: res.MessageID,
		Text:     verdictRecordedText(t.Domain),
	}))
	s.react(res.MessageID, EmojiVerdictRecorded)
	s.logger.Info("domain classified", "domain", t.Domain, "classification", string(t.Classification), "user", user)
	return nil
}

// verdictOutcome is nil for the success sentinel and a *SinkError otherwise.
func (s *ReviewService) verdictOutcome(body string, err error) error {
	if err == nil && body == s.cfg.VerdictSuccessBody {
		return nil
	}
	if body == "" && err != nil {
		body = err.Error()
	}
	return &SinkError{Body: body, Err: err}
}

// HandleRejectSafe dismisses a report as not phishing. No verdict is recorded.
func (s *ReviewService) HandleRejectSafe(ctx context.Context, raw, user string) error {
	t, err := token.Decode(raw, token.FieldReviewMessageID)
	if err != nil {
		s.logger.Warn("mark safe token rejected", "user", user, "error", err)
		return err
	}

	s.queue.Enqueue(dispatch.Delete(s.cfg.ReviewChannel, t.ReviewMessageID))
	feed := s.queue.Enqueue(dispatch.Post(gateway.Message{
		Channel: s.cfg.FeedChannel,
		Text:    markedSafeText(t.Domain, user),
	}))
	res, err := feed.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to post safe verdict to feed: %w", err)
	}

	s.react(res.MessageID, s.ReviewerEmoji(user))
	s.react(res.MessageID, EmojiMarkedSafe)
	s.logger.Info("domain marked safe", "domain", t.Domain, "user", user)
	return nil
}

// HandleScanRequest submits the domain for a scan and replies in the review
// message thread. A scan failure is reported there and not returned; the
// review stays open either way.
func (s *ReviewService) HandleScanRequest(ctx context.Context, raw, user string) error {
	t, err := token.Decode(raw, token.FieldReviewMessageID)
	if err != nil {
		s.logger.Warn("scan token rejected", "user", user, "error", err)
		return err
	}

	var result *ScanResult
	if s.scanner == nil {
		err = ErrScanNotConfigured
	} else {
		result, err = s.scanner.Scan(ctx, t.Domain)
	}
	if err != nil {
		s.logger.Warn("scan failed", "domain", t.Domain, "user", user, "error", err)
		s.queue.Enqueue(dispatch.Post(gateway.Message{
			Channel:  s.cfg.ReviewChannel,
			ThreadID: t.ReviewMessageID,
			Text:     scanFailedText(t.Domain, err),
		}))
		return nil
	}

	s.queue.Enqueue(dispatch.Post(gateway.Message{
		Channel:  s.cfg.ReviewChannel,
		ThreadID: t.ReviewMessageID,
		Text:     scanStartedText(t.Domain, result.ResultURL),
	}))
	s.queue.Enqueue(dispatch.Post(gateway.Message{
		Channel: s.cfg.FeedChannel,
		Text:    scanFeedText(t.Domain, user, result.ResultURL),
	}))
	s.logger.Info("scan submitted", "domain", t.Domain, "user", user, "scan_id", result.UUID)
	return nil
}

// HandleAction routes an interaction by action id. Ids without a handler are
// ignored.
func (s *ReviewService) HandleAction(ctx context.Context, actionID, value, user string) error {
	switch actionID {
	case ActionClassification:
		return s.HandleClassification(ctx, value, user)
	case ActionMarkSafe:
		return s.HandleRejectSafe(ctx, value, user)
	case ActionScan:
		return s.HandleScanRequest(ctx, value, user)
	default:
		s.logger.Debug("ignoring unhandled action", "action_id", actionID, "user", user)
		return nil
	}
}

// ReviewerEmoji is the reaction identifying who made a call.
func (s *ReviewService) ReviewerEmoji(user string) string {
	if e, ok := s.cfg.ReviewerEmojis[user]; ok && e != "" {
		return e
	}
	return EmojiDefaultReviewer
}

func (s *ReviewService) react(messageID, emoji string) {
	s.queue.Enqueue(dispatch.React(s.cfg.FeedChannel, messageID, emoji))
}
