package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SchemaVersion is written into every encoded token.
const SchemaVersion = 1

type Classification string

const (
	ClassificationPostal    Classification = "postal"
	ClassificationBanking   Classification = "banking"
	ClassificationItemScams Classification = "item_scams"
	ClassificationOther     Classification = "other"
)

// Classifications lists the selectable values in display order.
var Classifications = []Classification{
	ClassificationPostal,
	ClassificationBanking,
	ClassificationItemScams,
	ClassificationOther,
}

// ReportToken is the review state carried inside UI option values.
type ReportToken struct {
	Domain          string
	ReviewMessageID string
	Classification  Classification
}

// Field names a token field a transition may require.
type Field string

const (
	FieldDomain          Field = "domain"
	FieldReviewMessageID Field = "ts"
	FieldClassification  Field = "classification"
)

var (
	ErrMalformed    = errors.New("malformed token")
	ErrMissingField = errors.New("token missing required field")
)

// DecodeError reports why a raw token could not be used.
type DecodeError struct {
	Kind  error // ErrMalformed or ErrMissingField
	Field Field
	Err   error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *DecodeError) Is(target error) bool { return target == e.Kind }

func (e *DecodeError) Unwrap() error { return e.Err }

// wire keys are the short {"domain","ts"} form so option values stay readable in Slack.
type wireToken struct {
	Version        int            `json:"v,omitempty"`
	Domain         string         `json:"domain"`
	TS             string         `json:"ts,omitempty"`
	Classification Classification `json:"classification,omitempty"`
}

// Encode serializes t into the opaque string embedded in UI controls.
func Encode(t ReportToken) string {
	b, _ := json.Marshal(wireToken{
		Version:        SchemaVersion,
		Domain:         t.Domain,
		TS:             t.ReviewMessageID,
		Classification: t.Classification,
	})
	return string(b)
}

// Decode parses raw and checks that every required field is present.
// The domain is always required. A token without a version field predates
// versioning and is read as version 1.
func Decode(raw string, required ...Field) (ReportToken, error) {
	var w wireToken
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	if err := dec.Decode(&w); err != nil {
		return ReportToken{}, &DecodeError{Kind: ErrMalformed, Err: err}
	}
	if dec.More() {
		return ReportToken{}, &DecodeError{Kind: ErrMalformed, Err: errors.New("trailing data")}
	}
	if w.Version > SchemaVersion || w.Version < 0 {
		return ReportToken{}, &DecodeError{Kind: ErrMalformed, Err: fmt.Errorf("unsupported version %d", w.Version)}
	}
	if w.Domain == "" {
		return ReportToken{}, &DecodeError{Kind: ErrMissingField, Field: FieldDomain}
	}

	t := ReportToken{
		Domain:          w.Domain,
		ReviewMessageID: w.TS,
		Classification:  w.Classification,
	}
	for _, f := range required {
		switch f {
		case FieldReviewMessageID:
			if t.ReviewMessageID == "" {
				return ReportToken{}, &DecodeError{Kind: ErrMissingField, Field: f}
			}
		case FieldClassification:
			if t.Classification == "" {
				return ReportToken{}, &DecodeError{Kind: ErrMissingField, Field: f}
			}
		}
	}
	return t, nil
}

// WithMessageID returns a copy of t bound to the posted review message.
func (t ReportToken) WithMessageID(id string) ReportToken {
	t.ReviewMessageID = id
	return t
}

// Label is the human readable name shown in option text and feed posts.
func (c Classification) Label() string {
	switch c {
	case ClassificationPostal:
		return "Postal"
	case ClassificationBanking:
		return "Banking"
	case ClassificationItemScams:
		return "Item Scams"
	case ClassificationOther:
		return "Other"
	default:
		return string(c)
	}
}
