package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// postmarkAPI is the part of *postmark.Client the sender uses.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

type postmarkSender struct {
	api    postmarkAPI
	config Config
}

// NewPostmarkSender creates a Postmark-backed sender.
// The server token and a valid sender address are required; the account token
// is only needed for administrative endpoints and may be empty.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if err := validatePostmarkConfig(cfg); err != nil {
		return nil, err
	}
	return newPostmarkSender(postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken), cfg), nil
}

// MustNewPostmarkSender is NewPostmarkSender that panics on invalid config.
func MustNewPostmarkSender(cfg Config) Sender {
	s, err := NewPostmarkSender(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func newPostmarkSender(api postmarkAPI, cfg Config) *postmarkSender {
	return &postmarkSender{api: api, config: cfg}
}

func validatePostmarkConfig(cfg Config) error {
	if cfg.PostmarkServerToken == "" {
		return fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !IsValidAddress(cfg.SenderEmail) {
		return fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail != "" && !IsValidAddress(cfg.SupportEmail) {
		return fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}
	return nil
}

// Deliver implements Sender using Postmark's transactional API.
// Reply-To is set to the support address when one is configured.
func (s *postmarkSender) Deliver(ctx context.Context, msg Message) (Receipt, error) {
	if err := msg.Validate(); err != nil {
		return Receipt{}, err
	}

	resp, err := s.api.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.SupportEmail,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		TextBody:   msg.Body,
		HTMLBody:   msg.HTMLBody(),
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return Receipt{}, errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return Receipt{}, errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}

	return Receipt{MessageID: resp.MessageID}, nil
}
