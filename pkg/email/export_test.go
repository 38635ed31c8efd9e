package email

import "github.com/mrz1836/postmark"

// PostmarkAPI exposes the transport seam to black-box tests.
type PostmarkAPI = postmarkAPI

func NewPostmarkSenderWithAPI(api PostmarkAPI, cfg Config) Sender {
	return newPostmarkSender(api, cfg)
}

var _ PostmarkAPI = (*postmark.Client)(nil)
