package sms

import "context"

// Sender delivers one-time login codes.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}
