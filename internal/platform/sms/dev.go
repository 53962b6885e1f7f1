package sms

import (
	"context"

	"github.com/diagnosis/visitor-desk/pkg/logger"
)

// DevSender logs codes instead of sending them.
type DevSender struct{}

func NewDevSender() *DevSender {
	return &DevSender{}
}

func (d *DevSender) SendOTP(ctx context.Context, phone, code string) error {
	logger.InfoContext(ctx, "[DEV SMS] login code", "to", phone, "code", code)
	return nil
}

var _ Sender = (*DevSender)(nil)
