package sms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendSender struct {
	client  *mailersend.Mailersend
	from    string
	Enabled bool
}

func NewMailerSendSender(apiKey, from string) *MailerSendSender {
	s := &MailerSendSender{
		Enabled: apiKey != "" && from != "",
		from:    from,
	}
	if s.Enabled {
		s.client = mailersend.NewMailersend(apiKey)
	}
	return s
}

func (s *MailerSendSender) SendOTP(ctx context.Context, phone, code string) error {
	if !s.Enabled {
		return errors.New("sms disabled (missing MAILERSEND_API_KEY or SMS_FROM)")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := s.client.Sms.NewMessage()
	msg.SetFrom(s.from)
	msg.SetTo([]string{phone})
	msg.SetText(otpText(code))

	res, err := s.client.Sms.Send(ctx, msg)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend sms error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func otpText(code string) string {
	return fmt.Sprintf("Your visitor desk login code is %s. It expires in a few minutes.", code)
}

var _ Sender = (*MailerSendSender)(nil)
