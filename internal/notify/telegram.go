package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telegramBase = "https://api.telegram.org"

// Telegram sends messages through the Bot API sendMessage method.
type Telegram struct {
	hc    *http.Client
	token string
	base  string
}

func NewTelegram(token string) *Telegram {
	return &Telegram{
		hc:    &http.Client{Timeout: 10 * time.Second},
		token: token,
		base:  telegramBase,
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	jb, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.token), bytes.NewReader(jb))
	if err != nil {
		return err
	}
	req.Header.Add("content-type", "application/json")

	res, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrDeliveryFailed, err)
	}
	var smr sendMessageResponse
	_ = json.Unmarshal(body, &smr)
	if res.StatusCode >= 400 || !smr.OK {
		if smr.Description != "" {
			return fmt.Errorf("%w: %s (status=%d)", ErrDeliveryFailed, smr.Description, res.StatusCode)
		}
		return fmt.Errorf("%w: status=%d", ErrDeliveryFailed, res.StatusCode)
	}
	return nil
}
