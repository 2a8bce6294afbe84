package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeBot struct {
	sent []int64
	fail map[int64]error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if err := b.fail[msg.ChatID]; err != nil {
		return tgbotapi.Message{}, err
	}
	b.sent = append(b.sent, msg.ChatID)
	return tgbotapi.Message{}, nil
}

func TestTelegram_NotifyAllAdmins(t *testing.T) {
	bot := &fakeBot{fail: map[int64]error{2: errors.New("Bad Request: chat not found")}}
	n := newTelegram(bot, []int64{1, 2, 3}, nil)

	err := n.Notify(context.Background(), "привет")
	if err == nil {
		t.Fatal("ошибка по одному чату должна вернуться")
	}
	if len(bot.sent) != 2 || bot.sent[0] != 1 || bot.sent[1] != 3 {
		t.Fatalf("остальные чаты должны получить сообщение: %v", bot.sent)
	}
}

func TestNew_NopWithoutToken(t *testing.T) {
	n, err := New("", []int64{1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := n.(Nop); !ok {
		t.Fatalf("без токена ожидали Nop, получили %T", n)
	}
	n, _ = New("token", nil, nil)
	if _, ok := n.(Nop); !ok {
		t.Fatalf("без админов ожидали Nop, получили %T", n)
	}
}

func TestIsSystemErr(t *testing.T) {
	cases := map[string]bool{
		"Too Many Requests: retry after 5 (429)": true,
		"Bad Gateway 502":                        true,
		"context deadline exceeded (timeout)":    true,
		"Bad Request: message is not modified":   false,
		"Forbidden: bot was blocked by the user": false,
	}
	for msg, want := range cases {
		if got := isSystemErr(errors.New(msg)); got != want {
			t.Fatalf("%q: ожидали %v", msg, want)
		}
	}
	if isSystemErr(nil) {
		t.Fatal("nil — не ошибка")
	}
}
