package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"orderhub/internal/model"
)

const (
	defaultAPIURL = "https://api.telegram.org"
	maxDDTLines   = 5
	maxErrorLines = 3
)

// Telegram posts tick summaries to a chat through the Bot API. A Telegram
// without token or chat id is disabled and Notify is a no-op.
type Telegram struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
	log    *slog.Logger
}

func NewTelegram(token, chatID string, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{
		apiURL: defaultAPIURL,
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.With("component", "telegram"),
	}
}

// WithAPIURL points the notifier at another Bot API endpoint.
func (t *Telegram) WithAPIURL(u string) *Telegram {
	t.apiURL = strings.TrimRight(u, "/")
	return t
}

func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

func (t *Telegram) Notify(ctx context.Context, s *model.TickSummary) error {
	if !t.Enabled() {
		t.log.Debug("telegram not configured, skipping notification")
		return nil
	}
	return t.Send(ctx, FormatSummary(s))
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(b))
	}
	return nil
}

// FormatSummary renders the tick summary as a Markdown message.
func FormatSummary(s *model.TickSummary) string {
	var b strings.Builder
	b.WriteString("🤖 *Order automation completed*\n\n")
	fmt.Fprintf(&b, "📦 Pending orders: *%d*\n", s.Pending)
	fmt.Fprintf(&b, "✅ Accepted: *%d*\n", len(s.Accepted))
	fmt.Fprintf(&b, "📄 DDTs created: *%d*\n", len(s.DDTs))
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "⏭ Already processed: *%d*\n", s.Skipped)
	}

	if len(s.DDTs) > 0 {
		b.WriteString("\n*DDTs:*\n")
		for i, d := range s.DDTs {
			if i == maxDDTLines {
				fmt.Fprintf(&b, "_...and %d more_\n", len(s.DDTs)-maxDDTLines)
				break
			}
			fmt.Fprintf(&b, "• %s %s → DDT %s\n", d.Source.Tag(), d.OrderID, d.DDTID)
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\n⚠️ *Errors: %d*\n", len(s.Errors))
		for i, e := range s.Errors {
			if i == maxErrorLines {
				fmt.Fprintf(&b, "_...and %d more_\n", len(s.Errors)-maxErrorLines)
				break
			}
			fmt.Fprintf(&b, "• %s\n", e)
		}
	}

	fmt.Fprintf(&b, "\n🕐 %s", s.FinishedAt.Format("02/01/2006 15:04"))
	return b.String()
}
