package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderhub/internal/model"
)

func TestTelegram_Notify(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat-1", nil).WithAPIURL(srv.URL)
	err := tg.Notify(context.Background(), &model.TickSummary{Pending: 1})
	require.NoError(t, err)

	assert.Equal(t, "chat-1", got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])
	assert.Contains(t, got["text"], "Pending orders: *1*")
}

func TestTelegram_NotifyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad chat", http.StatusBadRequest)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat-1", nil).WithAPIURL(srv.URL)
	assert.Error(t, tg.Notify(context.Background(), &model.TickSummary{}))
}

func TestTelegram_DisabledIsNoop(t *testing.T) {
	tg := NewTelegram("", "", nil).WithAPIURL("http://127.0.0.1:1")
	assert.False(t, tg.Enabled())
	assert.NoError(t, tg.Notify(context.Background(), &model.TickSummary{}))
}

func TestFormatSummary_Truncates(t *testing.T) {
	s := &model.TickSummary{Pending: 9, FinishedAt: time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)}
	for i := 0; i < 7; i++ {
		s.DDTs = append(s.DDTs, model.CreatedDDT{Source: model.SourceRefurbed, OrderID: fmt.Sprint(i), DDTID: fmt.Sprint(100 + i)})
	}
	for i := 0; i < 4; i++ {
		s.Errors = append(s.Errors, fmt.Sprintf("err %d", i))
	}

	msg := FormatSummary(s)

	assert.Equal(t, 5, strings.Count(msg, "→ DDT"))
	assert.Contains(t, msg, "REFURBED 0 → DDT 100")
	assert.Contains(t, msg, "and 2 more")
	assert.Contains(t, msg, "err 2")
	assert.NotContains(t, msg, "err 3")
	assert.Contains(t, msg, "and 1 more")
	assert.Contains(t, msg, "02/01/2024 03:04")
}
