package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackMessage_Build(t *testing.T) {
	msg := SlackMessage{
		Text: "Night Mode Report",
		Attachments: []SlackAttachment{
			{
				Color: "good",
				Title: "nightmode/2025-11-03",
				Text:  "3 completed, 1 failed",
			},
		},
	}

	payload, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	if len(payload) == 0 {
		t.Error("Payload should not be empty")
	}
}

func TestSlackNotifier_Send(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:   "Night Mode Report",
		Message: "3 completed, 1 failed",
		Type:    NotifySuccess,
		Branch:  "nightmode/2025-11-03",
	})
	if err != nil {
		t.Errorf("Send failed: %v", err)
	}

	var msg SlackMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Text != "Night Mode Report" {
		t.Errorf("text = %q", msg.Text)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Title != "nightmode/2025-11-03" {
		t.Errorf("attachments = %+v", msg.Attachments)
	}
}

func TestSlackNotifier_SendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	if err := notifier.Send(Notification{Title: "Test"}); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestSlackNotifier_DisabledWithoutURL(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Send(Notification{Title: "Test"}); err != nil {
		t.Errorf("empty webhook should be a no-op, got %v", err)
	}
}

func TestNotificationTypeColors(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}

	for _, tt := range tests {
		got := SlackColor(tt.typ)
		if got != tt.want {
			t.Errorf("SlackColor(%v) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestMultiNotifier(t *testing.T) {
	var called []string

	mock1 := &mockNotifier{name: "mock1", calls: &called}
	mock2 := &mockNotifier{name: "mock2", calls: &called}

	multi := NewMultiNotifier(mock1, mock2)
	multi.Send(Notification{Title: "Test"})

	if len(called) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(called))
	}
}

func TestPopupBody(t *testing.T) {
	short := "one\ntwo"
	if got := popupBody(short); got != short {
		t.Errorf("short body changed: %q", got)
	}

	long := strings.Repeat("line\n", 10)
	got := popupBody(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long body not truncated: %q", got)
	}
	if strings.Count(got, "\n") > 7 {
		t.Errorf("truncated body too long: %q", got)
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
}

func (m *mockNotifier) Send(n Notification) error {
	*m.calls = append(*m.calls, m.name)
	return nil
}
