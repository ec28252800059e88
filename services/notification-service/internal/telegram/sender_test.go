package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBotSender_PostsSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewBotSender(srv.URL, "123:secret")
	if err := sender.Send(context.Background(), "chat-9", "*Reminder* tomorrow 10:00"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotPath != "/bot123:secret/sendMessage" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "chat-9" {
		t.Fatalf("chat_id = %q", gotBody["chat_id"])
	}
	if gotBody["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode = %q", gotBody["parse_mode"])
	}
	if gotBody["text"] != "*Reminder* tomorrow 10:00" {
		t.Fatalf("text = %q", gotBody["text"])
	}
}

func TestBotSender_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"Bad Request: chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	sender := NewBotSender(srv.URL, "123:secret")
	if err := sender.Send(context.Background(), "nope", "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestBotSender_MissingTokenIsError(t *testing.T) {
	sender := NewBotSender("", "")
	if err := sender.Send(context.Background(), "chat-9", "hi"); err == nil {
		t.Fatal("expected error")
	}
}
