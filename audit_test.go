package sensorgate

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/MrEthical07/sensorgate/store"
)

func TestLoginEmitsAuditEvents(t *testing.T) {
	_, rdb := newTestRedis(t)
	sink := NewChannelSink(16)
	users := newMemUsers()
	renderer := &capturingRenderer{}

	cfg := DefaultConfig()
	cfg.Password = fastArgon
	cfg.Audit.DropIfFull = false
	engine, err := New().
		WithConfig(cfg).
		WithStore(store.NewRedisStore(rdb)).
		WithUserStore(users).
		WithRenderer(renderer).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "10.0.0.5")
	ch, err := engine.IssueChallenge(ctx, "ip:10.0.0.5")
	if err != nil {
		t.Fatalf("IssueChallenge: %v", err)
	}
	_, err = engine.Login(ctx, LoginRequest{UserName: "nobody_1", Password: "secret123", ChallengeID: ch.ID, ChallengeCode: renderer.lastCode()})
	if err == nil {
		t.Fatal("expected login failure")
	}

	select {
	case ev := <-sink.Events():
		if ev.Kind != EventLogin || ev.Success || ev.IP != "10.0.0.5" || ev.Reason != "unknown_user" {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.Time.IsZero() {
			t.Fatal("event time not stamped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{Time: time.Unix(0, 0), Kind: EventLogout, Success: true, UserID: "u-1"})

	var got map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["event"] != EventLogout || got["user_id"] != "u-1" || got["success"] != true {
		t.Fatalf("unexpected line %v", got)
	}
	if _, ok := got["session_id"]; ok {
		t.Fatal("empty fields must be omitted")
	}
}
