package main

// This script sends one question to a running advisor and prints every
// stage event as it arrives, then a summary table.
//
// Usage:
//   go run ./scripts/chat_stream_check -q "How is BTC-USDT looking?"
//   go run ./scripts/chat_stream_check -ws -q "ETH outlook"

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"advisor-core/internal/events"
	"advisor-core/pkg/config"
	"advisor-core/pkg/model"
	"advisor-core/pkg/streamclient"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config error: %v", err)
	}

	var (
		base     = flag.String("url", "http://localhost:"+cfg.Port, "advisor base URL")
		question = flag.String("q", "How is BTC-USDT looking today?", "question to ask")
		chatID   = flag.String("chat", "", "chat id (generated by the server when empty)")
		path     = flag.String("path", "/ai/workflow/chat", "SSE route")
		useWS    = flag.Bool("ws", false, "use the WebSocket route instead of SSE")
		token    = flag.String("token", os.Getenv("ADVISOR_TOKEN"), "bearer token when JWT_SECRET is set")
		timeout  = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := streamclient.New(*base, *timeout)
	client.Token = *token
	req := model.ChatRequest{ChatID: *chatID, Content: *question}

	summary := table.NewWriter()
	summary.SetOutputMirror(os.Stdout)
	summary.AppendHeader(table.Row{"#", "Stage", "After", "Size", "Detail"})
	summary.SetStyle(table.StyleLight)

	start := time.Now()
	n := 0
	handle := func(ev events.StageEvent) error {
		n++
		elapsed := time.Since(start).Truncate(time.Millisecond)
		raw, _ := ev.Data.(json.RawMessage)
		log.Printf("[STREAM] %-8s +%v %d bytes", ev.Kind, elapsed, len(raw))
		summary.AppendRow(table.Row{n, ev.Kind, elapsed, len(raw), detail(ev, raw)})
		return nil
	}

	mode := "SSE " + *path
	if *useWS {
		mode = "WebSocket /ai/ws"
		err = client.ChatWS(ctx, req, handle)
	} else {
		err = client.Chat(ctx, *path, req, handle)
	}

	fmt.Println()
	fmt.Printf("%s via %s\n", *base, mode)
	summary.Render()
	if err != nil {
		log.Fatalf("stream error: %v", err)
	}
}

func detail(ev events.StageEvent, raw json.RawMessage) string {
	switch ev.Kind {
	case events.KindNews, events.KindMarket:
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			return fmt.Sprintf("%d items", len(items))
		}
	case events.KindFinal:
		var advice string
		if json.Unmarshal(raw, &advice) == nil {
			return clip(advice, 60)
		}
	case events.KindError:
		return streamclient.ErrorMessage(ev)
	case events.KindExtract:
		var intent model.Intent
		if json.Unmarshal(raw, &intent) == nil {
			return fmt.Sprintf("lang=%s focus=%s products=%v", intent.Language, intent.Focus, intent.Products)
		}
	}
	return ""
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
