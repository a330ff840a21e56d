package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/park285/sakura-mc-bot/internal/audit"
	"github.com/park285/sakura-mc-bot/internal/bluemap"
	"github.com/park285/sakura-mc-bot/internal/bridge"
)

func main() {
	_ = godotenv.Load()

	baseURL := os.Getenv("BRIDGE_BASE_URL")
	wsURL := os.Getenv("BRIDGE_WS_URL")
	mapURL := os.Getenv("BLUEMAP_API_URL")
	username := os.Getenv("BOT_USERNAME")
	server := os.Getenv("SERVER_ADDRESS")
	redisURL := os.Getenv("REDIS_URL")

	if baseURL == "" && mapURL == "" && wsURL == "" && redisURL == "" {
		log.Fatal("set at least one of BRIDGE_BASE_URL, BLUEMAP_API_URL, BRIDGE_WS_URL, REDIS_URL")
	}

	headers := func() map[string]string {
		return map[string]string{"X-Bot-Username": username, "X-Server-Address": server}
	}

	if baseURL != "" {
		client := bridge.NewClient(baseURL, bridge.WithHeaderProvider(headers), bridge.WithTimeout(8*time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := client.Status(ctx)
		cancel()
		if err != nil {
			log.Printf("/status error: %v", err)
		} else {
			log.Printf("/status ok: connected=%t username=%s server=%s players=%d", st.Connected, st.Username, st.Server, st.Players)
		}
	}

	if mapURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		players, err := bluemap.NewClient(mapURL).Players(ctx)
		cancel()
		if err != nil {
			log.Printf("/players error: %v", err)
		} else {
			log.Printf("/players ok: %d online", len(players))
			for _, p := range players {
				fmt.Printf("  %s @ %s\n", p.Name, p)
			}
		}
	}

	if redisURL != "" {
		printRecentAudit(redisURL)
	}

	if wsURL == "" {
		log.Println("BRIDGE_WS_URL not set; skipping WS check")
		return
	}

	ws := bridge.NewWebSocket(wsURL, 0, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state bridge.State) {
		log.Printf("WS state: %s", state)
	})
	cbID := ws.OnEvent(func(ev bridge.Event) {
		from := "?"
		if name, ok := ev.SenderName(); ok {
			from = name
		}
		fmt.Printf("WS event type=%s from=%s text=%q\n", ev.Type, from, ev.Content)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}

	t := time.NewTimer(10 * time.Second)
	<-t.C

	ws.RemoveEventCallback(cbID)
	_ = ws.Close(context.Background())
}

func printRecentAudit(redisURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rdb, err := audit.DialRedis(ctx, redisURL)
	if err != nil {
		log.Printf("redis error: %v", err)
		return
	}
	defer rdb.Close()

	entries, err := audit.NewRedisSink(rdb, 0).Recent(ctx, 10)
	if err != nil {
		log.Printf("audit read error: %v", err)
		return
	}
	log.Printf("audit: %d recent entries", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s %s %s %s -> %s\n", e.At.Format(time.RFC3339), e.Actor, e.Command, e.Target, e.Outcome)
	}
}
