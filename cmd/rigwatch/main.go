// rigwatch prints the live status feed of a running rig.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-vigia/internal/log"
	"github.com/teslashibe/go-vigia/pkg/web"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Rig status API host:port")
	retry := flag.Duration("retry", 2*time.Second, "Reconnect delay")
	raw := flag.Bool("raw", false, "Print raw JSON events")
	flag.Parse()

	log.Init("info")
	logger := log.Component("rigwatch")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/status"}
	for {
		err := watch(ctx, u.String(), *raw, logger)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("disconnected", "error", err, "retry_in", *retry)
		select {
		case <-ctx.Done():
			return
		case <-time.After(*retry):
		}
	}
}

// event is the hub envelope with the payload left raw.
type event struct {
	Type string          `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

func watch(ctx context.Context, target string, raw bool, logger *slog.Logger) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()
	logger.Info("connected", "url", target)

	// The closer lives only as long as this connection
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()
	defer wg.Wait()
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if raw {
			fmt.Fprintln(os.Stdout, string(msg))
			continue
		}
		var ev event
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.Warn("bad event", "error", err)
			continue
		}
		printEvent(ev, logger)
	}
}

func printEvent(ev event, logger *slog.Logger) {
	switch ev.Type {
	case "status":
		var st web.Status
		if err := json.Unmarshal(ev.Data, &st); err != nil {
			logger.Warn("bad status", "error", err)
			return
		}
		args := []any{
			"mode", st.Tracking.Mode,
			"pan", fmt.Sprintf("%.1f", st.Tracking.CurrentPan),
			"tilt", fmt.Sprintf("%.1f", st.Tracking.CurrentTilt),
			"frames", st.Camera.Frames,
			"drops", st.Camera.Drops,
			"sent", st.Link.Sent,
			"captures", st.Captures.Count,
		}
		if st.Identity != nil {
			args = append(args, "identity", st.Identity.Record.Name, "score", fmt.Sprintf("%.2f", st.Identity.Score))
		}
		logger.Info("status", args...)
	default:
		logger.Info(ev.Type, "data", string(ev.Data))
	}
}
