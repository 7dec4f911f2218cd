package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"bounty-platform/models"

	"github.com/gofiber/fiber/v2"
)

// DefaultKeepAlive is how often an idle stream receives a comment frame.
const DefaultKeepAlive = 15 * time.Second

// writeNotificationEvent writes n as one SSE frame.
func writeNotificationEvent(w io.Writer, n models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, payload)
	return err
}

// StreamSSE pushes the user's notifications to the client as they are created.
// The stream ends when the client goes away (a failed flush) or the server shuts down.
func (s *NotificationService) StreamSSE(c *fiber.Ctx, userID string, keepAlive time.Duration) error {
	if s.Hub == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "notification stream unavailable")
	}
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, cancel := s.Hub.Subscribe(userID)
	done := c.Context().Done()
	logCtx := context.WithoutCancel(c.UserContext())
	s.Log.Debug(logCtx, "notification stream opened", "user_id", userID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer s.Log.Debug(logCtx, "notification stream closed", "user_id", userID)

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case n, ok := <-events:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, n); err != nil {
					s.Log.Warn(logCtx, "notification encode failed", "user_id", userID, "error", err)
					continue
				}
			case <-ticker.C:
				w.WriteString(": keep-alive\n\n")
			case <-done:
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
