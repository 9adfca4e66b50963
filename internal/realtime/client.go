package realtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Follow connects to a live view endpoint and applies every frame to view
// until ctx ends or the server closes the connection. onChange runs after
// each frame that changed the view.
func Follow(ctx context.Context, url string, header http.Header, view *View, onChange func()) error {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to %s: %s", url, resp.Status)
		}
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	view.Reset()
	for {
		var m Message
		if err := ws.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if view.Apply(m) && onChange != nil {
			onChange()
		}
	}
}
