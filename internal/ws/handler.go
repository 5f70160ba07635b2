package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/storyteller-backend/internal/store"
	"github.com/DoyleJ11/storyteller-backend/internal/types"
)

const (
	outboxSize   = 8
	writeTimeout = 3 * time.Second
)

// Handler streams a StateSnapshot for every committed change to the session.
// The stream is one-way; anything the client sends is discarded.
func Handler(s *store.Store, originPatterns []string, log *zap.Logger) http.HandlerFunc {
	log = log.Named("ws")
	opts := &websocket.AcceptOptions{OriginPatterns: originPatterns}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		out := make(chan store.Snapshot, outboxSize)
		if err := s.Subscribe(r.Context(), clientID, out); err != nil {
			_ = conn.Close(websocket.StatusTryAgainLater, "session unavailable")
			return
		}
		log.Debug("client joined", zap.String("client_id", clientID))
		defer func() {
			// the store may already be gone; don't hang the handler on it
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = s.Unsubscribe(ctx, clientID)
			log.Debug("client left", zap.String("client_id", clientID))
		}()

		// CloseRead drains client frames and cancels ctx once the peer goes away.
		ctx := conn.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-out:
				if !ok {
					// dropped as a slow subscriber or the store shut down
					_ = conn.Close(websocket.StatusTryAgainLater, "fell behind")
					return
				}
				if err := write(ctx, conn, snap); err != nil {
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, snap store.Snapshot) error {
	state := types.FromGame(snap.Game)
	msg := types.ServerMessage{Type: "StateSnapshot", Version: snap.Version, State: &state}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
