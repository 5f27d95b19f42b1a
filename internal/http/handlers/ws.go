package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/notedwin-dev/storyforge-ai-sub000/internal/progress"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = wsPongWait * 9 / 10
	wsReadLimit   = 4096
	wsQueueSize   = 64
	wsLookupLimit = 2 * time.Second
)

type wsInbound struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// WebSocket serves the progress stream. Clients send subscribe, unsubscribe
// and ping messages; every published job record for a subscribed job is
// pushed as a progress message.
func (a *App) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("websocket upgrade rejected")
		return
	}
	sub := progress.NewQueue(uuid.NewString(), wsQueueSize)
	log := a.Logger.With().Str("subscriber_id", sub.ID()).Logger()
	log.Debug().Msg("websocket connected")

	done := make(chan struct{})
	go a.wsWrite(conn, sub, done)

	defer func() {
		a.Bus.Remove(sub.ID())
		sub.Close()
		<-done
		_ = conn.Close()
		log.Debug().Msg("websocket closed")
	}()

	_ = sub.Send(progress.Message{Type: progress.TypeConnection, Status: "connected", Timestamp: time.Now()})

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		switch in.Type {
		case "subscribe":
			if in.JobID == "" {
				_ = sub.Send(wsError("", "jobId is required"))
				continue
			}
			a.Bus.Subscribe(sub, in.JobID)
			a.sendSnapshot(r.Context(), sub, in.JobID)
		case "unsubscribe":
			a.Bus.Unsubscribe(sub.ID(), in.JobID)
		case "ping":
			_ = sub.Send(progress.Message{Type: progress.TypePong, Timestamp: time.Now()})
		default:
			_ = sub.Send(wsError(in.JobID, "unknown message type "+in.Type))
		}
	}
}

// sendSnapshot gives a new subscriber the current record so it does not
// wait for the next transition.
func (a *App) sendSnapshot(ctx context.Context, sub *progress.Queue, jobID string) {
	ctx, cancel := context.WithTimeout(ctx, wsLookupLimit)
	defer cancel()
	job, err := a.Jobs.Get(ctx, jobID)
	if err != nil {
		_ = sub.Send(wsError(jobID, "job not found"))
		return
	}
	_ = sub.Send(progress.Message{Type: progress.TypeProgress, JobID: job.ID, Data: job, Timestamp: time.Now()})
}

func wsError(jobID, msg string) progress.Message {
	return progress.Message{Type: progress.TypeError, JobID: jobID, Error: msg, Timestamp: time.Now()}
}

// wsWrite is the only writer on conn. It drains the queue and keeps the
// connection alive with pings.
func (a *App) wsWrite(conn *websocket.Conn, sub *progress.Queue, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				// unblocks the reader
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
