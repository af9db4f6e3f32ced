// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianYard/services/simulator"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = streamPongWait * 9 / 10
)

// HandleSimulationStream handles GET /v1/simulations/stream.
//
// The client sends one SimulationRequest after the upgrade. The server
// answers with a "started" frame, one "snapshot" frame per processed event
// and a final "result" or "error" frame, then closes. Closing the socket
// cancels the run.
func (s *Server) HandleSimulationStream(c *gin.Context) {
	requestID := requestIDFrom(c)
	logger := s.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleSimulationStream"))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	streamsActive.Inc()
	defer streamsActive.Dec()

	out := &streamWriter{conn: conn}

	var req SimulationRequest
	if err := conn.ReadJSON(&req); err != nil {
		logger.Warn("reading stream request", slog.String("error", err.Error()))
		out.send(StreamMessage{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		out.send(StreamMessage{Type: "error", Error: "validation failed: " + err.Error()})
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	// Any read error, including a normal close, ends the run.
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go out.keepAlive(ctx)

	observer := simulator.ObserverFunc(func(_ context.Context, id string, snap simulator.Snapshot) {
		if err := out.send(StreamMessage{Type: "snapshot", RunID: id, Snapshot: &snap}); err != nil {
			cancel()
		}
	})
	sim, err := s.newSimulation(req, requestID, simulator.WithObserver(observer))
	if err != nil {
		_, code := classify(err)
		observeRequest("stream", code)
		out.send(StreamMessage{Type: "error", Error: err.Error()})
		return
	}
	runID := sim.RunID()

	out.send(StreamMessage{Type: "started", RunID: runID})
	res, runErr := sim.Run(ctx)
	if runErr != nil && ctx.Err() != nil {
		observeRequest("stream", "CANCELLED")
		logger.Info("stream closed before the run finished", slog.String("run_id", runID))
		out.send(StreamMessage{Type: "error", RunID: runID, Error: ctx.Err().Error()})
		return
	}
	summary := simulator.Summarize(res)
	summary.Snapshots = nil
	observeRequest("stream", "ok")
	s.recordAudit(c, "planner.stream", "success", map[string]any{"run_id": runID, "status": summary.Status.String()})
	out.send(StreamMessage{Type: "result", RunID: runID, Summary: &summary})
	out.close()
}

// streamWriter serialises frames onto a websocket connection.
type streamWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *streamWriter) send(msg StreamMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return w.conn.WriteJSON(msg)
}

func (w *streamWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}

func (w *streamWriter) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			err := w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
