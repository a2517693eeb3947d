package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/httputil"
)

// ClientMessage is what a websocket client may send during a run.
type ClientMessage struct {
	Type string `json:"type"` // "cancel" or "ping"
}

// ServerMessage wraps everything the server pushes: "start", "step",
// "done", "pong" and "error".
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type startMessage struct {
	ID       string                  `json:"id"`
	Scenario string                  `json:"scenario"`
	Objects  []aeb.GroundTruthObject `json:"objects"`
	Step     time.Duration           `json:"step_ns"`
}

type doneMessage struct {
	Reason  simulation.StopReason `json:"reason"`
	Steps   int                   `json:"steps"`
	Elapsed time.Duration         `json:"elapsed_ns"`
}

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = 4096
)

// ResolveScenario maps a scenario name onto a scene: a builtin name, or
// "random" for an animated random scene. A non-zero seed makes the random
// scene reproducible.
func ResolveScenario(constants config.SafetyConstants, name string, seed uint64) ([]aeb.GroundTruthObject, error) {
	if name == "random" {
		g := simulation.NewRandomGenerator(constants)
		if seed != 0 {
			g = simulation.NewGenerator(constants, seed)
		}
		return g.AnimatedScenario(), nil
	}
	objects, err := simulation.Builtin(name)
	if err != nil {
		return nil, &aeb.InputError{Index: -1, Field: "scenario", Reason: err.Error()}
	}
	return objects, nil
}

// simulateWS streams one animated run, one message per tick:
//
//	GET /ws/simulate?scenario=pedestrian_crossing&realtime=true&step=120ms
//
// The client may send {"type":"cancel"} at any time; the run stops at the
// next tick boundary.
func (s *Server) simulateWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("scenario")
	if name == "" {
		name = "pedestrian_crossing"
	}
	var seed uint64
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "seed must be an unsigned integer")
			return
		}
		seed = n
	}
	step := s.constants.SimulationTick
	if v := q.Get("step"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			httputil.BadRequest(w, "step must be a positive duration")
			return
		}
		step = d
	}
	realtime := q.Get("realtime") == "true" || q.Get("realtime") == "1"

	objects, err := ResolveScenario(s.constants, name, seed)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sim, err := s.runner.Animate(name, objects)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		opsf("failed to upgrade websocket connection: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	var writeMu sync.Mutex
	send := func(msg ServerMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(msg)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: cancel requests and liveness. A read error means the client
	// went away, which ends the run.
	go func() {
		defer cancel()
		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					diagf("websocket client error: %v", err)
				}
				return
			}
			switch msg.Type {
			case "cancel":
				sim.Cancel()
			case "ping":
				_ = send(ServerMessage{Type: "pong"})
			default:
				_ = send(ServerMessage{Type: "error", Data: "unknown message type: " + msg.Type})
			}
		}
	}()

	if err := send(ServerMessage{Type: "start", Data: startMessage{
		ID: sim.ID(), Scenario: name, Objects: sim.Objects(), Step: step,
	}}); err != nil {
		return
	}

	last, err := sim.Run(ctx, simulation.RunOptions{Step: step, Realtime: realtime, Clock: s.clock},
		func(sr simulation.StepResult) error {
			return send(ServerMessage{Type: "step", Data: sr})
		})
	if err != nil && ctx.Err() == nil {
		_ = send(ServerMessage{Type: "error", Data: err.Error()})
		return
	}
	if ctx.Err() != nil && r.Context().Err() != nil {
		return
	}

	_ = send(ServerMessage{Type: "done", Data: doneMessage{Reason: last.Reason, Steps: last.Step, Elapsed: last.Elapsed}})
	writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(last.Reason)),
		time.Now().Add(wsWriteWait))
	writeMu.Unlock()
}
