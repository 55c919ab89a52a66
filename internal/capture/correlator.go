package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
)

var ErrNotTargetEndpoint = errors.New("url is not the target endpoint")

func (m *Manager) onRequestSent(ev browser.Event) {
	if !m.matcher.EndpointMatches(ev.URL) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracked[ev.TabID]; !ok {
		return
	}
	m.pending[pendingKey{tabID: ev.TabID, requestID: ev.RequestID}] = &model.PendingRequest{
		TabID:      ev.TabID,
		RequestID:  ev.RequestID,
		URL:        ev.URL,
		Method:     ev.Method,
		Payload:    ev.PostData,
		Generation: m.generations[ev.TabID],
		SeenAt:     time.Now().UTC(),
	}
	m.logger.Debug("target request observed",
		logging.Field{Key: "tab_id", Value: ev.TabID},
		logging.Field{Key: "request_id", Value: ev.RequestID})
}

// onLoadingFinished takes the pending record in one step so a concurrent
// detach either purges it first or finds it already gone.
func (m *Manager) onLoadingFinished(ev browser.Event) {
	key := pendingKey{tabID: ev.TabID, requestID: ev.RequestID}

	m.mu.Lock()
	rec, ok := m.pending[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pending, key)
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go m.complete(rec)
}

// complete fetches the response body and records the exchange. The exchange
// is dropped when the tab lost its attachment while the body was fetched.
func (m *Manager) complete(rec *model.PendingRequest) {
	defer m.wg.Done()

	body, err := m.host.ResponseBody(m.ctx, rec.TabID, rec.RequestID)
	if m.ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	stale := m.generations[rec.TabID] != rec.Generation
	m.mu.Unlock()
	if stale {
		m.logger.Debug("dropping exchange of detached tab",
			logging.Field{Key: "tab_id", Value: rec.TabID},
			logging.Field{Key: "request_id", Value: rec.RequestID})
		return
	}

	if err != nil {
		m.logger.Error("retrieving response body failed",
			logging.Field{Key: "tab_id", Value: rec.TabID},
			logging.Field{Key: "request_id", Value: rec.RequestID},
			logging.Field{Key: "error", Value: err})
	}

	snap := newSnapshot(rec.TabID, m.source,
		model.CapturedRequest{URL: rec.URL, Method: rec.Method, Payload: requestPayload(rec.Payload)},
		responseBody(body, err),
		time.Now())
	_ = m.record(m.ctx, snap)
}

// Forward records an exchange captured outside the debugger, e.g. by a page
// script. It goes through the same matching rule and the same
// persist-and-broadcast path as debugger captures.
func (m *Manager) Forward(ctx context.Context, fwd model.ConversationResponse) (*model.Snapshot, error) {
	if fwd.URL == "" {
		fwd.URL = m.matcher.Endpoint()
	}
	if !m.matcher.EndpointMatches(fwd.URL) {
		return nil, fmt.Errorf("%w: %s", ErrNotTargetEndpoint, fwd.URL)
	}
	if fwd.Method == "" {
		fwd.Method = "POST"
	}

	snap := newSnapshot(fwd.TabID, model.SourceForward,
		model.CapturedRequest{URL: fwd.URL, Method: fwd.Method, Payload: forwardedPayload(fwd.Request)},
		forwardedBody(fwd.Response),
		time.Now())
	return snap, m.record(ctx, snap)
}

// record persists snap and broadcasts it. A failed save is logged and
// returned; the broadcast happens either way.
func (m *Manager) record(ctx context.Context, snap *model.Snapshot) error {
	saveErr := m.store.Save(ctx, snap)
	if saveErr != nil {
		m.logger.Error("persisting snapshot failed",
			logging.Field{Key: "snapshot_id", Value: snap.ID},
			logging.Field{Key: "error", Value: saveErr})
		saveErr = fmt.Errorf("persist snapshot: %w", saveErr)
	}

	if m.bus != nil {
		msg, err := model.NewMessage(model.MessageDataUpdated, snap)
		if err != nil {
			m.logger.Error("encoding update failed", logging.Field{Key: "error", Value: err})
			return errors.Join(saveErr, err)
		}
		m.bus.Publish(msg)
	}

	m.logger.Info("snapshot captured",
		logging.Field{Key: "snapshot_id", Value: snap.ID},
		logging.Field{Key: "tab_id", Value: snap.TabID},
		logging.Field{Key: "source", Value: snap.Source},
		logging.Field{Key: "failed", Value: snap.Failed()})
	return saveErr
}
