// Package popup presents the captured exchange to the user: a presenter that
// owns what is displayed and a terminal UI that drives it.
package popup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/model"
	"github.com/raysh454/convotap/internal/webclient"
)

// Status and placeholder lines shown by the popup.
const (
	Placeholder    = "No data captured yet. Send a message in the chat tab."
	ClearedText    = "Cleared."
	ClearedStatus  = "Display cleared. New data will appear on the next capture."
	CheckingStatus = "Attempting to re-check debugger status..."
	noDataText     = "N/A"
)

// Daemon is the part of the daemon client the presenter needs.
type Daemon interface {
	Latest(ctx context.Context) (*model.Snapshot, error)
	CheckDebugger(ctx context.Context, tabID, tabURL string) (string, error)
}

// View is the rendered popup state.
type View struct {
	Request   string
	Response  string
	Status    string
	Timestamp string
	Source    string
	TabID     string
	HasData   bool
	Failed    bool
}

// String renders the view as plain text.
func (v View) String() string {
	var b strings.Builder
	if v.Status != "" {
		b.WriteString(v.Status)
		b.WriteString("\n\n")
	}
	if v.Timestamp != "" {
		b.WriteString(v.Timestamp)
		b.WriteString("\n\n")
	}
	b.WriteString("Request payload:\n")
	b.WriteString(v.Request)
	b.WriteString("\n\nResponse body:\n")
	b.WriteString(v.Response)
	b.WriteString("\n")
	return b.String()
}

// Presenter owns the popup display. It is safe for concurrent use.
type Presenter struct {
	daemon Daemon
	logger logging.Logger

	mu   sync.Mutex
	view View
	// shownAt is the capture time of the newest snapshot seen, kept across
	// Clear so an older snapshot never replaces a newer one.
	shownAt time.Time
}

func NewPresenter(daemon Daemon, logger logging.Logger) (*Presenter, error) {
	if daemon == nil {
		return nil, errors.New("popup: nil daemon client")
	}
	if logger == nil {
		return nil, errors.New("popup: nil logger")
	}
	p := &Presenter{daemon: daemon, logger: logger}
	p.view = emptyView(Placeholder)
	return p, nil
}

// Open loads the persisted snapshot, or shows the placeholder when none
// exists yet.
func (p *Presenter) Open(ctx context.Context) View {
	snap, err := p.daemon.Latest(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case errors.Is(err, webclient.ErrNoSnapshot):
		if !p.view.HasData {
			p.view = emptyView(Placeholder)
		}
	case err != nil:
		p.logger.Warn("loading latest snapshot", logging.Field{Key: "error", Value: err.Error()})
		p.view.Status = fmt.Sprintf("Error loading stored data: %v", err)
	default:
		p.showLocked(snap)
	}
	return p.view
}

// Apply handles a message pushed by the daemon and reports whether the view
// changed.
func (p *Presenter) Apply(msg model.Message) (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Type {
	case model.MessageDataUpdated, model.MessageLatest:
		if len(msg.Payload) == 0 {
			return p.view, false
		}
		var snap model.Snapshot
		if err := msg.Decode(&snap); err != nil {
			p.logger.Warn("decoding pushed snapshot", logging.Field{Key: "error", Value: err.Error()})
			return p.view, false
		}
		return p.view, p.showLocked(&snap)
	case model.MessageDebuggerCheckResult:
		var res model.DebuggerCheckResult
		if err := msg.Decode(&res); err != nil {
			return p.view, false
		}
		p.view.Status = res.Status
		return p.view, true
	case model.MessageError:
		var e model.ErrorPayload
		if err := msg.Decode(&e); err != nil {
			return p.view, false
		}
		p.view.Status = "Error: " + e.Error
		return p.view, true
	default:
		return p.view, false
	}
}

// Show renders snap unless a newer snapshot is already displayed.
func (p *Presenter) Show(snap *model.Snapshot) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showLocked(snap)
	return p.view
}

// Recheck asks the daemon to re-check the tab's attachment and shows the
// resulting status. Empty arguments check the active tab.
func (p *Presenter) Recheck(ctx context.Context, tabID, tabURL string) View {
	status, err := p.daemon.CheckDebugger(ctx, tabID, tabURL)
	if err != nil {
		p.logger.Warn("debugger re-check", logging.Field{Key: "error", Value: err.Error()})
		status = fmt.Sprintf("Error communicating: %v", err)
	} else if status == "" {
		status = "Re-check command sent. Check daemon logs for details."
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Status = status
	return p.view
}

// SetStatus replaces the status line.
func (p *Presenter) SetStatus(status string) View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Status = status
	return p.view
}

// Clear clears the display. The persisted snapshot is untouched.
func (p *Presenter) Clear() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = View{
		Request:  ClearedText,
		Response: ClearedText,
		Status:   ClearedStatus,
	}
	return p.view
}

// View returns the current display.
func (p *Presenter) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

func (p *Presenter) showLocked(snap *model.Snapshot) bool {
	if snap == nil {
		return false
	}
	if snap.Timestamp.Before(p.shownAt) {
		return false
	}
	p.shownAt = snap.Timestamp
	p.view = renderSnapshot(snap)
	return true
}

func renderSnapshot(snap *model.Snapshot) View {
	v := View{
		Request:  RenderPayload(snap.Request.Payload),
		Response: RenderResponse(snap.Response),
		Source:   snap.Source,
		TabID:    snap.TabID,
		HasData:  true,
		Failed:   snap.Failed(),
	}
	if !snap.Timestamp.IsZero() {
		v.Timestamp = "Last captured: " + snap.Timestamp.Local().Format(time.DateTime)
	}
	if snap.Response.Base64Encoded {
		v.Status = "Response body is binary; shown base64 encoded."
	}
	return v
}

func emptyView(status string) View {
	return View{Request: noDataText, Response: noDataText, Status: status}
}
