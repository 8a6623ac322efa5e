// Package monitor is the read-only debug terminal view from SPEC_FULL.md:
// a bubbletea program subscribed to the daemon's subscribe_events()
// stream, rendering KeyEvent/DeviceAttached/DeviceDetached/
// LatencySample/Error records with their sequence numbers and a running
// gap counter. It issues no commands back to the daemon — no
// activation, no profile switching — which keeps it outside the
// excluded HTTP/WebSocket/tray control-surface territory.
package monitor

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/keyrx-dev/krx/internal/daemon"
)

const maxEntries = 200

// entryMsg carries one daemon.Event into the Bubble Tea update loop.
type entryMsg daemon.Event

// streamClosedMsg signals the subscription channel was closed.
type streamClosedMsg struct{}

// Model is the Bubble Tea model for the monitor view.
type Model struct {
	events  <-chan daemon.Event
	unsub   func()
	entries []daemon.Event
	lastSeq uint64
	gaps    uint64
	closed  bool
	width   int
	height  int
}

// New builds a monitor Model subscribed to d's event stream.
func New(d *daemon.Daemon) Model {
	ch, unsub := d.Subscribe()
	return Model{events: ch, unsub: unsub}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(ch <-chan daemon.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return entryMsg(ev)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.unsub != nil {
				m.unsub()
			}
			return m, tea.Quit
		}
		return m, nil

	case entryMsg:
		ev := daemon.Event(msg)
		if m.lastSeq != 0 && ev.Seq > m.lastSeq+1 {
			m.gaps += ev.Seq - m.lastSeq - 1
		}
		m.lastSeq = ev.Seq
		m.entries = append(m.entries, ev)
		if len(m.entries) > maxEntries {
			m.entries = m.entries[len(m.entries)-maxEntries:]
		}
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.closed = true
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	return renderView(m)
}

func formatEventLine(ev daemon.Event) string {
	ts := ev.Time.Format("15:04:05.000")
	switch ev.Kind {
	case daemon.EventKey:
		return fmt.Sprintf("%s  #%-8d key       device=%-16s code=%-4d op=%v", ts, ev.Seq, ev.DeviceID, ev.Key.Code, ev.Key.Op)
	case daemon.EventDeviceAttached:
		return fmt.Sprintf("%s  #%-8d attach    device=%s", ts, ev.Seq, ev.Device.ID)
	case daemon.EventDeviceDetached:
		return fmt.Sprintf("%s  #%-8d detach    device=%s", ts, ev.Seq, ev.Device.ID)
	case daemon.EventLatencySample:
		return fmt.Sprintf("%s  #%-8d latency   device=%-16s %v", ts, ev.Seq, ev.DeviceID, ev.Latency.Round(time.Microsecond))
	case daemon.EventError:
		return fmt.Sprintf("%s  #%-8d error     %v", ts, ev.Seq, ev.Err)
	default:
		return fmt.Sprintf("%s  #%-8d unknown", ts, ev.Seq)
	}
}
