package notify

import (
	"os/exec"
	"runtime"
	"strings"
)

// DesktopNotifier sends desktop notifications. The morning report is
// too long for a popup, so Send shows the title plus the first lines.
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a new desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send sends a desktop notification
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return d.sendMacOS(n)
	case "linux":
		return d.sendLinux(n)
	default:
		return nil // Unsupported
	}
}

func (d *DesktopNotifier) sendMacOS(n Notification) error {
	escape := func(s string) string {
		return strings.ReplaceAll(s, `"`, `\"`)
	}
	script := `display notification "` + escape(popupBody(n.Message)) + `" with title "` + escape(n.Title) + `"`
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

func (d *DesktopNotifier) sendLinux(n Notification) error {
	// Try notify-send (most common)
	cmd := exec.Command("notify-send", n.Title, popupBody(n.Message))
	return cmd.Run()
}

// popupBody keeps a popup readable by cutting the message after a few
// lines; the full report still reaches Slack and the terminal.
func popupBody(message string) string {
	lines := strings.Split(message, "\n")
	if len(lines) <= 6 {
		return message
	}
	return strings.Join(lines[:6], "\n") + "\n..."
}
