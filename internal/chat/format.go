package chat

import (
	"fmt"
	"strings"

	"github.com/zulandar/deskhand/internal/models"
	"github.com/zulandar/deskhand/internal/workflow"
)

// StatusLabel maps a persisted status to its display label. The stored
// value never carries the glyph; this mapping is the only place display
// text lives.
func StatusLabel(s models.Status) string {
	switch s {
	case models.StatusNew:
		return "🆕 New"
	case models.StatusInProgress:
		return "🛠 In progress"
	case models.StatusDone:
		return "✅ Done"
	case models.StatusRejected:
		return "❌ Rejected"
	}
	return string(s)
}

// actionLabel maps a triage action to its button label.
func actionLabel(a workflow.Action) string {
	switch a {
	case workflow.ActionClaim:
		return "🛠 Claim"
	case workflow.ActionComplete:
		return "✅ Complete"
	case workflow.ActionReject:
		return "❌ Reject"
	}
	return string(a)
}

// ControlButtons builds the interactive control set for a request.
func ControlButtons(actions []workflow.Action, id uint) []Button {
	var buttons []Button
	for _, a := range actions {
		buttons = append(buttons, Button{
			Label: actionLabel(a),
			Data:  EncodeControl(string(a), id),
		})
	}
	return buttons
}

// submitterName picks the best human-readable identity for a request:
// remembered full name, then handle, then the raw submitter id. Older rows
// may predate the full-name field.
func submitterName(req models.Request) string {
	if req.SubmitterFullName != nil && *req.SubmitterFullName != "" {
		return *req.SubmitterFullName
	}
	if req.SubmitterHandle != "" {
		return req.SubmitterHandle
	}
	return req.SubmitterID
}

// FormatRequestCard renders the admin-facing card for a newly created request.
func FormatRequestCard(req models.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 REQUEST #%d\n", req.ID)
	fmt.Fprintf(&b, "👤 Who: %s", submitterName(req))
	if req.SubmitterHandle != "" && submitterName(req) != req.SubmitterHandle {
		fmt.Fprintf(&b, " (%s)", req.SubmitterHandle)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "🏢 Where: %s\n", req.Location)
	fmt.Fprintf(&b, "🔧 %s | 🔥 %s\n", req.Category, req.Urgency)
	fmt.Fprintf(&b, "📝 %s", req.Description)
	return b.String()
}

// FormatActiveCard renders one entry of the admin active-requests panel,
// including the current status.
func FormatActiveCard(req models.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚡️ REQUEST #%d (%s)\n", req.ID, StatusLabel(req.Status))
	fmt.Fprintf(&b, "👤 %s\n", submitterName(req))
	fmt.Fprintf(&b, "🏢 %s\n", req.Location)
	fmt.Fprintf(&b, "🔧 %s | 🔥 %s\n", req.Category, req.Urgency)
	fmt.Fprintf(&b, "📝 %s", req.Description)
	return b.String()
}

// FormatStatusNotice renders the submitter-facing notice for a status
// transition.
func FormatStatusNotice(id uint, description string, status models.Status) string {
	desc := truncateRunes(description, 30)
	switch status {
	case models.StatusInProgress:
		return fmt.Sprintf("🛠 Your request #%d (“%s”) was taken into work!", id, desc)
	case models.StatusDone:
		return fmt.Sprintf("✅ Your request #%d (“%s”) is done!", id, desc)
	case models.StatusRejected:
		return fmt.Sprintf("❌ Your request #%d (“%s”) was rejected.", id, desc)
	}
	return fmt.Sprintf("Your request #%d is now %s.", id, StatusLabel(status))
}

// FormatMyRequests renders the submitter's last requests, newest first.
func FormatMyRequests(reqs []models.Request) string {
	if len(reqs) == 0 {
		return "You have no requests yet."
	}
	var b strings.Builder
	b.WriteString("📋 Your latest requests:\n\n")
	for _, r := range reqs {
		fmt.Fprintf(&b, "#%d %s\n└ %s\n└ Status: %s\n\n",
			r.ID, r.Category, truncateRunes(r.Description, 35), StatusLabel(r.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatDigest renders the scheduled open-requests digest for admins.
func FormatDigest(reqs []models.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Open requests: %d\n\n", len(reqs))
	for _, r := range reqs {
		fmt.Fprintf(&b, "#%d %s — %s (%s)\n", r.ID, r.Category, r.Location, StatusLabel(r.Status))
	}
	return strings.TrimRight(b.String(), "\n")
}

// truncateRunes returns s truncated to maxLen runes with "..." appended if
// needed. Rune-safe: descriptions arrive in any language.
func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
