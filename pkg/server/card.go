package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
)

// Minimal human-readable rendering of the agent card for browsers. The raw
// JSON is embedded in the code block so tolerant clients can still extract
// it from this page.
const cardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s - Agent Card</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
pre { background: #f4f4f4; padding: 1rem; overflow-x: auto; border-radius: 4px; }
</style>
</head>
<body>
<h1>%s</h1>
<p>%s</p>
<p>This agent speaks the A2A protocol. The machine-readable descriptor:</p>
<pre><code id="agent-card">%s</code></pre>
</body>
</html>
`

// handleAgentCard serves the agent descriptor. Browsers asking for HTML get
// a page embedding the card JSON; everyone else gets plain JSON. The
// ?format=json query overrides negotiation.
func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" || !wantsHTML(r) {
		respondJSON(w, http.StatusOK, s.card)
		return
	}

	data, err := json.MarshalIndent(s.card, "", "  ")
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, cardHTML,
		html.EscapeString(s.card.Name),
		html.EscapeString(s.card.Name),
		html.EscapeString(s.card.Description),
		html.EscapeString(string(data)))
}

// wantsHTML reports whether the request looks like a browser preferring an
// HTML rendering over JSON.
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	htmlIdx := strings.Index(accept, "text/html")
	if htmlIdx < 0 {
		return false
	}
	if jsonIdx := strings.Index(accept, "application/json"); jsonIdx >= 0 && jsonIdx < htmlIdx {
		return false
	}

	ua := r.Header.Get("User-Agent")
	return strings.Contains(ua, "Mozilla") ||
		strings.Contains(ua, "Chrome") ||
		strings.Contains(ua, "Safari")
}
