package client

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/agentwire/agentwire/pkg/a2a"
)

// Matched separately, innermost first, so a nested <pre><code>…</code></pre>
// page yields the code block's JSON rather than the enclosing pre's markup.
var (
	codeBlockRe = regexp.MustCompile(`(?s)<code[^>]*>(.*?)</code>`)
	preBlockRe  = regexp.MustCompile(`(?s)<pre[^>]*>(.*?)</pre>`)
)

// AgentCard fetches the endpoint's agent descriptor. Servers that answer
// with an HTML page get their embedded card JSON extracted, so discovery
// works against browser-first deployments too.
func (c *Client) AgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/agent.json", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/html")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", a2a.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: server returned %d: %s", a2a.ErrConnection, resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", a2a.ErrConnection, err)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		extracted, err := extractCardJSON(string(body))
		if err != nil {
			return nil, err
		}
		body = extracted
	}

	card := &a2a.AgentCard{}
	if err := json.Unmarshal(body, card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return card, nil
}

// extractCardJSON pulls the card out of an HTML page: the largest parseable
// JSON object inside a <code> or <pre> block wins, with a raw scan for an
// object mentioning card fields as the fallback.
func extractCardJSON(page string) ([]byte, error) {
	var best []byte
	for _, re := range []*regexp.Regexp{codeBlockRe, preBlockRe} {
		for _, match := range re.FindAllStringSubmatch(page, -1) {
			candidate := []byte(strings.TrimSpace(html.UnescapeString(match[1])))
			if len(candidate) <= len(best) {
				continue
			}
			var probe map[string]any
			if json.Unmarshal(candidate, &probe) == nil {
				best = candidate
			}
		}
	}
	if best != nil {
		return best, nil
	}

	// No usable code block; scan the page for a balanced object that looks
	// like a card.
	unescaped := html.UnescapeString(page)
	for start := 0; start < len(unescaped); {
		open := strings.IndexByte(unescaped[start:], '{')
		if open < 0 {
			break
		}
		open += start
		candidate := balancedObject(unescaped[open:])
		if candidate != "" &&
			(strings.Contains(candidate, `"capabilities"`) || strings.Contains(candidate, `"name"`)) {
			var probe map[string]any
			if json.Unmarshal([]byte(candidate), &probe) == nil {
				return []byte(candidate), nil
			}
		}
		start = open + 1
	}
	return nil, fmt.Errorf("no agent card found in HTML response")
}

// balancedObject returns the brace-balanced prefix of s, or empty when the
// braces never close. String literals are honored so embedded braces do not
// confuse the count.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
