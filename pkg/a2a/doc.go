// Package a2a implements the Agent-to-Agent (A2A) protocol data model and
// wire contract: messages, tasks, artifacts, agent cards, the JSON-RPC
// envelope, and streaming event payloads.
//
// Every entity serializes to two dialects: the native form (a message carries
// a single "content" object) and the Google A2A compatible form (a message
// carries a "parts" array). A process-wide flag selects which dialect ToDict
// and MarshalJSON emit; FromDict auto-detects the dialect on decode so the
// round trip holds in either mode.
package a2a
