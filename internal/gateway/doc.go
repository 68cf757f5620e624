// Package gateway serves the senpai-gateway HTTP API.
//
// # Overview
//
// The gateway owns the HTTP server, its listeners, and the health endpoints.
// Conversation semantics live in the conversation package; the gateway only
// translates HTTP requests into orchestrator calls and maps its errors onto
// status codes.
//
// # Endpoints
//
// Turn submission:
//
//	POST /api/send          SSE stream: started, user, agent, done
//	POST /api/quiz          JSON: turn result plus decoded quiz payload
//
// Conversation access:
//
//	GET  /api/conversations                      list summaries, newest first
//	GET  /api/conversations/{id}/messages        transcript, optional ?limit=N
//	POST /api/conversations/{id}/rename          body {"title": "..."}
//	GET  /api/conversations/{id}/events          SSE stream of live changes
//	GET  /api/conversations/{id}/transcript      standalone HTML export
//	GET  /api/search?q=term                      matching summaries
//
// Health:
//
//	GET /health             liveness, always 200 while serving
//	GET /health/ready       readiness, 200 once AWS credentials resolve
//
// # Error Mapping
//
//	empty text            400
//	unknown mentor        400
//	unknown conversation  404
//	turn in flight        409
//	anything else         500
//
// A failed agent call is NOT an HTTP error: the turn completes with the
// mentor's fallback reply and the response marks it with "fallback": true.
//
// # Listeners
//
// By default the server binds server.http_addr. With tailscale.enabled the
// gateway instead joins the tailnet via tsnet and listens there, optionally
// with TLS certs or a public Funnel.
package gateway
