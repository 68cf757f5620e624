// Package config handles configuration loading for senpai-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SENPAI_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/senpai/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	aws:
//	  id_token: "${SENPAI_ID_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	agent:
//	  invoke_timeout: "90s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// AWS and Cognito:
//
//	aws:
//	  region: "us-east-1"
//	  user_pool_id: "us-east-1_abc123"
//	  identity_pool_id: "us-east-1:1111-2222"
//	  id_token: "${SENPAI_ID_TOKEN}"
//
// Agent runtime:
//
//	agent:
//	  qualifier: "DEFAULT"
//	  invoke_timeout: "90s"   # empty means no bound beyond the request
//
// Session tokens:
//
//	session:
//	  min_token_length: 33
//
// Mentors (one entry per mentor domain):
//
//	mentors:
//	  - name: "counseling"
//	    endpoint: "arn:aws:bedrock-agentcore:...:runtime/counseling"
//	    context_label: "Emotion"     # optional, defaults per name
//	    fallback_text: "..."         # optional, defaults per name
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "senpai-gateway"
//	  auth_key: "${TS_AUTHKEY}"
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - HTTP listen address (unless Tailscale serves instead)
//   - AWS region and Cognito pool identifiers
//   - At least one mentor, each with a unique name and an endpoint
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/senpai/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
