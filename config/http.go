package config

import "strings"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8443"`

	// MaxConnections caps concurrent connections. 0 means unlimited.
	MaxConnections int `env:"HTTP_MAX_CONNECTIONS" envDefault:"0"`

	// WebhookToken is the path secret for POST /webhook/{token}.
	// The webhook route is disabled when empty.
	WebhookToken string `env:"HTTP_WEBHOOK_TOKEN"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr = strings.TrimSpace(h.Addr); h.Addr == "" {
		h.Addr = ":8443"
	}
	if h.MaxConnections < 0 {
		h.MaxConnections = 0
	}
	h.WebhookToken = strings.TrimSpace(h.WebhookToken)
}

// InboundConfig holds the JMESPath expressions that pull a submission out of
// an arbitrary webhook body.
type InboundConfig struct {
	CallerExpr      string `env:"INBOUND_CALLER_EXPR"       envDefault:"message.chat.id"`
	PayloadExpr     string `env:"INBOUND_PAYLOAD_EXPR"      envDefault:"message.photo_data"`
	ContentTypeExpr string `env:"INBOUND_CONTENT_TYPE_EXPR" envDefault:"message.content_type"`
	MetadataExpr    string `env:"INBOUND_METADATA_EXPR"     envDefault:"message.caption"`
}

// Sanitize trims expressions.
func (c *InboundConfig) Sanitize() {
	c.CallerExpr = strings.TrimSpace(c.CallerExpr)
	c.PayloadExpr = strings.TrimSpace(c.PayloadExpr)
	c.ContentTypeExpr = strings.TrimSpace(c.ContentTypeExpr)
	c.MetadataExpr = strings.TrimSpace(c.MetadataExpr)
}
