package main

import "encoding/json"

// Fallback payloads for the two dashboard widget routes. When the provider is
// unreachable these are substituted instead of an error response, so the public
// dashboard never renders broken. The trade-off is deliberate: during a real provider
// outage the widgets can show "operational" when things are not. Every substitution is
// counted (statusproxy_widget_fallbacks_served) and logged at WARN so on-call staff
// can see the masking happen.
var (
	fallbackIndicator = json.RawMessage(`{"status":{"indicator":"operational","description":"All systems operational"}}`)

	fallbackIncidents = json.RawMessage(`{"incidents":[]}`)
)
