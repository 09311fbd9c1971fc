package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var widgetFallbacksServed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "statusproxy_widget_fallbacks_served",
	Help: "Number of widget responses substituted with the hardcoded fallback payload",
}, []string{"widget"})

var subscribeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "statusproxy_subscribe_requests",
	Help: "Subscriber creation requests, by delivery type and outcome",
}, []string{"delivery", "outcome"})
