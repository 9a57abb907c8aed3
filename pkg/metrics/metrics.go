// Package metrics 注册服务的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReplyOutcomes 按提供方与结果统计回复解析次数。
	ReplyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinic_chat",
		Name:      "reply_outcomes_total",
		Help:      "Reply resolution outcomes by provider and kind.",
	}, []string{"provider", "outcome"})

	// ReplyLatency 记录单次提供方调用耗时。
	ReplyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "clinic_chat",
		Name:      "reply_duration_seconds",
		Help:      "Latency of reply provider calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})

	// HTTPRequests 按路由与状态码统计请求数。
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinic_chat",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	// EventsPublished 统计聊天事件投递结果。
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinic_chat",
		Name:      "chat_events_published_total",
		Help:      "Chat turn events handed to the broker, by result.",
	}, []string{"result"})

	// TurnsIndexed 统计写入搜索索引的聊天记录数。
	TurnsIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "clinic_chat",
		Name:      "chat_turns_indexed_total",
		Help:      "Chat turns indexed into the search backend, by result.",
	}, []string{"result"})
)
