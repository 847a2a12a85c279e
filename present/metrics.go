package present

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_messages_enqueued_total",
		Help: "Number of message trees placed on a sending queue",
	}, []string{"class_tag"})

	messagesMergedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_messages_merged_total",
		Help: "Number of enqueued message trees resolved by merge",
	}, []string{"result"})

	framesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_frames_sent_total",
		Help: "Number of frames handed to a connection",
	})

	frameBytesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_frame_bytes_sent_total",
		Help: "Number of frame bytes handed to a connection",
	})

	messagesAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_messages_applied_total",
		Help: "Number of received message nodes by apply outcome",
	}, []string{"class_tag", "outcome"})

	treesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_trees_dropped_total",
		Help: "Number of message trees dropped before apply or send",
	}, []string{"reason"})

	senderPostsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_sender_posts_dropped_total",
		Help: "Number of sender tasks dropped due to a full task channel",
	})

	relayConnectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classroom_relay_connections",
		Help: "Current number of participants connected to the relay",
	})
)
