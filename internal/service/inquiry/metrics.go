package inquiry

import "github.com/prometheus/client_golang/prometheus"

var (
	conversationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estate_inquiries_conversations_created_total",
			Help: "Total conversations created (idempotent hits excluded).",
		},
	)
	messagesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estate_inquiries_messages_appended_total",
			Help: "Total messages persisted across all conversations.",
		},
	)
	readSweeps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estate_inquiries_read_sweeps_total",
			Help: "Total mark-read sweeps that flipped at least one message.",
		},
	)
	reassignments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estate_inquiries_reassignments_total",
			Help: "Total conversations transferred between agents.",
		},
	)
	hardDeletes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estate_inquiries_hard_deletes_total",
			Help: "Total conversations permanently removed after both parties hid them.",
		},
	)
)

func init() {
	prometheus.MustRegister(conversationsCreated, messagesAppended, readSweeps, reassignments, hardDeletes)
}
