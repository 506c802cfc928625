package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "estate_inquiries_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "estate_inquiries_ws_rooms",
			Help: "Current number of conversation rooms on this node.",
		},
	)
	wsFramesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "estate_inquiries_ws_frames_delivered_total",
			Help: "Total event frames delivered to websocket clients.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, wsFramesDelivered)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsRooms.Set(float64(count))
}

func addDelivered(count int) {
	wsFramesDelivered.Add(float64(count))
}
