package routing

import "github.com/prometheus/client_golang/prometheus"

var decisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "routing_decisions_total",
		Help: "Routing decisions by status and reject reason.",
	},
	[]string{"status", "reason"},
)

func init() {
	prometheus.MustRegister(decisions)
}

func observe(res Result, err error) {
	if err != nil {
		decisions.WithLabelValues("error", "").Inc()
		return
	}
	decisions.WithLabelValues(string(res.Status), string(res.Reason)).Inc()
}
