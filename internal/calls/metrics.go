package calls

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "call_records_total",
			Help: "Call record submissions by outcome.",
		},
		[]string{"outcome"},
	)
	linkIncrements = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "link_increments_total",
		Help: "Committed volume counter increments on routing links.",
	})
)

func init() {
	prometheus.MustRegister(recordOutcomes, linkIncrements)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "recorded"
	case errors.Is(err, ErrDuplicateCall):
		return "duplicate"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, ErrLinkNotFound):
		return "link_not_found"
	default:
		return "error"
	}
}
