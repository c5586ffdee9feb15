package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "lp_hedge_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	cyclesTotal     prometheus.Counter
	cycleFailures   prometheus.Counter
	ordersSubmitted prometheus.Counter
	ordersThrottled prometheus.Counter
	safeModeEntered prometheus.Counter
	safeModeExited  prometheus.Counter
	killTriggered   prometheus.Counter
	dataUnavailable prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	cyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_total",
		Help:      "Total number of hedge cycles run.",
	})
	cycleFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycle_failures_total",
		Help:      "Total number of hedge cycles that failed.",
	})
	ordersSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_submitted_total",
		Help:      "Total number of hedge orders submitted.",
	})
	ordersThrottled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_throttled_total",
		Help:      "Total number of hedge attempts dropped by the cooldown.",
	})
	safeModeEntered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "safe_mode_entered_total",
		Help:      "Total number of safe mode activations.",
	})
	safeModeExited := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "safe_mode_exited_total",
		Help:      "Total number of safe mode recoveries.",
	})
	killTriggered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "kill_switch_triggered_total",
		Help:      "Total number of kill switch evaluations that tripped.",
	})
	dataUnavailable := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "data_unavailable_total",
		Help:      "Total number of cycles with unusable position data.",
	})

	registry.MustRegister(cyclesTotal, cycleFailures, ordersSubmitted, ordersThrottled,
		safeModeEntered, safeModeExited, killTriggered, dataUnavailable)

	m := &Metrics{
		CyclesTotal:         promCounter{cyclesTotal},
		CycleFailures:       promCounter{cycleFailures},
		OrdersSubmitted:     promCounter{ordersSubmitted},
		OrdersThrottled:     promCounter{ordersThrottled},
		SafeModeEntered:     promCounter{safeModeEntered},
		SafeModeExited:      promCounter{safeModeExited},
		KillSwitchTriggered: promCounter{killTriggered},
		DataUnavailable:     promCounter{dataUnavailable},
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		cyclesTotal:     cyclesTotal,
		cycleFailures:   cycleFailures,
		ordersSubmitted: ordersSubmitted,
		ordersThrottled: ordersThrottled,
		safeModeEntered: safeModeEntered,
		safeModeExited:  safeModeExited,
		killTriggered:   killTriggered,
		dataUnavailable: dataUnavailable,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
