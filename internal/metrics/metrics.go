package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	CyclesTotal         Counter
	CycleFailures       Counter
	OrdersSubmitted     Counter
	OrdersThrottled     Counter
	SafeModeEntered     Counter
	SafeModeExited      Counter
	KillSwitchTriggered Counter
	DataUnavailable     Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesTotal:         n,
		CycleFailures:       n,
		OrdersSubmitted:     n,
		OrdersThrottled:     n,
		SafeModeEntered:     n,
		SafeModeExited:      n,
		KillSwitchTriggered: n,
		DataUnavailable:     n,
	}
}
