package hsm

import (
	"errors"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/securechannel"
	"github.com/backkem/yubihsm/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the Prometheus namespace of the client metrics.
const Namespace = "yubihsm"

// Metric label values for the result of an operation.
const (
	ResultSuccess         = "success"
	ResultInvalidArgument = "invalid_argument"
	ResultDeviceError     = "device_error"
	ResultIntegrityError  = "integrity_error"
	ResultTransportError  = "transport_error"
	ResultError           = "error"
)

// Operation names used as metric labels.
const (
	OpEcho            = "echo"
	OpGetPseudoRandom = "get_pseudo_random"
	OpGetObjectInfo   = "get_object_info"
	OpDeleteObject    = "delete_object"
	OpGenerateHMACKey = "generate_hmac_key"
	OpPutHMACKey      = "put_hmac_key"
	OpSignHMAC        = "sign_hmac"
	OpVerifyHMAC      = "verify_hmac"
)

// Metrics instruments a Client. A nil *Metrics records nothing.
type Metrics struct {
	operations        *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	sessions          prometheus.Gauge
	sessionsOpened    prometheus.Counter
	integrityFailures prometheus.Counter
}

// NewMetrics registers the client metrics with reg. It returns nil if reg
// is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Total number of HSM operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of HSM operations in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Number of authenticated sessions",
		}),
		sessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of authenticated sessions",
		}),
		integrityFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "integrity_failures_total",
			Help:      "Total number of sessions closed by an integrity failure",
		}),
	}
}

// observe records one operation started at start. It is meant to be
// deferred with a pointer to the named error result.
func (m *Metrics) observe(op string, start time.Time, errp *error) {
	if m == nil {
		return
	}
	var err error
	if errp != nil {
		err = *errp
	}
	m.operations.WithLabelValues(op, resultOf(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
	m.sessionsOpened.Inc()
}

func (m *Metrics) sessionClosed(cause error) {
	if m == nil {
		return
	}
	m.sessions.Dec()
	if securechannel.IsIntegrityError(cause) {
		m.integrityFailures.Inc()
	}
}

func resultOf(err error) string {
	var devErr *command.DeviceError
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrInvalidArgument):
		return ResultInvalidArgument
	case errors.Is(err, securechannel.ErrSessionRejected):
		// An error record in place of a session frame closed the session.
		return ResultIntegrityError
	case errors.As(err, &devErr):
		return ResultDeviceError
	case securechannel.IsIntegrityError(err):
		return ResultIntegrityError
	case errors.Is(err, transport.ErrTransport):
		return ResultTransportError
	default:
		return ResultError
	}
}
