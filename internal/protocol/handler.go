package protocol

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pettracker-core/internal/notify"
	"github.com/nerrad567/pettracker-core/internal/twin"
)

// Logger defines the logging interface used by the Handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Twins provides scoped twins, one per reaction.
type Twins interface {
	With(ctx context.Context, customer string, fn func(*twin.Twin) error) error
}

// Store is the subset of the entity store the protocol writes through.
type Store interface {
	Update(ctx context.Context, entityType, id string, patch entity.Patch) (*entity.Entity, error)
	AppendMeasurement(ctx context.Context, entityType, id string, m entity.Measurement, extra map[string]any) (*entity.Entity, error)
}

// Publisher sends device settings to the broker.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MeasurementSink receives every measurement the protocol appends.
type MeasurementSink interface {
	WriteMeasurement(customer, entityType, entityID, kind string, value float64, at time.Time)
}

// settingQoS is the delivery level of published settings.
const settingQoS byte = 1

// Deps are the collaborators of a Handler. Twins, Store and Publisher are
// required; the rest have defaults.
type Deps struct {
	Twins     Twins
	Store     Store
	Publisher Publisher
	Notifier  notify.Notifier
	Sink      MeasurementSink
	Events    EventSink
	Audit     audit.Recorder
	Metrics   *Metrics
	Logger    Logger
	Topics    mqtt.Topics

	// DefaultRoomName identifies each smart home's default room.
	DefaultRoomName string

	// DedupWindow is how long a passing-by message is remembered. Zero
	// disables de-duplication.
	DedupWindow time.Duration

	Clock func() time.Time
}

// Handler reacts to door telemetry: it keeps room occupancy in line with
// passing-by detections and reroutes doors around faults.
//
// Thread Safety: HandleMessage may be called concurrently. Reactions for
// the same smart home are serialized.
type Handler struct {
	twins           Twins
	store           Store
	publisher       Publisher
	notifier        notify.Notifier
	sink            MeasurementSink
	events          EventSink
	audit           audit.Recorder
	metrics         *Metrics
	logger          Logger
	topics          mqtt.Topics
	defaultRoomName string
	clock           func() time.Time

	locks *KeyedMutex
	seen  *cache.Cache
}

// NewHandler creates a Handler from deps.
func NewHandler(deps Deps) (*Handler, error) {
	switch {
	case deps.Twins == nil:
		return nil, fmt.Errorf("%w: twins", ErrMissingDependency)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	case deps.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher", ErrMissingDependency)
	}

	h := &Handler{
		twins:           deps.Twins,
		store:           deps.Store,
		publisher:       deps.Publisher,
		notifier:        deps.Notifier,
		sink:            deps.Sink,
		events:          deps.Events,
		audit:           deps.Audit,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		topics:          deps.Topics,
		defaultRoomName: deps.DefaultRoomName,
		clock:           deps.Clock,
		locks:           &KeyedMutex{},
	}
	if h.logger == nil {
		h.logger = noopLogger{}
	}
	if h.notifier == nil {
		h.notifier = notify.NewLog(h.logger)
	}
	if h.clock == nil {
		h.clock = time.Now
	}
	if deps.DedupWindow > 0 {
		h.seen = cache.New(deps.DedupWindow, 2*deps.DedupWindow)
	}
	return h, nil
}

// Locks returns the per smart home lock shared with other writers.
func (h *Handler) Locks() *KeyedMutex {
	return h.locks
}

// HandleMessage reacts to one telemetry message. Its signature matches
// mqtt.MessageHandler once bound to a context.
//
// Unknown subtopics are ignored. Malformed payloads are rejected before
// any state is read. Errors signalling corrupted data are logged at error
// level and counted; every error is returned so the transport logs it too.
// A message is never retried.
func (h *Handler) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	dt, err := h.topics.ParseDeviceTopic(topic)
	if err != nil {
		h.metrics.message("", resultMalformed)
		h.logger.Warn("telemetry topic rejected", "topic", topic, "error", err)
		return err
	}

	start := time.Now()
	switch dt.Subtopic {
	case mqtt.SubtopicPassingBy:
		err = h.handlePassingBy(ctx, topic, dt, payload)
	case mqtt.SubtopicPowerStatus:
		err = h.handlePowerStatus(ctx, dt, payload)
	default:
		h.metrics.message(dt.Subtopic, resultIgnored)
		h.logger.Debug("telemetry subtopic ignored", "topic", topic)
		return nil
	}
	h.metrics.observe(dt.Subtopic, time.Since(start))

	if err != nil {
		h.fail(dt, err)
		return err
	}
	h.metrics.message(dt.Subtopic, resultHandled)
	return nil
}

// fail records a failed reaction.
func (h *Handler) fail(dt mqtt.DeviceTopic, err error) {
	if errors.Is(err, ErrMalformedPayload) {
		h.metrics.message(dt.Subtopic, resultMalformed)
		h.logger.Warn("telemetry payload dropped", "customer", dt.Customer, "seq_number", dt.SeqNumber, "error", err)
		return
	}
	if kind := consistencyKind(err); kind != "" {
		h.metrics.message(dt.Subtopic, resultError)
		h.metrics.consistencyError(kind)
		h.logger.Error("smart home data inconsistent",
			"customer", dt.Customer,
			"seq_number", dt.SeqNumber,
			"kind", kind,
			"error", err,
		)
		return
	}
	h.metrics.message(dt.Subtopic, resultError)
	h.logger.Warn("telemetry reaction failed",
		"customer", dt.Customer,
		"seq_number", dt.SeqNumber,
		"subtopic", dt.Subtopic,
		"error", err,
	)
}

func (h *Handler) handlePassingBy(ctx context.Context, topic string, dt mqtt.DeviceTopic, payload []byte) error {
	p, err := decodePassingBy(payload)
	if err != nil {
		return err
	}
	if h.duplicate(topic, p) {
		h.metrics.message(dt.Subtopic, resultDuplicate)
		h.logger.Debug("duplicate passing-by dropped", "topic", topic, "timestamp", p.Timestamp)
		return nil
	}

	return h.react(ctx, dt, func(r *reaction) error {
		return r.passingBy(p)
	})
}

func (h *Handler) handlePowerStatus(ctx context.Context, dt mqtt.DeviceTopic, payload []byte) error {
	online, err := decodePowerStatus(payload)
	if err != nil {
		return err
	}

	return h.react(ctx, dt, func(r *reaction) error {
		return r.powerStatus(online)
	})
}

// duplicate reports whether the same detection was seen within the dedup
// window, remembering it otherwise.
func (h *Handler) duplicate(topic string, p passingBy) bool {
	if h.seen == nil {
		return false
	}
	// The device timestamp only identifies the detection; reactions use server time.
	key := topic + "|" + p.Type + "|" + p.Timestamp
	return h.seen.Add(key, struct{}{}, cache.DefaultExpiration) != nil
}

// react runs fn for the door named by dt while holding the smart home's
// lock and a fresh twin.
func (h *Handler) react(ctx context.Context, dt mqtt.DeviceTopic, fn func(*reaction) error) error {
	unlock := h.locks.Lock(dt.Customer)
	defer unlock()

	return h.twins.With(ctx, dt.Customer, func(t *twin.Twin) error {
		door, err := findDoor(t, dt.SeqNumber)
		if err != nil {
			return err
		}
		r := h.newReaction(ctx, t)
		r.door = door
		return fn(r)
	})
}

// ReapplyDenial publishes the denial setting of both sides of every door
// of customer's smart home.
func (h *Handler) ReapplyDenial(ctx context.Context, customer string) error {
	unlock := h.locks.Lock(customer)
	defer unlock()

	return h.twins.With(ctx, customer, func(t *twin.Twin) error {
		return h.newReaction(ctx, t).reapplyDenial()
	})
}

// ReapplyPowerSaving publishes the power saving setting of every door of
// customer's smart home.
func (h *Handler) ReapplyPowerSaving(ctx context.Context, customer string) error {
	unlock := h.locks.Lock(customer)
	defer unlock()

	return h.twins.With(ctx, customer, func(t *twin.Twin) error {
		return h.newReaction(ctx, t).reapplyPowerSaving()
	})
}

func (h *Handler) newReaction(ctx context.Context, t *twin.Twin) *reaction {
	return &reaction{
		h:   h,
		ctx: ctx,
		t:   t,
		now: h.clock().UTC(),
	}
}

func findDoor(t *twin.Twin, seq int) (*entity.Entity, error) {
	for _, door := range t.Snapshot().Doors() {
		if n, ok := door.ProfileInt(entity.FieldSeqNumber); ok && n == int64(seq) {
			d := door
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no door %d", ErrUnknownDevice, t.Customer(), seq)
}

// addressee returns the chat a smart home's notifications go to.
func addressee(home *entity.Entity) string {
	if home == nil {
		return ""
	}
	id, ok := home.ProfileInt(entity.FieldChatID)
	if !ok {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
