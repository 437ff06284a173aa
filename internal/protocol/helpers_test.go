package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/pettracker-core/internal/audit"
	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/database"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pettracker-core/internal/schema"
	"github.com/nerrad567/pettracker-core/internal/service"
	"github.com/nerrad567/pettracker-core/internal/twin"
	_ "github.com/nerrad567/pettracker-core/migrations"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// sent is one recorded setting publish.
type sent struct {
	Topic    string
	Value    bool
	QoS      byte
	Retained bool
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (p *recordingPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	var s setting
	if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, sent{Topic: topic, Value: s.Setting, QoS: qos, Retained: retained})
	return nil
}

func (p *recordingPublisher) all() []sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sent(nil), p.msgs...)
}

// last returns the value last published on topic.
func (p *recordingPublisher) last(topic string) (bool, bool) {
	msgs := p.all()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Topic == topic {
			return msgs[i].Value, true
		}
	}
	return false, false
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.msgs = nil
	p.mu.Unlock()
}

type note struct {
	To      string
	Message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Notify(_ context.Context, addressee, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{To: addressee, Message: message})
	return nil
}

func (n *recordingNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.notes))
	for i, nt := range n.notes {
		out[i] = nt.Message
	}
	return out
}

func (n *recordingNotifier) contains(substr string) bool {
	for _, m := range n.messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type recordingSink struct {
	mu    sync.Mutex
	kinds []string
}

func (s *recordingSink) WriteMeasurement(_, entityType, _, kind string, _ float64, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, entityType+"/"+kind)
}

type event struct {
	Channel  string
	Customer string
	Payload  any
}

type recordingEvents struct {
	mu     sync.Mutex
	events []event
}

func (e *recordingEvents) Broadcast(channel, customer string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event{Channel: channel, Customer: customer, Payload: payload})
}

func (e *recordingEvents) all() []event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]event(nil), e.events...)
}

// fixture is one smart home wired to a handler:
//
//	default room "Somewhere else", rooms A (pet inside), B and C
//	door 1: entry A, exit B
//	door 2: entry C, exit B
type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *entity.Store
	agg     *twin.Aggregator
	handler *Handler
	pub     *recordingPublisher
	notes   *recordingNotifier
	sink    *recordingSink
	events  *recordingEvents
	trail   *audit.SQLiteRepository
	metrics *Metrics
	topics  mqtt.Topics
	now     time.Time

	home  *entity.Entity
	def   *entity.Entity
	roomA *entity.Entity
	roomB *entity.Entity
	roomC *entity.Entity
	door1 *entity.Entity
	door2 *entity.Entity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	schemas, err := schema.NewDefaultRegistry("")
	require.NoError(t, err)

	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  entity.NewStore(entity.NewSQLiteRepository(db.DB), schemas),
		pub:    &recordingPublisher{},
		notes:  &recordingNotifier{},
		sink:   &recordingSink{},
		events: &recordingEvents{},
		trail:  audit.NewSQLiteRepository(db.DB),
		topics: mqtt.Topics{Base: "pettracker"},
		now:    t0,
	}
	clock := func() time.Time { return f.now }
	f.store.SetClock(clock)
	f.agg = twin.NewAggregator(f.store, service.NewEngine(config.DefaultRoomName, clock))
	f.metrics = NewMetrics(prometheus.NewRegistry())

	f.handler, err = NewHandler(Deps{
		Twins:           f.agg,
		Store:           f.store,
		Publisher:       f.pub,
		Notifier:        f.notes,
		Sink:            f.sink,
		Events:          f.events,
		Audit:           f.trail,
		Metrics:         f.metrics,
		Topics:          f.topics,
		DefaultRoomName: config.DefaultRoomName,
		DedupWindow:     time.Minute,
		Clock:           clock,
	})
	require.NoError(t, err)

	f.def = f.createRoom(config.DefaultRoomName, true)
	f.roomA = f.createRoom("Kitchen", false)
	f.roomB = f.createRoom("Hall", true)
	f.roomC = f.createRoom("Bedroom", true)
	f.door1 = f.createDoor(1, f.roomA.ID, f.roomB.ID)
	f.door2 = f.createDoor(2, f.roomC.ID, f.roomB.ID)

	f.home, err = f.store.Create(f.ctx, entity.TypeSmartHome, entity.Input{
		Profile: map[string]any{
			entity.FieldUser:    "alice",
			entity.FieldChatID:  42,
			entity.FieldPetName: "Rex",
		},
		Data: map[string]any{
			entity.FieldDefaultRoom: f.def.ID,
			entity.FieldRooms:       []string{f.def.ID, f.roomA.ID, f.roomB.ID, f.roomC.ID},
			entity.FieldDevices:     []string{f.door1.ID, f.door2.ID},
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) createRoom(name string, vacant bool) *entity.Entity {
	f.t.Helper()
	room, err := f.store.Create(f.ctx, entity.TypeRoom, entity.Input{
		Profile: map[string]any{entity.FieldName: name},
		Data: map[string]any{
			entity.FieldVacancy:      vacant,
			entity.FieldLastAccessed: t0.Add(-time.Hour),
		},
	})
	require.NoError(f.t, err)
	return room
}

func (f *fixture) createDoor(seq int, entry, exit string) *entity.Entity {
	f.t.Helper()
	door, err := f.store.Create(f.ctx, entity.TypeDoor, entity.Input{
		Profile: map[string]any{
			entity.FieldName:      fmt.Sprintf("Door %d", seq),
			entity.FieldSeqNumber: seq,
		},
		Data: map[string]any{
			entity.FieldPowerSavingMode:   false,
			entity.FieldEntryRoom:         entry,
			entity.FieldExitRoom:          exit,
			entity.FieldOverrideEntryRoom: entry,
			entity.FieldOverrideExitRoom:  exit,
		},
	})
	require.NoError(f.t, err)
	return door
}

// set patches an entity's data directly in the store.
func (f *fixture) set(entityType, id string, data map[string]any) {
	f.t.Helper()
	_, err := f.store.Update(f.ctx, entityType, id, entity.DataPatch(data))
	require.NoError(f.t, err)
}

func (f *fixture) get(entityType, id string) *entity.Entity {
	f.t.Helper()
	e, err := f.store.Get(f.ctx, entityType, id)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) topic(seq int, subtopic string) string {
	return fmt.Sprintf("pettracker/alice/NodeMCU@%d/%s", seq, subtopic)
}

func (f *fixture) setting(seq int, name string) string {
	return f.topics.DeviceSetting("alice", mqtt.DefaultDeviceName, seq, name)
}

func (f *fixture) passBy(seq int, kind string) error {
	payload := fmt.Sprintf(`{"type":%q,"value":1.0,"timestamp":%q}`, kind, f.now.Format(time.RFC3339Nano))
	return f.handler.HandleMessage(f.ctx, f.topic(seq, mqtt.SubtopicPassingBy), []byte(payload))
}

func (f *fixture) power(seq int, online bool) error {
	payload := fmt.Sprintf(`{"data":%t}`, online)
	return f.handler.HandleMessage(f.ctx, f.topic(seq, mqtt.SubtopicPowerStatus), []byte(payload))
}

// occupied returns the ids of the rooms with vacancy_status false.
func (f *fixture) occupied() []string {
	f.t.Helper()
	rooms, err := f.store.Query(f.ctx, entity.TypeRoom, entity.Where(schema.SectionData, entity.FieldVacancy, false))
	require.NoError(f.t, err)
	ids := make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids
}
