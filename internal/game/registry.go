package game

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-live-service/internal/domain"
)

// Config holds the engine timing knobs.
type Config struct {
	RevealDuration time.Duration // auto-advance delay in solo mode
	RevealFallback time.Duration // auto-advance fallback when the host stalls
	GracePeriod    time.Duration // disconnect-to-removal window
	IdleTTL        time.Duration // inactivity expiry threshold
	MaxAge         time.Duration // hard cap on room lifetime
	SweepInterval  time.Duration
	EndLinger      time.Duration // delay before a finished room is torn down
	StreakCap      int
	CodeLength     int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		RevealDuration: 8 * time.Second,
		RevealFallback: 30 * time.Second,
		GracePeriod:    10 * time.Second,
		IdleTTL:        10 * time.Minute,
		MaxAge:         4 * time.Hour,
		SweepInterval:  time.Minute,
		EndLinger:      time.Minute,
		StreakCap:      DefaultStreakCap,
		CodeLength:     DefaultCodeLength,
	}
}

// codeAttempts caps join-code generation retries; exhausting it surfaces
// ErrCodeSpaceExhausted instead of looping forever.
const codeAttempts = 50

// Registry owns every live room keyed by join code. The code→room map is
// the only structure shared across rooms and is safe for concurrent
// lookup, insert and remove. The registry starts empty on every boot:
// in-memory connection state cannot be reconstructed after a restart, so
// in-flight games are never resumed.
type Registry struct {
	cfg   Config
	log   *logrus.Logger
	stats StatsStore

	mu    sync.RWMutex
	rooms map[string]*Room

	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its expiry sweep.
func NewRegistry(cfg Config, stats StatsStore, log *logrus.Logger) *Registry {
	reg := &Registry{
		cfg:   cfg,
		log:   log,
		stats: stats,
		rooms: make(map[string]*Room),
		done:  make(chan struct{}),
	}
	go reg.sweepLoop()
	return reg
}

// CreateRoom snapshots the quiz into a new room under a fresh join code.
func (reg *Registry) CreateRoom(quiz domain.Quiz, hostID string) (*Room, error) {
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrQuizEmpty
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	var code string
	found := false
	for i := 0; i < codeAttempts; i++ {
		candidate, err := GenerateCode(reg.cfg.CodeLength)
		if err != nil {
			return nil, err
		}
		if _, taken := reg.rooms[candidate]; !taken {
			code = candidate
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrCodeSpaceExhausted
	}

	room := newRoom(code, quiz, hostID, reg.cfg, reg.stats, reg.scheduleDelete, reg.log)
	reg.rooms[code] = room
	reg.log.WithFields(logrus.Fields{"room": code, "quiz": quiz.ID}).Info("room created")
	return room, nil
}

// Get looks up a live room by join code.
func (reg *Registry) Get(code string) (*Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// Delete tears a room down. The room's lane is drained before its state is
// freed so an in-flight transition always completes.
func (reg *Registry) Delete(code string) {
	reg.mu.Lock()
	room, ok := reg.rooms[code]
	if ok {
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	if ok {
		room.Close()
		reg.log.WithField("room", code).Info("room deleted")
	}
}

// scheduleDelete is handed to rooms so a finished room can ask for its own
// teardown without holding the registry lock.
func (reg *Registry) scheduleDelete(code string) {
	reg.Delete(code)
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Close stops the sweep and tears down every room.
func (reg *Registry) Close() {
	reg.closeOnce.Do(func() {
		close(reg.done)
	})

	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for code, room := range reg.rooms {
		rooms = append(rooms, room)
		delete(reg.rooms, code)
	}
	reg.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}

func (reg *Registry) sweepLoop() {
	ticker := time.NewTicker(reg.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-reg.done:
			return
		case <-ticker.C:
			reg.sweep(time.Now())
		}
	}
}

// sweep removes rooms idle past the inactivity threshold or older than the
// hard age cap, whichever comes first. It runs independently of any single
// room's activity so an abandoned room cannot pin resources.
func (reg *Registry) sweep(now time.Time) {
	reg.mu.RLock()
	expired := make([]string, 0)
	for code, room := range reg.rooms {
		idle := now.Sub(room.LastActivity()) > reg.cfg.IdleTTL
		aged := now.Sub(room.CreatedAt()) > reg.cfg.MaxAge
		if idle || aged {
			expired = append(expired, code)
		}
	}
	reg.mu.RUnlock()

	for _, code := range expired {
		reg.log.WithField("room", code).Info("room expired")
		reg.Delete(code)
	}
}
