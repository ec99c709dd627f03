package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-live-service/internal/domain"
)

// Sender delivers events to one connected participant.
type Sender interface {
	Send(event domain.Event) error
}

// StatsStore receives post-game score deltas. Implementations must
// tolerate guest identities; the engine simply skips them.
type StatsStore interface {
	ApplyScoreDelta(ctx context.Context, userID string, delta int) error
}

const (
	opQueueSize       = 64
	statsWriteTimeout = 5 * time.Second
)

// Room is one running session. All state behind the ops channel is owned by
// the single run goroutine: concurrent events for the same room execute
// strictly in arrival order, never interleaved, while different rooms
// proceed fully in parallel.
type Room struct {
	code    string
	quiz    domain.Quiz
	hostID  string
	cfg     Config
	log     *logrus.Entry
	stats   StatsStore
	release func(code string)

	createdAt    time.Time
	lastActivity atomic.Int64

	ops       chan func()
	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once

	// Owned by the run goroutine.
	phase        domain.Phase
	ordinal      int
	solo         bool
	presence     *Presence
	ledger       map[int]map[string]*domain.Submission
	clients      map[string]Sender
	qTimer       *time.Timer
	advTimer     *time.Timer
	endTimer     *time.Timer
	statsWritten bool
}

func newRoom(code string, quiz domain.Quiz, hostID string, cfg Config, stats StatsStore, release func(code string), log *logrus.Logger) *Room {
	r := &Room{
		code:      code,
		quiz:      quiz,
		hostID:    hostID,
		cfg:       cfg,
		log:       log.WithField("room", code),
		stats:     stats,
		release:   release,
		createdAt: time.Now(),
		ops:       make(chan func(), opQueueSize),
		done:      make(chan struct{}),
		drained:   make(chan struct{}),
		phase:     domain.PhaseLobby,
		ledger:    make(map[int]map[string]*domain.Submission),
		clients:   make(map[string]Sender),
	}
	r.presence = NewPresence(cfg.GracePeriod, func(identity string, gen uint64) {
		r.async(func() { r.expireSeat(identity, gen) })
	})
	r.touch()
	go r.run()
	return r
}

// Code returns the join code.
func (r *Room) Code() string { return r.code }

// CreatedAt returns the creation timestamp.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// LastActivity returns the time of the last state-changing event. It is
// safe to call from the expiry sweep while the lane is busy.
func (r *Room) LastActivity() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

func (r *Room) touch() {
	r.lastActivity.Store(time.Now().UnixNano())
}

// run is the room's exclusive execution lane.
func (r *Room) run() {
	defer close(r.drained)
	for {
		select {
		case fn := <-r.ops:
			r.exec(fn)
		case <-r.done:
			// Drain queued events before freeing state so teardown never
			// yanks state out from under an in-flight transition.
			for {
				select {
				case fn := <-r.ops:
					r.exec(fn)
				default:
					return
				}
			}
		}
	}
}

// exec isolates failures: a panic while handling one room's event must not
// take down other rooms' lanes.
func (r *Room) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Error("recovered panic in room lane")
		}
	}()
	fn()
}

// do runs fn on the lane and waits for it to complete.
func (r *Room) do(fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		fn()
	}
	select {
	case r.ops <- wrapped:
	case <-r.done:
		return domain.ErrRoomClosed
	}
	select {
	case <-ran:
		return nil
	case <-r.drained:
		select {
		case <-ran:
			return nil
		default:
			return domain.ErrRoomClosed
		}
	}
}

// async enqueues fn without waiting; used by timer callbacks. Events for a
// closed room are dropped.
func (r *Room) async(fn func()) {
	select {
	case r.ops <- fn:
	case <-r.done:
	}
}

// Close stops the lane after draining it, then disarms every timer.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	<-r.drained
	if r.qTimer != nil {
		r.qTimer.Stop()
	}
	if r.advTimer != nil {
		r.advTimer.Stop()
	}
	if r.endTimer != nil {
		r.endTimer.Stop()
	}
	r.presence.StopTimers()
}

// Join adds an identity to the room or reconnects an existing one. New
// identities are only admitted in the lobby; a known identity may rejoin
// in any phase and gets the full current state back.
func (r *Room) Join(identity, displayName string, opts JoinOptions, sender Sender) (domain.RoomJoinedPayload, error) {
	var (
		joined domain.RoomJoinedPayload
		jerr   error
	)
	err := r.do(func() {
		_, known := r.presence.Get(identity)
		if !known && r.phase != domain.PhaseLobby {
			jerr = domain.ErrGameAlreadyStarted
			return
		}
		opts.Host = identity == r.hostID
		p, _ := r.presence.Join(identity, displayName, opts)
		if sender != nil {
			r.clients[identity] = sender
		}
		r.touch()
		r.broadcastRoster()
		joined = r.joinedPayload(p)
	})
	if err != nil {
		return domain.RoomJoinedPayload{}, err
	}
	return joined, jerr
}

func (r *Room) joinedPayload(p *domain.Participant) domain.RoomJoinedPayload {
	payload := domain.RoomJoinedPayload{
		Code:      r.code,
		QuizTitle: r.quiz.Title,
		Phase:     r.phase,
		You:       p.View(),
		Roster:    r.presence.Roster(),
	}
	switch r.phase {
	case domain.PhaseQuestionActive:
		view := domain.ViewOf(r.quiz.Questions[r.ordinal], len(r.quiz.Questions))
		payload.Question = &view
	case domain.PhaseQuestionReveal, domain.PhaseGameEnd:
		payload.Scoreboard = r.presence.Scoreboard()
	}
	return payload
}

// AddBot registers a synthetic participant. Bots are never removed on
// disconnect and never gate early question close.
func (r *Room) AddBot(callerID, botID, botName string) error {
	var aerr error
	err := r.do(func() {
		if callerID != r.hostID {
			aerr = domain.ErrNotHost
			return
		}
		if r.phase != domain.PhaseLobby {
			aerr = domain.ErrInvalidTransition
			return
		}
		r.presence.Join(botID, botName, JoinOptions{Bot: true})
		r.touch()
		r.broadcastRoster()
	})
	if err != nil {
		return err
	}
	return aerr
}

// Start moves the room out of the lobby. Host-only. A solo host starts in
// single-player mode, which auto-advances through reveals.
func (r *Room) Start(identity string) error {
	var serr error
	err := r.do(func() {
		if r.phase != domain.PhaseLobby {
			serr = domain.ErrInvalidTransition
			return
		}
		if identity != r.hostID {
			serr = domain.ErrNotHost
			return
		}
		// The host must hold a seat before the game can begin; otherwise
		// solo detection and early close would count a roster without them.
		if _, ok := r.presence.Get(r.hostID); !ok {
			serr = domain.ErrParticipantNotFound
			return
		}
		r.solo = r.presence.Len() == 1
		r.startQuestion(0)
	})
	if err != nil {
		return err
	}
	return serr
}

func (r *Room) startQuestion(ordinal int) {
	r.phase = domain.PhaseQuestionActive
	r.ordinal = ordinal
	if r.ledger[ordinal] == nil {
		r.ledger[ordinal] = make(map[string]*domain.Submission)
	}
	r.touch()

	q := r.quiz.Questions[ordinal]
	payload := domain.QuestionActivePayload{Question: domain.ViewOf(q, len(r.quiz.Questions))}
	if ordinal == 0 {
		payload.QuizTitle = r.quiz.Title
	}
	r.broadcast(domain.NewEvent(domain.EventQuestionActive, payload))

	if r.qTimer != nil {
		r.qTimer.Stop()
	}
	ord := ordinal
	r.qTimer = time.AfterFunc(time.Duration(q.TimeLimitMs)*time.Millisecond, func() {
		r.async(func() { r.closeQuestion(ord) })
	})
}

// Submit records one answer. Late, duplicate and wrong-ordinal submissions
// are rejected without mutating the ledger; callers treat those rejections
// as silent no-ops toward the client.
func (r *Room) Submit(identity string, ordinal int, answer domain.AnswerPayload, elapsedMs int) error {
	var serr error
	err := r.do(func() {
		if r.phase != domain.PhaseQuestionActive || ordinal != r.ordinal {
			serr = domain.ErrStaleSubmission
			return
		}
		p, ok := r.presence.Get(identity)
		if !ok {
			serr = domain.ErrParticipantNotFound
			return
		}
		if _, dup := r.ledger[ordinal][identity]; dup {
			serr = domain.ErrDuplicateSubmission
			return
		}
		limit := r.quiz.Questions[ordinal].TimeLimitMs
		if elapsedMs < 0 {
			elapsedMs = 0
		}
		if elapsedMs > limit {
			elapsedMs = limit
		}
		r.ledger[ordinal][identity] = &domain.Submission{
			ParticipantID: p.ID,
			Ordinal:       ordinal,
			Answer:        answer,
			ElapsedMs:     elapsedMs,
			ReceivedAt:    time.Now(),
		}
		r.touch()
		r.maybeCloseEarly()
	})
	if err != nil {
		return err
	}
	return serr
}

// maybeCloseEarly ends the question once every connected non-bot
// participant has answered.
func (r *Room) maybeCloseEarly() {
	if r.phase != domain.PhaseQuestionActive {
		return
	}
	expected := r.presence.ConnectedNonBots()
	if len(expected) == 0 {
		return
	}
	for _, id := range expected {
		if _, ok := r.ledger[r.ordinal][id]; !ok {
			return
		}
	}
	r.closeQuestion(r.ordinal)
}

// closeQuestion scores every participant and transitions to reveal. The
// ordinal guard makes the time-limit timer idempotent against early close.
func (r *Room) closeQuestion(ordinal int) {
	if r.phase != domain.PhaseQuestionActive || ordinal != r.ordinal {
		return
	}
	if r.qTimer != nil {
		r.qTimer.Stop()
	}
	r.phase = domain.PhaseQuestionReveal
	r.touch()

	q := r.quiz.Questions[ordinal]
	results := make([]domain.ParticipantResult, 0, r.presence.Len())
	r.presence.Each(func(p *domain.Participant) {
		res := Score(q, r.ledger[ordinal][p.ID], p.Streak, r.cfg.StreakCap)
		p.Score += res.Points
		p.Streak = res.Streak
		p.LastCorrect = res.Correct
		results = append(results, domain.ParticipantResult{
			ParticipantID: p.ID,
			Correct:       res.Correct,
			Awarded:       res.Points,
			Streak:        res.Streak,
		})
	})

	last := ordinal == len(r.quiz.Questions)-1
	r.broadcast(domain.NewEvent(domain.EventQuestionReveal, domain.QuestionRevealPayload{
		Key:        domain.KeyOf(q),
		Results:    results,
		Scoreboard: r.presence.Scoreboard(),
		LastOne:    last,
	}))

	// Solo rooms advance automatically after a short reveal; multiplayer
	// waits for the host but falls back to a timer so a dropped host
	// cannot stall everyone else indefinitely.
	delay := r.cfg.RevealFallback
	if r.solo {
		delay = r.cfg.RevealDuration
	}
	if r.advTimer != nil {
		r.advTimer.Stop()
	}
	ord := ordinal
	r.advTimer = time.AfterFunc(delay, func() {
		r.async(func() { r.autoAdvance(ord) })
	})
}

func (r *Room) autoAdvance(ordinal int) {
	if r.phase != domain.PhaseQuestionReveal || ordinal != r.ordinal {
		return
	}
	r.advance()
}

// Advance is the host-triggered transition: it force-closes an active
// question or moves past a reveal.
func (r *Room) Advance(identity string) error {
	var aerr error
	err := r.do(func() {
		if identity != r.hostID {
			aerr = domain.ErrNotHost
			return
		}
		switch r.phase {
		case domain.PhaseQuestionActive:
			r.closeQuestion(r.ordinal)
		case domain.PhaseQuestionReveal:
			r.advance()
		default:
			aerr = domain.ErrInvalidTransition
		}
	})
	if err != nil {
		return err
	}
	return aerr
}

func (r *Room) advance() {
	if r.advTimer != nil {
		r.advTimer.Stop()
	}
	if r.ordinal == len(r.quiz.Questions)-1 {
		r.endGame()
		return
	}
	r.startQuestion(r.ordinal + 1)
}

func (r *Room) endGame() {
	r.phase = domain.PhaseGameEnd
	r.touch()
	r.broadcast(domain.NewEvent(domain.EventGameEnd, domain.GameEndPayload{
		Scoreboard: r.presence.Scoreboard(),
	}))
	r.persistScores()

	if r.release != nil {
		code := r.code
		r.endTimer = time.AfterFunc(r.cfg.EndLinger, func() {
			r.release(code)
		})
	}
}

// persistScores writes each participant's delta to the stats collaborator
// exactly once. Guests and bots are skipped.
func (r *Room) persistScores() {
	if r.statsWritten || r.stats == nil {
		return
	}
	r.statsWritten = true
	ctx, cancel := context.WithTimeout(context.Background(), statsWriteTimeout)
	defer cancel()
	r.presence.Each(func(p *domain.Participant) {
		if p.Guest || p.Bot || p.Score == 0 {
			return
		}
		if err := r.stats.ApplyScoreDelta(ctx, p.ID, p.Score); err != nil {
			r.log.WithError(err).WithField("user", p.ID).Warn("score delta write failed")
		}
	})
}

// Disconnect flags the identity offline and arms the grace timer. When
// conn is non-nil it must still be the registered sender for the identity;
// a stale socket closing after its identity reconnected elsewhere is a
// no-op, so the live connection keeps its seat and its broadcasts. The
// round itself never pauses: question timers keep running regardless of
// who dropped, including the host.
func (r *Room) Disconnect(identity string, conn Sender) {
	_ = r.do(func() {
		if conn != nil && r.clients[identity] != conn {
			return
		}
		if !r.presence.MarkDisconnected(identity) {
			return
		}
		delete(r.clients, identity)
		r.touch()
		r.broadcastRoster()
		r.maybeCloseEarly()
	})
}

// expireSeat is the grace-timer callback, re-entered through the lane.
func (r *Room) expireSeat(identity string, gen uint64) {
	if !r.presence.RemoveIfStillDisconnected(identity, gen) {
		return
	}
	delete(r.clients, identity)
	r.log.WithField("participant", identity).Debug("seat reclaimed after grace period")
	r.touch()
	r.broadcastRoster()
	r.maybeCloseEarly()
}

// State reports the current phase and ordinal, serialized through the lane.
func (r *Room) State() (domain.Phase, int, error) {
	var (
		phase   domain.Phase
		ordinal int
	)
	err := r.do(func() {
		phase = r.phase
		ordinal = r.ordinal
	})
	return phase, ordinal, err
}

// Roster returns the current roster snapshot.
func (r *Room) Roster() ([]domain.ParticipantView, error) {
	var roster []domain.ParticipantView
	err := r.do(func() {
		roster = r.presence.Roster()
	})
	return roster, err
}

// broadcastRoster emits the full-replace roster snapshot.
func (r *Room) broadcastRoster() {
	host, _ := r.presence.Host()
	hostID := ""
	if host != nil {
		hostID = host.ID
	}
	r.broadcast(domain.NewEvent(domain.EventLobbyUpdate, domain.LobbyUpdatePayload{
		Roster:   r.presence.Roster(),
		HostID:   hostID,
		CanStart: r.phase == domain.PhaseLobby && r.presence.Len() >= 1,
	}))
}

func (r *Room) broadcast(event domain.Event) {
	for id, sender := range r.clients {
		if err := sender.Send(event); err != nil {
			r.log.WithError(err).WithField("participant", id).Debug("broadcast send failed")
		}
	}
}
