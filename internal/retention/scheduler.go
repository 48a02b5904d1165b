package retention

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"fly2any-growth/internal/analytics"
	"fly2any-growth/internal/dispatch"
	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/idhash"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
	"fly2any-growth/internal/storage"
)

// Default scheduler limits.
const (
	DefaultActiveWindow = time.Hour
	DefaultCooldown     = 24 * time.Hour
	DefaultWeeklyCap    = 3
	RollingWindow       = 7 * 24 * time.Hour
)

// BlockReason explains why a flow was not executed.
type BlockReason string

const (
	BlockNone       BlockReason = ""
	BlockActive     BlockReason = "active_flow"
	BlockCooldown   BlockReason = "cooldown"
	BlockWeeklyCap  BlockReason = "weekly_cap"
	BlockQuietHours BlockReason = "quiet_hours"
	BlockNoAction   BlockReason = "no_action"
)

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// userState is the per-user admission record. Guarded by mu.
type userState struct {
	mu          sync.Mutex
	loaded      bool
	active      *domain.RetentionFlow
	activeUntil time.Time
	stopExpiry  func() bool
	recent      []domain.RetentionFlow // executed within RollingWindow, by ExecutedAt ASC
	removed     bool                   // set by Prune; holders must fetch a fresh state
}

// SchedulerOptions for creating Scheduler.
type SchedulerOptions struct {
	History    storage.FlowHistoryStore
	Dispatcher dispatch.Dispatcher
	Analytics  analytics.Sink
	Logger     *logger.Logger

	ActiveWindow time.Duration
	Cooldown     time.Duration
	WeeklyCap    int
	QuietHours   *QuietHours

	Now       func() time.Time
	AfterFunc AfterFunc
}

// Scheduler admits at most one active flow per user and enforces frequency limits.
// Users are locked independently.
type Scheduler struct {
	history    storage.FlowHistoryStore
	dispatcher dispatch.Dispatcher
	analytics  analytics.Sink
	log        *logger.Logger

	activeWindow time.Duration
	cooldown     time.Duration
	weeklyCap    int
	quiet        *QuietHours

	now       func() time.Time
	afterFunc AfterFunc

	users   sync.Map // userID -> *userState
	tracked atomic.Int64
}

// NewScheduler creates a new Scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Analytics == nil {
		opts.Analytics = analytics.Nop{}
	}
	if opts.ActiveWindow <= 0 {
		opts.ActiveWindow = DefaultActiveWindow
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.WeeklyCap <= 0 {
		opts.WeeklyCap = DefaultWeeklyCap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	return &Scheduler{
		history:      opts.History,
		dispatcher:   opts.Dispatcher,
		analytics:    opts.Analytics,
		log:          logger.OrNop(opts.Logger),
		activeWindow: opts.ActiveWindow,
		cooldown:     opts.Cooldown,
		weeklyCap:    opts.WeeklyCap,
		quiet:        opts.QuietHours,
		now:          opts.Now,
		afterFunc:    opts.AfterFunc,
	}
}

// lockState returns the user's state with its mutex held.
func (s *Scheduler) lockState(userID string) *userState {
	for {
		v, ok := s.users.Load(userID)
		if !ok {
			var loaded bool
			v, loaded = s.users.LoadOrStore(userID, &userState{})
			if !loaded {
				observability.UpdateTrackedUsers(int(s.tracked.Add(1)))
			}
		}
		st := v.(*userState)
		st.mu.Lock()
		if !st.removed {
			return st
		}
		st.mu.Unlock()
	}
}

// Check reports whether a flow could be admitted for the user right now,
// ignoring channel-specific rules. Execute re-checks atomically.
func (s *Scheduler) Check(ctx context.Context, userID string) BlockReason {
	st := s.lockState(userID)
	defer st.mu.Unlock()

	now := s.now()
	s.ensureLoaded(ctx, userID, st, now)
	return s.admissible(st, now)
}

// Execute admits f if all limits hold, then records and dispatches it.
// Returns the executed copy, or nil and the reason it was blocked.
func (s *Scheduler) Execute(ctx context.Context, f *domain.RetentionFlow, email string) (*domain.RetentionFlow, BlockReason) {
	if f == nil {
		return nil, BlockNoAction
	}
	st := s.lockState(f.UserID)
	now := s.now()
	s.ensureLoaded(ctx, f.UserID, st, now)

	reason := s.admissible(st, now)
	if reason == BlockNone && s.quiet.Blocks(f, now) {
		reason = BlockQuietHours
	}
	if reason != BlockNone {
		st.mu.Unlock()
		observability.RecordFlowBlocked(string(reason))
		return nil, reason
	}

	executed := f.Clone()
	executedAt := now
	executed.Executed = true
	executed.ExecutedAt = &executedAt
	executed.FlowID = idhash.FlowIDFor(&executed)

	if s.history != nil {
		if err := s.history.Append(ctx, &executed); err != nil {
			// The in-memory record below still enforces the limits.
			s.log.Error("flow history append failed", "user_id", executed.UserID, "flow_id", executed.FlowID, "error", err)
		}
	}

	active := executed.Clone()
	st.active = &active
	st.activeUntil = now.Add(s.activeWindow)
	st.recent = append(st.recent, executed.Clone())
	if st.stopExpiry != nil {
		st.stopExpiry()
	}
	userID, flowID := executed.UserID, executed.FlowID
	st.stopExpiry = s.afterFunc(s.activeWindow, func() { s.expire(userID, flowID) })
	st.mu.Unlock()

	observability.RecordFlowExecuted(string(executed.FlowType), string(executed.Channel))
	s.log.Info("flow executed",
		"user_id", executed.UserID,
		"flow_id", executed.FlowID,
		"flow_type", executed.FlowType,
		"channel", executed.Channel,
		"incentive_used", executed.IncentiveUsed,
	)

	if s.dispatcher != nil {
		if err := dispatch.Route(ctx, s.dispatcher, executed, email); err != nil {
			observability.RecordDispatchFailure(string(executed.Channel))
			s.log.Error("flow dispatch failed",
				"user_id", executed.UserID,
				"flow_id", executed.FlowID,
				"channel", executed.Channel,
				"error", err,
			)
		}
	}
	s.analytics.RecordFlow(ctx, executed)

	out := executed.Clone()
	return &out, BlockNone
}

// admissible checks active window, cooldown and weekly cap. Caller holds st.mu.
func (s *Scheduler) admissible(st *userState, now time.Time) BlockReason {
	if st.active != nil && !now.Before(st.activeUntil) {
		st.active = nil
	}
	if st.active != nil {
		return BlockActive
	}

	st.recent = trimBefore(st.recent, now.Add(-RollingWindow))
	if n := len(st.recent); n > 0 {
		last := *st.recent[n-1].ExecutedAt
		if now.Sub(last) < s.cooldown {
			return BlockCooldown
		}
	}
	if len(st.recent) >= s.weeklyCap {
		return BlockWeeklyCap
	}
	return BlockNone
}

// ensureLoaded seeds the user's state from FlowHistory once. Caller holds st.mu.
// A failed load is retried on the next call.
func (s *Scheduler) ensureLoaded(ctx context.Context, userID string, st *userState, now time.Time) {
	if st.loaded || s.history == nil {
		st.loaded = true
		return
	}

	flows, err := s.history.GetByUserSince(ctx, userID, now.Add(-RollingWindow))
	if err != nil {
		s.log.Warn("flow history load failed", "user_id", userID, "error", err)
		return
	}
	st.loaded = true

	seen := make(map[string]bool, len(st.recent))
	for _, f := range st.recent {
		seen[f.FlowID] = true
	}
	for _, f := range flows {
		if f.ExecutedAt == nil || seen[f.FlowID] {
			continue
		}
		st.recent = append(st.recent, f.Clone())
	}
	sort.SliceStable(st.recent, func(i, j int) bool {
		return st.recent[i].ExecutedAt.Before(*st.recent[j].ExecutedAt)
	})

	if n := len(st.recent); n > 0 && st.active == nil {
		last := st.recent[n-1]
		if until := last.ExecutedAt.Add(s.activeWindow); now.Before(until) {
			active := last.Clone()
			st.active = &active
			st.activeUntil = until
		}
	}
}

// expire clears the active flow if it is still flowID.
func (s *Scheduler) expire(userID, flowID string) {
	v, ok := s.users.Load(userID)
	if !ok {
		return
	}
	st := v.(*userState)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.active != nil && st.active.FlowID == flowID {
		st.active = nil
		st.stopExpiry = nil
	}
}

// Metrics returns the user's active flow and full history.
// History comes from FlowHistory, falling back to the in-memory record if it fails.
func (s *Scheduler) Metrics(ctx context.Context, userID string) domain.FlowMetrics {
	out := domain.FlowMetrics{UserID: userID, History: []domain.RetentionFlow{}}

	var recent []domain.RetentionFlow
	if v, ok := s.users.Load(userID); ok {
		st := v.(*userState)
		st.mu.Lock()
		now := s.now()
		if st.active != nil && now.Before(st.activeUntil) {
			active := st.active.Clone()
			out.ActiveFlow = &active
		}
		for _, f := range st.recent {
			recent = append(recent, f.Clone())
		}
		st.mu.Unlock()
	}

	if s.history != nil {
		flows, err := s.history.GetByUser(ctx, userID)
		if err == nil {
			recent = flows
		} else {
			s.log.Warn("flow history read failed", "user_id", userID, "error", err)
		}
	}
	if recent != nil {
		out.History = recent
	}

	if out.ActiveFlow == nil && s.history != nil && len(out.History) > 0 {
		last := out.History[len(out.History)-1]
		if last.ExecutedAt != nil && s.now().Before(last.ExecutedAt.Add(s.activeWindow)) {
			active := last.Clone()
			out.ActiveFlow = &active
		}
	}
	if n := len(out.History); n > 0 {
		at := *out.History[n-1].ExecutedAt
		out.LastFlowAt = &at
	}
	return out
}

// Prune drops per-user state with no active flow and nothing inside the rolling window.
// Returns the number of users removed.
func (s *Scheduler) Prune(now time.Time) int {
	removed := 0
	s.users.Range(func(key, value any) bool {
		st := value.(*userState)
		st.mu.Lock()
		idle := (st.active == nil || !now.Before(st.activeUntil)) &&
			len(trimBefore(st.recent, now.Add(-RollingWindow))) == 0
		if idle {
			st.removed = true
			s.users.Delete(key)
			removed++
		}
		st.mu.Unlock()
		return true
	})
	if removed > 0 {
		observability.UpdateTrackedUsers(int(s.tracked.Add(int64(-removed))))
	}
	return removed
}

// Run prunes idle state every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Prune(s.now()); n > 0 {
				s.log.Debug("scheduler pruned idle users", "count", n)
			}
		}
	}
}

// TrackedUsers returns the number of users with in-memory state.
func (s *Scheduler) TrackedUsers() int {
	return int(s.tracked.Load())
}

func trimBefore(flows []domain.RetentionFlow, cutoff time.Time) []domain.RetentionFlow {
	i := 0
	for i < len(flows) && flows[i].ExecutedAt.Before(cutoff) {
		i++
	}
	if i == 0 {
		return flows
	}
	return append(flows[:0:0], flows[i:]...)
}
