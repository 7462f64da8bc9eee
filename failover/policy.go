// Package failover implements the retry/failover executor (C6) and its
// declarative Policy (C7): a small set of retry presets plus a
// consistency-degrading variant, all behind one interface so the
// executor never needs a type switch on which preset it was handed.
package failover

import (
	"math"
	"sync"
	"time"

	"github.com/outbain/hectorgo/logging"
)

var log = logging.Get("failover")

// ConsistencyLevel is the server-side setting dictating how many
// replicas must acknowledge an operation before it is considered
// successful. The degrading policy steps it down by one notch on a
// recoverable failure.
type ConsistencyLevel int

const (
	LevelOne ConsistencyLevel = iota
	LevelQuorum
	LevelAll
)

func (l ConsistencyLevel) String() string {
	switch l {
	case LevelOne:
		return "ONE"
	case LevelQuorum:
		return "QUORUM"
	case LevelAll:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// stepDown returns the next weaker consistency level: ALL drops to
// QUORUM, anything else drops to ONE.
func (l ConsistencyLevel) stepDown() ConsistencyLevel {
	if l == LevelAll {
		return LevelQuorum
	}
	return LevelOne
}

// unlimitedRetries is the TRY_ALL preset's effectively-infinite retry
// budget. The executor's own host-exclusion bookkeeping is what
// actually bounds a TRY_ALL attempt to "each live host once" in
// practice; this sentinel just means the policy itself imposes no cap.
const unlimitedRetries = math.MaxInt32

// Policy is the declarative retry strategy the Executor consults on
// every recoverable failure. Hooks mutate only the Policy's own
// transient state, never the Executor's.
type Policy interface {
	// MaxRetries is the number of additional attempts allowed beyond
	// the first.
	MaxRetries() int

	// SleepBetweenHosts is the back-off applied between a failed
	// attempt and the next borrow.
	SleepBetweenHosts() time.Duration

	// CheckConsistency returns the level an attempt should actually run
	// at. The second return value is false when no override applies.
	CheckConsistency(current ConsistencyLevel) (ConsistencyLevel, bool)

	// HandleTimeout, HandleUnavailable and HandleTransportError are
	// invoked once per recoverable failure of the matching kind, with
	// the zero-based attempt index. HandleUnavailable and
	// HandleTransportError additionally receive the consistency level
	// the failed attempt ran at, since the degrading variant needs it
	// to compute the next level to degrade to.
	HandleTimeout(attempt int)
	HandleUnavailable(attempt int, level ConsistencyLevel)
	HandleTransportError(attempt int, level ConsistencyLevel)
}

// simplePolicy implements the three fixed, stateless presets.
type simplePolicy struct {
	numRetries int
	sleep      time.Duration
}

func (p *simplePolicy) MaxRetries() int                    { return p.numRetries }
func (p *simplePolicy) SleepBetweenHosts() time.Duration    { return p.sleep }
func (p *simplePolicy) CheckConsistency(cur ConsistencyLevel) (ConsistencyLevel, bool) {
	return cur, false
}
func (p *simplePolicy) HandleTimeout(int)                       {}
func (p *simplePolicy) HandleUnavailable(int, ConsistencyLevel)   {}
func (p *simplePolicy) HandleTransportError(int, ConsistencyLevel) {}

// FailFast surfaces the first error without retrying.
var FailFast Policy = &simplePolicy{numRetries: 0}

// TryOneNext retries on exactly one additional host.
var TryOneNext Policy = &simplePolicy{numRetries: 1}

// TryAll retries across every live host, once each, before giving up.
var TryAll Policy = &simplePolicy{numRetries: unlimitedRetries}

// DefaultDegradeWindow is the transient window a degraded consistency
// level stays in effect before reverting.
const DefaultDegradeWindow = 10000 * time.Millisecond

// degradingPolicy is DEGRADE_CONSISTENCY: on Unavailable or
// TransportError it steps the consistency level down by one notch for
// a transient window, then reverts. Its mutable state is the
// (degradedLevel, expiry) pair, guarded by its own mutex — never
// touched by the Executor directly.
type degradingPolicy struct {
	numRetries int
	window     time.Duration

	mu            sync.Mutex
	active        bool
	degradedLevel ConsistencyLevel
	expiry        time.Time
}

// DegradeOption configures a DegradeConsistency policy.
type DegradeOption func(*degradingPolicy)

// WithDegradeWindow overrides the default 10s transient window.
func WithDegradeWindow(d time.Duration) DegradeOption {
	return func(p *degradingPolicy) { p.window = d }
}

// WithDegradeMaxRetries overrides the default retry budget of 5.
func WithDegradeMaxRetries(n int) DegradeOption {
	return func(p *degradingPolicy) { p.numRetries = n }
}

// DegradeConsistency builds the DEGRADE_CONSISTENCY preset.
func DegradeConsistency(opts ...DegradeOption) Policy {
	p := &degradingPolicy{numRetries: 5, window: DefaultDegradeWindow}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *degradingPolicy) MaxRetries() int                 { return p.numRetries }
func (p *degradingPolicy) SleepBetweenHosts() time.Duration { return 0 }

func (p *degradingPolicy) CheckConsistency(cur ConsistencyLevel) (ConsistencyLevel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return cur, false
	}
	if time.Now().Before(p.expiry) {
		return p.degradedLevel, true
	}
	p.active = false
	log.Infof("consistency degrade window expired, reverting to %s", cur)
	return cur, false
}

func (p *degradingPolicy) HandleTimeout(int) {}

func (p *degradingPolicy) HandleUnavailable(attempt int, level ConsistencyLevel) {
	p.degrade(attempt, level)
}

func (p *degradingPolicy) HandleTransportError(attempt int, level ConsistencyLevel) {
	p.degrade(attempt, level)
}

func (p *degradingPolicy) degrade(attempt int, level ConsistencyLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.degradedLevel = level.stepDown()
	p.expiry = time.Now().Add(p.window)
	p.active = true
	log.Warningf("degrading consistency %s -> %s for %s after attempt %d", level, p.degradedLevel, p.window, attempt)
}
