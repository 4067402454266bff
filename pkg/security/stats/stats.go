package stats

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/NeuralTrust/TrustShield/pkg/domain/threat"
	"github.com/NeuralTrust/TrustShield/pkg/infra/cache"
	"github.com/sirupsen/logrus"
)

const (
	KeyRequests      = "stats:requests"
	KeyBlocked       = "stats:blocked"
	KeyThreats       = "stats:threats"
	AttackTypePrefix = "attack_types:"
)

type Summary struct {
	TotalRequests   int64 `json:"total_requests"`
	BlockedRequests int64 `json:"blocked_requests"`
	ThreatsDetected int64 `json:"threats_detected"`
}

type AttackType struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Recorder keeps day-long counters for the operator report. Failures are
// logged and never surface to the request path.
type Recorder struct {
	store  cache.Store
	logger *logrus.Logger
	ttl    time.Duration
}

func NewRecorder(store cache.Store, logger *logrus.Logger, ttl time.Duration) *Recorder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Recorder{store: store, logger: logger, ttl: ttl}
}

func (r *Recorder) incr(ctx context.Context, key string) {
	if _, err := r.store.Incr(ctx, key, r.ttl); err != nil {
		r.logger.WithError(err).WithField("key", key).Error("failed to update statistics")
	}
}

func (r *Recorder) Request(ctx context.Context) {
	r.incr(ctx, KeyRequests)
}

func (r *Recorder) Blocked(ctx context.Context) {
	r.incr(ctx, KeyBlocked)
}

// Threat counts the report once and each of its families once.
func (r *Recorder) Threat(ctx context.Context, report *threat.Report) {
	r.incr(ctx, KeyThreats)
	for _, family := range report.Families() {
		r.incr(ctx, AttackTypePrefix+family)
	}
}

func (r *Recorder) Summary(ctx context.Context) Summary {
	return Summary{
		TotalRequests:   r.read(ctx, KeyRequests),
		BlockedRequests: r.read(ctx, KeyBlocked),
		ThreatsDetected: r.read(ctx, KeyThreats),
	}
}

func (r *Recorder) read(ctx context.Context, key string) int64 {
	raw, found, err := r.store.Get(ctx, key)
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Error("failed to read statistics")
		return 0
	}
	if !found {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// AttackTypes returns the per-family counters, most frequent first.
func (r *Recorder) AttackTypes(ctx context.Context) ([]AttackType, error) {
	keys, err := r.store.Keys(ctx, AttackTypePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]AttackType, 0, len(keys))
	for _, key := range keys {
		if n := r.read(ctx, key); n > 0 {
			out = append(out, AttackType{Type: strings.TrimPrefix(key, AttackTypePrefix), Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}
