package automation

import (
	"context"
	"sync"
	"time"

	"almacen/config"

	"github.com/sirupsen/logrus"
)

// AgingChecker は未払い超過を確認し、出した通知の件数を返します。
type AgingChecker interface {
	CheckAging(ctx context.Context) (int, error)
}

// Status は直近の定期確認の結果です。
type Status struct {
	Interval    string `json:"interval"`
	Runs        int    `json:"runs"`
	LastRunAt   string `json:"lastRunAt,omitempty"`
	LastEmitted int    `json:"lastEmitted"`
	LastError   string `json:"lastError,omitempty"`
}

// Scheduler は一定間隔で CheckAging を実行します。
type Scheduler struct {
	checker  AgingChecker
	interval time.Duration
	now      func() time.Time
	log      *logrus.Logger

	mu     sync.Mutex
	status Status
}

func NewScheduler(checker AgingChecker, interval time.Duration, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		checker:  checker,
		interval: interval,
		now:      now,
		log:      config.GetLogger(),
		status:   Status{Interval: interval.String()},
	}
}

// Run は起動直後に1回、その後 interval ごとに確認します。ctx が終わるまで戻りません。
func (s *Scheduler) Run(ctx context.Context) {
	s.RunOnce(ctx)
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は確認を1回実行し、結果を Status に残します。
func (s *Scheduler) RunOnce(ctx context.Context) Status {
	n, err := s.checker.CheckAging(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Runs++
	s.status.LastRunAt = s.now().UTC().Format(time.RFC3339)
	s.status.LastEmitted = n
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
		config.LogError(s.log, "automation", "RunOnce", "check unpaid aging", nil, err)
	} else if n > 0 {
		s.log.WithField("emitted", n).Info("unpaid aging notifications emitted")
	}
	return s.status
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
