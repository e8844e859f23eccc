package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a scheduled unit of work. Its error only reaches the observer.
type Job func(ctx context.Context) error

// Observer is told about every finished run.
type Observer func(name string, start time.Time, err error)

type Runner struct {
	cron     *cron.Cron
	logger   *zap.Logger
	baseCtx  context.Context
	observer Observer
}

// New builds a seconds-resolution runner. A run still in progress makes
// the next tick of the same job a no-op, and a panicking job is recovered.
func New(logger *zap.Logger, baseCtx context.Context, observer Observer) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter := zapCronLogger{l: logger.Sugar()}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(time.UTC),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger:   logger,
		baseCtx:  baseCtx,
		observer: observer,
	}
}

// Add registers job under name. An empty spec disables the job.
func (r *Runner) Add(name, spec string, job Job) (cron.EntryID, error) {
	if spec == "" {
		r.logger.Info("cron job disabled", zap.String("job", name))
		return 0, nil
	}
	return r.cron.AddFunc(spec, func() {
		start := time.Now()
		err := job(r.baseCtx)
		if err != nil {
			r.logger.Warn("cron job failed", zap.String("job", name), zap.Error(err))
		}
		if r.observer != nil {
			r.observer(name, start, err)
		}
	})
}

func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("entries", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

type zapCronLogger struct {
	l *zap.SugaredLogger
}

func (z zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Debugw("cron: "+msg, keysAndValues...)
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
