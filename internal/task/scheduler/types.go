package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pollbot/internal/eventbus"
	"pollbot/internal/schedule"
	logx "pollbot/pkg/logx"
)

// Config controls the scheduler service.
type Config struct {
	Timezone   string        // IANA TZ, e.g. "Europe/Moscow"; empty means Local
	JobTimeout time.Duration // per-run deadline for a dispatch call
}

const (
	DefaultJobTimeout = 30 * time.Second

	// ReminderLead is how long before the poll the reminder fires.
	ReminderLead = 5 * time.Minute
)

// Kind tells the poll job from the reminder job.
type Kind string

const (
	KindPoll     Kind = "poll"
	KindReminder Kind = "reminder"
)

// Source provides the current record collection. It must not fail;
// unreadable storage reads as empty.
type Source interface {
	Load(ctx context.Context) []schedule.Record
}

// Actions performs the work of a fired job. Errors are reported by the
// implementation; the scheduler does not retry.
type Actions interface {
	SendPoll(ctx context.Context, rec schedule.Record) error
	SendReminder(ctx context.Context, rec schedule.Record) error
}

// JobInfo describes one registered job.
type JobInfo struct {
	Name     string
	Kind     Kind
	RecordID string
	Spec     string
	Next     time.Time
}

type jobDef struct {
	name    string
	kind    Kind
	rec     schedule.Record
	spec    string
	entryID cron.EntryID
}

type Service struct {
	mu sync.Mutex

	cfg Config
	log logx.Logger
	bus eventbus.Bus
	src Source
	act Actions

	parser cron.Parser
	c      *cron.Cron
	loc    *time.Location
	jobs   []jobDef

	running bool
	runCtx  context.Context
}
