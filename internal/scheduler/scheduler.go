package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/sentinel-labs/netsec/internal/utils"
)

// TriggerType is the closed set of supported job triggers.
type TriggerType string

const (
	TriggerCron     TriggerType = "cron"
	TriggerInterval TriggerType = "interval"
)

// TaskHandler executes a scheduled job's task. Errors are logged by the
// scheduler; the caller never sees them propagate out of a run.
type TaskHandler func(ctx context.Context, taskType string, params map[string]interface{}) error

// JobInfo describes one scheduled job.
type JobInfo struct {
	ID          string
	Name        string
	TriggerType TriggerType
	TriggerArgs map[string]interface{}
	TaskType    string
	TaskParams  map[string]interface{}
	Enabled     bool
	NextRun     *time.Time
}

type jobEntry struct {
	info    JobInfo
	entryID cron.EntryID
}

// Scheduler wraps robfig/cron to run scans, health checks, and feed
// updates on cron or fixed-interval triggers.
type Scheduler struct {
	cron        *cron.Cron
	mu          sync.Mutex
	jobs        map[string]*jobEntry
	taskHandler TaskHandler
	running     bool
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make(map[string]*jobEntry),
	}
}

// SetTaskHandler sets the function invoked when a scheduled job fires.
func (s *Scheduler) SetTaskHandler(handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskHandler = handler
}

// Start begins firing scheduled jobs. Safe to call once; subsequent calls
// are a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	log.Info().Msg("scheduler started")
}

// Stop halts the scheduler. It does not wait for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	log.Info().Msg("scheduler stopped")
}

// AddJob registers a new scheduled job and returns its JobInfo. trigger_args
// must contain "expr" (a standard 5-field cron expression) for TriggerCron;
// for TriggerInterval, "seconds", "minutes" and "hours" are summed and the
// total must be positive.
func (s *Scheduler) AddJob(name string, triggerType TriggerType, triggerArgs map[string]interface{}, taskType string, taskParams map[string]interface{}) (JobInfo, error) {
	schedule, err := buildSchedule(triggerType, triggerArgs)
	if err != nil {
		return JobInfo{}, err
	}

	jobID := utils.GenerateID("")[:12]
	info := JobInfo{
		ID:          jobID,
		Name:        name,
		TriggerType: triggerType,
		TriggerArgs: triggerArgs,
		TaskType:    taskType,
		TaskParams:  taskParams,
		Enabled:     true,
	}

	entryID := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.runJob(jobID, name, taskType, taskParams)
	}))

	s.mu.Lock()
	s.jobs[jobID] = &jobEntry{info: info, entryID: entryID}
	s.mu.Unlock()

	log.Info().Str("job", name).Str("trigger", string(triggerType)).Msg("added scheduled job")
	return info, nil
}

func (s *Scheduler) runJob(jobID, name, taskType string, params map[string]interface{}) {
	s.mu.Lock()
	handler := s.taskHandler
	s.mu.Unlock()
	if handler == nil {
		return
	}
	ctx := context.Background()
	if err := handler(ctx, taskType, params); err != nil {
		log.Error().Err(err).Str("job", name).Str("job_id", jobID).Msg("scheduled job failed")
	}
}

func buildSchedule(triggerType TriggerType, args map[string]interface{}) (cron.Schedule, error) {
	switch triggerType {
	case TriggerCron:
		expr, _ := args["expr"].(string)
		if expr == "" {
			return nil, fmt.Errorf("cron trigger requires \"expr\"")
		}
		return cron.ParseStandard(expr)
	case TriggerInterval:
		seconds := intFromArgs(args, "seconds")
		seconds += intFromArgs(args, "minutes") * 60
		seconds += intFromArgs(args, "hours") * 3600
		if seconds <= 0 {
			return nil, fmt.Errorf("interval trigger requires a positive duration")
		}
		return cron.ConstantDelaySchedule{Delay: time.Duration(seconds) * time.Second}, nil
	default:
		return nil, fmt.Errorf("unsupported trigger type: %s", triggerType)
	}
}

func intFromArgs(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// RemoveJob removes a job by ID. Returns false if no such job exists.
func (s *Scheduler) RemoveJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok {
		return false
	}
	s.cron.Remove(entry.entryID)
	delete(s.jobs, jobID)
	return true
}

// GetJob returns the job with the given ID, refreshed with its next run
// time from the underlying cron engine.
func (s *Scheduler) GetJob(jobID string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok {
		return JobInfo{}, false
	}
	return s.infoWithNextRun(entry), true
}

// ListJobs returns every registered job, each with its next run time
// refreshed from the underlying cron engine.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]JobInfo, 0, len(s.jobs))
	for _, entry := range s.jobs {
		result = append(result, s.infoWithNextRun(entry))
	}
	return result
}

func (s *Scheduler) infoWithNextRun(entry *jobEntry) JobInfo {
	info := entry.info
	for _, e := range s.cron.Entries() {
		if e.ID == entry.entryID {
			next := e.Next
			info.NextRun = &next
			break
		}
	}
	return info
}

// PauseJob disables a job without removing it: its cron entry is pulled
// from the scheduler but its definition is kept so ResumeJob can re-add it.
func (s *Scheduler) PauseJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok || !entry.info.Enabled {
		return false
	}
	s.cron.Remove(entry.entryID)
	entry.info.Enabled = false
	return true
}

// ResumeJob re-enables a previously paused job.
func (s *Scheduler) ResumeJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[jobID]
	if !ok || entry.info.Enabled {
		return false
	}
	schedule, err := buildSchedule(entry.info.TriggerType, entry.info.TriggerArgs)
	if err != nil {
		return false
	}
	jobID2, name, taskType, params := entry.info.ID, entry.info.Name, entry.info.TaskType, entry.info.TaskParams
	entry.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.runJob(jobID2, name, taskType, params)
	}))
	entry.info.Enabled = true
	return true
}
