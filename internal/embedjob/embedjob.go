// Package embedjob runs the external embedding generator over an employee's
// enrollment photo directory. Jobs are fire-and-forget: submission is
// decoupled from the HTTP request that produced them and failures only ever
// reach the logs.
package embedjob

import (
	"context"
	"log"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"worksite-attendance/internal/queue"
)

// MessageType tags enrollment jobs on the queue.
const MessageType = "enroll"

// Job identifies one enrollment run. PhotoDir is the sole argument handed to
// the embedder process.
type Job struct {
	EmployeeID string `json:"employee_id"`
	PhotoDir   string `json:"photo_dir"`
}

var (
	jobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "embedjob_submitted_total",
		Help: "Enrollment jobs published to the queue.",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "embedjob_failed_total",
		Help: "Enrollment jobs whose embedder process failed.",
	})
	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "embedjob_completed_total",
		Help: "Enrollment jobs whose embedder process exited cleanly.",
	})
)

// Submitter publishes enrollment jobs to the queue.
type Submitter struct {
	q queue.Queue
}

// NewSubmitter creates a submitter over any queue backend.
func NewSubmitter(q queue.Queue) *Submitter {
	return &Submitter{q: q}
}

// Submit enqueues a job. Callers log the returned error and move on; by
// contract a failed submit never fails the operation that triggered it.
func (s *Submitter) Submit(ctx context.Context, job Job) error {
	msg, err := queue.NewMessage(MessageType, job)
	if err != nil {
		return err
	}
	if err := s.q.Publish(ctx, msg); err != nil {
		return err
	}
	jobsSubmitted.Inc()
	return nil
}

// commandContext is swapped out in tests.
var commandContext = exec.CommandContext

// Runner consumes enrollment jobs and execs the embedder.
type Runner struct {
	q       queue.Queue
	command []string
	timeout time.Duration
	workers int
}

// NewRunner builds a runner. command is the embedder invocation, e.g.
// ["python3", "createEmbeddings.py"]; the photo directory is appended as the
// final argument. timeout of zero means no deadline.
func NewRunner(q queue.Queue, command []string, timeout time.Duration, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{q: q, command: command, timeout: timeout, workers: workers}
}

// Run consumes jobs until ctx is cancelled. It blocks; call it from a
// goroutine in-process or from a dedicated worker binary.
func (r *Runner) Run(ctx context.Context) error {
	messages, err := r.q.Consume(ctx)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	for i := 0; i < r.workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for msg := range messages {
				if msg.Type != MessageType {
					continue
				}
				var job Job
				if err := msg.DecodeBody(&job); err != nil {
					log.Printf("embedjob: bad message %s: %v", msg.ID, err)
					continue
				}
				r.process(ctx, job)
			}
		}()
	}
	for i := 0; i < r.workers; i++ {
		<-done
	}
	return nil
}

func (r *Runner) process(ctx context.Context, job Job) {
	output, err := r.execute(ctx, job)
	if err != nil {
		jobsFailed.Inc()
		log.Printf("embedjob: employee %s failed: %v: %s", job.EmployeeID, err, output)
		return
	}
	jobsCompleted.Inc()
	log.Printf("embedjob: employee %s done: %s", job.EmployeeID, output)
}

// execute runs the embedder once and returns its combined output. No retries.
func (r *Runner) execute(ctx context.Context, job Job) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	args := append(append([]string(nil), r.command[1:]...), job.PhotoDir)
	cmd := commandContext(ctx, r.command[0], args...)
	return cmd.CombinedOutput()
}
