package systems

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-avatar/engine/core"
)

/** Definition for jobs. The context is cancelled when the job system shuts down. */
type JobStart func(ctx context.Context) error

/** Definition for completion of a job. */
type JobOnComplete func()

/** Definition for failure of a job. */
type JobOnFailure func(err error)

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	/** @brief Used in log lines only. */
	Name string
	/** @brief A function to be invoked when the job starts. Required. */
	OnStart JobStart
	/** @brief A function to be invoked when the job successfully completes. Optional. */
	OnComplete JobOnComplete
	/** @brief A function to be invoked when the job fails or panics. Optional. */
	OnFailure JobOnFailure
	/** @brief Invoked after OnComplete/OnFailure either way. Optional. */
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	pending    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mutex    sync.RWMutex
	isClosed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = errors.New("job system is shut down")

// NewJobSystem starts numWorkers workers. With one worker, jobs run strictly in
// submission order.
func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
				js.pending.Done()
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	err := js.safeStart(job)
	if err != nil {
		core.LogError("job '%s' failed: %s", job.Name, err.Error())
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
	} else if job.OnComplete != nil {
		job.OnComplete()
	}

	// Call the completion callback if set
	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

func (js *JobSystem) safeStart(job JobTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	if job.OnStart == nil {
		return fmt.Errorf("job has no entry point")
	}
	return job.OnStart(js.ctx)
}

/**
 * @brief Shuts the job system down. Running jobs see their context cancelled;
 * queued jobs still run, with a cancelled context.
 */
func (js *JobSystem) Shutdown() error {
	js.cancel()

	js.mutex.Lock()
	if js.isClosed {
		js.mutex.Unlock()
		return nil
	}
	js.isClosed = true
	close(js.jobQueue)
	js.mutex.Unlock()

	js.wg.Wait()
	return nil
}

// AddWorkNonBlocking adds work to the queue and returns immediately
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go func() {
		if err := js.Submit(jt); err != nil {
			core.LogWarn("dropping job '%s': %s", jt.Name, err.Error())
		}
	}()
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while the
 * queue is full.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	if js.isClosed {
		return ErrJobSystemClosed
	}
	js.pending.Add(1)
	select {
	case js.jobQueue <- jt:
		return nil
	case <-js.ctx.Done():
		js.pending.Done()
		return ErrJobSystemClosed
	}
}

// Wait blocks until every job submitted so far has run.
func (js *JobSystem) Wait() {
	js.pending.Wait()
}
