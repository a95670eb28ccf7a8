package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/anima-gl/engine/core"
)

// JobTask is a unit of content work, e.g. decoding a texture from disk.
// OnStart runs on a worker goroutine and must not touch the graphics
// context. OnComplete and OnFailure run later on the thread that calls
// Update, which is the engine's sync point.
type JobTask struct {
	Name       string
	OnStart    func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	completed []jobResult
	doneMu    sync.Mutex
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = errors.New("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
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
				result, err := job.OnStart()
				if err != nil {
					core.LogError("job %q failed: %s", job.Name, err)
				}
				js.doneMu.Lock()
				js.completed = append(js.completed, jobResult{task: job, result: result, err: err})
				js.doneMu.Unlock()
			}
		}()
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run; their callbacks
 * are delivered by the next Update.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Delivers the callbacks of finished jobs on the calling thread.
 * Should happen once an update cycle.
 * @returns the number of jobs delivered.
 */
func (js *JobSystem) Update() int {
	js.doneMu.Lock()
	completed := js.completed
	js.completed = nil
	js.doneMu.Unlock()

	for _, c := range completed {
		if c.err != nil {
			if c.task.OnFailure != nil {
				c.task.OnFailure(c.err)
			}
			continue
		}
		if c.task.OnComplete != nil {
			c.task.OnComplete(c.result)
		}
	}
	return len(completed)
}

// AddWorkNonBlocking queues the job from a new goroutine and returns immediately.
func (js *JobSystem) AddWorkNonBlocking(jt JobTask) {
	go func() {
		if err := js.Submit(jt); err != nil {
			core.LogWarn("job %q dropped: %s", jt.Name, err)
		}
	}()
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.OnStart == nil {
		return errors.New("job has no OnStart")
	}
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}
