package driver

import (
	"runtime"
	"sync"
)

// compileJob is one translation unit submitted to the pool.
type compileJob struct {
	index      int
	sourceFile string
	outputFile string
}

// compileJobResult carries a job's outcome back, tagged with its
// original index so the caller can restore stable source-file-list
// ordering for the compilation database, per spec.md §5(a).
type compileJobResult struct {
	index    int
	exitCode int
	err      error
}

// workerPool runs per-TU compilation jobs with bounded concurrency.
// Adapted from the teacher's pkg/container/worker_pool.go
// (WorkerPool/Worker/Job/JobResult channel-based pool sized off
// runtime.NumCPU()), generalised here from "container pull/build jobs"
// to "compile jobs": spec.md §5 explicitly permits parallelising per-TU
// compilation within one config provided ordering stays stable and the
// first non-zero exit code wins.
type workerPool struct {
	size int
}

func newWorkerPool() *workerPool {
	size := runtime.NumCPU()
	if size < 1 {
		size = 1
	}
	return &workerPool{size: size}
}

// run executes compile for every job concurrently (bounded by the pool
// size) and returns results ordered by the jobs' original index.
func (p *workerPool) run(jobs []compileJob, compile func(compileJob) (int, error)) []compileJobResult {
	results := make([]compileJobResult, len(jobs))
	jobCh := make(chan compileJob)
	var wg sync.WaitGroup

	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				code, err := compile(job)
				results[job.index] = compileJobResult{index: job.index, exitCode: code, err: err}
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	return results
}
