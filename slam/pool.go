package slam

import (
	"runtime"
	"sync"
)

// workerPool runs independent index-addressed tasks on a bounded number of
// goroutines. Tasks must only write to state owned by their index.
type workerPool struct {
	workers int
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &workerPool{workers: workers}
}

// run calls fn(i) for i in [0, n) and blocks until all calls return.
func (p *workerPool) run(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if p.workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	jobs := make(chan int, n)
	var wg sync.WaitGroup
	for w := 0; w < min(p.workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}
