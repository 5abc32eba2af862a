// Package meshing turns block contents into BlockMesh snapshots on worker
// goroutines and publishes them to the blocks.
package meshing

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"voxmap/internal/logger"
	"voxmap/internal/world"
)

// WorkerPool manages goroutines for mesh generation
type WorkerPool struct {
	m        *world.Map
	jobQueue chan *world.Block
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.Logger

	// blocks queued or being meshed
	mu       sync.Mutex
	inflight map[world.BlockPos]bool
	idle     *sync.Cond

	meshed atomic.Uint64
}

// NewWorkerPool creates a pool of workers meshing blocks of m
func NewWorkerPool(m *world.Map, workers, queueSize int, log *zap.Logger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		m:        m,
		jobQueue: make(chan *world.Block, queueSize),
		workers:  max(workers, 1),
		ctx:      ctx,
		cancel:   cancel,
		log:      logger.OrNop(log),
		inflight: make(map[world.BlockPos]bool),
	}
	p.idle = sync.NewCond(&p.mu)

	for i := range p.workers {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// SubmitJob queues b for meshing. It returns false if the queue is full or
// the block is already queued.
func (p *WorkerPool) SubmitJob(b *world.Block) bool {
	if !p.reserve(b.Pos()) {
		return false
	}
	select {
	case p.jobQueue <- b:
		return true
	default:
		p.done(b.Pos())
		return false
	}
}

// SubmitJobBlocking queues b, waiting for queue space
func (p *WorkerPool) SubmitJobBlocking(b *world.Block) {
	if !p.reserve(b.Pos()) {
		return
	}
	select {
	case p.jobQueue <- b:
	case <-p.ctx.Done():
		p.done(b.Pos())
	}
}

// ScheduleModified queues every loaded block whose nodes changed since it
// was last meshed. It returns the number of blocks queued.
func (p *WorkerPool) ScheduleModified() int {
	queued := 0
	for _, b := range p.m.AllBlocks() {
		if b.IsModified() && p.SubmitJob(b) {
			queued++
		}
	}
	return queued
}

func (p *WorkerPool) reserve(pos world.BlockPos) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[pos] {
		return false
	}
	p.inflight[pos] = true
	return true
}

func (p *WorkerPool) done(pos world.BlockPos) {
	p.mu.Lock()
	delete(p.inflight, pos)
	if len(p.inflight) == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}

// worker meshes blocks and publishes the result
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case b := <-p.jobQueue:
			// Cleared first so edits during meshing queue the block again
			b.SetClean()
			mesh := BuildBlockMesh(p.m, b)
			b.SetMesh(mesh)
			p.m.NotifyMeshUpdated()
			p.meshed.Add(1)
			p.done(b.Pos())
		case <-p.ctx.Done():
			p.log.Debug("mesh worker stopped", zap.Int("worker", id))
			return
		}
	}
}

// Wait blocks until no block is queued or being meshed
func (p *WorkerPool) Wait() {
	p.mu.Lock()
	for len(p.inflight) > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// Meshed returns the number of meshes published so far
func (p *WorkerPool) Meshed() uint64 {
	return p.meshed.Load()
}

// Shutdown stops the workers. Queued blocks are dropped.
func (p *WorkerPool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.mu.Lock()
	clear(p.inflight)
	p.idle.Broadcast()
	p.mu.Unlock()
}

// GetQueueLength returns the current number of jobs in the queue
func (p *WorkerPool) GetQueueLength() int {
	return len(p.jobQueue)
}
