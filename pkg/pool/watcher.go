package pool

import "github.com/ajitpratap0/scenepool/pkg/lifecycle"

// watch follows one acquisition cycle. entered is the entered-active signal
// captured at acquire time. The left-active signal is read only after entered
// fires: before the first attachment it reports an already finished
// detachment that does not belong to this cycle.
func (p *Pool[T]) watch(obj T, cycle uint64, entered *lifecycle.Signal) {
	defer p.watchers.Done()

	select {
	case <-entered.Done():
	case <-p.ctx.Done():
		return
	}

	left := obj.LeftActive()
	select {
	case <-left.Done():
	case <-p.ctx.Done():
		return
	}

	p.release(obj, cycle)
}
