package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tiliavir/shift-clock/internal/shift"
)

// Bridge forwards machine callbacks to a running program. The machine
// calls its hooks from inside Update as well as from timer goroutines,
// and Program.Send blocks until the event loop reads, so Send only queues
// and a separate goroutine delivers in order.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	active bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// Attach starts delivery to p. Messages sent before Attach are dropped;
// the model reads the current view when it is built.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.active = true
	b.mu.Unlock()
	b.wg.Add(1)
	go b.loop(p)
}

// Send queues msg for the program. It never blocks.
func (b *Bridge) Send(msg tea.Msg) {
	b.mu.Lock()
	if !b.active {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Close stops delivery and waits for the forwarding goroutine. Call it
// after Program.Run has returned.
func (b *Bridge) Close() {
	b.once.Do(func() {
		b.mu.Lock()
		b.active = false
		b.queue = nil
		b.mu.Unlock()
		close(b.done)
	})
	b.wg.Wait()
}

func (b *Bridge) loop(p *tea.Program) {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			msg := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			// Send returns once the program has finished.
			p.Send(msg)
		}
	}
}

// Hooks returns machine options that report updates and notices through b.
func Hooks(b *Bridge) shift.Options {
	return shift.Options{
		OnUpdate: func(v shift.View) { b.Send(ViewMsg(v)) },
		OnNotice: func(text string) { b.Send(NoticeMsg(text)) },
	}
}
