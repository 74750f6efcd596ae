package engine

import "github.com/sideforge/binarymarket/internal/domain"

// MultiNotifier fans one event out to several sinks in order (indexer,
// websocket hub, metrics).  Nil entries are skipped so wiring can stay
// unconditional in main.
type MultiNotifier []Notifier

func (mn MultiNotifier) Notify(ev domain.Event) {
	for _, n := range mn {
		if n != nil {
			n.Notify(ev)
		}
	}
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(ev domain.Event)

func (f NotifierFunc) Notify(ev domain.Event) { f(ev) }
