// Package notify fans one decision event out to independent delivery channels.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace/internal/logging"

	"github.com/rs/zerolog"
)

// Channel delivery outcomes
const (
	StatusSent    = "SENT"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// Message is a rendered notification handed to a channel.
type Message struct {
	EventType string
	Subject   string
	Body      string
	Data      map[string]string
}

// Channel delivers a rendered message over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// ChannelResult is the outcome of one channel for one dispatch.
type ChannelResult struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

type registration struct {
	channel   Channel
	templates TemplateSet
}

// Dispatcher sends an event to every registered channel that has a template for it.
// Channels run concurrently and never affect one another.
type Dispatcher struct {
	mu       sync.RWMutex
	channels []registration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher bounding each channel send by timeout.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		timeout: timeout,
		log:     logging.Component("notify"),
	}
}

// Register adds a channel with the templates it renders.
func (d *Dispatcher) Register(ch Channel, templates TemplateSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, registration{channel: ch, templates: templates})
}

// Channels returns the channels that would receive eventType.
func (d *Dispatcher) Channels(eventType string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var names []string
	for _, r := range d.channels {
		if r.templates.Has(eventType) {
			names = append(names, r.channel.Name())
		}
	}
	return names
}

type dispatchOptions struct {
	skip map[string]bool
}

// DispatchOption customizes one Dispatch call.
type DispatchOption func(*dispatchOptions)

// SkipChannels reports the named channels as SKIPPED without sending.
func SkipChannels(names ...string) DispatchOption {
	return func(o *dispatchOptions) {
		for _, n := range names {
			o.skip[n] = true
		}
	}
}

// Dispatch delivers eventType to every interested channel and returns one result per
// channel in registration order. An event no channel knows yields an empty result.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, data map[string]string, opts ...DispatchOption) []ChannelResult {
	o := dispatchOptions{skip: make(map[string]bool)}
	for _, opt := range opts {
		opt(&o)
	}

	d.mu.RLock()
	targets := make([]registration, 0, len(d.channels))
	for _, r := range d.channels {
		if r.templates.Has(eventType) {
			targets = append(targets, r)
		}
	}
	d.mu.RUnlock()

	results := make([]ChannelResult, len(targets))
	var wg sync.WaitGroup
	for i, r := range targets {
		name := r.channel.Name()
		if o.skip[name] {
			results[i] = ChannelResult{Channel: name, Status: StatusSkipped}
			continue
		}

		wg.Add(1)
		go func(i int, r registration) {
			defer wg.Done()
			err := d.send(ctx, r, eventType, data)
			results[i] = newResult(r.channel.Name(), err)
			if err != nil {
				d.log.Warn().Err(err).Str("channel", r.channel.Name()).Str("event", eventType).Msg("notification failed")
			}
		}(i, r)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) send(ctx context.Context, r registration, eventType string, data map[string]string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("channel %s panicked: %v", r.channel.Name(), p)
		}
	}()

	msg, err := r.templates.Render(eventType, data)
	if err != nil {
		return err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return r.channel.Send(ctx, msg)
}

func newResult(channel string, err error) ChannelResult {
	if err != nil {
		return ChannelResult{Channel: channel, Status: StatusFailed, Error: err.Error(), Err: err}
	}
	return ChannelResult{Channel: channel, Status: StatusSent}
}
