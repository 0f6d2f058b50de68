// Package resource builds API wrappers on top of apiclient: a Client hands
// out named models, each bound to a Request over shared parameters and
// transport.
package resource

import (
	"fmt"
	"sync"

	"github.com/kroma-labs/apiwrap-go/apiclient"
	"github.com/kroma-labs/apiwrap-go/logger"
)

// Client is the entry point of an API wrapper. It owns the shared Params,
// Handle and Logger and hands out models from its Registry, each bound to
// a fresh Request over the shared state.
type Client struct {
	params   *apiclient.Params
	handle   *apiclient.Handle
	log      *logger.Logger
	registry *Registry
	settings []apiclient.Setting

	mu      sync.Mutex
	debug   bool
	cookies bool
}

// Option configures a Client.
type Option func(*Client)

// WithRoute attaches route to the client logger. Without it, entries of
// info level and above go to stdout.
func WithRoute(route logger.Route) Option {
	return func(c *Client) {
		c.log.AddRoute(route)
	}
}

// WithRegistry sets the registry models are resolved from.
func WithRegistry(r *Registry) Option {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithHandle sets the transport handle shared by all models.
func WithHandle(h *apiclient.Handle) Option {
	return func(c *Client) {
		if h != nil {
			c.handle = h
		}
	}
}

// WithSettings sets request settings applied to every model's Request
// before the client's debug and cookie flags.
func WithSettings(opts ...apiclient.Setting) Option {
	return func(c *Client) {
		c.settings = append(c.settings, opts...)
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		params:   apiclient.NewParams(),
		log:      logger.New(),
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.handle == nil {
		c.handle = apiclient.NewHandle()
	}
	if len(c.log.Routes()) == 0 {
		c.log.AddRoute(logger.NewStdRoute(logger.LevelInfo))
	}
	return c
}

// Params returns the parameters shared by all models.
func (c *Client) Params() *apiclient.Params { return c.params }

// Handle returns the shared transport handle.
func (c *Client) Handle() *apiclient.Handle { return c.handle }

// Logger returns the client logger.
func (c *Client) Logger() *logger.Logger { return c.log }

// Registry returns the model registry.
func (c *Client) Registry() *Registry { return c.registry }

// SetDebug toggles debug output for models created afterwards and moves the
// logger to debug or info level.
func (c *Client) SetDebug(on bool) *Client {
	c.mu.Lock()
	c.debug = on
	c.mu.Unlock()

	if on {
		c.log.SetLevel(logger.LevelDebug)
	} else {
		c.log.SetLevel(logger.LevelInfo)
	}
	return c
}

// SetCookies toggles cookie persistence for models created afterwards.
func (c *Client) SetCookies(on bool) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = on
	return c
}

// Model builds the model registered under name. GET and POST parameters
// left over from previous calls are cleared first.
func (c *Client) Model(name string) (any, error) {
	factory, err := c.registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	c.params.ClearGet().ClearPost()

	c.mu.Lock()
	opts := make([]apiclient.Setting, 0, len(c.settings)+2)
	opts = append(opts, c.settings...)
	opts = append(opts, apiclient.WithDebug(c.debug), apiclient.WithCookies(c.cookies))
	c.mu.Unlock()

	req := apiclient.NewRequest(c.params, c.handle, c.log, opts...)
	model := factory(req)

	c.log.Debug("model created", logger.Context{
		"model":      UpperCamelCase(name),
		"session_id": req.SessionID(),
	})
	return model, nil
}

// Close releases the idle connections of the shared handle.
func (c *Client) Close() {
	c.handle.Close()
}

// Resolve builds the model registered under name and asserts its type.
//
//	orders, err := resource.Resolve[*Order](client, "order")
func Resolve[T any](c *Client, name string) (T, error) {
	var zero T

	model, err := c.Model(name)
	if err != nil {
		return zero, err
	}
	typed, ok := model.(T)
	if !ok {
		return zero, fmt.Errorf("resolve %s: factory returned %T, want %T", name, model, zero)
	}
	return typed, nil
}
