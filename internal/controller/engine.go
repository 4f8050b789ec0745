// Package controller synthesises the operations of every registered
// resource schema and runs them under a single error translator.
//
// The Engine is a registry table keyed by operation name. Register installs
// one generic handler per verb a schema declares, named post_<name>,
// get_<name>_by_id, put_<name>_by_id and delete_<name>_by_id, plus listing
// and, when a simulator is bound, simulate and rocketpy operations.
package controller

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/signalsfoundry/rocketflight/timectrl"
)

// Request carries the transport-independent input of an operation.
type Request struct {
	ID    string
	Body  []byte
	Query url.Values
}

// Response is the result of an operation. Blob responses are opaque
// attachments; all others render Body as JSON.
type Response struct {
	Status   int
	Body     any
	Blob     []byte
	Filename string
}

// Handler runs one operation.
type Handler func(ctx context.Context, req Request) (Response, error)

// Operation is one entry of the registry table.
type Operation struct {
	Name     string
	Resource string
	Method   string
	// Path is the route template, with :id standing for the identifier.
	Path   string
	Handle Handler
}

// Engine holds the registry table.
type Engine struct {
	clock timectrl.Clock
	ops   map[string]Operation
	order []string
}

// NewEngine returns an empty registry. A nil clock means the system clock.
func NewEngine(clock timectrl.Clock) *Engine {
	if clock == nil {
		clock = timectrl.System{}
	}
	return &Engine{clock: clock, ops: map[string]Operation{}}
}

// Operation looks up an operation by name.
func (e *Engine) Operation(name string) (Operation, bool) {
	op, ok := e.ops[name]
	return op, ok
}

// Operations returns the registered operations in registration order.
func (e *Engine) Operations() []Operation {
	out := make([]Operation, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.ops[name])
	}
	return out
}

// Names returns the sorted operation names.
func (e *Engine) Names() []string {
	names := append([]string(nil), e.order...)
	sort.Strings(names)
	return names
}

// add installs op with its handler wrapped by Translate.
func (e *Engine) add(op Operation) {
	if _, dup := e.ops[op.Name]; dup {
		panic(fmt.Sprintf("controller: duplicate operation %q", op.Name))
	}
	handle := op.Handle
	op.Handle = func(ctx context.Context, req Request) (Response, error) {
		resp, err := handle(ctx, req)
		if err != nil {
			return Response{}, Translate(ctx, err)
		}
		return resp, nil
	}
	e.ops[op.Name] = op
	e.order = append(e.order, op.Name)
}
