// Package procsrc is an out-of-scope (per spec.md §1) source adapter that
// runs external processes through os/exec, settling through the core
// engine's Settle contract.
package procsrc

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/tinwire/deferred/deferred"
)

// Result is what a successful Run fulfils with. A non-zero ExitCode is a
// normal, fulfilled result — only a failure to start or an I/O error
// rejects.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Limiter throttles how often commands may be spawned, keyed by command
// name — a sliding-window rate limiter is a natural fit for "supervise
// external processes" (go-catrate's own module description), guarding
// against a runaway chain of then callbacks fork-bombing the host.
type Limiter = catrate.Limiter

// NewLimiter builds a Limiter from a set of window/count pairs, e.g.
// NewLimiter(map[time.Duration]int{time.Second: 20}) allows at most 20
// spawns per rolling second.
func NewLimiter(rates map[time.Duration]int) *Limiter { return catrate.NewLimiter(rates) }

var defaultLimiter = NewLimiter(map[time.Duration]int{time.Second: 50})

type runProducer struct {
	ctx     context.Context
	cancel  context.CancelFunc
	name    string
	args    []string
	limiter *Limiter
}

func (p *runProducer) Start(settle deferred.Settle) error {
	if _, ok := p.limiter.Allow(p.name); !ok {
		return &deferred.Error{Kind: deferred.KindUser, Message: "procsrc: rate limit exceeded for " + p.name}
	}
	ctx, cancel := context.WithCancel(p.ctx)
	p.cancel = cancel
	deferred.CurrentLoop().RegisterWait(func() (deferred.Result, error) {
		cmd := exec.CommandContext(ctx, p.name, p.args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		runErr := cmd.Run()
		res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if runErr != nil {
			return nil, runErr
		}
		return res, nil
	}, func(v deferred.Result, err error) {
		if err != nil {
			settle.Reject(err)
			return
		}
		settle.Fulfil(v)
	})
	return nil
}

func (p *runProducer) Abort() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Run spawns name with args, rate-limited by limiter (or, if nil, a shared
// package default of 50/s per command name). Abort cancels the process's
// context, which os/exec translates into killing it.
func Run(ctx context.Context, limiter *Limiter, name string, args ...string) *deferred.Node {
	if limiter == nil {
		limiter = defaultLimiter
	}
	return deferred.New(&runProducer{ctx: ctx, name: name, args: args, limiter: limiter})
}
