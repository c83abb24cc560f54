package main

import (
	"fmt"
	"io"
	"math"

	"reframe/internal/job"
)

const progressStep = 5.0

// progressPrinter writes stage transitions and transcode progress in
// progressStep increments.
type progressPrinter struct {
	out    io.Writer
	prefix string
	stage  job.Stage
	last   float64
}

func newProgressPrinter(out io.Writer, prefix string) *progressPrinter {
	return &progressPrinter{out: out, prefix: prefix}
}

func (p *progressPrinter) observe(evt job.Event) {
	if evt.Stage != p.stage {
		p.stage = evt.Stage
		p.last = 0
		fmt.Fprintf(p.out, "%s%s\n", p.prefix, evt.Stage)
		return
	}
	step := math.Floor(evt.Percent/progressStep) * progressStep
	if step <= p.last {
		return
	}
	p.last = step
	fmt.Fprintf(p.out, "%s%s %3.0f%%\n", p.prefix, evt.Stage, step)
}
