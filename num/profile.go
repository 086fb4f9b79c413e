package num

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Profile accumulates the number of calls and total time spent for named operations.
type Profile struct {
	prof    map[string]profileRec
	enabled bool
}

type profileRec struct {
	name  string
	calls int64
	msec  float64
}

func NewProfile(enabled bool) *Profile {
	return &Profile{prof: make(map[string]profileRec), enabled: enabled}
}

// Enabled returns true if profiling is on
func (p *Profile) Enabled() bool { return p != nil && p.enabled }

// Time calls fn and records its run time under name if profiling is enabled.
func (p *Profile) Time(name string, fn func()) {
	if !p.Enabled() {
		fn()
		return
	}
	start := time.Now()
	fn()
	p.Add(name, time.Since(start))
}

// Add a call with the given duration
func (p *Profile) Add(name string, d time.Duration) {
	r := p.prof[name]
	r.name = name
	r.calls++
	r.msec += float64(d) / float64(time.Millisecond)
	p.prof[name] = r
}

// Calls returns the number of recorded calls for name
func (p *Profile) Calls(name string) int64 {
	return p.prof[name].calls
}

// Print the recorded operations sorted by total time
func (p *Profile) Print(w io.Writer) {
	fmt.Fprintln(w, "== Profile ==")
	list := make([]profileRec, 0, len(p.prof))
	for _, v := range p.prof {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool { return list[j].msec < list[i].msec })
	totalCalls := int64(0)
	totalMsec := 0.0
	for _, r := range list {
		fmt.Fprintf(w, "%-25s %8d calls %10.1f msec\n", r.name, r.calls, r.msec)
		totalCalls += r.calls
		totalMsec += r.msec
	}
	fmt.Fprintf(w, "%-25s %8d calls %10.1f msec\n", "TOTAL", totalCalls, totalMsec)
}
