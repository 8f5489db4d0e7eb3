package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/gdamore/tcell/v2"
	"github.com/mcdev12/arena/go/internal/timer"
	"google.golang.org/protobuf/types/known/structpb"
)

const pollInterval = 100 * time.Millisecond

type structClient = connect.Client[structpb.Struct, structpb.Struct]

// monitor polls one timer over the connect API and sends key actions back.
// snap and lastErr are only touched by the UI goroutine through apply.
type monitor struct {
	timer    string
	duration float64
	timeout  time.Duration
	clients  map[string]*structClient

	snap    timer.Snapshot
	lastErr string
}

// result is the outcome of one call, handed back to the UI goroutine
type result struct {
	procedure string
	snap      timer.Snapshot
	err       error
}

func newMonitor(baseURL, name string, duration float64) *monitor {
	m := &monitor{timer: name, duration: duration, timeout: 2 * time.Second, clients: map[string]*structClient{}}
	for _, procedure := range []string{
		timer.TimerServiceStatusProcedure,
		timer.TimerServiceStartProcedure,
		timer.TimerServicePauseProcedure,
		timer.TimerServiceResumeProcedure,
		timer.TimerServiceRestartProcedure,
		timer.TimerServiceRemoveTimeProcedure,
	} {
		m.clients[procedure] = connect.NewClient[structpb.Struct, structpb.Struct](
			http.DefaultClient, baseURL+procedure, connect.WithProtoJSON(),
		)
	}
	return m
}

// fetch performs one call without touching monitor state, so it can run off the UI goroutine.
func (m *monitor) fetch(ctx context.Context, procedure string, fields map[string]interface{}) result {
	res := result{procedure: procedure}
	fields[timer.FieldTimer] = m.timer
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		res.err = err
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	resp, err := m.clients[procedure].CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		res.err = err
		return res
	}
	res.snap = timer.SnapshotFromStruct(resp.Msg)
	return res
}

// apply folds a result into the screen state. A successful status poll keeps
// the last action error on screen.
func (m *monitor) apply(res result) {
	if res.err != nil {
		m.lastErr = res.err.Error()
		return
	}
	m.snap = res.snap
	if res.procedure != timer.TimerServiceStatusProcedure {
		m.lastErr = ""
	}
}

// dispatch runs fetch in the background and delivers the result unless ctx ends first.
func (m *monitor) dispatch(ctx context.Context, results chan<- result, procedure string, fields map[string]interface{}) {
	go func() {
		res := m.fetch(ctx, procedure, fields)
		select {
		case results <- res:
		case <-ctx.Done():
		}
	}()
}

// poll fetches the status every interval until ctx is done. One poll is in
// flight at a time; ticks that arrive during a slow call are dropped.
func (m *monitor) poll(ctx context.Context, interval time.Duration, results chan<- result) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := m.fetch(ctx, timer.TimerServiceStatusProcedure, map[string]interface{}{})
			select {
			case results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// procedureForKey maps a key press to the connect procedure and its fields
func (m *monitor) procedureForKey(r rune) (string, map[string]interface{}, bool) {
	switch r {
	case 's':
		return timer.TimerServiceStartProcedure, map[string]interface{}{
			timer.FieldDurationSeconds: m.duration,
			timer.FieldWithCountdown:   true,
		}, true
	case 'p':
		return timer.TimerServicePauseProcedure, map[string]interface{}{}, true
	case 'r':
		return timer.TimerServiceResumeProcedure, map[string]interface{}{}, true
	case 'x':
		return timer.TimerServiceRestartProcedure, map[string]interface{}{}, true
	case '-':
		return timer.TimerServiceRemoveTimeProcedure, map[string]interface{}{timer.FieldSeconds: 10}, true
	default:
		return "", nil, false
	}
}

// lines renders the screen contents
func (m *monitor) lines() []string {
	headline := m.snap.Display
	if m.snap.CountdownText != nil {
		headline = *m.snap.CountdownText
	}
	out := []string{
		fmt.Sprintf("timer: %s   phase: %s   generation: %d", m.timer, m.snap.Phase, m.snap.Generation),
		"",
		"    " + headline,
		"",
		fmt.Sprintf("[s] start %.0fs with countdown  [p] pause  [r] resume  [x] restart  [-] remove 10s  [q] quit", m.duration),
	}
	if m.lastErr != "" {
		out = append(out, "", "error: "+m.lastErr)
	}
	return out
}

func (m *monitor) draw(screen tcell.Screen) {
	screen.Clear()
	style := tcell.StyleDefault
	for y, line := range m.lines() {
		lineStyle := style
		switch {
		case y == 2 && m.snap.CountdownText != nil:
			lineStyle = style.Foreground(tcell.ColorYellow).Bold(true)
		case y == 2 && m.snap.Phase == timer.PhaseFinished:
			lineStyle = style.Foreground(tcell.ColorRed).Bold(true)
		case y == 2:
			lineStyle = style.Foreground(tcell.ColorGreen).Bold(true)
		}
		for x, r := range []rune(line) {
			screen.SetContent(x, y, r, nil, lineStyle)
		}
	}
	screen.Show()
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "arena timer server")
	name := flag.String("timer", timer.MatchTimer, "timer to monitor")
	duration := flag.Float64("duration", 180, "seconds used by the start key")
	flag.Parse()

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init screen: %v\n", err)
		os.Exit(1)
	}
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newMonitor(*addr, *name, *duration)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	results := make(chan result, 4)
	m.dispatch(ctx, results, timer.TimerServiceStatusProcedure, map[string]interface{}{})
	go m.poll(ctx, pollInterval, results)
	m.draw(screen)

	for {
		select {
		case res := <-results:
			m.apply(res)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return
				}
				if procedure, fields, ok := m.procedureForKey(ev.Rune()); ok {
					m.dispatch(ctx, results, procedure, fields)
				}
			}
		}
		m.draw(screen)
	}
}
