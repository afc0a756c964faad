package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/hearthward/floorctl/src/control"
)

// Watchable diagnostic fields and their extractors.
var diagFields = map[string]func(control.Diagnostics) string{
	"active":          func(d control.Diagnostics) string { return fmt.Sprintf("%v", d.Active) },
	"mode":            func(d control.Diagnostics) string { return string(d.Mode) },
	"target":          func(d control.Diagnostics) string { return formatDebugValue(d.TargetTemp) },
	"room_temp":       func(d control.Diagnostics) string { return formatDebugValue(d.RoomTemp) },
	"floor_temp":      func(d control.Diagnostics) string { return formatDebugValue(d.FloorTemp) },
	"demand":          func(d control.Diagnostics) string { return formatDebugValue(d.FinalDemand) },
	"room_demand":     func(d control.Diagnostics) string { return formatDebugValue(d.RoomDemand) },
	"floor_demand":    func(d control.Diagnostics) string { return formatDebugValue(d.FloorDemand) },
	"room_integral":   func(d control.Diagnostics) string { return formatDebugValue(d.RoomIntegral) },
	"floor_integral":  func(d control.Diagnostics) string { return formatDebugValue(d.FloorIntegral) },
	"effective_limit": func(d control.Diagnostics) string { return formatDebugValue(d.EffectiveLimit) },
	"veto":            func(d control.Diagnostics) string { return fmt.Sprintf("%v", d.VetoActive) },
	"tokens":          func(d control.Diagnostics) string { return formatDebugValue(d.BudgetTokens) },
	"toggles":         func(d control.Diagnostics) string { return strconv.Itoa(d.TotalToggleCount) },
	"rotation":        func(d control.Diagnostics) string { return strconv.Itoa(d.RotationIndex) },
	"comfort":         func(d control.Diagnostics) string { return fmt.Sprintf("%v", d.MaintainComfort) },
	"cycle": func(d control.Diagnostics) string {
		return fmt.Sprintf("%.0f/%.0fs", d.TimeInCycle.Seconds(), d.CyclePeriod.Seconds())
	},
}

// formatDebugValue formats a float with smart precision
func formatDebugValue(v float64) string {
	if v >= 100 || v <= -100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m" // Yellow for changed values
)

// readlineWriter wraps log output to work with readline
type readlineWriter struct {
	rl *readline.Instance
}

func (w *readlineWriter) Write(p []byte) (n int, err error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err = os.Stderr.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// Global readline writer for log output
var rlWriter = &readlineWriter{}

// DebugState manages the watched diagnostic fields.
type DebugState struct {
	topics        ZoneTopics
	cmdChan       chan<- SensorMessage
	watches       []string
	headerPrinted bool
	columnWidths  []int
	latest        *control.Diagnostics
	rl            *readline.Instance
	prevValues    map[string]string
}

// NewDebugState creates a new debug state. Commands that mutate the
// zone are injected through the same channel the MQTT command topics
// feed, so the zone worker stays the only mutator.
func NewDebugState(topics ZoneTopics, cmdChan chan<- SensorMessage) *DebugState {
	return &DebugState{
		topics:     topics,
		cmdChan:    cmdChan,
		prevValues: make(map[string]string),
	}
}

// AddWatch adds a watch and re-sorts the list
func (s *DebugState) AddWatch(field string) {
	if _, ok := diagFields[field]; !ok {
		log.Printf("Unknown field: %s (try 'fields')", field)
		return
	}
	if slices.Contains(s.watches, field) {
		log.Printf("Already watching: %s", field)
		return
	}
	s.watches = append(s.watches, field)
	sort.Strings(s.watches)
	s.headerPrinted = false
	log.Printf("Watching: %s", field)
}

// RemoveWatch removes one watch.
func (s *DebugState) RemoveWatch(field string) {
	i := slices.Index(s.watches, field)
	if i < 0 {
		log.Printf("No watch found for: %s", field)
		return
	}
	s.watches = slices.Delete(s.watches, i, i+1)
	s.headerPrinted = false
	log.Printf("Unwatched: %s", field)
}

// RemoveAll removes all watches
func (s *DebugState) RemoveAll() {
	s.watches = s.watches[:0]
	s.headerPrinted = false
	log.Println("All watches removed")
}

// UpdateData stores the latest diagnostics snapshot.
func (s *DebugState) UpdateData(diag control.Diagnostics) {
	s.latest = &diag
}

// SetReadline sets the readline instance for proper output handling
func (s *DebugState) SetReadline(rl *readline.Instance) {
	s.rl = rl
}

// print outputs a line, handling readline prompt properly
func (s *DebugState) print(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if s.rl != nil {
		s.rl.Clean()
		fmt.Println(line)
		s.rl.Refresh()
	} else {
		fmt.Println(line)
	}
}

// ListFields prints all watchable fields.
func (s *DebugState) ListFields() {
	fields := make([]string, 0, len(diagFields))
	for f := range diagFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	s.print("Watchable fields (%d):", len(fields))
	for _, f := range fields {
		if s.latest != nil {
			s.print("  %-16s %s", f, diagFields[f](*s.latest))
		} else {
			s.print("  %s", f)
		}
	}
}

// PrintStatus dumps the full latest snapshot.
func (s *DebugState) PrintStatus() {
	if s.latest == nil {
		log.Println("No diagnostics received yet")
		return
	}
	fields := make([]string, 0, len(diagFields))
	for f := range diagFields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		s.print("%-16s %s", f, diagFields[f](*s.latest))
	}
	s.print("priority order: %s", strings.Join(s.latest.PriorityOrder, ", "))
}

// PrintHeader prints the column headers
func (s *DebugState) PrintHeader() {
	if len(s.watches) == 0 {
		return
	}

	s.columnWidths = make([]int, len(s.watches))
	parts := make([]string, 0, len(s.watches))
	for i, f := range s.watches {
		s.columnWidths[i] = len(f)
		parts = append(parts, fmt.Sprintf("%*s", s.columnWidths[i], f))
	}
	s.print("%s", strings.Join(parts, " | "))
	s.headerPrinted = true
	s.prevValues = make(map[string]string)
}

// PrintRow prints the current values for all watches (only if changed)
func (s *DebugState) PrintRow(diag control.Diagnostics) {
	if len(s.watches) == 0 {
		return
	}
	if !s.headerPrinted {
		s.PrintHeader()
	}

	parts := make([]string, 0, len(s.watches))
	anyChanged := false
	newValues := make(map[string]string, len(s.watches))

	for i, f := range s.watches {
		value := diagFields[f](diag)
		newValues[f] = value

		width := s.columnWidths[i]
		if len(value) > width {
			width = len(value)
			s.columnWidths[i] = width
		}

		prevValue, hasPrev := s.prevValues[f]
		if !hasPrev || prevValue != value {
			anyChanged = true
			parts = append(parts, fmt.Sprintf("%s%*s%s", ansiYellow, width, value, ansiReset))
		} else {
			parts = append(parts, fmt.Sprintf("%*s", width, value))
		}
	}

	if anyChanged {
		s.print("%s", strings.Join(parts, " | "))
		s.prevValues = newValues
	}
}

// inject feeds a command into the zone worker as if Home Assistant had
// published it.
func (s *DebugState) inject(topic, value string) {
	s.cmdChan <- SensorMessage{Topic: topic, Value: value}
}

// handleDebugCommand processes a debug command
func handleDebugCommand(cmd string, state *DebugState) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "watch":
		if len(parts) != 2 {
			log.Println("Usage: watch <field>")
			return
		}
		state.AddWatch(parts[1])

	case "unwatch":
		if len(parts) != 2 {
			log.Println("Usage: unwatch <field> | unwatch --all")
			return
		}
		if parts[1] == "--all" {
			state.RemoveAll()
			return
		}
		state.RemoveWatch(parts[1])

	case "fields":
		state.ListFields()

	case "status":
		state.PrintStatus()

	case "set":
		if len(parts) != 2 {
			log.Println("Usage: set <target-temp>")
			return
		}
		if _, err := strconv.ParseFloat(parts[1], 64); err != nil {
			log.Printf("Not a temperature: %s", parts[1])
			return
		}
		state.inject(state.topics.TargetSet(), parts[1])

	case "mode":
		if len(parts) != 2 || (parts[1] != "off" && parts[1] != "heat") {
			log.Println("Usage: mode <off|heat>")
			return
		}
		state.inject(state.topics.ModeSet(), parts[1])

	case "comfort":
		if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
			log.Println("Usage: comfort <on|off>")
			return
		}
		state.inject(state.topics.MaintainComfortSet(), parts[1])

	case "help":
		fmt.Println("Commands:")
		fmt.Println("  status                 - Dump the latest diagnostics")
		fmt.Println("  fields                 - List watchable fields")
		fmt.Println("  watch <field>          - Watch a field, printed on change")
		fmt.Println("  unwatch <field>        - Remove a watch")
		fmt.Println("  unwatch --all          - Remove all watches")
		fmt.Println("  set <temp>             - Change the room setpoint")
		fmt.Println("  mode <off|heat>        - Change the operating mode")
		fmt.Println("  comfort <on|off>       - Toggle maintain-comfort mode")
		fmt.Println("  help                   - Show this help")

	default:
		log.Printf("Unknown command: %s (try 'help')", parts[0])
	}
}

// readlineLoop runs the readline loop, sending commands to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	commandChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel() // Ctrl+C pressed, shutdown the app
			return
		}
		if err != nil {
			return // EOF or other error
		}
		line = strings.TrimSpace(line)
		if line != "" {
			commandChan <- line
		}
	}
}

// getHistoryFilePath returns the path for debug history file
func getHistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // No history if we can't find home
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	floorctlCache := filepath.Join(cacheDir, "floorctl")
	_ = os.MkdirAll(floorctlCache, 0750)
	return filepath.Join(floorctlCache, "debug_history")
}

// debugWorker provides interactive introspection of the control loop.
func debugWorker(
	ctx context.Context,
	cancel context.CancelFunc,
	topics ZoneTopics,
	diagChan <-chan control.Diagnostics,
	zoneCmdChan chan<- SensorMessage,
) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: getHistoryFilePath(),
	})
	if err != nil {
		log.Printf("Debug worker: readline init failed: %v", err)
		return
	}
	defer func() {
		_ = rl.Close()
		rlWriter.rl = nil // Clear readline reference on exit
	}()

	// Redirect log output through readline-aware writer
	rlWriter.rl = rl
	log.SetOutput(rlWriter)

	log.Println("Debug worker started (type 'help' for commands)")

	commandChan := make(chan string, 10)
	state := NewDebugState(topics, zoneCmdChan)
	state.SetReadline(rl)

	go readlineLoop(ctx, cancel, rl, commandChan)

	for {
		select {
		case cmd := <-commandChan:
			handleDebugCommand(cmd, state)
		case diag := <-diagChan:
			state.UpdateData(diag)
			if len(state.watches) > 0 {
				state.PrintRow(diag)
			}
		case <-ctx.Done():
			log.Println("Debug worker stopped")
			return
		}
	}
}
