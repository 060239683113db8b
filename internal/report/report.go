// Package report renders human-readable status reports for a home.
//
// Render is a pure function over snapshots taken by the caller; it performs
// no device I/O and holds no locks.
package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/smarthome-core/internal/device"
)

// Room is a snapshot of one room for reporting.
type Room struct {
	Name     string
	Capacity int
	Devices  []Device // slot order
}

// Device is a snapshot of one device for reporting.
// Err is set when the device's state could not be read.
type Device struct {
	Info  device.Info
	State device.State
	Err   error
}

// Render produces the report text.
//
// Rooms are sorted by name, devices keep slot order and state keys are
// sorted, so equal snapshots always render identically.
func Render(home string, rooms []Room) string {
	sorted := slices.Clone(rooms)
	slices.SortFunc(sorted, func(a, b Room) int { return strings.Compare(a.Name, b.Name) })

	total := 0
	for _, r := range sorted {
		total += len(r.Devices)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Home %q: %s, %s\n", home, plural(len(sorted), "room"), plural(total, "device"))

	for _, r := range sorted {
		fmt.Fprintf(&b, "[%s] %d/%d slots\n", r.Name, len(r.Devices), r.Capacity)
		if len(r.Devices) == 0 {
			b.WriteString("  (no devices)\n")
			continue
		}
		for _, d := range r.Devices {
			writeDevice(&b, d)
		}
	}

	return b.String()
}

func writeDevice(b *strings.Builder, d Device) {
	fmt.Fprintf(b, "  - %s (%s)", d.Info.Name, d.Info.Kind)
	if d.Info.Description != "" {
		fmt.Fprintf(b, " %q", d.Info.Description)
	}
	b.WriteString(": ")

	if d.Err != nil {
		fmt.Fprintf(b, "unavailable (%v)\n", d.Err)
		return
	}
	if len(d.State) == 0 {
		b.WriteString("-\n")
		return
	}

	keys := make([]string, 0, len(d.State))
	for k := range d.State {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(FormatValue(d.State[k]))
	}
	b.WriteByte('\n')
}

// FormatValue renders a single state value.
func FormatValue(v any) string {
	switch x := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return "never"
		}
		return x.UTC().Format(time.RFC3339)
	case nil:
		return "-"
	default:
		return fmt.Sprint(x)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
