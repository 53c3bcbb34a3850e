package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/srg/redtooth/internal/bridge"
	"github.com/srg/redtooth/internal/radio"
	"github.com/srg/redtooth/internal/registry"
)

var (
	connectedColor    = color.New(color.FgGreen)
	disconnectedColor = color.New(color.FgHiBlack)
)

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func validateFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// connectionState renders the connected column; colour only reaches terminals.
func connectionState(w io.Writer, connected bool) string {
	if !isTerminal(w) {
		if connected {
			return "yes"
		}
		return "no"
	}
	if connected {
		return connectedColor.Sprint("yes")
	}
	return disconnectedColor.Sprint("no")
}

// deviceView is the JSON shape of a device record
type deviceView struct {
	Address        string `json:"address"`
	Name           string `json:"name"`
	Connected      bool   `json:"connected"`
	Authenticated  bool   `json:"authenticated"`
	SignalStrength int32  `json:"rssi"`
	DeviceClass    uint32 `json:"class"`
}

func sortDevices(devices []bridge.Device) {
	// strongest signal first, then by address
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].SignalStrength != devices[j].SignalStrength {
			return devices[i].SignalStrength > devices[j].SignalStrength
		}
		return devices[i].Address < devices[j].Address
	})
}

func displayDevices(w io.Writer, devices []bridge.Device, format string) error {
	sortDevices(devices)

	if format == "json" {
		views := make([]deviceView, len(devices))
		for i, d := range devices {
			views[i] = deviceView{
				Address:        radio.FormatAddress(d.Address),
				Name:           d.Name,
				Connected:      d.Connected,
				Authenticated:  d.Authenticated,
				SignalStrength: d.SignalStrength,
				DeviceClass:    d.DeviceClass,
			}
		}
		return writeJSON(w, views)
	}

	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices discovered")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tRSSI\tCLASS\tCONNECTED")
	fmt.Fprintln(tw, strings.Repeat("-", 64))
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d dBm\t0x%06X\t%s\n",
			truncate(name, 24), radio.FormatAddress(d.Address), d.SignalStrength, d.DeviceClass,
			connectionState(w, d.Connected))
	}
	return tw.Flush()
}

// aliasView is the JSON shape of a configured device
type aliasView struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	AutoConnect bool   `json:"auto_connect"`
}

func displayAliases(w io.Writer, aliases []aliasView, format string) error {
	if format == "json" {
		return writeJSON(w, aliases)
	}
	if len(aliases) == 0 {
		fmt.Fprintln(w, "No devices configured")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tAUTO-CONNECT")
	for _, a := range aliases {
		auto := "no"
		if a.AutoConnect {
			auto = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Name, a.Address, auto)
	}
	return tw.Flush()
}

// historyView is the JSON shape of a registry entry
type historyView struct {
	Address         string    `json:"address"`
	Name            string    `json:"name"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	ConnectionCount int       `json:"connection_count"`
}

func displayHistory(w io.Writer, entries []registry.Entry, format string, now time.Time) error {
	if format == "json" {
		views := make([]historyView, len(entries))
		for i, e := range entries {
			views[i] = historyView{
				Address:         radio.FormatAddress(e.Address),
				Name:            e.Name,
				FirstSeen:       e.FirstSeen,
				LastSeen:        e.LastSeen,
				ConnectionCount: e.ConnectionCount,
			}
		}
		return writeJSON(w, views)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No device history")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tCONNECTIONS\tLAST SEEN")
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "(unknown)"
		}
		ago := now.Sub(e.LastSeen).Truncate(time.Second)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s ago\n", truncate(name, 24), radio.FormatAddress(e.Address), e.ConnectionCount, ago)
	}
	return tw.Flush()
}

func clearScreen(w io.Writer) {
	if isTerminal(w) {
		fmt.Fprint(w, "\033[2J\033[H")
	}
}
