// Command hc05-scan is a manual check for BLE discovery. It scans for the
// given number of seconds and lists every peripheral seen, so you can find
// the name and address your serial module advertises.
//
// Usage:
//
//	go run ./cmd/hc05-scan [--seconds 5]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/hc05-remote/internal/ble"
)

func main() {
	seconds := flag.Int("seconds", 5, "scan duration in seconds")
	flag.Parse()

	m := ble.NewManager(ble.NewTinyGoAdapter(), nil, ble.DefaultManagerOptions())
	if err := m.Start(); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer m.Close()

	if err := m.Scan(nil, *seconds, true); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Scanning for %ds...\n", *seconds)
	time.Sleep(time.Duration(*seconds) * time.Second)

	peripherals, err := m.DiscoveredPeripherals()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(peripherals) == 0 {
		fmt.Println("No peripherals found.")
		return
	}
	for _, p := range peripherals {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%-20s %-36s %4d dBm\n", name, p.ID, p.RSSI)
	}
}
