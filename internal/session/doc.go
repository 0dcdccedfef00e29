// Package session runs the telemetry stream to the display device.
//
// A Session owns one serial channel, the selected port, the refresh rate and
// the flag that says the device hasn't been told the current rate yet. It
// moves through three states:
//
//	Stopped ──Start──▶ Starting ──open ok──▶ Running
//	   ▲                  │                     │
//	   └──── open failed ─┘◀── Stop / write failure
//
// While Running, a single goroutine ticks once per refresh interval:
//
//  1. If the rate is pending, write a control frame carrying it.
//  2. Sample CPU and memory.
//  3. Write a telemetry frame.
//  4. On any write failure, close the port, move to Stopped and notify once.
//  5. Sleep for the current refresh rate, re-read every tick.
//
// Start, Stop and SetPort are serialized, so a port is never opened twice and
// never left open without a loop watching it. Stop cancels the loop
// cooperatively: the tick in progress finishes its writes before the port is
// closed. Failures are never retried; the user picks the port again.
//
// Writes have no timeout beyond what the OS driver enforces. A driver that
// hangs inside Write will hang Stop as well.
package session
