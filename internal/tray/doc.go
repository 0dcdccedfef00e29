// Package tray is the terminal status menu for a running display session.
//
// It plays the role of a system-tray icon menu: a status line, the serial
// ports that can be selected, the refresh-rate choices with the current one
// marked, and Exit. The menu never owns session state. Every change
// notification from the controller makes it re-read the current values and
// re-enumerate the ports.
//
// Commands that can block on the serial port (start, stop, select port) run
// as tea.Cmds so the UI keeps rendering while they complete.
//
// Keyboard:
//
//	up/k, down/j  move the cursor
//	enter/space   select the item under the cursor
//	s             start or stop streaming
//	r             re-scan ports
//	?             toggle help
//	esc           dismiss message or help
//	q, ctrl+c     exit (stops streaming first)
package tray
