// Package cli implements the serialdisplay command-line interface.
//
// Each Cobra command delegates to a xxxCommand function that does the work,
// so the commands stay declarative and the work stays testable.
//
// # Command Structure
//
//	serialdisplay               - Status menu (same as "menu")
//	serialdisplay menu          - Status menu with port and rate selection
//	serialdisplay stream        - Headless streaming until interrupted
//	serialdisplay ports         - List serial ports
//	serialdisplay decode <file> - Decode a captured byte stream
//	serialdisplay init          - Write a starter config
//	serialdisplay doctor        - Check config, ports and metric reads
//	serialdisplay version       - Print version information
//
// # Configuration
//
// Commands that talk to the device load .serialdisplay.yaml (or the global
// config) once at startup. Changes made in the menu are not written back.
package cli
