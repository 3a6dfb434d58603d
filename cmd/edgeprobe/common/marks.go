// Package common holds helpers shared by the edgeprobe commands.
package common

import "github.com/fatih/color"

var (
	CheckMark   = color.New(color.FgGreen).Sprint("✔")
	WarningSign = color.New(color.FgRed).Sprint("✘")
	InfoSign    = color.New(color.FgCyan).Sprint("»")
)
