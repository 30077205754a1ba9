// Package common holds process-wide settings shared by the commands.
package common

// PackageName is the project name used in service tags.
const PackageName = "ccns"

// Version is set at build time via -ldflags "-X github.com/ruteri/ccns/common.Version=..."
var Version = "dev"
