// Package main is the standalone broll daemon, equivalent to `broll serve`
// for service managers that expect a dedicated binary.
package main
