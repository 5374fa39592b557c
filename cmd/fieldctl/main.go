// Package main is the entry point for fieldctl, the command-line console
// for school admin field schemas.
package main

func main() {
	Execute()
}
