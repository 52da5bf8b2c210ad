/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/couchdir/couchdir/cmd"

func main() {
	cmd.Execute()
}
