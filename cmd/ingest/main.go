// Package main is the entry point for the csv-ingest binary. It serves
// storage notifications over HTTP and can replay a single object load from
// the command line.
package main

import "os"

func main() {
	os.Exit(execute())
}
