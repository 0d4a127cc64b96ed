// Command pdfctl renders résumés with the same pipeline as the API, without
// the HTTP layer.
package main

import (
	"os"

	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	os.Exit(execute(os.Args[1:], defaultEnv(os.Stdin, os.Stdout, os.Stderr)))
}
