package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"strand/internal/buildinfo"
)

const usage = `usage:
  strand run    [-config f] [-procs K] [-routines N] [-steps M] [-trace] [-db path]
  strand report [-config f] [-db path] [-session id]
  strand version`

func main() {
	if len(os.Args) < 2 {
		fatalf(2, "%s", usage)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "run":
		err = runCmd(args)
	case "report":
		err = reportCmd(args)
	case "version":
		fmt.Println(buildinfo.Read())
	case "-h", "-help", "--help", "help":
		fmt.Println(usage)
	default:
		fatalf(2, "unknown command: %s\n%s", cmd, usage)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fatalf(1, "strand: %v", err)
	}
}

func fatalf(code int, format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}
