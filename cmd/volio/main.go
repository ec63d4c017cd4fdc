// Command volio is a thin CLI driving the archive volume I/O core: pack
// files into a volume stream, list a stream's records, or extract a
// stream back onto disk. It is grounded on the teacher's cmd/grail-file
// entry point (flag parsing + cmd.Run dispatch + vlog setup).
package main

import (
	"flag"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/google/gops/agent"

	"github.com/fsarc/volio/cmd/volio/cmd"
	"github.com/fsarc/volio/remote/s3store"
	"github.com/fsarc/volio/vlog"
)

func main() {
	help := flag.Bool("help", false, "Display help about the available subcommands")
	gops := flag.Bool("gops", false, "enable the gops diagnostics listener")
	vlog.AddFlags(nil)
	flag.Parse()
	if *help {
		cmd.PrintHelp()
		os.Exit(0)
	}
	if *gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			vlog.Fatal(err)
		}
	}

	if sess, err := session.NewSession(); err == nil {
		s3store.Register(s3store.NewDefaultProvider(sess))
	}

	if err := cmd.Run(flag.Args()); err != nil {
		vlog.Fatal(err)
	}
}
