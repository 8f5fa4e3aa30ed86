package main

import (
	"io"
	"os"
	"runtime"

	"github.com/anacrolix/log"
	"github.com/urfave/cli/v2"

	"github.com/anacrolix/frameprobe/ffmpeg"
	"github.com/anacrolix/frameprobe/futures"
	"github.com/anacrolix/frameprobe/probe"
)

const exitUsage = 2

func newApp(stdout, stderr io.Writer, newBackend func(log.Logger) probe.Backend) *cli.App {
	return &cli.App{
		Name:      "frameprobe",
		Usage:     "print the frame count recorded in video containers",
		ArgsUsage: "<path> [<path>...]",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "estimate",
				Usage: "derive a count from duration and frame rate when the container records none",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Value:   runtime.NumCPU(),
				Usage:   "files probed in parallel",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug messages",
			},
		},
		// Exit codes are returned to main rather than exiting from within.
		ExitErrHandler: func(*cli.Context, error) {},
		Action: func(c *cli.Context) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				cli.ShowAppHelp(c)
				return cli.Exit("", exitUsage)
			}
			logger := log.Default.WithNames("frameprobe")
			if !c.Bool("verbose") {
				logger = logger.WithFilterLevel(log.Warning)
			}
			p := probe.New(newBackend(logger), logger, c.App.Writer, c.App.ErrWriter)
			p.Estimate = c.Bool("estimate")
			var code int
			if len(paths) == 1 {
				code = p.Run(paths[0])
			} else {
				code = runBatch(p, paths, c.Int("jobs"))
			}
			if code != probe.ExitSuccess {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}

// Probes paths in parallel, reporting in argument order. Fails if any path
// does.
func runBatch(p *probe.Prober, paths []string, jobs int) int {
	e := futures.NewExecutor(jobs)
	defer e.Shutdown()
	in := make(chan string)
	go func() {
		for _, path := range paths {
			in <- path
		}
		close(in)
	}()
	code := probe.ExitSuccess
	for r := range futures.Map[string, probe.Result](e, p.Probe, in) {
		if p.Report(r, true) != probe.ExitSuccess {
			code = probe.ExitFailure
		}
	}
	return code
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return exitUsage
}

func main() {
	app := newApp(os.Stdout, os.Stderr, func(logger log.Logger) probe.Backend {
		return ffmpeg.NewBackend(logger)
	})
	err := app.Run(os.Args)
	if _, ok := err.(cli.ExitCoder); !ok && err != nil {
		log.Printf("%v", err)
	}
	os.Exit(exitCode(err))
}
