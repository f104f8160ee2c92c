package search

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/panjf2000/ants/v2"
)

// defaultMaxSubprocesses bounds how many scrape worker processes may run at
// once, independent of the aggregator's own fetch concurrency — spawning an
// OS process is heavier than a goroutine, so this is deliberately tighter.
const defaultMaxSubprocesses = 4

// WorkerSubcommand is the hidden argv[1] the executable recognizes to run
// as a scrape worker instead of the normal CLI. cmd/reportctl's main checks
// for it before Cobra parses anything else.
const WorkerSubcommand = "__scrape-worker"

const maxWorkerOutput = 2 << 20

type workerResult struct {
	Text string `json:"text"`
	Err  string `json:"err,omitempty"`
}

// SubprocessScraper isolates each scrape in its own OS process by
// re-executing the current binary with WorkerSubcommand, so a hang or crash
// in one page's extraction can never wedge the aggregator — mirrors the
// sandboxed subprocess-runner pattern used for untrusted code execution.
type SubprocessScraper struct {
	exePath string
	pool    *ants.Pool
}

// NewSubprocessScraper resolves the running executable's path once at
// construction and bounds concurrent scrape worker processes to maxProcs (a
// value <= 0 falls back to defaultMaxSubprocesses). Every scrape re-execs
// the resolved executable.
func NewSubprocessScraper(maxProcs int) (*SubprocessScraper, error) {
	if maxProcs <= 0 {
		maxProcs = defaultMaxSubprocesses
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	pool, err := ants.NewPool(maxProcs)
	if err != nil {
		return nil, fmt.Errorf("create subprocess pool: %w", err)
	}
	return &SubprocessScraper{exePath: exe, pool: pool}, nil
}

// Close releases the scraper's subprocess pool.
func (s *SubprocessScraper) Close() {
	s.pool.Release()
}

// Cap reports the maximum number of scrape worker processes this scraper
// will run concurrently.
func (s *SubprocessScraper) Cap() int {
	return s.pool.Cap()
}

type scrapeOutcome struct {
	text string
	err  error
}

func (s *SubprocessScraper) Scrape(ctx context.Context, url string, kind ResourceType) (string, error) {
	outcome := make(chan scrapeOutcome, 1)

	submitErr := s.pool.Submit(func() {
		text, err := s.runWorker(ctx, url, kind)
		outcome <- scrapeOutcome{text: text, err: err}
	})
	if submitErr != nil {
		return "", fmt.Errorf("submit scrape to subprocess pool: %w", submitErr)
	}

	select {
	case o := <-outcome:
		return o.text, o.err
	case <-ctx.Done():
		return "", ErrScrapeTimeout
	}
}

func (s *SubprocessScraper) runWorker(ctx context.Context, url string, kind ResourceType) (string, error) {
	cmd := exec.CommandContext(ctx, s.exePath, WorkerSubcommand, string(kind), url)
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start scrape worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxWorkerOutput)

	var result workerResult
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &result); err != nil {
			continue
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return "", ErrScrapeTimeout
	}
	if waitErr != nil {
		return "", fmt.Errorf("scrape worker exited: %w", waitErr)
	}
	if result.Err != "" {
		return "", fmt.Errorf("scrape worker: %s", result.Err)
	}
	return result.Text, nil
}

// RunWorkerMain is the entry point invoked when the executable is re-run as
// a scrape worker (argv = [WorkerSubcommand, kind, url]). It never returns:
// it writes one JSON result line to stdout and exits.
func RunWorkerMain(args []string) {
	result := workerResult{}
	if len(args) < 2 {
		result.Err = "usage: __scrape-worker <kind> <url>"
	} else {
		kind := ResourceType(args[0])
		url := args[1]
		text, err := NewDirectScraper().Scrape(context.Background(), url, kind)
		if err != nil {
			result.Err = err.Error()
		} else {
			result.Text = text
		}
	}
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(result)
	if result.Err != "" {
		os.Exit(1)
	}
	os.Exit(0)
}
