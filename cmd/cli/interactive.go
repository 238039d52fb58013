package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/yourusername/yt-convert-go/internal/domain"
)

// promptRequest asks for the URL and then the format, validating each
// answer before moving on
func promptRequest(in *bufio.Reader, out io.Writer, validateURL func(string) error) (domain.DownloadRequest, error) {
	fmt.Fprint(out, "YouTube URL: ")
	url, err := readLine(in)
	if err != nil {
		return domain.DownloadRequest{}, err
	}
	if err := validateURL(url); err != nil {
		return domain.DownloadRequest{}, err
	}

	fmt.Fprintf(out, "Format (%s): ", domain.FormatChoices())
	answer, err := readLine(in)
	if err != nil {
		return domain.DownloadRequest{}, err
	}
	format, err := domain.ParseFormat(answer)
	if err != nil {
		return domain.DownloadRequest{}, err
	}

	return domain.DownloadRequest{SourceURL: url, Format: format}, nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", errors.New("no input")
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// consoleObserver prints the job header and a single updating progress line
type consoleObserver struct {
	mu      sync.Mutex
	out     io.Writer
	last    int
	started bool
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out, last: -1}
}

func (o *consoleObserver) JobTranscoding(job *domain.Job) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if job.Metadata != nil {
		fmt.Fprintf(o.out, "Title: %s\n", job.Metadata.Title)
	}
	fmt.Fprintf(o.out, "Format: %s\n", strings.ToUpper(string(job.Request.Format)))
	fmt.Fprintln(o.out, "Starting download...")
}

func (o *consoleObserver) JobProgress(percent float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := int(math.Floor(percent))
	if p == o.last {
		return
	}
	o.last = p
	o.started = true
	fmt.Fprintf(o.out, "\rTranscoding: %d%%", p)
}

// Finish ends the progress line
func (o *consoleObserver) Finish() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		fmt.Fprintln(o.out)
		o.started = false
	}
}
