package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"docstream/internal/domain"
	"docstream/internal/domain/ports/adapter"
)

// ErrPriorText is returned by a finished recognition process when the input
// already carried a full text layer; callers use the original file as-is.
var ErrPriorText = errors.New("input already contains a text layer")

// ocrmypdf exit codes we care about.
const (
	exitAlreadyDoneOCR = 6
	exitEncryptedPDF   = 8
	exitInvalidInput   = 2
)

var _ adapter.RecognitionRunner = (*OCRmyPDFRunner)(nil)

// OCRmyPDFRunner shells out to ocrmypdf. The subprocess is started detached
// from the job's own lifetime so it can be polled and hard-killed when a skip
// signal arrives.
type OCRmyPDFRunner struct {
	binary   string
	language string
	dpi      int
}

func NewOCRmyPDFRunner(language string, dpi int) *OCRmyPDFRunner {
	return &OCRmyPDFRunner{binary: "ocrmypdf", language: language, dpi: dpi}
}

func (r *OCRmyPDFRunner) Start(ctx context.Context, inputPath, outputPath string) (adapter.RecognitionProcess, error) {
	args := []string{
		"--skip-text",
		"--optimize", "0",
		"--language", r.language,
		"--image-dpi", strconv.Itoa(r.dpi),
		inputPath,
		outputPath,
	}
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.binary, err)
	}

	p := &recognitionProcess{cmd: cmd, outputPath: outputPath, done: make(chan error, 1)}
	go func() { p.done <- cmd.Wait() }()
	return p, nil
}

type recognitionProcess struct {
	cmd        *exec.Cmd
	outputPath string
	done       chan error
	result     error
	finished   bool
}

func (p *recognitionProcess) Wait(interval time.Duration) (bool, error) {
	if p.finished {
		return true, p.result
	}
	select {
	case err := <-p.done:
		p.finished = true
		p.result = p.translate(err)
		return true, p.result
	case <-time.After(interval):
		return false, nil
	}
}

func (p *recognitionProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	<-p.done // reap
	p.finished = true
	p.result = errors.New("recognition subprocess killed")
	return err
}

func (p *recognitionProcess) translate(err error) error {
	if err == nil {
		if _, statErr := os.Stat(p.outputPath); statErr != nil {
			return fmt.Errorf("recognition produced no output: %w", statErr)
		}
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitCode() {
		case exitAlreadyDoneOCR:
			return ErrPriorText
		case exitEncryptedPDF, exitInvalidInput:
			return fmt.Errorf("%w: ocrmypdf exit %d", domain.ErrUnreadableInput, exitErr.ExitCode())
		}
	}
	return fmt.Errorf("ocrmypdf: %w", err)
}
