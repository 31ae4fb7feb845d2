package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
)

var promptChoices = map[string]codec.Decision{
	"i": codec.Ignore,
	"a": codec.IgnoreAll,
	"d": codec.StopDiscard,
	"k": codec.StopKeep,
}

// Prompt returns a handler that asks on out and reads the answer from in.
// Concurrent failures are asked about one at a time. End of input, or ctx
// being canceled while waiting, stops the run and keeps its output.
func Prompt(in io.Reader, out io.Writer) codec.ErrorHandler {
	var (
		mu    sync.Mutex
		once  sync.Once
		lines = make(chan string)
	)
	start := func() {
		go func() {
			defer close(lines)
			sc := bufio.NewScanner(in)
			for sc.Scan() {
				lines <- sc.Text()
			}
		}()
	}
	return func(ctx context.Context, err error) codec.Decision {
		mu.Lock()
		defer mu.Unlock()
		once.Do(start)
		fmt.Fprintf(out, "error: %v\n", err)
		for {
			fmt.Fprint(out, "[i]gnore, ignore [a]ll, stop and [d]iscard output, stop and [k]eep output? ")
			select {
			case line, ok := <-lines:
				if !ok {
					return codec.StopKeep
				}
				answer := strings.ToLower(strings.TrimSpace(line))
				if d, ok := promptChoices[answer]; ok {
					return d
				}
				if d, err := codec.ParseDecision(answer); err == nil {
					return d
				}
				fmt.Fprintf(out, "unrecognized answer %q\n", answer)
			case <-ctx.Done():
				return codec.StopKeep
			}
		}
	}
}
