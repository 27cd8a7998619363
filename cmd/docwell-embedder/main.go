// Command docwell-embedder is the embedder child process: it owns the
// embedding model (the static 768-dimension embedder) and answers
// "embed" requests sent over stdin, one newline-delimited JSON frame
// per line, writing results back over stdout in the same shape. It is
// spawned and supervised by internal/embedder.Supervisor; it is never
// invoked directly by a user.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jbovet/docwell/internal/embed"
	"github.com/jbovet/docwell/internal/embedder"
	"github.com/jbovet/docwell/internal/logging"
	"github.com/jbovet/docwell/internal/protocol"
)

func main() {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	if err := run(os.Stdin, os.Stdout); err != nil {
		slog.Error("embedder child exiting", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	ctx := context.Background()

	model, err := newModel(ctx)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}
	defer func() { _ = model.Close() }()

	writeMu := make(chan struct{}, 1)
	writeMu <- struct{}{}
	writeFrame := func(resp protocol.Response) {
		<-writeMu
		defer func() { writeMu <- struct{}{} }()
		line, err := json.Marshal(resp)
		if err != nil {
			slog.Warn("failed to marshal response", slog.String("error", err.Error()))
			return
		}
		if _, err := out.Write(append(line, '\n')); err != nil {
			slog.Warn("failed to write response", slog.String("error", err.Error()))
		}
	}

	writeFrame(protocol.Response{ID: "ready"})

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req protocol.Request
		if err := json.Unmarshal(line, &req); err != nil {
			slog.Warn("malformed request frame", slog.String("error", err.Error()))
			continue
		}

		switch req.Method {
		case "shutdown":
			return nil
		case "embed":
			go handleEmbed(ctx, model, req, writeFrame)
		default:
			writeFrame(protocol.Response{ID: req.ID, Error: &protocol.Error{
				Code:    -32601,
				Message: fmt.Sprintf("unknown method: %s", req.Method),
			}})
		}
	}

	return scanner.Err()
}

func handleEmbed(ctx context.Context, model embed.Embedder, req protocol.Request, writeFrame func(protocol.Response)) {
	var params embedder.EmbedRequest
	if err := protocol.Decode(req.Params, &params); err != nil {
		writeFrame(protocol.Response{ID: req.ID, Error: &protocol.Error{Code: -32602, Message: err.Error()}})
		return
	}

	embedCtx, cancel := context.WithTimeout(ctx, embed.DefaultWarmTimeout)
	defer cancel()

	vectors, err := model.EmbedBatch(embedCtx, params.Texts)
	if err != nil {
		writeFrame(protocol.Response{ID: req.ID, Error: &protocol.Error{Code: -32000, Message: err.Error()}})
		return
	}

	result, err := protocol.Encode(embedder.EmbedResult{Vectors: vectors})
	if err != nil {
		writeFrame(protocol.Response{ID: req.ID, Error: &protocol.Error{Code: -32000, Message: err.Error()}})
		return
	}
	writeFrame(protocol.Response{ID: req.ID, Result: result})
}

// newModel returns the uncached static 768-dimension embedder when
// DOCWELL_EMBEDDER is "static"; for any other value it calls
// embed.NewEmbedder, which in this build also yields the static
// 768-dimension embedder (behind its query cache). DOCWELL_PURE_CPU=1
// and DOCWELL_MODEL_CACHE_DIR are set by embedder.ExecSpawner; this
// process does not read them and downloads no model weights.
func newModel(ctx context.Context) (embed.Embedder, error) {
	if os.Getenv("DOCWELL_EMBEDDER") == "static" {
		return embed.NewStaticEmbedder768(), nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	e, err := embed.NewEmbedder(initCtx, "", embed.DefaultModelName)
	if err != nil {
		slog.Warn("embedder init failed, falling back to static embeddings",
			slog.String("error", err.Error()))
		return embed.NewStaticEmbedder768(), nil
	}
	return e, nil
}
