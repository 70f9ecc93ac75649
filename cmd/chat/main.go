package main

import (
	"bufio"
	"context"
	"flash-chat/infrastructure/grpc/client"
	"flash-chat/internal"
	"flash-chat/projection"
	"flash-chat/session"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the chat client.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const quitCommand = "/quit"

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat error: %v\n", err)
	}
	os.Exit(code)
}

// run opens a session against the log server, renders every message of the
// room and sends each line typed on stdin.
func run() (int, error) {
	// 1. Configuration & Logger
	var config internal.ChatConfig
	if err := internal.LoadConfig(&config); err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connection to the log server
	conn, err := client.Dial(config.ServerAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddr, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()
	remote := client.NewLogClient(conn, log)

	// 4. Session
	renderer := NewRenderer(os.Stdout)
	timeline := projection.NewTimeline(config.Identity).OnEntry(renderer.Entry)
	chat, err := session.New(log, remote, config.Session(), timeline, renderer)
	if err != nil {
		return exitConfig, fmt.Errorf("session error: %w", err)
	}
	defer chat.Close()
	if err := chat.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("failed to subscribe: %w", err)
	}
	renderer.Notice(fmt.Sprintf("Connected to %s as %s (%s to leave)", config.ServerAddr, config.Identity, quitCommand))

	// 5. Input loop
	return exitOK, prompt(ctx, os.Stdin, chat, renderer)
}

// prompt sends stdin lines one at a time. While a send is in flight further
// lines are refused, the way the send button is disabled until the log
// acknowledges the write.
func prompt(ctx context.Context, in io.Reader, chat *session.Session, renderer *Renderer) error {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-readCtx.Done():
				return
			}
		}
	}()

	var pending <-chan error
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pending:
			// Failures are reported by the renderer through SendFailed
			pending = nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == quitCommand:
				return nil
			case pending != nil:
				renderer.Notice("still sending the previous message")
				continue
			}
			pending = chat.Send(ctx, line)
		}
	}
}
