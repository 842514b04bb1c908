// Command chatbrowse is a read-only terminal browser for a chat history
// database file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thatjuancodes/chathistory"
	"github.com/thatjuancodes/chathistory/storage/bolt"
)

func main() {
	dbPath := flag.String("db", "chathistory.db", "path to the chat history database")
	flag.Parse()

	kv, err := bolt.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer kv.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	gw := chathistory.NewGateway(kv, chathistory.Limits{}, logger)

	ctx := context.Background()
	threads := gw.Load(ctx)
	currentID := gw.CurrentThreadID(ctx)

	p := tea.NewProgram(newModel(threads, currentID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
