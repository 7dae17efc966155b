package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/wachat/internal/bus"
	"github.com/matheus3301/wachat/internal/config"
	"github.com/matheus3301/wachat/internal/lock"
	"github.com/matheus3301/wachat/internal/logging"
	"github.com/matheus3301/wachat/internal/session"
	"github.com/matheus3301/wachat/internal/store"
	intsync "github.com/matheus3301/wachat/internal/sync"
	"github.com/matheus3301/wachat/internal/tui/client"
	"github.com/matheus3301/wachat/internal/wa"
)

const processName = "wachatctl"

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	serverFlag := flag.String("server", "", "daemon URL (default: read from the session lock)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fatalf("load .env: %v", err)
	}
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err == nil {
		err = cfg.ApplyEnv(os.LookupEnv)
	}
	if err != nil {
		fatalf("config: %v", err)
	}

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fatalf("%v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	serverURL := *serverFlag
	if serverURL == "" {
		serverURL = client.ServerURL(sessionName, cfg.Client.ServerURL)
	}
	c := client.New(serverURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := output{json: *jsonFlag}
	switch args[0] {
	case "status":
		cmdStatus(ctx, c, sessionName, out)
	case "stats":
		cmdStats(ctx, c, out)
	case "conversations":
		cmdConversations(ctx, c, out)
	case "messages":
		if len(args) < 2 {
			fatalf("usage: %s messages <wa_id>", processName)
		}
		cmdMessages(ctx, c, args[1], out)
	case "send":
		if len(args) < 3 {
			fatalf("usage: %s send <wa_id> <text>", processName)
		}
		cmdSend(ctx, c, cfg, args[1], strings.Join(args[2:], " "), out)
	case "search":
		if len(args) < 2 {
			fatalf("usage: %s search <query>", processName)
		}
		cmdSearch(ctx, c, strings.Join(args[1:], " "), out)
	case "ingest":
		if len(args) < 2 {
			fatalf("usage: %s ingest <dir>", processName)
		}
		cmdIngest(ctx, c, sessionName, args[1], out)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "usage: %s [--session <name>] [--server <url>] [--json] <command>\n", processName)
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                  Show daemon status")
	fmt.Fprintln(os.Stderr, "  stats                   Show message, conversation and connection counts")
	fmt.Fprintln(os.Stderr, "  conversations           List conversations")
	fmt.Fprintln(os.Stderr, "  messages <wa_id>        Show a conversation's messages")
	fmt.Fprintln(os.Stderr, "  send <wa_id> <text>     Store an outgoing message")
	fmt.Fprintln(os.Stderr, "  search <query>          Search message text")
	fmt.Fprintln(os.Stderr, "  ingest <dir>            Process webhook payload files (*.json)")
}

type output struct {
	json bool
}

func (o output) emit(v any, text func()) {
	if o.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	text()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdStatus(ctx context.Context, c *client.Client, sessionName string, out output) {
	h, err := c.Health(ctx)
	if err != nil {
		fatalf("daemon for session %q not reachable at %s: %v", sessionName, c.BaseURL, err)
	}
	info, _ := lock.Read(session.Dir(sessionName))
	out.emit(map[string]any{"session": sessionName, "server": c.BaseURL, "pid": info.PID, "health": h}, func() {
		fmt.Printf("Session: %s\n", sessionName)
		fmt.Printf("Server:  %s\n", c.BaseURL)
		if info.PID != 0 {
			fmt.Printf("PID:     %d\n", info.PID)
		}
		fmt.Printf("Status:  %s (%s)\n", h.Status, h.Timestamp)
	})
}

func cmdStats(ctx context.Context, c *client.Client, out output) {
	s, err := c.Stats(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	out.emit(s, func() {
		fmt.Printf("Messages:      %d\n", s.Messages)
		fmt.Printf("Conversations: %d\n", s.Conversations)
		fmt.Printf("Connections:   %d\n", s.Connections)
	})
}

func cmdConversations(ctx context.Context, c *client.Client, out output) {
	convs, err := c.ListConversations(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	out.emit(convs, func() {
		if len(convs) == 0 {
			fmt.Println("No conversations.")
			return
		}
		fmt.Printf("%-16s %-24s %6s  %s\n", "WA_ID", "NAME", "MSGS", "LAST")
		for _, cv := range convs {
			fmt.Printf("%-16s %-24s %6d  %s\n", cv.WaID, cv.UserName, cv.MessageCount, cv.LatestMessage.Content)
		}
	})
}

func cmdMessages(ctx context.Context, c *client.Client, waID string, out output) {
	msgs, err := c.ListMessages(ctx, waID)
	if err != nil {
		fatalf("%v", err)
	}
	out.emit(msgs, func() {
		for _, m := range msgs {
			fmt.Printf("[%s] %s -> %s (%s): %s\n", m.Timestamp.Local().Format(time.DateTime), m.From, m.To, m.Status, m.Content)
		}
	})
}

func cmdSend(ctx context.Context, c *client.Client, cfg *config.Config, waID, text string, out output) {
	m, err := c.CreateMessage(ctx, store.NewMessage{
		WaID:     waID,
		Content:  text,
		UserName: cfg.Identity.DisplayName,
		From:     cfg.Identity.BusinessNumber,
		To:       waID,
	})
	if err != nil {
		fatalf("%v", err)
	}
	out.emit(m, func() {
		fmt.Printf("Stored %s\n", m.MessageID)
	})
}

func cmdSearch(ctx context.Context, c *client.Client, query string, out output) {
	results, err := c.Search(ctx, query, "", 0)
	if err != nil {
		fatalf("%v", err)
	}
	out.emit(results, func() {
		for _, r := range results {
			fmt.Printf("%s %s: %s\n", r.Message.WaID, r.Message.MessageID, r.Snippet)
		}
	})
}

// cmdIngest posts payload files to a running daemon so connected clients see
// them. Without a daemon it writes to the session store directly.
func cmdIngest(ctx context.Context, c *client.Client, sessionName, dir string, out output) {
	var (
		sum *intsync.Summary
		err error
	)
	if client.Alive(ctx, c.BaseURL) {
		sum, err = ingestRemote(ctx, c, dir)
	} else {
		sum, err = ingestLocal(ctx, sessionName, dir)
	}
	if err != nil {
		fatalf("%v", err)
	}
	out.emit(sum, func() {
		fmt.Printf("Messages created:   %d\n", sum.MessagesCreated)
		fmt.Printf("Messages skipped:   %d\n", sum.MessagesSkipped)
		fmt.Printf("Statuses applied:   %d\n", sum.StatusesApplied)
		fmt.Printf("Statuses unchanged: %d\n", sum.StatusesUnchanged)
		fmt.Printf("Statuses missed:    %d\n", sum.StatusesMissed)
		fmt.Printf("Failed:             %d\n", sum.Failed)
		for _, e := range sum.Errors {
			fmt.Printf("  %s\n", e)
		}
	})
}

func ingestRemote(ctx context.Context, c *client.Client, dir string) (*intsync.Summary, error) {
	batch, bad, err := readPayloads(dir)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return &intsync.Summary{Failed: len(bad), Errors: bad}, nil
	}
	raw, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	sum, err := c.Webhook(ctx, raw)
	if err != nil {
		return nil, err
	}
	sum.Failed += len(bad)
	sum.Errors = append(sum.Errors, bad...)
	return sum, nil
}

// readPayloads returns the raw payloads in dir that parse, in file name
// order, and an error line for each that does not.
func readPayloads(dir string) ([]json.RawMessage, []string, error) {
	names, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(names)
	var (
		batch []json.RawMessage
		bad   []string
	)
	for _, name := range names {
		raw, err := os.ReadFile(name)
		if err == nil {
			_, err = wa.Parse(raw)
		}
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", filepath.Base(name), err))
			continue
		}
		batch = append(batch, raw)
	}
	return batch, bad, nil
}

func ingestLocal(ctx context.Context, sessionName, dir string) (*intsync.Summary, error) {
	if err := session.EnsureDir(sessionName); err != nil {
		return nil, err
	}
	lk, err := lock.Acquire(session.Dir(sessionName), "")
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			return nil, fmt.Errorf("daemon (PID %d) holds the session but is not answering at %s", held.PID, held.Addr)
		}
		return nil, err
	}
	defer func() { _ = lk.Release() }()

	logger, err := logging.New(session.LogPath(sessionName, processName), sessionName, processName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(session.AppDBPath(sessionName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Migrate(); err != nil {
		return nil, err
	}

	parsed, bad, err := wa.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sum, err := intsync.NewEngine(db, bus.New(), logger.Named("sync")).IngestBatch(ctx, parsed)
	if err != nil {
		return nil, err
	}
	for _, fe := range bad {
		sum.Failed++
		sum.Errors = append(sum.Errors, fe.Error())
	}
	return &sum, nil
}
