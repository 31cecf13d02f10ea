package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/capitalduel/internal/model"
)

// errQuit ends an interactive session
var errQuit = errors.New("quit")

const playHelp = `Commands:
  invite <user> [duration] [skip-penalty]
  accept <user> [duration] [skip-penalty]
  decline <user>
  answer <room> [text]
  skip <room>
  leave <room>
  rejoin <room>
  quit`

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play interactively over the websocket",
		Long: `Connect to the server websocket, print events as they arrive,
and send commands typed on stdin.

` + playHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return play(ctx, os.Stdin, NewOutput(cfg.Output))
		},
	}
}

func play(ctx context.Context, in io.Reader, out *Output) error {
	header := http.Header{}
	if client.Token() != "" {
		header.Set("Authorization", "Bearer "+client.Token())
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, client.WebSocketURL("/api/v1/ws"), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connection failed: HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	out.PrintMessage("Connected. Type 'help' for commands.")

	readErr := make(chan error, 1)
	go func() {
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				readErr <- err
				return
			}
			out.PrintEvent(ev)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return closeGracefully(conn)

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				out.PrintMessage("Disconnected")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)

		case line, ok := <-lines:
			if !ok {
				return closeGracefully(conn)
			}
			if strings.TrimSpace(line) == "help" {
				out.PrintMessage(playHelp)
				continue
			}

			msg, err := parsePlayCommand(line)
			switch {
			case errors.Is(err, errQuit):
				return closeGracefully(conn)
			case err != nil:
				out.PrintError(err)
				continue
			case msg == nil:
				continue
			}

			if err := conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func closeGracefully(conn *websocket.Conn) error {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// parsePlayCommand turns a typed line into a client message. Blank lines yield nil.
func parsePlayCommand(line string) (*model.ClientMessage, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "quit", "exit":
		return nil, errQuit

	case "invite", "accept":
		if len(args) < 1 || len(args) > 3 {
			return nil, fmt.Errorf("usage: %s <user> [duration] [skip-penalty]", cmd)
		}
		settings, err := parseSettings(args[1:])
		if err != nil {
			return nil, err
		}
		if cmd == "invite" {
			return &model.ClientMessage{Type: model.MessageInvite, To: model.Username(args[0]), Settings: settings}, nil
		}
		return &model.ClientMessage{Type: model.MessageInviteResponse, From: model.Username(args[0]), Accept: true, Settings: settings}, nil

	case "decline":
		if len(args) != 1 {
			return nil, errors.New("usage: decline <user>")
		}
		return &model.ClientMessage{Type: model.MessageInviteResponse, From: model.Username(args[0])}, nil

	case "answer":
		if len(args) < 1 {
			return nil, errors.New("usage: answer <room> [text]")
		}
		return &model.ClientMessage{
			Type:   model.MessageAnswerAccepted,
			RoomID: model.RoomID(args[0]),
			Answer: strings.Join(args[1:], " "),
		}, nil

	case "skip", "leave", "rejoin":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: %s <room>", cmd)
		}
		types := map[string]model.MessageType{
			"skip":   model.MessageSkip,
			"leave":  model.MessageLeave,
			"rejoin": model.MessageRejoin,
		}
		return &model.ClientMessage{Type: types[cmd], RoomID: model.RoomID(args[0])}, nil

	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func parseSettings(args []string) (*model.SettingsProposal, error) {
	if len(args) == 0 {
		return nil, nil
	}
	settings := &model.SettingsProposal{}
	fields := []**int{&settings.Duration, &settings.SkipPenalty}
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", arg)
		}
		*fields[i] = &n
	}
	return settings, nil
}
