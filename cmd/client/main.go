package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/chatterd/chatterd/pkg/client"
	"github.com/chatterd/chatterd/pkg/protocol"
	"github.com/chatterd/chatterd/pkg/version"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9009", "Server address")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("chatterd client", version.String())
		return
	}

	c, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	welcome, err := c.Welcome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read welcome: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("[SERVER]", welcome.Text)

	stdin := bufio.NewScanner(os.Stdin)
	action := promptAction(stdin)
	username := promptLine(stdin, "username: ")
	password := promptPassword("password: ")

	resp, err := c.Authenticate(action, username, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth: %v\n", err)
		os.Exit(1)
	}
	if resp.Status != protocol.StatusOK {
		fmt.Fprintf(os.Stderr, "Auth failed: %s\n", resp.Message)
		os.Exit(1)
	}
	fmt.Println("[AUTH]", resp.Message)

	// Receiver prints everything the server pushes until the stream ends.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := c.Receive()
			if err != nil {
				fmt.Println("\n[Disconnected]")
				return
			}
			fmt.Println(client.Render(msg))
		}
	}()

	fmt.Println("Type /help for commands. Start chatting!")
	for stdin.Scan() {
		in, err := client.ParseInput(stdin.Text())
		if err != nil {
			if errors.Is(err, client.ErrUnknownCommand) {
				fmt.Println("Unknown command. Use /help")
				continue
			}
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if in.ShowHelp {
			fmt.Println(client.HelpText)
			continue
		}
		if in.Message != nil {
			if err := c.Send(in.Message); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
				break
			}
		}
		if in.Quit {
			fmt.Println("Quitting...")
			break
		}
	}

	c.Close()
	<-done
}

func promptAction(stdin *bufio.Scanner) string {
	for {
		choice := strings.ToLower(promptLine(stdin, "Do you want to (l)ogin or (r)egister? [l/r]: "))
		switch choice {
		case "l":
			return protocol.ActionLogin
		case "r":
			return protocol.ActionRegister
		}
	}
}

func promptLine(stdin *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	if !stdin.Scan() {
		os.Exit(1)
	}
	return strings.TrimSpace(stdin.Text())
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read password: %v\n", err)
		os.Exit(1)
	}
	return string(pw)
}
