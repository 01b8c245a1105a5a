// Package mpdprotocol provides a Go client for the text protocol spoken by
// the Music Player Daemon (MPD).
//
// # Protocol Overview
//
// The protocol is line-oriented ASCII over a TCP or Unix domain socket. The
// server greets every new connection, then answers one command at a time:
//
//	Greeting:          OK MPD <version>\n
//	Request:           <command> [arguments...]\n
//	Payload line:      <key>: <value>\n
//	Success sentinel:  OK\n
//	Error sentinel:    ACK [<code>@<index>] {<command>} <message>\n
//
// The exchange is strictly half-duplex: a new command is only written once
// the previous response has been read up to its sentinel.
//
// # Basic Usage
//
//	client, err := mpdprotocol.DialTCP(ctx, "localhost:6600")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	status, err := client.Status()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tracks, err := client.Queue(status.QueueLen)
//
// # Waiting for Changes
//
// Idle blocks until the server reports a change to the player, its options
// or the queue. Cancelling the context ends the wait cleanly: the client
// sends noidle and consumes the server's reply, so the connection can be
// used for the next command right away.
//
//	ctx, cancel := context.WithCancel(ctx)
//	go func() { <-userInput; cancel() }()
//	changes, err := client.Idle(ctx)
//
// # Thread Safety
//
// A Client has exactly one owner. It holds no locks and must not be used
// from more than one goroutine at a time; see the session package for a
// goroutine that multiplexes idle waits and user commands over one client.
package mpdprotocol
