// Package main - agitator
// Load generator for stress testing: spins up whole parties of bots
// that open lobbies and spam plausible game actions at the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumParties     int
	PartySize      int
	ActionInterval time.Duration
	TestDuration   time.Duration
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

var decks = []string{"deck1", "deck2", "deck3", "deck4"}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numParties := flag.Int("parties", 12, "Number of concurrent parties")
	partySize := flag.Int("size", 4, "Players per party")
	interval := flag.Duration("interval", 250*time.Millisecond, "Action interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		NumParties:     *numParties,
		PartySize:      *partySize,
		ActionInterval: *interval,
		TestDuration:   *duration,
	}

	fmt.Println("=========================================")
	fmt.Println("THE AGITATOR - Stress Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Parties: %d x %d players\n", config.NumParties, config.PartySize)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{Latencies: make([]time.Duration, 0, 10000)}

	var wg sync.WaitGroup
	fmt.Println("\nStarting parties...")

	for i := 0; i < config.NumParties; i++ {
		wg.Add(1)
		go func(partyID int) {
			defer wg.Done()
			runParty(ctx, partyID, config, stats)
		}(i)

		// Stagger party starts to avoid thundering herd
		time.Sleep(25 * time.Millisecond)
	}

	fmt.Printf("All %d parties started\n\n", config.NumParties)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent := atomic.LoadInt64(&stats.MessagesSent)
				recv := atomic.LoadInt64(&stats.MessagesReceived)
				errs := atomic.LoadInt64(&stats.Errors)
				fmt.Printf("Progress: Sent=%d Recv=%d Errors=%d\n", sent, recv, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

// runParty opens one lobby with a host bot and fills it with members,
// then lets everyone spam actions.
func runParty(ctx context.Context, partyID int, config Config, stats *Stats) {
	codeCh := make(chan string, 1)
	var wg sync.WaitGroup

	for seat := 0; seat < config.PartySize; seat++ {
		wg.Add(1)
		go func(seat int) {
			defer wg.Done()
			runBot(ctx, partyID, seat, config, stats, codeCh)
		}(seat)
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()
}

func runBot(ctx context.Context, partyID, seat int, config Config, stats *Stats, codeCh chan string) {
	name := fmt.Sprintf("bot-%02d-%d", partyID, seat)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("%s: connection failed: %v", name, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	// Receiver: count frames and fish the lobby code out of the host's
	// session message.
	host := seat == 0
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			if !host {
				continue
			}
			var msg struct {
				Type    string `json:"type"`
				Payload struct {
					Lobby string `json:"lobby"`
				} `json:"payload"`
			}
			if json.Unmarshal(raw, &msg) == nil && msg.Type == "session" && msg.Payload.Lobby != "" {
				select {
				case codeCh <- msg.Payload.Lobby:
				default:
				}
				host = false // only announce once
			}
		}
	}()

	deck := decks[rand.Intn(len(decks))]
	var enter map[string]any
	if seat == 0 {
		enter = action("CREATE_LOBBY", map[string]any{"name": name, "deck": deck})
	} else {
		select {
		case code := <-codeCh:
			codeCh <- code // pass it on to the next member
			enter = action("JOIN_LOBBY", map[string]any{"code": code, "name": name, "deck": deck})
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Second):
			atomic.AddInt64(&stats.Errors, 1)
			return
		}
	}
	if err := conn.WriteJSON(enter); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := conn.WriteJSON(randomAction(seat == 0)); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.MessagesSent, 1)
			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, time.Since(start))
			stats.mu.Unlock()
		}
	}
}

// randomAction picks a plausible next move. Most will bounce off the
// engine's state guards, which is exactly the contention we want to
// exercise.
func randomAction(host bool) map[string]any {
	roll := rand.Intn(100)
	switch {
	case host && roll < 10:
		return action("START_GAME", nil)
	case host && roll < 15:
		return action("CONTINUE", nil)
	case roll < 35:
		return action("VOTE", map[string]any{"node": fmt.Sprintf("node-%d", rand.Intn(20))})
	case roll < 55:
		return action("CHARGE", map[string]any{"amount": 5 + rand.Intn(30)})
	case roll < 75:
		return action("DRAW", nil)
	case roll < 88:
		return action("ATTACK", map[string]any{"target": rand.Intn(2)})
	case roll < 95:
		return action("END_TURN", nil)
	default:
		return action("BUY", map[string]any{"index": rand.Intn(5)})
	}
}

func action(typ string, payload map[string]any) map[string]any {
	out := map[string]any{"type": typ}
	if payload != nil {
		out["payload"] = payload
	}
	return out
}

func printResults(stats *Stats, config Config) {
	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Println("\n=========================================")
	fmt.Println("RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Messages sent:     %d\n", sent)
	fmt.Printf("Messages received: %d\n", recv)
	fmt.Printf("Errors:            %d\n", errs)

	stats.mu.Lock()
	defer stats.mu.Unlock()
	if len(stats.Latencies) == 0 {
		return
	}
	sort.Slice(stats.Latencies, func(i, j int) bool { return stats.Latencies[i] < stats.Latencies[j] })
	p50 := stats.Latencies[len(stats.Latencies)/2]
	p99 := stats.Latencies[len(stats.Latencies)*99/100]
	fmt.Printf("Write latency p50: %v\n", p50)
	fmt.Printf("Write latency p99: %v\n", p99)
	if sent > 0 {
		fmt.Printf("Throughput:        %.1f msg/s\n", float64(sent)/config.TestDuration.Seconds())
	}
}
