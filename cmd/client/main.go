// Command client logs into a roomchat server, joins a room, and drives the
// connection with the duplex message pump: received broadcasts are printed
// as they arrive while synthetic messages are generated onto the wire.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/client"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "base URL of the roomchat server")
		room      = flag.String("room", "testRoom", "room to join")
		username  = flag.String("username", "", "login username")
		password  = flag.String("password", "", "login password")
		count     = flag.Int("count", 10, "number of synthetic messages to send")
		minDelay  = flag.Duration("min-delay", 5*time.Second, "minimum delay between generated messages")
		maxDelay  = flag.Duration("max-delay", 10*time.Second, "maximum delay between generated messages")
	)
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("Both -username and -password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token, err := login(ctx, *serverURL, *username, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Println("Logged in, connecting to websocket")

	conn, err := dial(ctx, *serverURL, *room, token)
	if err != nil {
		log.Fatalf("WebSocket connect failed: %v", err)
	}

	pump := client.NewPump(conn, client.Config{
		MessageCount: *count,
		MinDelay:     *minDelay,
		MaxDelay:     *maxDelay,
	})

	go func() {
		for msg := range pump.Inbound() {
			fmt.Println(msg)
		}
	}()

	if err := pump.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Pump failed: %v", err)
	}
	log.Println("Client finished")
}

// login posts form credentials to the auth endpoint and returns the bearer
// token from the JSON response.
func login(ctx context.Context, serverURL, username, password string) (string, error) {
	form := url.Values{
		"username": {username},
		"password": {password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(serverURL, "/")+"/auth/login",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing login response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return body.AccessToken, nil
}

// dial opens the websocket connection for room, presenting the bearer
// token in the Authorization header.
func dial(ctx context.Context, serverURL, room, token string) (*websocket.Conn, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}

	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := url.URL{Scheme: scheme, Host: parsed.Host, Path: "/ws/" + room}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (handshake status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}
