package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barbershop-queue/internal/config"
	"barbershop-queue/internal/lib/logger/sl"
	"barbershop-queue/internal/models"
	"barbershop-queue/internal/queuewatch"
)

// queuewatch follows a customer's place in line from the terminal.
func main() {
	config.LoadEnv()

	var baseURL, token, email, password string
	var verbose bool

	flag.StringVar(&baseURL, "url", config.GetEnv("QUEUEWATCH_URL", "http://localhost:8080"), "server base url")
	flag.StringVar(&token, "token", config.GetEnv("QUEUEWATCH_TOKEN", ""), "session token")
	flag.StringVar(&email, "email", "", "log in with this email when no token is given")
	flag.StringVar(&password, "password", "", "password for -email")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if token == "" {
		if email == "" {
			fmt.Fprintln(os.Stderr, "either -token or -email/-password is required")
			os.Exit(2)
		}
		var err error
		token, err = login(ctx, baseURL, email, password)
		if err != nil {
			log.Error("login failed", sl.Err(err))
			os.Exit(1)
		}
	}

	var last string
	w := queuewatch.New(log, queuewatch.Config{BaseURL: baseURL, Token: token},
		queuewatch.OnStatus(func(v *models.QueueView) {
			line := describe(v)
			if line != last {
				fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), line)
				last = line
			}
		}),
		queuewatch.OnState(func(s queuewatch.Snapshot) {
			attrs := []any{slog.String("state", s.State.String())}
			if s.State == queuewatch.Backoff {
				attrs = append(attrs, slog.Int("attempt", s.Attempt))
			}
			if s.Err != nil {
				attrs = append(attrs, slog.String("err", s.Err.Error()))
			}
			log.Debug("connection", attrs...)
		}),
	)

	w.Run(ctx)
}

func describe(v *models.QueueView) string {
	if !v.InQueue {
		return "not in queue"
	}
	if v.PeopleAhead == 0 {
		return fmt.Sprintf("you're next with %s (%s)", v.BarberName, v.Status)
	}
	return fmt.Sprintf("position %d with %s, %d ahead, about %d min", v.Position, v.BarberName, v.PeopleAhead, v.EstimatedWaitTime)
}

func login(ctx context.Context, baseURL, email, password string) (string, error) {
	body, err := json.Marshal(models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out models.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}
