// Command desk is a terminal client for the hub: it keeps a local
// notification list, stays connected to the hub socket and runs a support
// chat from stdin. Mostly a smoke tool for exercising the SDK against a
// running hub.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/garagedesk/internal/chat"
	"github.com/garagedesk/internal/config"
	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
	"github.com/garagedesk/internal/notify"
	"github.com/garagedesk/internal/storage"
	filestore "github.com/garagedesk/internal/storage/file"
	redisstore "github.com/garagedesk/internal/storage/redis"
	"github.com/garagedesk/internal/transport"
)

func main() {
	logger.SetPrefix("desk")
	name := flag.String("name", "", "customer name (required to start a chat)")
	email := flag.String("email", "", "customer email")
	subject := flag.String("subject", "Support request", "chat subject")
	category := flag.String("category", "general", "chat category")
	useRedis := flag.Bool("redis", false, "persist notifications in Redis instead of a file")
	flag.Parse()

	cfg := config.Load()
	sessionID := newSessionID()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.NotificationStore
	if *useRedis {
		s, err := redisstore.New(ctx, cfg.Redis.URL, "")
		if err != nil {
			logger.Errorf("redis store: %v (falling back to file)", err)
			store = filestore.New(cfg.NotificationsFile)
		} else {
			store = s
		}
	} else {
		store = filestore.New(cfg.NotificationsFile)
	}

	toaster := notify.LogToaster{}
	hub := notify.NewHub(ctx, store, toaster)
	defer hub.Close()

	var (
		sessMu  sync.Mutex
		session *chat.Session
	)

	conn := transport.New(wsEndpoint(cfg.HubWSURL, sessionID), cfg.ReconnectDelay(), transport.Handlers{
		Notification: hub.HandleServerEvent,
		Chat: func(ev transport.Event) {
			sessMu.Lock()
			s := session
			sessMu.Unlock()
			if s != nil {
				s.HandleEvent(ev)
			}
		},
	})

	var connWg sync.WaitGroup
	connWg.Add(1)
	go func() {
		defer connWg.Done()
		conn.Run(ctx)
	}()

	api := chat.NewClient(cfg.HubAPIURL)

	if *name != "" {
		s := chat.NewSession(api, conn, toaster, cfg.TypingClearTTL())
		customer := model.Customer{Name: *name, Email: *email, SessionID: sessionID}
		if err := s.Start(ctx, customer, *subject, *category, ""); err != nil {
			logger.Errorf("start chat: %v", err)
			os.Exit(1)
		}
		sessMu.Lock()
		session = s
		sessMu.Unlock()
		defer s.Close()
		if c := s.Chat(); c != nil {
			fmt.Printf("chat %s started (status %s), type messages below\n", c.ID, c.Status)
		}
	} else {
		fmt.Println("no -name given, listening for notifications only")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-quit:
			logger.Info("shutting down")
			cancel()
			connWg.Wait()
			return
		case line, ok := <-lines:
			if !ok {
				cancel()
				connWg.Wait()
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			sessMu.Lock()
			s := session
			sessMu.Unlock()
			if s == nil {
				continue
			}
			if line == "/unread" {
				fmt.Printf("%d unread, %d urgent\n", hub.UnreadCount(), hub.UrgentCount())
				continue
			}
			if err := s.Send(ctx, line, model.MessageTypeText); err != nil {
				logger.Errorf("send: %v", err)
			}
		}
	}
}

func newSessionID() string {
	return "desk-" + uuid.NewString()[:8]
}

// wsEndpoint appends the session id to the hub ws URL.
func wsEndpoint(base, sessionID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String()
}
